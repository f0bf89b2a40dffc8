package emit

import (
	"testing"
	"time"
)

func TestEvent_Struct(t *testing.T) {
	t.Run("complete event with all fields", func(t *testing.T) {
		meta := map[string]interface{}{
			"duration_ms": 125,
			"retry_count": 0,
		}

		event := Event{
			JobID:     "job-001",
			ItemIndex: 3,
			Phase:     "extract",
			Msg:       "item processing completed successfully",
			Meta:      meta,
		}

		if event.JobID != "job-001" {
			t.Errorf("expected JobID = 'job-001', got %q", event.JobID)
		}
		if event.ItemIndex != 3 {
			t.Errorf("expected ItemIndex = 3, got %d", event.ItemIndex)
		}
		if event.Phase != "extract" {
			t.Errorf("expected Phase = 'extract', got %q", event.Phase)
		}
		if event.Meta["duration_ms"] != 125 {
			t.Errorf("expected Meta['duration_ms'] = 125, got %v", event.Meta["duration_ms"])
		}
	})

	t.Run("minimal event", func(t *testing.T) {
		event := Event{
			JobID: "job-002",
			Msg:   "job_started",
		}

		if event.ItemIndex != 0 {
			t.Errorf("expected ItemIndex = 0 (zero value), got %d", event.ItemIndex)
		}
		if event.Phase != "" {
			t.Errorf("expected Phase = \"\" (zero value), got %q", event.Phase)
		}
		if event.Meta != nil {
			t.Error("expected Meta = nil (zero value)")
		}
	})

	t.Run("event with metadata", func(t *testing.T) {
		event := Event{
			JobID:     "job-003",
			ItemIndex: 1,
			Phase:     "classify",
			Msg:       "item_start",
			Meta: map[string]interface{}{
				"timestamp": time.Now().Unix(),
				"user_id":   "user-123",
				"tags":      []string{"production", "high-priority"},
			},
		}

		if event.Meta["user_id"] != "user-123" {
			t.Errorf("expected user_id = 'user-123', got %v", event.Meta["user_id"])
		}

		tags, ok := event.Meta["tags"].([]string)
		if !ok {
			t.Fatal("expected tags to be []string")
		}
		if len(tags) != 2 {
			t.Errorf("expected 2 tags, got %d", len(tags))
		}
	})

	t.Run("zero value event", func(t *testing.T) {
		var event Event

		if event.JobID != "" {
			t.Errorf("expected zero value JobID, got %q", event.JobID)
		}
		if event.ItemIndex != 0 {
			t.Errorf("expected zero value ItemIndex, got %d", event.ItemIndex)
		}
		if event.Phase != "" {
			t.Errorf("expected zero value Phase, got %q", event.Phase)
		}
		if event.Msg != "" {
			t.Errorf("expected zero value Msg, got %q", event.Msg)
		}
		if event.Meta != nil {
			t.Error("expected zero value Meta to be nil")
		}
	})
}

func TestEvent_UseCases(t *testing.T) {
	t.Run("item start event", func(t *testing.T) {
		event := Event{
			JobID:     "job-001",
			ItemIndex: 1,
			Phase:     "llm-call",
			Msg:       "item_start",
		}

		if event.Phase != "llm-call" {
			t.Errorf("expected Phase = 'llm-call', got %q", event.Phase)
		}
	})

	t.Run("item complete event", func(t *testing.T) {
		event := Event{
			JobID:     "job-001",
			ItemIndex: 1,
			Phase:     "llm-call",
			Msg:       "item_complete",
			Meta: map[string]interface{}{
				"tokens": 150,
				"cost":   0.003,
			},
		}

		if event.Meta["tokens"] != 150 {
			t.Errorf("expected tokens = 150, got %v", event.Meta["tokens"])
		}
	})

	t.Run("item failed event", func(t *testing.T) {
		event := Event{
			JobID:     "job-001",
			ItemIndex: 2,
			Phase:     "validate",
			Msg:       "item_failed",
			Meta: map[string]interface{}{
				"error":      "invalid input",
				"retryable":  true,
				"error_code": "INVALID_INPUT",
			},
		}

		if event.Meta["retryable"] != true {
			t.Error("expected retryable = true")
		}
	})

	t.Run("checkpoint event", func(t *testing.T) {
		event := Event{
			JobID: "job-001",
			Msg:   "checkpoint_saved",
			Meta: map[string]interface{}{
				"checkpoint_index": 50,
			},
		}

		idx, ok := event.Meta["checkpoint_index"].(int)
		if !ok || idx != 50 {
			t.Errorf("expected checkpoint_index = 50, got %v", event.Meta["checkpoint_index"])
		}
	})
}
