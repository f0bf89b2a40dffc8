package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_StructuredOutput(t *testing.T) {
	t.Run("emits event with all fields", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		event := Event{
			JobID:     "test-job-001",
			ItemIndex: 1,
			Phase:     "testPhase",
			Msg:       "item_start",
			Meta: map[string]interface{}{
				"key": "value",
			},
		}

		emitter.Emit(event)

		output := buf.String()
		if output == "" {
			t.Fatal("expected output, got empty string")
		}

		if !strings.Contains(output, "test-job-001") {
			t.Errorf("expected output to contain JobID 'test-job-001', got: %s", output)
		}
		if !strings.Contains(output, "testPhase") {
			t.Errorf("expected output to contain Phase 'testPhase', got: %s", output)
		}
		if !strings.Contains(output, "item_start") {
			t.Errorf("expected output to contain Msg 'item_start', got: %s", output)
		}
	})

	t.Run("emits multiple events", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		event1 := Event{JobID: "job-001", ItemIndex: 0, Phase: "phase1", Msg: "item_start"}
		event2 := Event{JobID: "job-001", ItemIndex: 0, Phase: "phase1", Msg: "item_complete"}

		emitter.Emit(event1)
		emitter.Emit(event2)

		output := buf.String()
		lines := strings.Split(strings.TrimSpace(output), "\n")

		if len(lines) < 2 {
			t.Errorf("expected at least 2 lines of output, got %d", len(lines))
		}
	})
}

func TestLogEmitter_JSONFormatting(t *testing.T) {
	t.Run("emits valid JSON when JSON mode enabled", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		event := Event{
			JobID:     "json-job-001",
			ItemIndex: 2,
			Phase:     "jsonPhase",
			Msg:       "item_complete",
			Meta: map[string]interface{}{
				"counter": 42,
				"status":  "success",
			},
		}

		emitter.Emit(event)

		output := buf.String()
		if output == "" {
			t.Fatal("expected JSON output, got empty string")
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(output), &parsed); err != nil {
			t.Fatalf("expected valid JSON, got error: %v\nOutput: %s", err, output)
		}

		if parsed["jobID"] != "json-job-001" {
			t.Errorf("expected jobID 'json-job-001', got %v", parsed["jobID"])
		}
		if parsed["itemIndex"] != float64(2) {
			t.Errorf("expected itemIndex 2, got %v", parsed["itemIndex"])
		}
		if parsed["phase"] != "jsonPhase" {
			t.Errorf("expected phase 'jsonPhase', got %v", parsed["phase"])
		}
		if parsed["msg"] != "item_complete" {
			t.Errorf("expected msg 'item_complete', got %v", parsed["msg"])
		}

		meta, ok := parsed["meta"].(map[string]interface{})
		if !ok {
			t.Fatal("expected meta to be a map")
		}
		if meta["counter"] != float64(42) {
			t.Errorf("expected counter 42, got %v", meta["counter"])
		}
	})

	t.Run("emits multiple JSON events on separate lines", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		event1 := Event{JobID: "job-001", ItemIndex: 0, Phase: "phase1", Msg: "item_start"}
		event2 := Event{JobID: "job-001", ItemIndex: 0, Phase: "phase1", Msg: "item_complete"}

		emitter.Emit(event1)
		emitter.Emit(event2)

		output := buf.String()
		lines := strings.Split(strings.TrimSpace(output), "\n")

		if len(lines) != 2 {
			t.Errorf("expected 2 lines of JSON, got %d", len(lines))
		}

		for i, line := range lines {
			var parsed map[string]interface{}
			if err := json.Unmarshal([]byte(line), &parsed); err != nil {
				t.Errorf("line %d: expected valid JSON, got error: %v\nLine: %s", i, err, line)
			}
		}
	})
}

func TestLogEmitter_InterfaceContract(t *testing.T) {
	var buf bytes.Buffer
	var _ Emitter = NewLogEmitter(&buf, false)
}
