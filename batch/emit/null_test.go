package emit

import (
	"testing"
)

func TestNullEmitter_NoOp(t *testing.T) {
	t.Run("emits events without error", func(t *testing.T) {
		emitter := NewNullEmitter()

		events := []Event{
			{JobID: "job-001", ItemIndex: 0, Phase: "phase1", Msg: "item_start"},
			{JobID: "job-001", ItemIndex: 0, Phase: "phase1", Msg: "item_complete"},
			{JobID: "job-001", ItemIndex: 1, Phase: "phase2", Msg: "item_failed", Meta: map[string]interface{}{"error": "test"}},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		t.Log("NullEmitter successfully discarded all events")
	})

	t.Run("can emit with nil meta", func(t *testing.T) {
		emitter := NewNullEmitter()

		event := Event{
			JobID:     "job-001",
			ItemIndex: 0,
			Phase:     "phase1",
			Msg:       "test",
			Meta:      nil,
		}

		emitter.Emit(event)

		t.Log("NullEmitter handled nil meta without error")
	})
}

func TestNullEmitter_InterfaceContract(t *testing.T) {
	var _ Emitter = NewNullEmitter()
}
