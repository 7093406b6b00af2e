package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestQueueForRouting(t *testing.T) {
	if q := queueFor(TaskProcessPost); q != PipelineQueue {
		t.Errorf("process_post routed to %s", q)
	}
	if q := queueFor(TaskRefreshMetaToken); q != MaintenanceQueue {
		t.Errorf("refresh_meta_token routed to %s", q)
	}
	if q := queueFor(TaskCleanupRefImages); q != MaintenanceQueue {
		t.Errorf("cleanup routed to %s", q)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	w := &Worker{}
	err := w.Dispatch(context.Background(), &Task{Type: "launch_rocket"})
	if err == nil || !strings.Contains(err.Error(), "unknown task type") {
		t.Errorf("err = %v, want unknown task type", err)
	}
}

func TestDecodePayload(t *testing.T) {
	raw, _ := json.Marshal(InstructionTaskPayload{PostID: 9, ChatID: 42, Instruction: "shorter"})
	task := &Task{Type: TaskRewriteCaption, Payload: raw}

	payload, err := decodePayload[InstructionTaskPayload](task)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.PostID != 9 || payload.ChatID != 42 || payload.Instruction != "shorter" {
		t.Errorf("payload = %+v", payload)
	}

	task.Payload = json.RawMessage(`{broken`)
	if _, err := decodePayload[InstructionTaskPayload](task); err == nil {
		t.Error("expected error for malformed payload")
	}
}
