package amqp

import (
	"testing"
	"time"
)

func TestNewExpenseEventMessage(t *testing.T) {
	msg := NewExpenseEventMessage(EventExpenseCreated, 12345, "alice")

	if msg.Kind != EventExpenseCreated {
		t.Errorf("Kind = %q, want %q", msg.Kind, EventExpenseCreated)
	}
	if msg.ID != 12345 {
		t.Errorf("ID = %v, want 12345", msg.ID)
	}
	if msg.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", msg.UserID)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestExpenseEventMessage_JSON(t *testing.T) {
	msg := &ExpenseEventMessage{
		Kind:      EventExpenseUpdated,
		ID:        7,
		UserID:    "bob",
		Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ExpenseEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ExpenseEventMessageFromJSON() error = %v", err)
	}

	if parsed.Kind != msg.Kind {
		t.Errorf("Parsed Kind = %q, want %q", parsed.Kind, msg.Kind)
	}
	if parsed.ID != msg.ID {
		t.Errorf("Parsed ID = %v, want %v", parsed.ID, msg.ID)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestExpenseEventMessage_InvalidJSON(t *testing.T) {
	if _, err := ExpenseEventMessageFromJSON([]byte(`{"id": "not_a_number"}`)); err == nil {
		t.Error("ExpenseEventMessageFromJSON() should fail with invalid JSON")
	}
}
