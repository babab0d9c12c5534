package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried by ExpenseEventMessage.
const (
	EventExpenseCreated = "expense_created"
	EventExpenseUpdated = "expense_updated"
)

// ExpenseEventMessage announces a ledger mutation. It carries only the
// expense id and the event kind; consumers fetch the full record from the
// database so the queue never holds stale expense data.
type ExpenseEventMessage struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEventMessage creates an event message stamped with the current time.
func NewExpenseEventMessage(kind string, id int64, userID string) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Kind:      kind,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON creates a message from JSON bytes
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
