package amqp

import (
	"encoding/json"
	"time"
)

// Record kinds carried in ledger events.
const (
	RecordExpense = "expense"
	RecordSaving  = "saving"
	RecordBudget  = "budget"
	RecordGoal    = "goal"
)

// LedgerEvent announces a committed mutation of one user's ledger. It carries
// identifiers only; consumers that need the record read it from the ledger.
type LedgerEvent struct {
	UserID    string    `json:"user_id"`
	Record    string    `json:"record"`
	Operation string    `json:"operation"`
	ID        int64     `json:"id,omitempty"`
	Key       string    `json:"key,omitempty"` // category/YYYY-MM of the affected budget
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(userID, record, operation string, id int64) *LedgerEvent {
	return &LedgerEvent{
		UserID:    userID,
		Record:    record,
		Operation: operation,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event delivered by the broker.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
