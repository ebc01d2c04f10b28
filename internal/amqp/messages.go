package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncKind says what happened to a loan in the local store.
type SyncKind string

const (
	KindAppend SyncKind = "append"
	KindStatus SyncKind = "status"
)

// LoanSyncMessage asks the worker to mirror one stored loan into Google
// Sheets. The worker reads the current loan from the database, so the
// message only identifies it.
type LoanSyncMessage struct {
	ID        int64     `json:"id"`
	Kind      SyncKind  `json:"kind"`
	RecordID  string    `json:"record_id"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLoanSyncMessage(id int64, kind SyncKind, recordID string) *LoanSyncMessage {
	return &LoanSyncMessage{
		ID:        id,
		Kind:      kind,
		RecordID:  recordID,
		MessageID: uuid.NewString(),
		Timestamp: time.Now(),
	}
}

func (m *LoanSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LoanSyncMessageFromJSON decodes and checks a message body.
func LoanSyncMessageFromJSON(data []byte) (*LoanSyncMessage, error) {
	var msg LoanSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid loan id %d", msg.ID)
	}
	switch msg.Kind {
	case KindAppend, KindStatus:
	default:
		return nil, fmt.Errorf("unknown sync kind %q", msg.Kind)
	}
	return &msg, nil
}
