package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types, carried in the AMQP "type" property.
const (
	MessageTypeSync   = "transaction.sync"
	MessageTypeDelete = "transaction.delete"
)

// TransactionSyncMessage asks the worker to mirror the given version of a transaction.
// The worker loads the row itself, so the message stays small.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionDeleteMessage asks the worker to drop a deleted transaction from the mirror.
type TransactionDeleteMessage struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id string, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{ID: id, Version: version, Timestamp: time.Now().UTC()}
}

func NewTransactionDeleteMessage(id, owner string) *TransactionDeleteMessage {
	return &TransactionDeleteMessage{ID: id, Owner: owner, Timestamp: time.Now().UTC()}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *TransactionDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("sync message without id")
	}
	return &msg, nil
}

func TransactionDeleteMessageFromJSON(data []byte) (*TransactionDeleteMessage, error) {
	var msg TransactionDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("delete message without id")
	}
	return &msg, nil
}
