package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotSavedMessage announces that a user's snapshot changed. It carries
// only the user id and revision; the worker reloads the full document from
// the store, so stale messages are harmless.
type SnapshotSavedMessage struct {
	UserID    string    `json:"user_id"`
	Rev       int64     `json:"rev"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotSavedMessage(userID string, rev int64) *SnapshotSavedMessage {
	return &SnapshotSavedMessage{
		UserID:    userID,
		Rev:       rev,
		Timestamp: time.Now(),
	}
}

func (m *SnapshotSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotSavedMessageFromJSON(data []byte) (*SnapshotSavedMessage, error) {
	var msg SnapshotSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
