package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SeedCompletedMessage announces that the transaction store was reseeded.
// Consumers drop any cached aggregates when they receive it.
type SeedCompletedMessage struct {
	ID        string    `json:"id"`
	Count     int       `json:"count"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSeedCompletedMessage(count int, source string) *SeedCompletedMessage {
	return &SeedCompletedMessage{
		ID:        uuid.NewString(),
		Count:     count,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SeedCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SeedCompletedMessageFromJSON(data []byte) (*SeedCompletedMessage, error) {
	var msg SeedCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
