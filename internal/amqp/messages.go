package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/security"
)

// CalculationRequest asks a worker to calculate and sign the report of one
// user. The worker fetches the account data itself.
type CalculationRequest struct {
	RequestID uuid.UUID `json:"request_id"`
	UserID    uuid.UUID `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCalculationRequest creates a request stamped with the current time
func NewCalculationRequest(userID uuid.UUID) *CalculationRequest {
	return &CalculationRequest{
		RequestID: uuid.New(),
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CalculationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CalculationRequestFromJSON decodes a request and rejects one without user
func CalculationRequestFromJSON(data []byte) (*CalculationRequest, error) {
	var msg CalculationRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == uuid.Nil {
		return nil, errors.New("calculation request without user id")
	}
	return &msg, nil
}

// SecurityEventMessage is the wire form of a security.Event
type SecurityEventMessage struct {
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	UserID     string    `json:"user_id,omitempty"`
	ReportID   string    `json:"report_id,omitempty"`
	KeyID      string    `json:"key_id,omitempty"`
	KeyName    string    `json:"key_name,omitempty"`
	Message    string    `json:"message"`
}

func NewSecurityEventMessage(ev security.Event) *SecurityEventMessage {
	msg := &SecurityEventMessage{
		Kind:       string(ev.Kind),
		OccurredAt: ev.OccurredAt,
		KeyName:    ev.KeyName,
		Message:    ev.Message,
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now()
	}
	msg.UserID = idString(ev.UserID)
	msg.ReportID = idString(ev.ReportID)
	msg.KeyID = idString(ev.KeyID)
	return msg
}

func (m *SecurityEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
