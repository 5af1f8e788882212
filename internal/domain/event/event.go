package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event produced by an inbound adapter
type Event struct {
	ID            string      `json:"id"`
	Type          Type        `json:"type"`
	Payload       interface{} `json:"payload"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, payload interface{}) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain.
// Inbound adapters pass the platform's event id so retries can be traced.
func NewEventWithCorrelation(eventType Type, payload interface{}, correlationID string) *Event {
	e := NewEvent(eventType, payload)
	if correlationID != "" {
		e.CorrelationID = correlationID
	}
	return e
}

// Submission returns the payload as a Submission
func (e *Event) Submission() (Submission, bool) {
	return payloadAs[Submission](e.Payload)
}

// ReceiptUpload returns the payload as a ReceiptUpload
func (e *Event) ReceiptUpload() (ReceiptUpload, bool) {
	return payloadAs[ReceiptUpload](e.Payload)
}

// Reaction returns the payload as a Reaction
func (e *Event) Reaction() (Reaction, bool) {
	return payloadAs[Reaction](e.Payload)
}

// CompletionRequest returns the payload as a CompletionRequest
func (e *Event) CompletionRequest() (CompletionRequest, bool) {
	return payloadAs[CompletionRequest](e.Payload)
}

// FormRequest returns the payload as a FormRequest
func (e *Event) FormRequest() (FormRequest, bool) {
	return payloadAs[FormRequest](e.Payload)
}

// payloadAs accepts both value and pointer payloads
func payloadAs[T any](payload interface{}) (T, bool) {
	switch v := payload.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}
