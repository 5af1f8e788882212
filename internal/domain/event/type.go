package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted    Type = "request.submitted"
	TypeReceiptUploaded     Type = "receipt.uploaded"
	TypeReactionAdded       Type = "reaction.added"
	TypeCompletionRequested Type = "request.completion_requested"
	TypeFormRequested       Type = "form.requested"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeReceiptUploaded,
		TypeReactionAdded,
		TypeCompletionRequested,
		TypeFormRequested:
		return true
	default:
		return false
	}
}
