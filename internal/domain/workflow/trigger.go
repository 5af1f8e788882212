package workflow

// Trigger represents an inbound event that can move a request between states
type Trigger string

const (
	TriggerReceiveReceipt Trigger = "RECEIVE_RECEIPT"
	TriggerApprove        Trigger = "APPROVE"
	TriggerReject         Trigger = "REJECT"
	TriggerComplete       Trigger = "COMPLETE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
