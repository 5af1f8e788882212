package workflow

import "strings"

// State is the lifecycle status of an expense request as stored in the ledger.
type State string

const (
	StatePending   State = "pending"
	StateReceived  State = "received"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateCompleted State = "completed"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateReceived:  true,
	StateApproved:  true,
	StateRejected:  true,
	StateCompleted: true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
}

// legacyLabels maps the display labels written by earlier versions of the
// ledger onto the canonical states.
var legacyLabels = map[string]State{
	"待機中": StatePending,
	"受付済": StateReceived,
	"承認":  StateApproved,
	"却下":  StateRejected,
	"完了":  StateCompleted,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known ledger status
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a stored status cell into a State. Empty and unknown
// values fall back to StatePending, matching how rows with a blank status
// column are treated.
func ParseState(raw string) State {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StatePending
	}
	if s := State(strings.ToLower(trimmed)); s.IsValid() {
		return s
	}
	if s, ok := legacyLabels[trimmed]; ok {
		return s
	}
	return StatePending
}
