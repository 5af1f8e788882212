package workflow

import "context"

// StateMachine tracks the status of a single request and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Peek resolves the destination of a trigger without changing state.
	// Callers use it to persist the new status before committing locally.
	Peek(ctx context.Context, trigger Trigger) (State, error)

	// Fire executes the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
