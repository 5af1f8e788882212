package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateReceived, false},
		{StateApproved, false},
		{StateRejected, false},
		{StateCompleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"completed", StateCompleted, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		raw      string
		expected State
	}{
		{"", StatePending},
		{"  ", StatePending},
		{"received", StateReceived},
		{"APPROVED", StateApproved},
		{" rejected ", StateRejected},
		{"completed", StateCompleted},
		{"待機中", StatePending},
		{"受付済", StateReceived},
		{"承認", StateApproved},
		{"却下", StateRejected},
		{"完了", StateCompleted},
		{"garbage", StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseState(tt.raw); got != tt.expected {
				t.Errorf("ParseState(%q) = %v, want %v", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerApprove.String(); got != "APPROVE" {
		t.Errorf("Trigger.String() = %v, want %v", got, "APPROVE")
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StatePending)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}
	if config2 := builder.Configure(StatePending); config != config2 {
		t.Error("Configure() should return the same config for the same state")
	}
}

func TestBuilder_ConfigureInvalidStatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic for invalid state")
		}
	}()
	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildInvalidInitialStatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic for invalid initial state")
		}
	}()
	NewBuilder().Build(State("INVALID"))
}

func newTestBuilder() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StatePending).
		Permit(TriggerReceiveReceipt, StateReceived).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerComplete, StateCompleted)
	b.Configure(StateApproved).
		PermitReentry(TriggerReceiveReceipt).
		Permit(TriggerReject, StateRejected)
	return b
}

func TestStateMachine_Fire(t *testing.T) {
	ctx := context.Background()
	m := newTestBuilder().Build(StatePending)

	if err := m.Fire(ctx, TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m.State() != StateApproved {
		t.Errorf("State() = %v, want %v", m.State(), StateApproved)
	}

	if err := m.Fire(ctx, TriggerReceiveReceipt); err != nil {
		t.Fatalf("Fire() reentry error = %v", err)
	}
	if m.State() != StateApproved {
		t.Errorf("reentry changed state to %v", m.State())
	}
}

func TestStateMachine_FireInvalidTransition(t *testing.T) {
	m := newTestBuilder().Build(StateApproved)

	err := m.Fire(context.Background(), TriggerComplete)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if m.State() != StateApproved {
		t.Errorf("failed Fire() changed state to %v", m.State())
	}
}

func TestStateMachine_FireFromTerminalState(t *testing.T) {
	m := newTestBuilder().Build(StateCompleted)

	err := m.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrTerminalState) {
		t.Errorf("Fire() error = %v, want ErrTerminalState", err)
	}
}

func TestStateMachine_PeekDoesNotMutate(t *testing.T) {
	m := newTestBuilder().Build(StatePending)

	next, err := m.Peek(context.Background(), TriggerReceiveReceipt)
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if next != StateReceived {
		t.Errorf("Peek() = %v, want %v", next, StateReceived)
	}
	if m.State() != StatePending {
		t.Errorf("Peek() mutated state to %v", m.State())
	}
}

func TestStateMachine_PermitIfGuard(t *testing.T) {
	allow := false
	b := NewBuilder()
	b.Configure(StateReceived).
		PermitIf(TriggerComplete, StateCompleted, func(ctx context.Context) bool { return allow })

	m := b.Build(StateReceived)
	if err := m.Fire(context.Background(), TriggerComplete); !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
	}

	allow = true
	if err := m.Fire(context.Background(), TriggerComplete); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m.State() != StateCompleted {
		t.Errorf("State() = %v, want %v", m.State(), StateCompleted)
	}
}

func TestStateMachine_CanFireAndPermittedTriggers(t *testing.T) {
	m := newTestBuilder().Build(StateApproved)

	if !m.CanFire(TriggerReject) {
		t.Error("CanFire(REJECT) = false, want true")
	}
	if m.CanFire(TriggerApprove) {
		t.Error("CanFire(APPROVE) = true, want false")
	}
	if got := len(m.PermittedTriggers()); got != 2 {
		t.Errorf("PermittedTriggers() len = %d, want 2", got)
	}
}

func TestStateMachine_BuildIsolatesInstances(t *testing.T) {
	b := newTestBuilder()
	first := b.Build(StatePending)

	b.Configure(StatePending).Permit(TriggerReject, StateRejected)
	second := b.Build(StatePending)

	if first.CanFire(TriggerReject) {
		t.Error("configuration added after Build leaked into an existing machine")
	}
	if !second.CanFire(TriggerReject) {
		t.Error("new machine missing configuration")
	}
}
