package workflow

import (
	"context"

	domainwf "github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
)

// BuildRequestStateMachine creates a state machine for one ledger record.
//
// Receipts move pending and received requests to received; on a reviewed
// request they only replace the archived file. Reactions may flip a review
// decision. Completion is reachable from every open state unless
// requireApproval restricts it to approved requests.
func BuildRequestStateMachine(initialState domainwf.State, requireApproval bool) domainwf.StateMachine {
	builder := domainwf.NewBuilder()
	unrestricted := func(ctx context.Context) bool { return !requireApproval }

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerReceiveReceipt, domainwf.StateReceived).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		PermitIf(domainwf.TriggerComplete, domainwf.StateCompleted, unrestricted)

	builder.Configure(domainwf.StateReceived).
		PermitReentry(domainwf.TriggerReceiveReceipt).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		PermitIf(domainwf.TriggerComplete, domainwf.StateCompleted, unrestricted)

	builder.Configure(domainwf.StateApproved).
		PermitReentry(domainwf.TriggerReceiveReceipt).
		PermitReentry(domainwf.TriggerApprove).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerComplete, domainwf.StateCompleted)

	builder.Configure(domainwf.StateRejected).
		PermitReentry(domainwf.TriggerReceiveReceipt).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		PermitReentry(domainwf.TriggerReject).
		PermitIf(domainwf.TriggerComplete, domainwf.StateCompleted, unrestricted)

	// COMPLETED is terminal

	return builder.Build(initialState)
}
