package workflow

import (
	"context"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
)

// Engine reconciles chat events with the request ledger. Each handler reads
// the current record, resolves the transition, writes the ledger and then
// notifies the chat channels involved.
type Engine interface {
	// HandleSubmission validates a form submission and opens a new request
	HandleSubmission(ctx context.Context, sub event.Submission) (*entity.RequestRecord, error)

	// HandleReceipt archives the first file posted into a request thread
	HandleReceipt(ctx context.Context, upload event.ReceiptUpload) error

	// HandleReaction applies an approve or reject reaction
	HandleReaction(ctx context.Context, reaction event.Reaction) error

	// HandleCompletion marks a request completed and returns the reply for the caller
	HandleCompletion(ctx context.Context, req event.CompletionRequest) (string, error)

	// HandleFormRequest sends the submission form to a user
	HandleFormRequest(ctx context.Context, req event.FormRequest) error
}

// Config holds the channel routing and copy settings of the engine
type Config struct {
	// FinanceChannelID receives the visibility message that roots each request thread
	FinanceChannelID    string
	AccountingChannelID string
	ApproveReaction     string
	RejectReaction      string
	CompleteCommand     string
	RequestIDPrefix     string
	Currency            string
	// InstructionsTemplate is sent to the applicant; {threadLink} is replaced
	InstructionsTemplate         string
	Location                     *time.Location
	RequireApprovalForCompletion bool
}

const (
	DefaultRequestIDPrefix      = "EXP"
	DefaultCompleteCommand      = "/expense-complete"
	DefaultInstructionsTemplate = "領収書を {threadLink} のスレッドに添付してください。添付後に自動で処理します。"
)
