package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
	domainwf "github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
)

// triggerSubmit labels the creation entry of the history trail
const triggerSubmit = "SUBMIT"

// Dependencies are the collaborators of the engine
type Dependencies struct {
	Ledger     service.LedgerStore
	Cache      service.RequestCache
	Archiver   service.ReceiptArchiver
	History    service.HistoryService
	Targets    service.SheetTargets
	Chat       port.ChatPlatform
	Downloader port.FileDownloader
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	Dependencies
	cfg    Config
	now    func() time.Time
	logger service.Logger
}

// EngineOption configures the engine
type EngineOption func(*engineImpl)

// WithLogger sets the engine logger
func WithLogger(logger service.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for ids and timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new reconciliation engine
func NewEngine(deps Dependencies, cfg Config, opts ...EngineOption) Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RequestIDPrefix == "" {
		cfg.RequestIDPrefix = DefaultRequestIDPrefix
	}
	if cfg.CompleteCommand == "" {
		cfg.CompleteCommand = DefaultCompleteCommand
	}
	if cfg.InstructionsTemplate == "" {
		cfg.InstructionsTemplate = DefaultInstructionsTemplate
	}
	if deps.History == nil {
		deps.History = service.NewHistoryService(nil, nil)
	}

	e := &engineImpl{
		Dependencies: deps,
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = nopLogger{}
	}
	return e
}

// HandleSubmission posts the visibility message first; its message id
// becomes the thread id stored in the ledger row.
func (e *engineImpl) HandleSubmission(ctx context.Context, sub event.Submission) (*entity.RequestRecord, error) {
	parsed, err := service.ParseSubmission(sub)
	if err != nil {
		e.logger.Info("Submission rejected", "user_id", sub.UserID, "error", err)
		return nil, err
	}

	now := e.now()
	rec := &entity.RequestRecord{
		RequestID:     service.NewRequestID(e.cfg.RequestIDPrefix, now, e.cfg.Location),
		ChannelID:     e.cfg.FinanceChannelID,
		ApplicantID:   sub.UserID,
		ApplicantName: e.displayName(ctx, sub.UserID),
		Title:         parsed.Title,
		Amount:        parsed.Amount,
		Currency:      e.cfg.Currency,
		UsageDate:     parsed.UsageDateString(),
		Remarks:       parsed.Remarks,
		Status:        domainwf.StatePending,
	}

	threadID, err := e.Chat.PostMessage(ctx, port.OutboundMessage{
		ChannelID: e.cfg.FinanceChannelID,
		Text:      requestMessage(rec),
	})
	if err != nil {
		return nil, fmt.Errorf("post request message for %s: %w", rec.RequestID, err)
	}
	if threadID == "" {
		return nil, fmt.Errorf("post request message for %s: %w", rec.RequestID, ErrNoThread)
	}
	rec.ThreadID = threadID

	stored, err := e.Ledger.Append(ctx, e.Targets.ForUser(sub.UserID), rec)
	if err != nil {
		return nil, fmt.Errorf("append ledger row for %s: %w", rec.RequestID, err)
	}
	// an unknown row is looked up by thread on first use
	if stored.RowNumber > 0 {
		e.Cache.Put(stored.ThreadID, stored)
	}
	e.History.Record(ctx, &entity.StatusHistory{
		RequestID: stored.RequestID,
		ThreadID:  stored.ThreadID,
		ActorID:   sub.UserID,
		NewStatus: stored.Status.String(),
		Trigger:   triggerSubmit,
	})

	e.logger.Info("Request submitted",
		"request_id", stored.RequestID,
		"thread_id", stored.ThreadID,
		"row", stored.RowNumber,
	)

	e.post(ctx, port.OutboundMessage{ChannelID: stored.ChannelID, ThreadID: stored.ThreadID, Text: msgThreadAck})

	permalink, err := e.Chat.Permalink(ctx, stored.ChannelID, stored.ThreadID)
	if err != nil {
		e.logger.Warn("Failed to resolve thread permalink", "request_id", stored.RequestID, "error", err)
	}
	e.direct(ctx, sub.UserID, instructionsMessage(e.cfg.InstructionsTemplate, permalink))
	e.postAccounting(ctx, submissionNotice(stored))

	return stored, nil
}

// HandleReceipt only archives the first file of the message
func (e *engineImpl) HandleReceipt(ctx context.Context, upload event.ReceiptUpload) error {
	if upload.ThreadID == "" || len(upload.Files) == 0 {
		return nil
	}

	rec, err := e.lookupThread(ctx, upload.ThreadID)
	if err != nil || rec == nil {
		return err
	}

	file := upload.Files[0]
	if !file.Downloadable() {
		e.logger.Warn("File cannot be downloaded", "file_id", file.ID, "request_id", rec.RequestID)
		return nil
	}

	// checked again against the stored row before writing
	if _, err := BuildRequestStateMachine(rec.Status, e.cfg.RequireApprovalForCompletion).
		Peek(ctx, domainwf.TriggerReceiveReceipt); err != nil {
		return e.rejectTransition(ctx, rec, domainwf.TriggerReceiveReceipt, err)
	}

	usageDate, err := service.ParseStoredUsageDate(rec.UsageDate, e.cfg.Location)
	if err != nil {
		return fmt.Errorf("archive receipt for %s: %w", rec.RequestID, err)
	}

	data, err := e.Downloader.Download(ctx, file)
	if err != nil {
		return fmt.Errorf("download receipt %s for %s: %w", file.ID, rec.RequestID, err)
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	archived, err := e.Archiver.Upload(ctx, data, mimeType, service.ReceiptMeta{
		RequestID:        rec.RequestID,
		UsageDate:        usageDate,
		ApplicantName:    rec.ApplicantName,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		Summary:          rec.Title,
		OriginalFilename: file.Name,
	})
	if err != nil {
		return fmt.Errorf("archive receipt for %s: %w", rec.RequestID, err)
	}

	fileLink := archived.ViewLink
	if fileLink == "" {
		fileLink = archived.DownloadLink
	}

	updated, previous, err := e.transition(ctx, rec, domainwf.TriggerReceiveReceipt, func(next domainwf.State) entity.RecordPatch {
		return entity.ArchivePatch(archived.FolderID, archived.Name, fileLink, archived.FileID, next)
	})
	if err != nil {
		e.logger.Warn("Archived receipt is not referenced by the ledger",
			"request_id", rec.RequestID,
			"file_id", archived.FileID,
			"folder_id", archived.FolderID,
			"error", err,
		)
		return e.rejectTransition(ctx, rec, domainwf.TriggerReceiveReceipt, err)
	}

	e.History.Record(ctx, &entity.StatusHistory{
		RequestID:      updated.RequestID,
		ThreadID:       updated.ThreadID,
		ActorID:        upload.UserID,
		PreviousStatus: previous.String(),
		NewStatus:      updated.Status.String(),
		Trigger:        domainwf.TriggerReceiveReceipt.String(),
		Detail:         archived.FileID,
	})
	e.logger.Info("Receipt archived",
		"request_id", updated.RequestID,
		"file_id", archived.FileID,
		"file_name", archived.Name,
		"status", updated.Status,
	)

	e.post(ctx, port.OutboundMessage{
		ChannelID: updated.ChannelID,
		ThreadID:  updated.ThreadID,
		Text:      receiptThreadMessage(updated, archived),
	})
	e.postAccounting(ctx, receiptNotice(updated))
	e.refresh(ctx, updated)
	return nil
}

// HandleReaction ignores reactions other than the configured approve/reject pair
func (e *engineImpl) HandleReaction(ctx context.Context, reaction event.Reaction) error {
	if reaction.Reaction == "" || reaction.ThreadID == "" {
		return nil
	}

	var trigger domainwf.Trigger
	switch reaction.Reaction {
	case e.cfg.ApproveReaction:
		trigger = domainwf.TriggerApprove
	case e.cfg.RejectReaction:
		trigger = domainwf.TriggerReject
	default:
		return nil
	}

	rec, err := e.lookupThread(ctx, reaction.ThreadID)
	if err != nil || rec == nil {
		return err
	}

	updated, previous, err := e.transition(ctx, rec, trigger, entity.StatusPatch)
	if err != nil {
		return e.rejectTransition(ctx, rec, trigger, err)
	}

	e.History.Record(ctx, &entity.StatusHistory{
		RequestID:      updated.RequestID,
		ThreadID:       updated.ThreadID,
		ActorID:        reaction.UserID,
		PreviousStatus: previous.String(),
		NewStatus:      updated.Status.String(),
		Trigger:        trigger.String(),
		Detail:         reaction.Reaction,
	})
	e.logger.Info("Reaction applied",
		"request_id", updated.RequestID,
		"reaction", reaction.Reaction,
		"status", updated.Status,
	)

	e.post(ctx, port.OutboundMessage{
		ChannelID: updated.ChannelID,
		ThreadID:  updated.ThreadID,
		Text:      reactionThreadMessage(updated.Status, updated),
	})
	e.postAccounting(ctx, reactionNotice(updated.Status, updated))
	e.refresh(ctx, updated)
	return nil
}

// HandleCompletion looks the request up by id because the command arrives
// outside the request thread. User-facing outcomes are returned as the
// reply; only remote failures are errors.
func (e *engineImpl) HandleCompletion(ctx context.Context, req event.CompletionRequest) (string, error) {
	requestID := ParseCompletionArgument(req.Argument)
	if requestID == "" {
		return missingRequestIDReply(e.cfg.CompleteCommand), nil
	}

	rec, err := e.Ledger.FindByRequestID(ctx, requestID)
	if errors.Is(err, service.ErrRequestNotFound) {
		return notFoundReply(requestID), nil
	}
	if err != nil {
		return msgFailure, fmt.Errorf("find request %s: %w", requestID, err)
	}

	updated, previous, err := e.transition(ctx, rec, domainwf.TriggerComplete, entity.StatusPatch)
	switch {
	case err == nil:
	case errors.Is(err, domainwf.ErrTerminalState):
		return alreadyCompletedReply(rec.RequestID), nil
	case errors.Is(err, domainwf.ErrGuardFailed):
		return approvalRequiredReply(rec.RequestID, previous), nil
	case errors.Is(err, service.ErrRowNotFound), errors.Is(err, service.ErrUnknownRow):
		return notFoundReply(requestID), nil
	default:
		return msgFailure, fmt.Errorf("complete request %s: %w", requestID, err)
	}

	e.History.Record(ctx, &entity.StatusHistory{
		RequestID:      updated.RequestID,
		ThreadID:       updated.ThreadID,
		ActorID:        req.UserID,
		PreviousStatus: previous.String(),
		NewStatus:      updated.Status.String(),
		Trigger:        domainwf.TriggerComplete.String(),
	})
	e.logger.Info("Request completed", "request_id", updated.RequestID, "previous_status", previous)

	e.post(ctx, port.OutboundMessage{
		ChannelID: updated.ChannelID,
		ThreadID:  updated.ThreadID,
		Text:      completionThreadMessage(updated),
	})
	e.direct(ctx, updated.ApplicantID, completionDirectMessage(updated))
	e.postAccounting(ctx, completionNotice(updated))
	// the written row is authoritative here; no refresh
	e.Cache.Put(updated.ThreadID, updated)

	return completionReply(updated.RequestID), nil
}

// HandleFormRequest sends the submission form card
func (e *engineImpl) HandleFormRequest(ctx context.Context, req event.FormRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("form request without user")
	}
	if err := e.Chat.SendForm(ctx, req.UserID); err != nil {
		return fmt.Errorf("send form to %s: %w", req.UserID, err)
	}
	return nil
}

// transition fires trigger against the row as stored, not the cached copy,
// so a stale read can never move a status backwards.
func (e *engineImpl) transition(
	ctx context.Context,
	rec *entity.RequestRecord,
	trigger domainwf.Trigger,
	build func(next domainwf.State) entity.RecordPatch,
) (*entity.RequestRecord, domainwf.State, error) {
	var previous domainwf.State
	rec, err := e.locate(ctx, rec)
	if err != nil {
		return nil, previous, err
	}
	updatedAt := e.timestamp()

	updated, err := e.Ledger.Mutate(ctx, e.Targets.ForRecord(rec), rec.RowNumber, func(current *entity.RequestRecord) (entity.RecordPatch, error) {
		if current.RequestID != rec.RequestID {
			return entity.RecordPatch{}, fmt.Errorf("row %d holds %s, expected %s: %w",
				rec.RowNumber, current.RequestID, rec.RequestID, service.ErrRowNotFound)
		}
		previous = current.Status
		next, err := BuildRequestStateMachine(current.Status, e.cfg.RequireApprovalForCompletion).Peek(ctx, trigger)
		if err != nil {
			return entity.RecordPatch{}, err
		}
		patch := build(next)
		patch.UpdatedAt = updatedAt
		return patch, nil
	})
	if err != nil {
		return nil, previous, err
	}
	return updated, previous, nil
}

// rejectTransition reports a refused transition in the request thread.
// Refusals are expected outcomes and are not returned as errors.
func (e *engineImpl) rejectTransition(ctx context.Context, rec *entity.RequestRecord, trigger domainwf.Trigger, err error) error {
	switch {
	case errors.Is(err, domainwf.ErrTerminalState):
		e.logger.Info("Ignoring event for completed request",
			"request_id", rec.RequestID, "trigger", trigger)
		e.post(ctx, port.OutboundMessage{
			ChannelID: rec.ChannelID,
			ThreadID:  rec.ThreadID,
			Text:      closedRequestMessage(rec),
		})
		return nil
	case errors.Is(err, domainwf.ErrInvalidTransition), errors.Is(err, domainwf.ErrGuardFailed):
		e.logger.Warn("Transition refused",
			"request_id", rec.RequestID, "trigger", trigger, "status", rec.Status, "error", err)
		return nil
	default:
		return fmt.Errorf("%s for %s: %w", trigger, rec.RequestID, err)
	}
}

// lookupThread returns nil without error when no request owns the thread
func (e *engineImpl) lookupThread(ctx context.Context, threadID string) (*entity.RequestRecord, error) {
	rec, err := e.Cache.Get(ctx, threadID)
	if errors.Is(err, service.ErrRequestNotFound) {
		e.logger.Warn("No matching request for thread", "thread_id", threadID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup thread %s: %w", threadID, err)
	}

	rec, err = e.locate(ctx, rec)
	if errors.Is(err, service.ErrRequestNotFound) {
		e.logger.Warn("No ledger row for thread", "thread_id", threadID, "error", err)
		return nil, nil
	}
	return rec, err
}

// locate re-reads a record whose row number was never learned, which
// happens when the append response carried no parsable range.
func (e *engineImpl) locate(ctx context.Context, rec *entity.RequestRecord) (*entity.RequestRecord, error) {
	if rec.RowNumber > 0 {
		return rec, nil
	}
	found, err := e.Ledger.FindByRequestID(ctx, rec.RequestID)
	if err != nil {
		return nil, fmt.Errorf("locate row of %s: %w", rec.RequestID, err)
	}
	e.Cache.Put(found.ThreadID, found)
	return found, nil
}

// refresh re-reads the ledger so the cache holds canonical values
func (e *engineImpl) refresh(ctx context.Context, written *entity.RequestRecord) {
	fresh, err := e.Ledger.FindByRequestID(ctx, written.RequestID)
	if err != nil {
		e.logger.Warn("Failed to refresh cached request", "request_id", written.RequestID, "error", err)
		fresh = written
	}
	e.Cache.Put(fresh.ThreadID, fresh)
}

func (e *engineImpl) displayName(ctx context.Context, userID string) string {
	name, err := e.Chat.DisplayName(ctx, userID)
	if err != nil {
		e.logger.Warn("Failed to resolve display name", "user_id", userID, "error", err)
	}
	if name == "" {
		return mention(userID)
	}
	return name
}

func (e *engineImpl) timestamp() string {
	return service.FormatTimestamp(e.now(), e.cfg.Location)
}

func (e *engineImpl) post(ctx context.Context, msg port.OutboundMessage) {
	if msg.ChannelID == "" {
		return
	}
	if _, err := e.Chat.PostMessage(ctx, msg); err != nil {
		e.logger.Error("Failed to post message",
			"channel_id", msg.ChannelID, "thread_id", msg.ThreadID, "error", err)
	}
}

func (e *engineImpl) postAccounting(ctx context.Context, text string) {
	e.post(ctx, port.OutboundMessage{ChannelID: e.cfg.AccountingChannelID, Text: text})
}

func (e *engineImpl) direct(ctx context.Context, userID, text string) {
	if userID == "" {
		return
	}
	if err := e.Chat.SendDirect(ctx, userID, text); err != nil {
		e.logger.Error("Failed to send direct message", "user_id", userID, "error", err)
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
