package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/bestat/tatekae-seisan-bot/internal/application/dispatcher"
	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
)

// ErrUnexpectedPayload is returned when an event carries the wrong payload type
var ErrUnexpectedPayload = errors.New("unexpected event payload")

// Handlers adapts the engine to dispatcher events. Each handler owns the
// user-facing side of its failures: validation problems go back to the
// submitter and remote failures get a generic notice.
type Handlers struct {
	engine Engine
	chat   port.ChatPlatform
	logger service.Logger
}

// NewHandlers creates the event handlers of the engine
func NewHandlers(engine Engine, chat port.ChatPlatform, logger service.Logger) *Handlers {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Handlers{engine: engine, chat: chat, logger: logger}
}

// Register subscribes every handler to its event type
func (h *Handlers) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeRequestSubmitted, "engine.submission", h.OnSubmission)
	d.Subscribe(event.TypeReceiptUploaded, "engine.receipt", h.OnReceipt)
	d.Subscribe(event.TypeReactionAdded, "engine.reaction", h.OnReaction)
	d.Subscribe(event.TypeCompletionRequested, "engine.completion", h.OnCompletion)
	d.Subscribe(event.TypeFormRequested, "engine.form", h.OnFormRequest)
}

// OnSubmission handles event.TypeRequestSubmitted
func (h *Handlers) OnSubmission(ctx context.Context, evt *event.Event) error {
	sub, ok := evt.Submission()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedPayload, evt.Type)
	}

	_, err := h.engine.HandleSubmission(ctx, sub)
	var verr *service.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		h.direct(ctx, sub.UserID, validationMessage(verr))
		return nil
	default:
		h.direct(ctx, sub.UserID, msgFailure)
		return err
	}
}

// OnReceipt handles event.TypeReceiptUploaded
func (h *Handlers) OnReceipt(ctx context.Context, evt *event.Event) error {
	upload, ok := evt.ReceiptUpload()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedPayload, evt.Type)
	}
	if err := h.engine.HandleReceipt(ctx, upload); err != nil {
		h.postFailure(ctx, upload.ChannelID, upload.ThreadID)
		return err
	}
	return nil
}

// OnReaction handles event.TypeReactionAdded
func (h *Handlers) OnReaction(ctx context.Context, evt *event.Event) error {
	reaction, ok := evt.Reaction()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedPayload, evt.Type)
	}
	if err := h.engine.HandleReaction(ctx, reaction); err != nil {
		h.postFailure(ctx, reaction.ChannelID, reaction.ThreadID)
		return err
	}
	return nil
}

// OnCompletion handles event.TypeCompletionRequested. The reply goes back to
// the channel the command came from, or to the caller directly.
func (h *Handlers) OnCompletion(ctx context.Context, evt *event.Event) error {
	req, ok := evt.CompletionRequest()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedPayload, evt.Type)
	}

	reply, err := h.engine.HandleCompletion(ctx, req)
	if reply != "" {
		if req.ChannelID != "" {
			if _, postErr := h.chat.PostMessage(ctx, port.OutboundMessage{ChannelID: req.ChannelID, Text: reply}); postErr != nil {
				h.logger.Error("Failed to post completion reply", "channel_id", req.ChannelID, "error", postErr)
			}
		} else {
			h.direct(ctx, req.UserID, reply)
		}
	}
	return err
}

// OnFormRequest handles event.TypeFormRequested
func (h *Handlers) OnFormRequest(ctx context.Context, evt *event.Event) error {
	req, ok := evt.FormRequest()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedPayload, evt.Type)
	}
	return h.engine.HandleFormRequest(ctx, req)
}

func (h *Handlers) postFailure(ctx context.Context, channelID, threadID string) {
	if channelID == "" {
		return
	}
	if _, err := h.chat.PostMessage(ctx, port.OutboundMessage{ChannelID: channelID, ThreadID: threadID, Text: msgFailure}); err != nil {
		h.logger.Error("Failed to post failure notice", "channel_id", channelID, "error", err)
	}
}

func (h *Handlers) direct(ctx context.Context, userID, text string) {
	if userID == "" {
		return
	}
	if err := h.chat.SendDirect(ctx, userID, text); err != nil {
		h.logger.Error("Failed to send direct message", "user_id", userID, "error", err)
	}
}
