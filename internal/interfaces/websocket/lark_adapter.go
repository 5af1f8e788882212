// Package websocket provides WebSocket adapters for external event sources.
// This package translates protocol-specific events into domain events.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/bestat/tatekae-seisan-bot/internal/application/dispatcher"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
	larkapi "github.com/bestat/tatekae-seisan-bot/internal/infrastructure/external/lark"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"
)

// Lark event types the adapter subscribes to
const (
	EventMessageReceive  = "im.message.receive_v1"
	EventReactionCreated = "im.message.reaction.created_v1"
	EventCardAction      = "card.action.trigger"
)

// Default command names
const (
	DefaultCompleteCommand = "/expense-complete"
	DefaultFormCommand     = "/expense"
)

// mentionPlaceholder matches the @_user_N tokens Lark puts in message text
var mentionPlaceholder = regexp.MustCompile(`@_user_\d+`)

// LarkAdapter wraps the Lark WebSocket SDK client and translates chat
// events into domain events for the application dispatcher.
type LarkAdapter struct {
	cfg        LarkAdapterConfig
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	wsClient *larkws.Client
	mu       sync.RWMutex
	started  bool
	baseCtx  context.Context
}

// LarkAdapterConfig holds configuration for the Lark WebSocket adapter.
type LarkAdapterConfig struct {
	AppID           string
	AppSecret       string
	CompleteCommand string
	FormCommand     string
}

// NewLarkAdapter creates a new Lark WebSocket adapter.
func NewLarkAdapter(cfg LarkAdapterConfig, d dispatcher.Dispatcher, logger *zap.Logger) *LarkAdapter {
	if cfg.CompleteCommand == "" {
		cfg.CompleteCommand = DefaultCompleteCommand
	}
	if cfg.FormCommand == "" {
		cfg.FormCommand = DefaultFormCommand
	}
	return &LarkAdapter{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger,
		baseCtx:    context.Background(),
	}
}

// Start initializes the WebSocket connection and begins listening for Lark events.
// This method blocks until the context is cancelled or an error occurs.
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("adapter already started")
	}

	// Empty verification token and encrypt key; not used in WebSocket mode
	sdkDispatcher := larkdispatcher.NewEventDispatcher("", "")
	for _, eventType := range []string{EventMessageReceive, EventReactionCreated, EventCardAction} {
		sdkDispatcher.OnCustomizedEvent(eventType, a.handleLarkEvent)
	}

	a.wsClient = larkws.NewClient(
		a.cfg.AppID,
		a.cfg.AppSecret,
		larkws.WithEventHandler(sdkDispatcher),
	)
	a.baseCtx = ctx
	a.started = true
	a.mu.Unlock()

	a.logger.Info("Starting Lark WebSocket adapter", zap.String("app_id", a.cfg.AppID))

	if err := a.wsClient.Start(ctx); err != nil {
		a.logger.Error("Lark WebSocket client error", zap.Error(err))
		return fmt.Errorf("websocket client error: %w", err)
	}
	return nil
}

// Stop marks the adapter stopped. The SDK client itself stops when the
// context passed to Start is cancelled.
func (a *LarkAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false
	a.logger.Info("Lark WebSocket adapter stopped")
	return nil
}

// IsRunning returns whether the adapter is currently running.
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

// handleLarkEvent is called by the Lark SDK for every subscribed event.
// Handlers run asynchronously so the SDK can acknowledge the event at once.
func (a *LarkAdapter) handleLarkEvent(_ context.Context, evt *larkevent.EventReq) error {
	domainEvent, err := a.Translate(evt.Body)
	if err != nil {
		a.logger.Error("Failed to parse Lark event payload",
			zap.Error(err),
			zap.Int("body_length", len(evt.Body)))
		return err
	}
	if domainEvent == nil {
		return nil
	}

	a.mu.RLock()
	ctx := a.baseCtx
	a.mu.RUnlock()

	a.dispatcher.DispatchAsync(ctx, domainEvent)
	a.logger.Info("Domain event dispatched",
		zap.String("event_type", domainEvent.Type.String()),
		zap.String("event_id", domainEvent.ID),
		zap.String("correlation_id", domainEvent.CorrelationID))
	return nil
}

// envelope is the schema 2.0 wrapper shared by all events
type envelope struct {
	Header struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
	} `json:"header"`
	Event json.RawMessage `json:"event"`
}

type userID struct {
	OpenID string `json:"open_id"`
}

type messageReceiveEvent struct {
	Sender struct {
		SenderID   userID `json:"sender_id"`
		SenderType string `json:"sender_type"`
	} `json:"sender"`
	Message struct {
		MessageID   string `json:"message_id"`
		RootID      string `json:"root_id"`
		ChatID      string `json:"chat_id"`
		ChatType    string `json:"chat_type"`
		MessageType string `json:"message_type"`
		Content     string `json:"content"`
	} `json:"message"`
}

type messageContent struct {
	Text     string `json:"text"`
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	ImageKey string `json:"image_key"`
}

type reactionEvent struct {
	MessageID    string `json:"message_id"`
	OperatorType string `json:"operator_type"`
	UserID       userID `json:"user_id"`
	ReactionType struct {
		EmojiType string `json:"emoji_type"`
	} `json:"reaction_type"`
}

type cardActionEvent struct {
	Operator userID `json:"operator"`
	Action   struct {
		Name      string                 `json:"name"`
		FormValue map[string]interface{} `json:"form_value"`
	} `json:"action"`
	Context struct {
		OpenMessageID string `json:"open_message_id"`
		OpenChatID    string `json:"open_chat_id"`
	} `json:"context"`
}

// Translate converts a raw Lark event into a domain event. It returns nil
// for events that carry nothing for the engine.
func (a *LarkAdapter) Translate(body []byte) (*event.Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event envelope: %w", err)
	}

	var (
		eventType event.Type
		payload   interface{}
		err       error
	)
	switch env.Header.EventType {
	case EventMessageReceive:
		eventType, payload, err = a.translateMessage(env.Event)
	case EventReactionCreated:
		eventType, payload, err = translateReaction(env.Event)
	case EventCardAction:
		eventType, payload, err = translateCardAction(env.Event)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", env.Header.EventType, err)
	}
	if payload == nil {
		return nil, nil
	}
	return event.NewEventWithCorrelation(eventType, payload, env.Header.EventID), nil
}

func (a *LarkAdapter) translateMessage(raw json.RawMessage) (event.Type, interface{}, error) {
	var msg messageReceiveEvent
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", nil, err
	}
	if msg.Sender.SenderType != "" && msg.Sender.SenderType != "user" {
		return "", nil, nil
	}

	var content messageContent
	if msg.Message.Content != "" {
		if err := json.Unmarshal([]byte(msg.Message.Content), &content); err != nil {
			return "", nil, fmt.Errorf("failed to parse message content: %w", err)
		}
	}
	sender := msg.Sender.SenderID.OpenID

	switch msg.Message.MessageType {
	case "file", "image":
		if msg.Message.RootID == "" {
			return "", nil, nil
		}
		return event.TypeReceiptUploaded, event.ReceiptUpload{
			UserID:    sender,
			ThreadID:  msg.Message.RootID,
			ChannelID: msg.Message.ChatID,
			Files:     []entity.ReceiptFile{receiptFile(msg.Message.MessageID, content)},
		}, nil

	case "text":
		text := strings.TrimSpace(mentionPlaceholder.ReplaceAllString(content.Text, ""))
		if arg, ok := commandArgument(text, a.cfg.CompleteCommand); ok {
			return event.TypeCompletionRequested, event.CompletionRequest{
				UserID:    sender,
				ChannelID: msg.Message.ChatID,
				Argument:  arg,
			}, nil
		}
		if _, ok := commandArgument(text, a.cfg.FormCommand); ok {
			return event.TypeFormRequested, event.FormRequest{
				UserID:    sender,
				ChannelID: msg.Message.ChatID,
			}, nil
		}
	}
	return "", nil, nil
}

func translateReaction(raw json.RawMessage) (event.Type, interface{}, error) {
	var r reactionEvent
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", nil, err
	}
	if r.OperatorType != "" && r.OperatorType != "user" {
		return "", nil, nil
	}
	if r.MessageID == "" || r.ReactionType.EmojiType == "" {
		return "", nil, nil
	}
	return event.TypeReactionAdded, event.Reaction{
		UserID:   r.UserID.OpenID,
		Reaction: r.ReactionType.EmojiType,
		ThreadID: r.MessageID,
	}, nil
}

func translateCardAction(raw json.RawMessage) (event.Type, interface{}, error) {
	var c cardActionEvent
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", nil, err
	}
	if c.Action.FormValue == nil {
		return "", nil, nil
	}
	form := c.Action.FormValue
	return event.TypeRequestSubmitted, event.Submission{
		UserID:    c.Operator.OpenID,
		Title:     formString(form, larkapi.FieldTitle),
		Amount:    formString(form, larkapi.FieldAmount),
		UsageDate: normalizeDate(formString(form, larkapi.FieldUsageDate)),
		Remarks:   formString(form, larkapi.FieldRemarks),
	}, nil
}

// commandArgument reports whether text invokes command and returns the rest
func commandArgument(text, command string) (string, bool) {
	if command == "" {
		return "", false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != command {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(text, command)), true
}

func receiptFile(messageID string, content messageContent) entity.ReceiptFile {
	if content.ImageKey != "" {
		return entity.ReceiptFile{
			ID:        content.ImageKey,
			Name:      content.ImageKey,
			MessageID: messageID,
		}
	}
	return entity.ReceiptFile{
		ID:        content.FileKey,
		Name:      content.FileName,
		MimeType:  mime.TypeByExtension(strings.ToLower(path.Ext(content.FileName))),
		MessageID: messageID,
	}
}

func formString(form map[string]interface{}, key string) string {
	v, ok := form[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// normalizeDate drops the zone suffix date pickers append ("2025-09-12 +0900")
func normalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ' '); i > 0 {
		return v[:i]
	}
	return v
}
