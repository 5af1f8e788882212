package lark

import (
	"context"
	"fmt"
	"strings"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"go.uber.org/zap"
)

// imClient is the part of the open platform the messenger uses
type imClient interface {
	CreateMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
	ReplyMessage(ctx context.Context, messageID, msgType, content string) (string, error)
	UserName(ctx context.Context, openID string) (string, error)
}

// MessengerConfig holds messenger settings
type MessengerConfig struct {
	// MessageLinkTemplate builds permalinks; {chat_id} and {message_id} are substituted
	MessageLinkTemplate string
}

// Messenger implements port.ChatPlatform on top of the Lark IM API
type Messenger struct {
	client imClient
	cfg    MessengerConfig
	logger *zap.Logger
}

var _ port.ChatPlatform = (*Messenger)(nil)

// NewMessenger creates a new Lark chat platform adapter
func NewMessenger(client imClient, cfg MessengerConfig, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// PostMessage posts to a chat, or replies to the thread root when ThreadID is set
func (m *Messenger) PostMessage(ctx context.Context, msg port.OutboundMessage) (string, error) {
	if msg.ChannelID == "" && msg.ThreadID == "" {
		return "", fmt.Errorf("channel id cannot be empty")
	}

	content, err := markdownCard(msg.Text)
	if err != nil {
		return "", err
	}

	var messageID string
	if msg.ThreadID != "" {
		messageID, err = m.client.ReplyMessage(ctx, msg.ThreadID, MsgTypeInteractive, content)
	} else {
		messageID, err = m.client.CreateMessage(ctx, ReceiveIDTypeChat, msg.ChannelID, MsgTypeInteractive, content)
	}
	if err != nil {
		m.logger.Error("Failed to post message",
			zap.String("chat_id", msg.ChannelID),
			zap.String("thread_id", msg.ThreadID),
			zap.Error(err))
		return "", fmt.Errorf("failed to post message: %w", err)
	}

	m.logger.Debug("Message posted",
		zap.String("chat_id", msg.ChannelID),
		zap.String("thread_id", msg.ThreadID),
		zap.String("message_id", messageID))
	return messageID, nil
}

// SendDirect sends a message to a user by open id
func (m *Messenger) SendDirect(ctx context.Context, userID string, text string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	content, err := markdownCard(text)
	if err != nil {
		return err
	}
	if _, err := m.client.CreateMessage(ctx, ReceiveIDTypeOpenID, userID, MsgTypeInteractive, content); err != nil {
		m.logger.Error("Failed to send direct message", zap.String("open_id", userID), zap.Error(err))
		return fmt.Errorf("failed to send direct message: %w", err)
	}
	return nil
}

// SendForm sends the submission form card to a user
func (m *Messenger) SendForm(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id cannot be empty")
	}

	content, err := submissionFormCard()
	if err != nil {
		return err
	}
	if _, err := m.client.CreateMessage(ctx, ReceiveIDTypeOpenID, userID, MsgTypeInteractive, content); err != nil {
		m.logger.Error("Failed to send submission form", zap.String("open_id", userID), zap.Error(err))
		return fmt.Errorf("failed to send form: %w", err)
	}
	return nil
}

// Permalink renders the configured link template. Without a template there
// is no link and callers fall back to plain text.
func (m *Messenger) Permalink(_ context.Context, channelID, messageID string) (string, error) {
	if m.cfg.MessageLinkTemplate == "" {
		return "", nil
	}
	r := strings.NewReplacer("{chat_id}", channelID, "{message_id}", messageID)
	return r.Replace(m.cfg.MessageLinkTemplate), nil
}

// DisplayName resolves a user's name by open id
func (m *Messenger) DisplayName(ctx context.Context, userID string) (string, error) {
	name, err := m.client.UserName(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve display name: %w", err)
	}
	return name, nil
}
