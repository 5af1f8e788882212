package port

import (
	"context"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
)

// OutboundMessage is a text message posted to a channel, optionally inside a thread
type OutboundMessage struct {
	ChannelID string
	ThreadID  string
	Text      string
}

// ChatPlatform defines the chat operations the engine depends on
type ChatPlatform interface {
	// PostMessage posts a message and returns the new message id
	PostMessage(ctx context.Context, msg OutboundMessage) (string, error)
	// SendDirect sends a direct message to a user
	SendDirect(ctx context.Context, userID string, text string) error
	// SendForm sends the expense submission form to a user
	SendForm(ctx context.Context, userID string) error
	// Permalink returns a link to the given message
	Permalink(ctx context.Context, channelID, messageID string) (string, error)
	// DisplayName resolves a user's display name
	DisplayName(ctx context.Context, userID string) (string, error)
}

// FileDownloader fetches an attached file using the bot's credentials
type FileDownloader interface {
	Download(ctx context.Context, file entity.ReceiptFile) ([]byte, error)
}
