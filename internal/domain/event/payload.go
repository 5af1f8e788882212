package event

import "github.com/bestat/tatekae-seisan-bot/internal/domain/entity"

// Submission carries the raw form values of a new request. Values are
// validated by the engine, not by the producer.
type Submission struct {
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Amount    string `json:"amount"`
	UsageDate string `json:"usage_date"`
	Remarks   string `json:"remarks"`
}

// ReceiptUpload is one or more files posted into a request thread
type ReceiptUpload struct {
	UserID    string               `json:"user_id"`
	ThreadID  string               `json:"thread_id"`
	ChannelID string               `json:"channel_id"`
	Files     []entity.ReceiptFile `json:"files"`
}

// Reaction is an emoji reaction on a request's root message
type Reaction struct {
	UserID    string `json:"user_id"`
	Reaction  string `json:"reaction"`
	ThreadID  string `json:"thread_id"`
	ChannelID string `json:"channel_id"`
}

// CompletionRequest is the completion command; Argument holds the free text
// after the command name.
type CompletionRequest struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Argument  string `json:"argument"`
}

// FormRequest asks for the submission form to be sent to a user
type FormRequest struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}
