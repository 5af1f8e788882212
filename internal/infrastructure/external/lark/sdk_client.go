package lark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Receive id types understood by the message API
const (
	ReceiveIDTypeChat   = "chat_id"
	ReceiveIDTypeOpenID = "open_id"
)

// tokenRefreshMargin renews the tenant token before it actually expires
const tokenRefreshMargin = 5 * time.Minute

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client    *lark.Client
	appID     string
	appSecret string
	logger    *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL overrides the open platform endpoint (Feishu vs Lark)
	BaseURL string
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &SDKClient{
		client:    lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		logger:    logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// GetAppID returns the app ID
func (c *SDKClient) GetAppID() string {
	return c.appID
}

// CreateMessage sends a new message and returns its id
func (c *SDKClient) CreateMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		return "", apiError(resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", nil
	}
	return *resp.Data.MessageId, nil
}

// ReplyMessage replies to a message, which keeps the reply in its thread
func (c *SDKClient) ReplyMessage(ctx context.Context, messageID, msgType, content string) (string, error) {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Reply(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to reply to message: %w", err)
	}
	if !resp.Success() {
		return "", apiError(resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", nil
	}
	return *resp.Data.MessageId, nil
}

// UserName looks up a user's name by open id
func (c *SDKClient) UserName(ctx context.Context, openID string) (string, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType(ReceiveIDTypeOpenID).
		Build()

	resp, err := c.client.Contact.User.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if !resp.Success() {
		return "", apiError(resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil || resp.Data.User.Name == nil {
		return "", nil
	}
	return *resp.Data.User.Name, nil
}

// MessageResource downloads a file or image attached to a message.
// kind is "file" or "image".
func (c *SDKClient) MessageResource(ctx context.Context, messageID, fileKey, kind string) ([]byte, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(fileKey).
		Type(kind).
		Build()

	resp, err := c.client.Im.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get message resource: %w", err)
	}
	if !resp.Success() {
		return nil, apiError(resp.Code, resp.Msg)
	}
	if resp.File == nil {
		return nil, fmt.Errorf("message resource %s has no body", fileKey)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.File); err != nil {
		return nil, fmt.Errorf("failed to read message resource: %w", err)
	}
	return buf.Bytes(), nil
}

// TenantToken returns a tenant access token for raw HTTP calls, reusing
// the previous one until shortly before it expires
func (c *SDKClient) TenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	resp, err := c.client.GetTenantAccessTokenBySelfBuiltApp(ctx, &larkcore.SelfBuiltTenantAccessTokenReq{
		AppID:     c.appID,
		AppSecret: c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get tenant access token: %w", err)
	}
	if resp.Code != 0 {
		return "", apiError(resp.Code, resp.Msg)
	}

	c.token = resp.TenantAccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(resp.Expire)*time.Second - tokenRefreshMargin)
	c.logger.Debug("Refreshed tenant access token", zap.Time("expires_at", c.tokenExpiry))
	return c.token, nil
}
