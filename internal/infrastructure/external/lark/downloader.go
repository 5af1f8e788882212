package lark

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"go.uber.org/zap"
)

// Resource types of the message resource API
const (
	resourceFile  = "file"
	resourceImage = "image"
)

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type resourceClient interface {
	MessageResource(ctx context.Context, messageID, fileKey, kind string) ([]byte, error)
}

type tokenSource interface {
	TenantToken(ctx context.Context) (string, error)
}

// DownloaderConfig holds download retry settings
type DownloaderConfig struct {
	MaxAttempts int
	// Backoff is the first retry delay; it doubles on every attempt
	Backoff    time.Duration
	HTTPClient HTTPClient
}

// Downloader implements port.FileDownloader. Files with a URL are fetched
// with the bot's tenant token; the rest through the message resource API.
type Downloader struct {
	resources resourceClient
	tokens    tokenSource
	http      HTTPClient
	cfg       DownloaderConfig
	logger    *zap.Logger
}

var _ port.FileDownloader = (*Downloader)(nil)

// NewDownloader creates a new Lark attachment downloader
func NewDownloader(resources resourceClient, tokens tokenSource, cfg DownloaderConfig, logger *zap.Logger) *Downloader {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Downloader{
		resources: resources,
		tokens:    tokens,
		http:      client,
		cfg:       cfg,
		logger:    logger,
	}
}

// Download fetches the file, retrying transient failures
func (d *Downloader) Download(ctx context.Context, file entity.ReceiptFile) ([]byte, error) {
	if !file.Downloadable() {
		return nil, port.Permanent(fmt.Errorf("file %q has no download location", file.Name))
	}
	return d.DownloadWithRetry(ctx, file, d.cfg.MaxAttempts)
}

// DownloadWithRetry downloads a file with exponential backoff
func (d *Downloader) DownloadWithRetry(ctx context.Context, file entity.ReceiptFile, maxAttempts int) ([]byte, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := d.downloadOnce(ctx, file)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if port.IsPermanent(err) {
			d.logger.Info("Permanent error, not retrying",
				zap.String("file", file.Name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}

		if attempt < maxAttempts {
			backoff := d.cfg.Backoff * time.Duration(1<<uint(attempt-1))
			d.logger.Info("Retrying download",
				zap.String("file", file.Name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	d.logger.Error("Failed to download after retries",
		zap.String("file", file.Name),
		zap.Int("max_attempts", maxAttempts),
		zap.Error(lastErr))
	return nil, fmt.Errorf("download failed after %d attempts: %w", maxAttempts, lastErr)
}

func (d *Downloader) downloadOnce(ctx context.Context, file entity.ReceiptFile) ([]byte, error) {
	if file.DownloadURL != "" {
		return d.downloadURL(ctx, file.DownloadURL)
	}

	content, err := d.resources.MessageResource(ctx, file.MessageID, file.ID, resourceKind(file))
	if err != nil {
		if retryable, isAPI := isRetryableAPIError(err); isAPI && !retryable {
			return nil, port.Permanent(err)
		}
		return nil, err
	}
	return content, nil
}

func (d *Downloader) downloadURL(ctx context.Context, url string) ([]byte, error) {
	token, err := d.tokens.TenantToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, port.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download failed with status %d", resp.StatusCode)
		if isPermanentStatus(resp.StatusCode) {
			return nil, port.Permanent(err)
		}
		return nil, err
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return content, nil
}

// isPermanentStatus treats 4xx as final except 408 and 429
func isPermanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

func resourceKind(file entity.ReceiptFile) string {
	if strings.HasPrefix(file.MimeType, "image/") || strings.HasPrefix(file.ID, "img_") {
		return resourceImage
	}
	return resourceFile
}
