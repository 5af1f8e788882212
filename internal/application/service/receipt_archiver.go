package service

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DefaultMaxTitleLength is the number of summary runes kept in a file name
const DefaultMaxTitleLength = 20

const fallbackSummary = "expense"

var summaryDisallowed = regexp.MustCompile(`[^a-zA-Z0-9一-龯ぁ-ゔァ-ヴー々〆〤\s\x{3000}_-]+`)

var extensionByMimeType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/heic":      ".heic",
	"application/pdf": ".pdf",
	"image/gif":       ".gif",
}

// ReceiptMeta is the request metadata that determines where and under which
// name a receipt is stored
type ReceiptMeta struct {
	RequestID        string
	UsageDate        time.Time
	ApplicantName    string
	Amount           decimal.Decimal
	Currency         string
	Summary          string
	OriginalFilename string
}

// ArchiverConfig configures a ReceiptArchiver
type ArchiverConfig struct {
	RootFolderID   string
	SharingDomain  string
	MaxTitleLength int
}

// ReceiptArchiver stores receipt files under root/{yyyy}/{MM}
type ReceiptArchiver interface {
	Upload(ctx context.Context, data []byte, mimeType string, meta ReceiptMeta) (*entity.ArchivedFile, error)
}

type receiptArchiverImpl struct {
	store       port.FileStore
	provisioner FolderProvisioner
	cfg         ArchiverConfig
	remote      RemotePolicy
	logger      Logger
}

// NewReceiptArchiver creates a new ReceiptArchiver
func NewReceiptArchiver(store port.FileStore, provisioner FolderProvisioner, cfg ArchiverConfig, remote RemotePolicy, logger Logger) ReceiptArchiver {
	if cfg.MaxTitleLength <= 0 {
		cfg.MaxTitleLength = DefaultMaxTitleLength
	}
	return &receiptArchiverImpl{
		store:       store,
		provisioner: provisioner,
		cfg:         cfg,
		remote:      remote,
		logger:      loggerOrNop(logger),
	}
}

// Upload places the file in the folder of the usage date, not the upload date
func (a *receiptArchiverImpl) Upload(ctx context.Context, data []byte, mimeType string, meta ReceiptMeta) (*entity.ArchivedFile, error) {
	folderID, err := a.provisioner.EnsurePath(ctx, a.cfg.RootFolderID, meta.UsageDate.Year(), int(meta.UsageDate.Month()))
	if err != nil {
		return nil, fmt.Errorf("provision folder for %s: %w", meta.RequestID, err)
	}

	name := BuildReceiptFileName(meta, mimeType, a.cfg.MaxTitleLength)

	var created *entity.ArchivedFile
	err = a.remote.Write(ctx, "upload receipt", func(ctx context.Context) error {
		var err error
		created, err = a.store.CreateFile(ctx, port.FileUpload{
			ParentID: folderID,
			Name:     name,
			MimeType: mimeType,
			Data:     data,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if a.cfg.SharingDomain != "" {
		if err := a.grantDomainRead(ctx, created.FileID); err != nil {
			return nil, err
		}
	}

	result := *created
	if result.Name == "" {
		result.Name = name
	}
	result.FolderID = folderID
	return &result, nil
}

// grantDomainRead treats the enumerated permission conflicts as success
func (a *receiptArchiverImpl) grantDomainRead(ctx context.Context, fileID string) error {
	err := a.remote.Write(ctx, "grant domain read", func(ctx context.Context) error {
		return a.store.GrantDomainRead(ctx, fileID, a.cfg.SharingDomain)
	})
	if err == nil {
		return nil
	}
	if port.IsPermissionConflict(err) {
		a.logger.Warn("Skipping domain permission change due to existing access",
			"file_id", fileID, "domain", a.cfg.SharingDomain, "error", err)
		return nil
	}
	return fmt.Errorf("share receipt %s: %w", fileID, err)
}

// BuildReceiptFileName returns
// {yyyyMMdd}_{applicant}_{grouped amount}{currency}_{summary}{ext}
func BuildReceiptFileName(meta ReceiptMeta, mimeType string, maxTitleLength int) string {
	return fmt.Sprintf("%s_%s_%s%s_%s%s",
		meta.UsageDate.Format("20060102"),
		meta.ApplicantName,
		FormatAmount(meta.Amount),
		meta.Currency,
		SanitizeSummary(meta.Summary, maxTitleLength),
		ResolveExtension(meta.OriginalFilename, mimeType),
	)
}

// SanitizeSummary keeps letters, digits, common Japanese ranges, spaces,
// underscores and hyphens, truncated to maxLength runes
func SanitizeSummary(summary string, maxLength int) string {
	cleaned := strings.TrimSpace(summaryDisallowed.ReplaceAllString(summary, ""))
	if maxLength > 0 {
		if runes := []rune(cleaned); len(runes) > maxLength {
			cleaned = string(runes[:maxLength])
		}
	}
	if cleaned == "" {
		return fallbackSummary
	}
	return cleaned
}

// ResolveExtension prefers the uploaded file's own extension
func ResolveExtension(originalFilename, mimeType string) string {
	if ext := path.Ext(originalFilename); len(ext) > 1 {
		return ext
	}
	return extensionByMimeType[strings.ToLower(mimeType)]
}
