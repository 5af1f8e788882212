package config

import (
	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/application/workflow"
	"github.com/bestat/tatekae-seisan-bot/internal/container"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/external/google"
	httpapi "github.com/bestat/tatekae-seisan-bot/internal/interfaces/http"
	"github.com/bestat/tatekae-seisan-bot/pkg/database"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	defaultSheet := c.Ledger.Sheet
	if defaultSheet.SpreadsheetID == "" && c.Ledger.Backend == container.BackendXLSX {
		defaultSheet.SpreadsheetID = defaultWorkbook
	}

	perUser := make(map[string]entity.SheetTarget, len(c.Ledger.UserSheets))
	for userID, sheet := range c.Ledger.UserSheets {
		perUser[userID] = sheetTarget(sheet, defaultSheet)
	}

	archiveRoot := c.Archive.RootFolderID
	if c.Archive.Backend == container.BackendLocal {
		archiveRoot = ""
	}

	return &container.Config{
		Database: database.Config{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:               c.Lark.AppID,
			AppSecret:           c.Lark.AppSecret,
			BaseURL:             c.Lark.BaseURL,
			FormCommand:         c.Lark.FormCommand,
			MessageLinkTemplate: c.Lark.MessageLinkTemplate,
			DownloadAttempts:    c.Lark.DownloadAttempts,
			DownloadBackoff:     c.Lark.DownloadBackoff,
		},
		Google: google.Config{
			CredentialsJSON: c.Google.CredentialsJSON,
			CredentialsFile: c.Google.CredentialsFile,
		},
		Ledger: container.LedgerConfig{
			Backend: c.Ledger.Backend,
			XLSXDir: c.Ledger.XLSXPath,
			Targets: service.SheetTargets{
				Default: sheetTarget(defaultSheet, defaultSheet),
				PerUser: perUser,
			},
			BaseURL: c.Ledger.BaseURL,
		},
		Archive: container.ArchiveConfig{
			Backend:       c.Archive.Backend,
			LocalRoot:     c.Archive.LocalRoot,
			SharedDriveID: c.Archive.SharedDriveID,
			Archiver: service.ArchiverConfig{
				RootFolderID:   archiveRoot,
				SharingDomain:  c.Archive.SharingDomain,
				MaxTitleLength: c.App.MaxFilenameTitleLength,
			},
		},
		Cache: service.CacheConfig{
			Policy: c.Cache.Policy,
			Size:   c.Cache.Size,
			TTL:    c.Cache.TTL,
		},
		Remote: service.RemotePolicy{
			Timeout:      c.Remote.Timeout,
			ReadAttempts: c.Remote.ReadRetries,
			BaseBackoff:  c.Remote.Backoff,
		},
		Engine: workflow.Config{
			FinanceChannelID:             c.Lark.FinanceChatID,
			AccountingChannelID:          c.Lark.AccountingChatID,
			ApproveReaction:              c.Lark.ApproveReaction,
			RejectReaction:               c.Lark.RejectReaction,
			CompleteCommand:              c.Lark.CompleteCommand,
			RequestIDPrefix:              c.App.RequestIDPrefix,
			Currency:                     c.App.Currency,
			InstructionsTemplate:         c.App.ReceiptInstructionsTemplate,
			Location:                     loc,
			RequireApprovalForCompletion: c.Workflow.RequireApprovalForCompletion,
		},
		Worker: container.WorkerConfig{
			Concurrency:          c.Workflow.Workers,
			IndexRefreshInterval: c.Ledger.IndexRefreshInterval,
		},
		Server: container.ServerConfig{
			Enabled: c.Server.Enabled,
			ServerConfig: httpapi.ServerConfig{
				Host:         c.Server.Host,
				Port:         c.Server.Port,
				ReadTimeout:  c.Server.ReadTimeout,
				WriteTimeout: c.Server.WriteTimeout,
			},
		},
	}, nil
}

// defaultWorkbook names the xlsx file used when no spreadsheet id is configured
const defaultWorkbook = "ledger"

// sheetTarget fills a missing spreadsheet id or tab from the default sheet
func sheetTarget(sheet, fallback SheetConfig) entity.SheetTarget {
	target := entity.SheetTarget{
		SpreadsheetID: sheet.SpreadsheetID,
		TabName:       sheet.TabName,
		GID:           sheet.GID,
	}
	if target.SpreadsheetID == "" {
		target.SpreadsheetID = fallback.SpreadsheetID
	}
	if target.TabName == "" {
		target.TabName = fallback.TabName
	}
	return target
}
