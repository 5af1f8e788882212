// Package container provides dependency injection and lifecycle management
// for the expense ledger bot.
package container

import (
	"fmt"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/application/workflow"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/external/google"
	httpapi "github.com/bestat/tatekae-seisan-bot/internal/interfaces/http"
	"github.com/bestat/tatekae-seisan-bot/pkg/database"
)

// Backend names
const (
	BackendGoogle = "google"
	BackendXLSX   = "xlsx"
	BackendLocal  = "local"
)

// Config holds all configuration for the Container.
type Config struct {
	Database database.Config
	Lark     LarkConfig
	Google   google.Config
	Ledger   LedgerConfig
	Archive  ArchiveConfig
	Cache    service.CacheConfig
	Remote   service.RemotePolicy
	Engine   workflow.Config
	Worker   WorkerConfig
	Server   ServerConfig
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID               string
	AppSecret           string
	BaseURL             string
	FormCommand         string
	MessageLinkTemplate string
	DownloadAttempts    int
	DownloadBackoff     time.Duration
}

// LedgerConfig selects the spreadsheet backend.
type LedgerConfig struct {
	// Backend is google or xlsx
	Backend string
	// XLSXDir holds one workbook per spreadsheet id
	XLSXDir string
	Targets service.SheetTargets
	BaseURL string
}

// ArchiveConfig selects the receipt file store.
type ArchiveConfig struct {
	// Backend is google or local
	Backend       string
	LocalRoot     string
	SharedDriveID string
	Archiver      service.ArchiverConfig
}

// WorkerConfig holds background processing settings.
type WorkerConfig struct {
	// Concurrency bounds the event handlers running at once
	Concurrency          int
	IndexRefreshInterval time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Enabled bool
	httpapi.ServerConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: database.Config{
			Path:         "data/history.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Lark: LarkConfig{
			DownloadAttempts: 3,
			DownloadBackoff:  time.Second,
		},
		Ledger: LedgerConfig{
			Backend: BackendGoogle,
			BaseURL: "https://docs.google.com/spreadsheets/d",
		},
		Archive: ArchiveConfig{
			Backend: BackendGoogle,
		},
		Cache: service.CacheConfig{
			Policy: service.CachePolicyNone,
			Size:   1000,
		},
		Remote: service.DefaultRemotePolicy(),
		Engine: workflow.Config{
			RequestIDPrefix: workflow.DefaultRequestIDPrefix,
			CompleteCommand: workflow.DefaultCompleteCommand,
			Currency:        "JPY",
			Location:        time.UTC,
		},
		Worker: WorkerConfig{
			Concurrency:          8,
			IndexRefreshInterval: 10 * time.Minute,
		},
		Server: ServerConfig{
			Enabled:      true,
			ServerConfig: httpapi.DefaultServerConfig(),
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}
	if c.Engine.FinanceChannelID == "" {
		return fmt.Errorf("finance channel is required")
	}
	if c.Ledger.Targets.Default.IsZero() {
		return fmt.Errorf("default ledger sheet is required")
	}

	switch c.Ledger.Backend {
	case BackendGoogle:
	case BackendXLSX:
		if c.Ledger.XLSXDir == "" {
			return fmt.Errorf("xlsx ledger requires a directory")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	switch c.Archive.Backend {
	case BackendGoogle:
		if c.Archive.Archiver.RootFolderID == "" {
			return fmt.Errorf("drive archive requires a root folder id")
		}
	case BackendLocal:
		if c.Archive.LocalRoot == "" {
			return fmt.Errorf("local archive requires a root directory")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}
