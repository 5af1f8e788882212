package container

import (
	"context"
	"fmt"

	"github.com/bestat/tatekae-seisan-bot/internal/application/dispatcher"
	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/application/workflow"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/external/google"
	infraLark "github.com/bestat/tatekae-seisan-bot/internal/infrastructure/external/lark"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/persistence/repository"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/spreadsheet"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/storage"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/worker"
	"github.com/bestat/tatekae-seisan-bot/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds the history database and its repository.
type DatabaseBundle struct {
	DB      *database.DB
	History port.HistoryRepository
}

// LarkBundle holds all Lark-related components.
type LarkBundle struct {
	Client     *infraLark.SDKClient
	Messenger  *infraLark.Messenger
	Downloader *infraLark.Downloader
}

// ServiceBundle groups the ledger-facing application services.
type ServiceBundle struct {
	Ledger      service.LedgerStore
	Cache       service.RequestCache
	Provisioner service.FolderProvisioner
	Archiver    service.ReceiptArchiver
	History     service.HistoryService
}

// ProvideDatabase opens the history database and applies the embedded migrations.
func ProvideDatabase(cfg *database.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(*cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunEmbedded(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:      db,
		History: repository.NewHistoryRepository(db.DB, logger),
	}, nil
}

// ProvideLark creates the Lark SDK client and its messenger and downloader.
func ProvideLark(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	messenger := infraLark.NewMessenger(client, infraLark.MessengerConfig{
		MessageLinkTemplate: cfg.MessageLinkTemplate,
	}, logger)

	downloader := infraLark.NewDownloader(client, client, infraLark.DownloaderConfig{
		MaxAttempts: cfg.DownloadAttempts,
		Backoff:     cfg.DownloadBackoff,
	}, logger)

	return &LarkBundle{
		Client:     client,
		Messenger:  messenger,
		Downloader: downloader,
	}, nil
}

// ProvideSheetValues creates the spreadsheet backend of the ledger. The xlsx
// backend also writes the header row into every configured tab.
func ProvideSheetValues(ctx context.Context, cfg *LedgerConfig, googleCfg google.Config, logger *zap.Logger) (port.SheetValues, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ledger config is required")
	}

	switch cfg.Backend {
	case BackendGoogle:
		values, err := google.NewSheetsValues(ctx, googleCfg, logger)
		if err != nil {
			return nil, err
		}
		return values, nil
	case BackendXLSX:
		values, err := spreadsheet.NewXLSXValues(cfg.XLSXDir, logger)
		if err != nil {
			return nil, err
		}
		for _, target := range cfg.Targets.All() {
			if err := values.EnsureTab(target.SpreadsheetID, target.TabName, service.LedgerHeader); err != nil {
				return nil, fmt.Errorf("failed to prepare tab %s/%s: %w", target.SpreadsheetID, target.TabName, err)
			}
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// ProvideFileStore creates the receipt archive backend.
func ProvideFileStore(ctx context.Context, cfg *ArchiveConfig, googleCfg google.Config, logger *zap.Logger) (port.FileStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("archive config is required")
	}

	switch cfg.Backend {
	case BackendGoogle:
		store, err := google.NewDriveStore(ctx, googleCfg, google.DriveConfig{SharedDriveID: cfg.SharedDriveID}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendLocal:
		store, err := storage.NewLocalFileStore(cfg.LocalRoot, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Values      port.SheetValues
	Files       port.FileStore
	HistoryRepo port.HistoryRepository
	Config      *Config
	Logger      *zap.Logger
}

// ProvideServices creates the ledger store, request cache, archiver and history service.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Values == nil {
		return nil, fmt.Errorf("sheet values backend is required")
	}
	if deps.Files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cfg := deps.Config
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	ledger := service.NewLedgerStore(deps.Values, service.LedgerConfig{
		Targets:         cfg.Ledger.Targets,
		BaseURL:         cfg.Ledger.BaseURL,
		DefaultCurrency: cfg.Engine.Currency,
		Location:        cfg.Engine.Location,
		Remote:          cfg.Remote,
	}, serviceLogger)

	cache, err := service.NewRequestCache(ledger, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create request cache: %w", err)
	}

	provisioner := service.NewFolderProvisioner(deps.Files, cfg.Remote, serviceLogger)

	return &ServiceBundle{
		Ledger:      ledger,
		Cache:       cache,
		Provisioner: provisioner,
		Archiver:    service.NewReceiptArchiver(deps.Files, provisioner, cfg.Archive.Archiver, cfg.Remote, serviceLogger),
		History:     service.NewHistoryService(deps.HistoryRepo, serviceLogger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher with bounded async concurrency.
func ProvideDispatcher(concurrency int, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
		dispatcher.WithMaxConcurrency(concurrency),
	), nil
}

// EngineDeps holds dependencies required for creating the workflow engine.
type EngineDeps struct {
	Services   *ServiceBundle
	Lark       *LarkBundle
	Dispatcher dispatcher.Dispatcher
	Config     *Config
	Logger     *zap.Logger
}

// ProvideEngine creates the workflow engine and registers its event handlers.
func ProvideEngine(deps *EngineDeps) (workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("engine dependencies are required")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if deps.Lark == nil {
		return nil, fmt.Errorf("lark bundle is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}

	engine := workflow.NewEngine(workflow.Dependencies{
		Ledger:     deps.Services.Ledger,
		Cache:      deps.Services.Cache,
		Archiver:   deps.Services.Archiver,
		History:    deps.Services.History,
		Targets:    deps.Config.Ledger.Targets,
		Chat:       deps.Lark.Messenger,
		Downloader: deps.Lark.Downloader,
	}, deps.Config.Engine, workflow.WithLogger(logger))

	workflow.NewHandlers(engine, deps.Lark.Messenger, logger).Register(deps.Dispatcher)

	return engine, nil
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.Manager with all workers registered but not started.
func ProvideWorkers(cfg *WorkerConfig, services *ServiceBundle, logger *zap.Logger) (*worker.Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}

	manager := worker.NewManager(logger)
	if cfg.IndexRefreshInterval > 0 {
		manager.Register(worker.NewReindexWorker(cfg.IndexRefreshInterval, services.Ledger, logger))
	}
	return manager, nil
}
