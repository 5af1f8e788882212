package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bestat/tatekae-seisan-bot/internal/application/service"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/external/google"
)

func localConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "history.db")
	cfg.Lark.AppID = "cli_test"
	cfg.Lark.AppSecret = "secret"
	cfg.Engine.FinanceChannelID = "oc_finance"
	cfg.Ledger.Backend = BackendXLSX
	cfg.Ledger.XLSXDir = filepath.Join(dir, "ledger")
	cfg.Ledger.Targets = service.SheetTargets{
		Default: entity.SheetTarget{SpreadsheetID: "ledger", TabName: "Expenses"},
		PerUser: map[string]entity.SheetTarget{
			"ou_alice": {SpreadsheetID: "ledger", TabName: "Alice"},
		},
	}
	cfg.Archive.Backend = BackendLocal
	cfg.Archive.LocalRoot = filepath.Join(dir, "receipts")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing app id", func(c *Config) { c.Lark.AppID = "" }, true},
		{"missing finance channel", func(c *Config) { c.Engine.FinanceChannelID = "" }, true},
		{"missing default sheet", func(c *Config) { c.Ledger.Targets.Default = entity.SheetTarget{} }, true},
		{"xlsx without dir", func(c *Config) { c.Ledger.XLSXDir = "" }, true},
		{"unknown ledger backend", func(c *Config) { c.Ledger.Backend = "csv" }, true},
		{"drive without root", func(c *Config) { c.Archive.Backend = BackendGoogle }, true},
		{"local without root", func(c *Config) { c.Archive.LocalRoot = "" }, true},
		{"missing database", func(c *Config) { c.Database.Path = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig(t)
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestNewContainer_RejectsInvalidConfig(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(localConfig(t), nil)
	assert.Error(t, err)

	cfg := localConfig(t)
	cfg.Lark.AppSecret = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestProviders_LocalBackends(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	cfg := localConfig(t)

	db, err := ProvideDatabase(&cfg.Database, logger)
	require.NoError(t, err)
	defer db.DB.Close()

	values, err := ProvideSheetValues(ctx, &cfg.Ledger, cfg.Google, logger)
	require.NoError(t, err)

	for _, tab := range []string{"Expenses", "Alice"} {
		rows, err := values.Get(ctx, "ledger", tab+"!A1:R1")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, service.LedgerHeader[0], rows[0][0])
	}

	files, err := ProvideFileStore(ctx, &cfg.Archive, cfg.Google, logger)
	require.NoError(t, err)

	services, err := ProvideServices(&ServiceDeps{
		Values:      values,
		Files:       files,
		HistoryRepo: db.History,
		Config:      cfg,
		Logger:      logger,
	})
	require.NoError(t, err)

	lark, err := ProvideLark(&cfg.Lark, logger)
	require.NoError(t, err)

	disp, err := ProvideDispatcher(cfg.Worker.Concurrency, logger)
	require.NoError(t, err)
	defer disp.Close()

	engine, err := ProvideEngine(&EngineDeps{
		Services:   services,
		Lark:       lark,
		Dispatcher: disp,
		Config:     cfg,
		Logger:     logger,
	})
	require.NoError(t, err)
	assert.NotNil(t, engine)

	for _, typ := range []event.Type{
		event.TypeRequestSubmitted,
		event.TypeReceiptUploaded,
		event.TypeReactionAdded,
		event.TypeCompletionRequested,
		event.TypeFormRequested,
	} {
		assert.Len(t, disp.Handlers(typ), 1, typ)
	}

	workers, err := ProvideWorkers(&cfg.Worker, services, logger)
	require.NoError(t, err)
	assert.Equal(t, 1, workers.Count())
}

func TestProviders_UnknownBackends(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	_, err := ProvideSheetValues(ctx, &LedgerConfig{Backend: "csv"}, google.Config{}, logger)
	assert.Error(t, err)

	_, err = ProvideFileStore(ctx, &ArchiveConfig{Backend: "s3"}, google.Config{}, logger)
	assert.Error(t, err)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("request_id", "EXP-1", 42, "skipped", "status", "pending", "dangling")

	require.Len(t, fields, 2)
	assert.Equal(t, "request_id", fields[0].Key)
	assert.Equal(t, "status", fields[1].Key)
}
