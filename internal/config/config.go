package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	// Embedded zone database for app.timezone on minimal images
	_ "time/tzdata"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Google   GoogleConfig   `mapstructure:"google"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// AppConfig holds request formatting settings
type AppConfig struct {
	Timezone                    string `mapstructure:"timezone"`
	RequestIDPrefix             string `mapstructure:"request_id_prefix"`
	Currency                    string `mapstructure:"currency"`
	ReceiptInstructionsTemplate string `mapstructure:"receipt_instructions_template"`
	MaxFilenameTitleLength      int    `mapstructure:"max_filename_title_length"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID               string        `mapstructure:"app_id"`
	AppSecret           string        `mapstructure:"app_secret"`
	BaseURL             string        `mapstructure:"base_url"`
	FinanceChatID       string        `mapstructure:"finance_chat_id"`
	AccountingChatID    string        `mapstructure:"accounting_chat_id"`
	ApproveReaction     string        `mapstructure:"approve_reaction"`
	RejectReaction      string        `mapstructure:"reject_reaction"`
	CompleteCommand     string        `mapstructure:"complete_command"`
	FormCommand         string        `mapstructure:"form_command"`
	MessageLinkTemplate string        `mapstructure:"message_link_template"`
	DownloadAttempts    int           `mapstructure:"download_attempts"`
	DownloadBackoff     time.Duration `mapstructure:"download_backoff"`
}

// SheetConfig identifies one spreadsheet tab
type SheetConfig struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	TabName       string `mapstructure:"tab_name"`
	GID           string `mapstructure:"gid"`
}

// LedgerConfig selects and addresses the ledger backend
type LedgerConfig struct {
	Backend  string      `mapstructure:"backend"` // google or xlsx
	XLSXPath string      `mapstructure:"xlsx_path"`
	Sheet    SheetConfig `mapstructure:"sheet"`
	// UserSheets routes applicants (by open id) to their own tab
	UserSheets           map[string]SheetConfig `mapstructure:"user_sheets"`
	BaseURL              string                 `mapstructure:"base_url"`
	IndexRefreshInterval time.Duration          `mapstructure:"index_refresh_interval"`
}

// ArchiveConfig selects where receipts are stored
type ArchiveConfig struct {
	Backend       string `mapstructure:"backend"` // google or local
	RootFolderID  string `mapstructure:"root_folder_id"`
	LocalRoot     string `mapstructure:"local_root"`
	SharedDriveID string `mapstructure:"shared_drive_id"`
	SharingDomain string `mapstructure:"sharing_domain"`
}

// GoogleConfig holds service account credentials
type GoogleConfig struct {
	CredentialsJSON string `mapstructure:"credentials_json"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// CacheConfig selects the request cache eviction policy
type CacheConfig struct {
	Policy string        `mapstructure:"policy"` // none, lru or ttl
	Size   int           `mapstructure:"size"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// RemoteConfig bounds outbound calls
type RemoteConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	ReadRetries int           `mapstructure:"read_retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// WorkflowConfig holds event processing settings
type WorkflowConfig struct {
	Workers                      int  `mapstructure:"workers"`
	RequireApprovalForCompletion bool `mapstructure:"require_approval_for_completion"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the status history database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads .env (if present), the YAML file at configPath (if given) and
// environment variables, in increasing order of precedence
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.timezone", "Asia/Tokyo")
	v.SetDefault("app.request_id_prefix", "EXP")
	v.SetDefault("app.currency", "JPY")
	v.SetDefault("app.receipt_instructions_template",
		"領収書を {threadLink} のスレッドに添付してください。添付後に自動で処理します。")
	v.SetDefault("app.max_filename_title_length", 20)

	v.SetDefault("lark.approve_reaction", "DONE")
	v.SetDefault("lark.reject_reaction", "CrossMark")
	v.SetDefault("lark.complete_command", "/expense-complete")
	v.SetDefault("lark.form_command", "/expense")
	v.SetDefault("lark.download_attempts", 3)
	v.SetDefault("lark.download_backoff", time.Second)

	v.SetDefault("ledger.backend", "google")
	v.SetDefault("ledger.xlsx_path", "data/ledger")
	v.SetDefault("ledger.sheet.tab_name", "Expenses")
	v.SetDefault("ledger.base_url", "https://docs.google.com/spreadsheets/d")
	v.SetDefault("ledger.index_refresh_interval", 10*time.Minute)

	v.SetDefault("archive.backend", "google")
	v.SetDefault("archive.local_root", "data/receipts")

	v.SetDefault("cache.policy", "none")
	v.SetDefault("cache.size", 1000)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.read_retries", 3)
	v.SetDefault("remote.backoff", 500*time.Millisecond)

	v.SetDefault("workflow.workers", 8)
	v.SetDefault("workflow.require_approval_for_completion", false)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/history.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional names of secrets and deployment ids
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.finance_chat_id", "LARK_FINANCE_CHAT_ID")
	_ = v.BindEnv("lark.accounting_chat_id", "LARK_ACCOUNTING_CHAT_ID")
	_ = v.BindEnv("ledger.sheet.spreadsheet_id", "LEDGER_SPREADSHEET_ID")
	_ = v.BindEnv("archive.root_folder_id", "DRIVE_ROOT_FOLDER_ID")
	_ = v.BindEnv("google.credentials_json", "GOOGLE_CREDENTIALS_JSON")
	_ = v.BindEnv("google.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}
	if c.Lark.FinanceChatID == "" {
		return fmt.Errorf("lark.finance_chat_id is required")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Ledger.Backend {
	case "google":
		if c.Ledger.Sheet.SpreadsheetID == "" {
			return fmt.Errorf("ledger.sheet.spreadsheet_id is required for the google backend")
		}
	case "xlsx":
		if c.Ledger.XLSXPath == "" {
			return fmt.Errorf("ledger.xlsx_path is required for the xlsx backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be google or xlsx, got %q", c.Ledger.Backend)
	}
	if c.Ledger.Sheet.TabName == "" {
		return fmt.Errorf("ledger.sheet.tab_name is required")
	}

	switch c.Archive.Backend {
	case "google":
		if c.Archive.RootFolderID == "" {
			return fmt.Errorf("archive.root_folder_id is required for the google backend")
		}
	case "local":
		if c.Archive.LocalRoot == "" {
			return fmt.Errorf("archive.local_root is required for the local backend")
		}
	default:
		return fmt.Errorf("archive.backend must be google or local, got %q", c.Archive.Backend)
	}

	switch c.Cache.Policy {
	case "none", "lru":
	case "ttl":
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive for the ttl policy")
		}
	default:
		return fmt.Errorf("cache.policy must be none, lru or ttl, got %q", c.Cache.Policy)
	}
	if c.Cache.Policy != "none" && c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive")
	}

	if c.Workflow.Workers < 1 {
		return fmt.Errorf("workflow.workers must be at least 1")
	}

	return nil
}

// Location resolves app.timezone
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}
