package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bestat/tatekae-seisan-bot/internal/application/dispatcher"
	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/application/workflow"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/worker"
	httpapi "github.com/bestat/tatekae-seisan-bot/internal/interfaces/http"
	"github.com/bestat/tatekae-seisan-bot/internal/interfaces/websocket"
	"github.com/bestat/tatekae-seisan-bot/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db       *database.DB
	database *DatabaseBundle

	// Infrastructure - External
	lark   *LarkBundle
	values port.SheetValues
	files  port.FileStore

	// Application
	services   *ServiceBundle
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine

	// Workers
	workers *worker.Manager

	// Interfaces
	adapter *websocket.LarkAdapter
	server  *httpapi.Server
	wg      sync.WaitGroup

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. History database
// 2. Lark clients
// 3. Ledger and archive backends
// 4. Application services
// 5. Event dispatcher and workflow engine
// 6. Workers
// 7. Lark WebSocket adapter and HTTP server
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize external clients
	if err := c.initExternalClients(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	// Step 3: Initialize ledger and archive backends
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized",
		zap.String("ledger_backend", c.config.Ledger.Backend),
		zap.String("archive_backend", c.config.Archive.Backend))

	// Step 4: Initialize application services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 5: Initialize dispatcher and workflow engine
	if err := c.initDispatcherAndWorkflow(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized")

	// Step 6: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	// Step 7: Start accepting events
	c.initInterfaces()

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop interfaces (reverse of step 7)
	if c.adapter != nil {
		if err := c.adapter.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop lark adapter: %w", err))
		}
	}
	// The HTTP server shuts down on context cancellation
	c.wg.Wait()

	// Step 2: Stop workers (reverse of step 6)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 3: Close dispatcher, waiting for in-flight handlers (reverse of step 5)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Steps 4 to 6: services, backends and Lark clients hold no resources

	// Step 7: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}
	notInitialized := ComponentHealth{Healthy: false, Message: "not initialized"}

	// Check database
	switch {
	case c.db == nil:
		set("database", notInitialized)
	case c.db.Ping() != nil:
		set("database", ComponentHealth{Healthy: false, Message: "ping failed"})
	default:
		set("database", ComponentHealth{Healthy: true})
	}

	// Check workers
	if c.workers != nil {
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		})
	} else {
		set("workers", notInitialized)
	}

	// Check dispatcher
	if c.dispatcher != nil {
		set("dispatcher", ComponentHealth{Healthy: true})
	} else {
		set("dispatcher", notInitialized)
	}

	// Check Lark event stream
	if c.adapter != nil {
		set("lark_adapter", ComponentHealth{Healthy: c.adapter.IsRunning()})
	} else {
		set("lark_adapter", notInitialized)
	}

	return status
}

// initDatabase opens the history database using providers.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle
	c.db = bundle.DB
	return nil
}

// initExternalClients initializes the Lark clients using providers.
func (c *Container) initExternalClients() error {
	bundle, err := ProvideLark(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.lark = bundle
	return nil
}

// initStorage initializes the ledger and archive backends using providers.
func (c *Container) initStorage() error {
	values, err := ProvideSheetValues(c.ctx, &c.config.Ledger, c.config.Google, c.logger)
	if err != nil {
		return fmt.Errorf("ledger backend: %w", err)
	}
	c.values = values

	files, err := ProvideFileStore(c.ctx, &c.config.Archive, c.config.Google, c.logger)
	if err != nil {
		return fmt.Errorf("archive backend: %w", err)
	}
	c.files = files
	return nil
}

// initServices initializes all application services using providers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Values:      c.values,
		Files:       c.files,
		HistoryRepo: c.database.History,
		Config:      c.config,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// initDispatcherAndWorkflow initializes the event dispatcher and workflow engine using providers.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.config.Worker.Concurrency, c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideEngine(&EngineDeps{
		Services:   c.services,
		Lark:       c.lark,
		Dispatcher: c.dispatcher,
		Config:     c.config,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&c.config.Worker, c.services, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// initInterfaces starts the Lark event stream and the optional HTTP API.
// The SDK's WebSocket client never returns once connected, so only the
// HTTP server is waited for on Close.
func (c *Container) initInterfaces() {
	c.adapter = websocket.NewLarkAdapter(websocket.LarkAdapterConfig{
		AppID:           c.config.Lark.AppID,
		AppSecret:       c.config.Lark.AppSecret,
		CompleteCommand: c.config.Engine.CompleteCommand,
		FormCommand:     c.config.Lark.FormCommand,
	}, c.dispatcher, c.logger)

	go func() {
		if err := c.adapter.Start(c.ctx); err != nil && c.ctx.Err() == nil {
			c.logger.Error("Lark adapter stopped", zap.Error(err))
		}
	}()

	if !c.config.Server.Enabled {
		return
	}
	c.server = httpapi.NewServer(
		c.config.Server.ServerConfig,
		c.engine,
		c.services.Ledger,
		c.services.History,
		&zapLoggerAdapter{logger: c.logger},
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.server.Start(c.ctx); err != nil {
			c.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
}

// Getters for accessing container components

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
