package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reindexer rebuilds the request lookup index from the ledger
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// ReindexStats reports what the worker has done so far
type ReindexStats struct {
	Runs      int
	Failures  int
	Indexed   int
	LastRun   time.Time
	LastError error
}

// ReindexWorker periodically re-reads every ledger tab so lookups by request
// id and thread id stay fast after rows are edited by hand
type ReindexWorker struct {
	interval  time.Duration
	reindexer Reindexer
	logger    *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	stats     ReindexStats
}

// NewReindexWorker creates a worker that runs once on start and then every interval
func NewReindexWorker(interval time.Duration, reindexer Reindexer, logger *zap.Logger) *ReindexWorker {
	return &ReindexWorker{
		interval:  interval,
		reindexer: reindexer,
		logger:    logger,
	}
}

// Start launches the loop in the background
func (w *ReindexWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("reindex worker already running")
	}
	if w.interval <= 0 {
		return fmt.Errorf("reindex interval must be positive, got %s", w.interval)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	go w.loop(ctx, w.done)

	w.logger.Info("ReindexWorker started", zap.Duration("interval", w.interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return
func (w *ReindexWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("ReindexWorker stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("failures", stats.Failures))
	return nil
}

// Name returns the worker name for identification
func (w *ReindexWorker) Name() string {
	return "ReindexWorker"
}

// Stats returns a snapshot of the worker counters
func (w *ReindexWorker) Stats() ReindexStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *ReindexWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReindexWorker) runOnce(ctx context.Context) {
	n, err := w.reindexer.Reindex(ctx)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRun = time.Now()
	w.stats.LastError = err
	if err != nil {
		w.stats.Failures++
	} else {
		w.stats.Indexed = n
	}
	w.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("Failed to reindex ledger", zap.Error(err))
		return
	}
	w.logger.Debug("Ledger reindexed", zap.Int("rows", n))
}
