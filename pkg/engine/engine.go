// Package engine coordinates the two sync paths: it schedules batch passes,
// owns the change feed lifecycle, persists classified errors and answers
// health and status queries.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ustahub/chatsync/internal/metrics"
	"github.com/ustahub/chatsync/pkg/chatstore"
	"github.com/ustahub/chatsync/pkg/config"
	"github.com/ustahub/chatsync/pkg/listener"
	"github.com/ustahub/chatsync/pkg/reconciler"
	"github.com/ustahub/chatsync/pkg/syncerrors"
)

// SourceStore is the slice of the source gateway the coordinator needs.
type SourceStore interface {
	CountActive(ctx context.Context) (int64, error)
}

// ChatStore is the slice of the chat gateway the coordinator needs.
type ChatStore interface {
	Count(ctx context.Context) (int64, error)
	InsertSyncError(ctx context.Context, entry *chatstore.SyncErrorEntry) error
}

// Reconciler runs batch passes.
type Reconciler interface {
	SyncSince(ctx context.Context, since time.Time) (*reconciler.Result, error)
	SyncAll(ctx context.Context) (*reconciler.Result, error)
}

// ChangeFeed is the real-time path lifecycle.
type ChangeFeed interface {
	Start(ctx context.Context) error
	Stop()
	State() listener.State
	ReconnectAttempts() int
}

// Engine is the sync coordinator.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger
	source SourceStore
	chat   ChatStore
	recon  Reconciler
	feed   ChangeFeed // nil when the real-time path is not wired
	state  *State

	passRunning atomic.Bool
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	fatalCh     chan error

	closers []func() error
}

// New creates an Engine. feed may be nil for batch-only invocations.
func New(cfg *config.Config, source SourceStore, chat ChatStore, recon Reconciler, feed ChangeFeed, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		chat:    chat,
		recon:   recon,
		feed:    feed,
		state:   NewState(),
		stopCh:  make(chan struct{}),
		fatalCh: make(chan error, 1),
	}
}

// Snapshot returns a point-in-time view of the engine state.
func (e *Engine) Snapshot() Snapshot {
	snap := e.state.snapshot()
	snap.BatchPassRunning = e.passRunning.Load()
	if e.feed != nil {
		snap.ListenerState = e.feed.State().String()
		snap.ReconnectAttempts = e.feed.ReconnectAttempts()
	} else {
		snap.ListenerState = listener.StateDisconnected.String()
	}
	return snap
}

// MarkSynced implements the listener sink: it advances the synced counter
// for events handled by the real-time path.
func (e *Engine) MarkSynced(n int) {
	e.state.MarkSynced(n)
}

// RecordError classifies, counts, logs and best-effort persists a sync
// error. Persistence failures are logged and dropped; an unreachable error
// table must never wedge the sync paths.
func (e *Engine) RecordError(ctx context.Context, serr *syncerrors.SyncError) {
	e.state.MarkError()
	metrics.SyncErrors.WithLabelValues(string(serr.Type)).Inc()
	e.logger.Error("Sync error recorded",
		zap.String("error_type", string(serr.Type)),
		zap.String("user_id", serr.UserID),
		zap.Error(serr.Err))

	entry := &chatstore.SyncErrorEntry{
		Type:    string(serr.Type),
		UserID:  serr.UserID,
		Message: serr.Error(),
		Stack:   string(debug.Stack()),
		Context: serr.Context,
	}
	if err := e.chat.InsertSyncError(ctx, entry); err != nil {
		e.logger.Warn("Failed to persist sync error; dropping",
			zap.String("error_type", string(serr.Type)),
			zap.Error(err))
	}
}

// TryBeginPass acquires the batch mutual exclusion flag. A due pass that
// finds it held is skipped, not queued.
func (e *Engine) TryBeginPass() bool {
	return e.passRunning.CompareAndSwap(false, true)
}

func (e *Engine) endPass() {
	e.passRunning.Store(false)
}

// RunFull runs one full population pass under the pass lock.
func (e *Engine) RunFull(ctx context.Context) (*reconciler.Result, error) {
	if !e.TryBeginPass() {
		return nil, fmt.Errorf("a batch pass is already running")
	}
	defer e.endPass()

	res, err := e.recon.SyncAll(ctx)
	e.finishPass(ctx, res, err)
	return res, err
}

// RunCatchup runs one windowed pass under the pass lock, covering the
// trailing interval * lookback_multiplier window.
func (e *Engine) RunCatchup(ctx context.Context) (*reconciler.Result, error) {
	if !e.TryBeginPass() {
		return nil, fmt.Errorf("a batch pass is already running")
	}
	defer e.endPass()

	res, err := e.recon.SyncSince(ctx, e.windowStart())
	e.finishPass(ctx, res, err)
	return res, err
}

func (e *Engine) windowStart() time.Time {
	lookback := time.Duration(e.cfg.Sync.LookbackMultiplier) * e.cfg.Sync.Interval
	return time.Now().Add(-lookback)
}

// finishPass updates counters after a pass. A pass that completed with some
// per-record failures still counts as a success; only pass-level failures
// advance the consecutive failure counter.
func (e *Engine) finishPass(ctx context.Context, res *reconciler.Result, err error) {
	if err != nil {
		e.state.RecordPassFailure()
		e.RecordError(ctx, syncerrors.Classify(err, syncerrors.TypeBatch).
			WithContext("consecutive_failures", e.state.ConsecutiveFailures()))
		return
	}
	e.state.MarkSynced(res.Synced)
	e.state.RecordPassSuccess(res.Duration)

	if budget := e.cfg.Sync.Interval; budget > 0 && res.Duration > budget*8/10 {
		e.logger.Warn("Batch pass consumed most of the scheduling interval",
			zap.Duration("duration", res.Duration),
			zap.Duration("interval", budget))
	}
}

// scheduledPass is the ticker-driven pass. Panics are caught here, recorded
// as fatal and turned into a graceful shutdown request.
func (e *Engine) scheduledPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in batch pass: %v", r)
			e.RecordError(ctx, syncerrors.New(syncerrors.TypeFatal, err))
			select {
			case e.fatalCh <- err:
			default:
			}
		}
	}()

	if !e.TryBeginPass() {
		metrics.BatchPassesSkipped.Inc()
		e.logger.Warn("Skipping scheduled batch pass; previous pass still running")
		return
	}
	defer e.endPass()

	res, err := e.recon.SyncSince(ctx, e.windowStart())
	e.finishPass(ctx, res, err)
}

// Run executes the full engine lifecycle: one full pass, then the change
// feed, then the scheduled loop. It blocks until the context is cancelled or
// a fatal error escapes a pass, then shuts down and returns.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting sync engine",
		zap.Duration("interval", e.cfg.Sync.Interval),
		zap.Int("lookback_multiplier", e.cfg.Sync.LookbackMultiplier))

	// A failing initial pass is a pass-level failure like any other: it is
	// already recorded and counted, and the scheduled loop retries fresh.
	// Only uncaught failures take the shutdown path.
	if _, err := e.RunFull(ctx); err != nil {
		e.logger.Error("Initial full pass failed; scheduled passes will retry", zap.Error(err))
	}

	if e.feed != nil {
		if err := e.feed.Start(ctx); err != nil {
			e.RecordError(ctx, syncerrors.New(syncerrors.TypeRealtimeStart, err))
			e.Shutdown()
			return fmt.Errorf("failed to start change feed: %w", err)
		}
	}

	e.wg.Add(1)
	go e.scheduleLoop(ctx)

	var fatal error
	select {
	case <-ctx.Done():
	case fatal = <-e.fatalCh:
		e.logger.Error("Fatal error escaped a batch pass; shutting down", zap.Error(fatal))
	}

	e.Shutdown()
	return fatal
}

// RunRealtime starts only the change feed and blocks until the context is
// cancelled. Batch passes are left to a separately scheduled process.
func (e *Engine) RunRealtime(ctx context.Context) error {
	if e.feed == nil {
		return fmt.Errorf("change feed is not configured")
	}
	if err := e.feed.Start(ctx); err != nil {
		e.RecordError(ctx, syncerrors.New(syncerrors.TypeRealtimeStart, err))
		e.Shutdown()
		return fmt.Errorf("failed to start change feed: %w", err)
	}
	e.logger.Info("Running in realtime-only mode")

	<-ctx.Done()
	e.Shutdown()
	return nil
}

func (e *Engine) scheduleLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.scheduledPass(ctx)
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops scheduling, waits (bounded by the shutdown timeout) for an
// in-flight pass, stops the change feed and closes the pools.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopCh)

		timeout := e.cfg.Shutdown.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			e.logger.Warn("Shutdown timeout elapsed with a batch pass still in flight",
				zap.Duration("timeout", timeout))
		}

		if e.feed != nil {
			e.feed.Stop()
		}
		for _, closeFn := range e.closers {
			if err := closeFn(); err != nil {
				e.logger.Warn("Failed to close resource on shutdown", zap.Error(err))
			}
		}

		snap := e.Snapshot()
		e.logger.Info("Sync engine stopped",
			zap.Int64("total_synced", snap.TotalSynced),
			zap.Int64("total_errors", snap.TotalErrors),
			zap.Int64("uptime_seconds", snap.UptimeSeconds))
	})
}
