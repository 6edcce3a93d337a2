// Package reconciler implements the batch catch-up path: paginated rescans
// of the source store replayed through transform + upsert. It self-heals
// anything the real-time path missed.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ustahub/chatsync/internal/metrics"
	"github.com/ustahub/chatsync/pkg/syncerrors"
	"github.com/ustahub/chatsync/pkg/transform"
	"github.com/ustahub/chatsync/pkg/user"
)

// SourceStore provides the paginated reads the reconciler needs.
type SourceStore interface {
	CountActive(ctx context.Context) (int64, error)
	ListActiveUpdatedSince(ctx context.Context, since time.Time, limit, offset int) ([]*user.SourceUser, error)
	ListActive(ctx context.Context, limit, offset int) ([]*user.SourceUser, error)
}

// ChatStore provides the idempotent upsert the reconciler replays into.
type ChatStore interface {
	Upsert(ctx context.Context, cu *user.ChatUser) error
}

// Sink receives per-record failures that must not abort the pass.
type Sink interface {
	RecordError(ctx context.Context, serr *syncerrors.SyncError)
}

// Result summarizes one completed pass. A pass with Failed > 0 still
// completed; only pass-level query failures abort it.
type Result struct {
	Synced   int
	Failed   int
	Duration time.Duration
}

// Reconciler replays eligible source records through the upsert path.
type Reconciler struct {
	source   SourceStore
	chat     ChatStore
	sink     Sink
	logger   *zap.Logger
	pageSize int
}

const defaultPageSize = 100

// New creates a Reconciler.
func New(source SourceStore, chat ChatStore, sink Sink, logger *zap.Logger, pageSize int) *Reconciler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Reconciler{
		source:   source,
		chat:     chat,
		sink:     sink,
		logger:   logger,
		pageSize: pageSize,
	}
}

// SetSink installs the error sink. The sink usually wraps the reconciler's
// own caller, so it is wired after construction.
func (r *Reconciler) SetSink(sink Sink) {
	r.sink = sink
}

// SyncSince replays every eligible record updated after the lower bound,
// most recently updated first. Re-upserting records the real-time path
// already handled is harmless; upserts are idempotent.
func (r *Reconciler) SyncSince(ctx context.Context, since time.Time) (*Result, error) {
	r.logger.Info("Starting windowed sync pass", zap.Time("since", since))
	start := time.Now()

	res := &Result{}
	offset := 0
	for {
		page, err := r.source.ListActiveUpdatedSince(ctx, since, r.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to page users updated since %s (offset %d): %w",
				since.Format(time.RFC3339), offset, err)
		}

		r.syncPage(ctx, page, offset, res, "batch")

		if len(page) < r.pageSize {
			break
		}
		offset += r.pageSize
	}

	res.Duration = time.Since(start)
	metrics.BatchPassDuration.Observe(res.Duration.Seconds())
	r.logger.Info("Windowed sync pass completed",
		zap.Int("synced", res.Synced),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// SyncAll replays every eligible record ordered by id, for initial
// population and disaster recovery. No time filter, no timeout.
func (r *Reconciler) SyncAll(ctx context.Context) (*Result, error) {
	r.logger.Info("Starting full sync pass")
	start := time.Now()

	total, err := r.source.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count eligible users: %w", err)
	}
	r.logger.Info("Full sync scope", zap.Int64("eligible_users", total))

	res := &Result{}
	offset := 0
	for {
		page, err := r.source.ListActive(ctx, r.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to page active users (offset %d): %w", offset, err)
		}

		r.syncPage(ctx, page, offset, res, "full")

		if len(page) < r.pageSize {
			break
		}
		offset += r.pageSize
	}

	res.Duration = time.Since(start)
	r.logger.Info("Full sync pass completed",
		zap.Int("synced", res.Synced),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// syncPage replays one page. Per-record failures are recorded and skipped;
// one bad record must not abort the pass.
func (r *Reconciler) syncPage(ctx context.Context, page []*user.SourceUser, offset int, res *Result, path string) {
	for _, src := range page {
		if err := r.syncOne(ctx, src); err != nil {
			res.Failed++
			serr := syncerrors.Classify(err, syncerrors.TypeUserSync).
				WithUser(src.ID).
				WithContext("offset", offset).
				WithContext("name", src.FirstName+" "+src.LastName)
			if src.Email != nil {
				serr = serr.WithContext("email", *src.Email)
			}
			r.sink.RecordError(ctx, serr)
			continue
		}
		res.Synced++
		metrics.UsersSynced.WithLabelValues(path).Inc()
	}
}

func (r *Reconciler) syncOne(ctx context.Context, src *user.SourceUser) error {
	cu, err := transform.Transform(src)
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}
	if err := r.chat.Upsert(ctx, cu); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}
