// Package sourcestore reads eligible user records from the marketplace
// database. Every query runs through the shared retry runner.
package sourcestore

import (
	"context"
	"time"

	"github.com/ustahub/chatsync/pkg/user"
)

// Store is the read-only capability the engine needs from the source store.
// Eligible means status active with a non-null id.
type Store interface {
	// CountActive counts eligible records.
	CountActive(ctx context.Context) (int64, error)
	// ListActiveUpdatedSince pages eligible records changed after the lower
	// bound, most recently updated first.
	ListActiveUpdatedSince(ctx context.Context, since time.Time, limit, offset int) ([]*user.SourceUser, error)
	// ListActive pages all eligible records ordered by id, for the full
	// population pass.
	ListActive(ctx context.Context, limit, offset int) ([]*user.SourceUser, error)
	// GetByID fetches one record regardless of status, or ErrUserNotFound.
	GetByID(ctx context.Context, id string) (*user.SourceUser, error)
}
