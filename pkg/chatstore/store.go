// Package chatstore writes the engine-owned user projection and the sync
// error audit log to the chat database.
package chatstore

import (
	"context"

	"github.com/ustahub/chatsync/pkg/user"
)

// SyncErrorEntry is one append-only audit row describing an exhausted sync
// failure.
type SyncErrorEntry struct {
	Type       string
	UserID     string
	Message    string
	Stack      string
	Context    map[string]any
	RetryCount int
}

// Store is the write capability the engine needs from the chat store.
type Store interface {
	// Upsert inserts or updates the projection keyed on external id. It is
	// idempotent and never duplicates rows.
	Upsert(ctx context.Context, cu *user.ChatUser) error
	// Delete removes the projection for the external id. A missing row is
	// already-consistent state, not an error.
	Delete(ctx context.Context, externalID string) error
	// GetByExternalID fetches one projection, or ErrChatUserNotFound.
	GetByExternalID(ctx context.Context, externalID string) (*user.ChatUser, error)
	// Count counts synced projections.
	Count(ctx context.Context) (int64, error)
	// InsertSyncError appends an audit row.
	InsertSyncError(ctx context.Context, entry *SyncErrorEntry) error
}
