package chatstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/ustahub/chatsync/pkg/retry"
	"github.com/ustahub/chatsync/pkg/user"
)

var ErrChatUserNotFound = errors.New("chat user not found")

type pgStore struct {
	db    *bun.DB
	retry *retry.Runner
}

// NewStore creates the postgres implementation of the chat store.
func NewStore(db *bun.DB, runner *retry.Runner) *pgStore {
	return &pgStore{db: db, retry: runner}
}

func (s *pgStore) Upsert(ctx context.Context, cu *user.ChatUser) error {
	dao := toChatUserDao(cu)

	err := s.retry.Do(ctx, func() error {
		// Only engine-owned columns appear in the update set; presence
		// columns stay with the chat runtime.
		_, err := s.db.NewInsert().
			Model(dao).
			On("CONFLICT (external_id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("first_name = EXCLUDED.first_name").
			Set("last_name = EXCLUDED.last_name").
			Set("phone = EXCLUDED.phone").
			Set("email = EXCLUDED.email").
			Set("role = EXCLUDED.role").
			Set("avatar = EXCLUDED.avatar").
			Set("metadata = EXCLUDED.metadata").
			Set("created_at = EXCLUDED.created_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chat user %s: %w", cu.ExternalID, err)
	}
	return nil
}

func (s *pgStore) Delete(ctx context.Context, externalID string) error {
	err := s.retry.Do(ctx, func() error {
		// Zero rows affected means the stores already agree.
		_, err := s.db.NewDelete().
			Model((*ChatUserDao)(nil)).
			Where("external_id = ?", externalID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete chat user %s: %w", externalID, err)
	}
	return nil
}

func (s *pgStore) GetByExternalID(ctx context.Context, externalID string) (*user.ChatUser, error) {
	dao := new(ChatUserDao)
	err := s.retry.Do(ctx, func() error {
		err := s.db.NewSelect().Model(dao).Where("external_id = ?", externalID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return retry.Permanent(ErrChatUserNotFound)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrChatUserNotFound) {
			return nil, ErrChatUserNotFound
		}
		return nil, fmt.Errorf("failed to get chat user %s: %w", externalID, err)
	}
	return toChatUser(dao), nil
}

func (s *pgStore) Count(ctx context.Context) (int64, error) {
	var count int
	err := s.retry.Do(ctx, func() error {
		var err error
		count, err = s.db.NewSelect().Model((*ChatUserDao)(nil)).Count(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count chat users: %w", err)
	}
	return int64(count), nil
}

// InsertSyncError appends an audit row. Callers treat failures here as
// best-effort: they log and move on, never re-queue.
func (s *pgStore) InsertSyncError(ctx context.Context, entry *SyncErrorEntry) error {
	dao := &SyncErrorDao{
		ErrorType:  entry.Type,
		Message:    entry.Message,
		Stack:      entry.Stack,
		Context:    entry.Context,
		RetryCount: entry.RetryCount,
	}
	if entry.UserID != "" {
		userID := entry.UserID
		dao.UserID = &userID
	}

	err := s.retry.Do(ctx, func() error {
		_, err := s.db.NewInsert().Model(dao).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert sync error: %w", err)
	}
	return nil
}

// CreateSchema creates the chat-side tables for tests; production schemas
// come from the migrate binary.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{(*ChatUserDao)(nil), (*SyncErrorDao)(nil)}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
