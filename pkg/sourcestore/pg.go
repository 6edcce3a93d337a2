package sourcestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ustahub/chatsync/pkg/retry"
	"github.com/ustahub/chatsync/pkg/user"
)

var ErrUserNotFound = errors.New("source user not found")

type pgStore struct {
	db    *bun.DB
	retry *retry.Runner
}

// NewStore creates the postgres implementation of the source store.
func NewStore(db *bun.DB, runner *retry.Runner) *pgStore {
	return &pgStore{db: db, retry: runner}
}

func (s *pgStore) CountActive(ctx context.Context) (int64, error) {
	var count int
	err := s.retry.Do(ctx, func() error {
		var err error
		count, err = s.db.NewSelect().
			Model((*SourceUserDao)(nil)).
			Where("status = ?", user.StatusActive).
			Where("id IS NOT NULL").
			Count(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return int64(count), nil
}

func (s *pgStore) ListActiveUpdatedSince(ctx context.Context, since time.Time, limit, offset int) ([]*user.SourceUser, error) {
	var daos []SourceUserDao
	err := s.retry.Do(ctx, func() error {
		daos = daos[:0]
		return s.db.NewSelect().
			Model(&daos).
			Where("status = ?", user.StatusActive).
			Where("id IS NOT NULL").
			Where("updated_at >= ?", since).
			OrderExpr("updated_at DESC").
			Limit(limit).
			Offset(offset).
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users updated since %s: %w", since.Format(time.RFC3339), err)
	}
	return toSourceUsers(daos), nil
}

func (s *pgStore) ListActive(ctx context.Context, limit, offset int) ([]*user.SourceUser, error) {
	var daos []SourceUserDao
	err := s.retry.Do(ctx, func() error {
		daos = daos[:0]
		return s.db.NewSelect().
			Model(&daos).
			Where("status = ?", user.StatusActive).
			Where("id IS NOT NULL").
			OrderExpr("id ASC").
			Limit(limit).
			Offset(offset).
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return toSourceUsers(daos), nil
}

func (s *pgStore) GetByID(ctx context.Context, id string) (*user.SourceUser, error) {
	dao := new(SourceUserDao)
	err := s.retry.Do(ctx, func() error {
		err := s.db.NewSelect().Model(dao).Where("id = ?", id).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// Absence is a definitive answer, not a transient failure.
			return retry.Permanent(ErrUserNotFound)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return toSourceUser(dao), nil
}

func toSourceUsers(daos []SourceUserDao) []*user.SourceUser {
	users := make([]*user.SourceUser, len(daos))
	for i := range daos {
		users[i] = toSourceUser(&daos[i])
	}
	return users
}
