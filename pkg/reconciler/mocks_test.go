package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/ustahub/chatsync/pkg/syncerrors"
	"github.com/ustahub/chatsync/pkg/user"
)

// MockSourceStore is a mock implementation of SourceStore
type MockSourceStore struct {
	CountActiveFunc            func(ctx context.Context) (int64, error)
	ListActiveUpdatedSinceFunc func(ctx context.Context, since time.Time, limit, offset int) ([]*user.SourceUser, error)
	ListActiveFunc             func(ctx context.Context, limit, offset int) ([]*user.SourceUser, error)
}

func (m *MockSourceStore) CountActive(ctx context.Context) (int64, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx)
	}
	return 0, nil
}

func (m *MockSourceStore) ListActiveUpdatedSince(ctx context.Context, since time.Time, limit, offset int) ([]*user.SourceUser, error) {
	if m.ListActiveUpdatedSinceFunc != nil {
		return m.ListActiveUpdatedSinceFunc(ctx, since, limit, offset)
	}
	return nil, nil
}

func (m *MockSourceStore) ListActive(ctx context.Context, limit, offset int) ([]*user.SourceUser, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, limit, offset)
	}
	return nil, nil
}

// MockChatStore is a mock implementation of ChatStore recording upserts.
type MockChatStore struct {
	UpsertFunc func(ctx context.Context, cu *user.ChatUser) error

	mu      sync.Mutex
	upserts []*user.ChatUser
}

func (m *MockChatStore) Upsert(ctx context.Context, cu *user.ChatUser) error {
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, cu); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, cu)
	return nil
}

// Upserts returns a copy of the recorded upserts.
func (m *MockChatStore) Upserts() []*user.ChatUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*user.ChatUser, len(m.upserts))
	copy(out, m.upserts)
	return out
}

// Latest returns the last upsert recorded for the external id, or nil.
func (m *MockChatStore) Latest(externalID string) *user.ChatUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.upserts) - 1; i >= 0; i-- {
		if m.upserts[i].ExternalID == externalID {
			return m.upserts[i]
		}
	}
	return nil
}

// MockSink records classified errors.
type MockSink struct {
	mu     sync.Mutex
	errors []*syncerrors.SyncError
}

func (m *MockSink) RecordError(_ context.Context, serr *syncerrors.SyncError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, serr)
}

func (m *MockSink) Errors() []*syncerrors.SyncError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*syncerrors.SyncError, len(m.errors))
	copy(out, m.errors)
	return out
}
