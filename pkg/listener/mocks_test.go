package listener

import (
	"context"
	"sync"

	"github.com/ustahub/chatsync/pkg/chatstore"
	"github.com/ustahub/chatsync/pkg/syncerrors"
	"github.com/ustahub/chatsync/pkg/user"
)

// MockChatStore is a mock implementation of chatstore.Store recording
// upserts and deletes.
type MockChatStore struct {
	UpsertFunc func(ctx context.Context, cu *user.ChatUser) error
	DeleteFunc func(ctx context.Context, externalID string) error

	mu      sync.Mutex
	upserts []*user.ChatUser
	deletes []string
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

func (m *MockChatStore) Delete(ctx context.Context, externalID string) error {
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, externalID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, externalID)
	return nil
}

func (m *MockChatStore) GetByExternalID(_ context.Context, _ string) (*user.ChatUser, error) {
	return nil, chatstore.ErrChatUserNotFound
}

func (m *MockChatStore) Count(_ context.Context) (int64, error) { return 0, nil }

func (m *MockChatStore) InsertSyncError(_ context.Context, _ *chatstore.SyncErrorEntry) error {
	return nil
}

func (m *MockChatStore) Upserts() []*user.ChatUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*user.ChatUser, len(m.upserts))
	copy(out, m.upserts)
	return out
}

func (m *MockChatStore) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deletes))
	copy(out, m.deletes)
	return out
}

// MockSink records classified errors and synced counts.
type MockSink struct {
	mu     sync.Mutex
	errors []*syncerrors.SyncError
	synced int
}

func (m *MockSink) RecordError(_ context.Context, serr *syncerrors.SyncError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, serr)
}

func (m *MockSink) MarkSynced(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced += n
}

func (m *MockSink) Errors() []*syncerrors.SyncError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*syncerrors.SyncError, len(m.errors))
	copy(out, m.errors)
	return out
}

func (m *MockSink) Synced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced
}
