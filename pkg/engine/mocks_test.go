package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ustahub/chatsync/pkg/chatstore"
	"github.com/ustahub/chatsync/pkg/listener"
	"github.com/ustahub/chatsync/pkg/reconciler"
)

// MockSourceStore is a mock implementation of SourceStore
type MockSourceStore struct {
	CountActiveFunc func(ctx context.Context) (int64, error)
}

func (m *MockSourceStore) CountActive(ctx context.Context) (int64, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx)
	}
	return 0, nil
}

// MockChatStore is a mock implementation of ChatStore recording persisted
// sync errors.
type MockChatStore struct {
	CountFunc           func(ctx context.Context) (int64, error)
	InsertSyncErrorFunc func(ctx context.Context, entry *chatstore.SyncErrorEntry) error

	mu      sync.Mutex
	entries []*chatstore.SyncErrorEntry
}

func (m *MockChatStore) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockChatStore) InsertSyncError(ctx context.Context, entry *chatstore.SyncErrorEntry) error {
	if m.InsertSyncErrorFunc != nil {
		if err := m.InsertSyncErrorFunc(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockChatStore) Entries() []*chatstore.SyncErrorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*chatstore.SyncErrorEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// MockReconciler is a mock implementation of Reconciler counting pass
// invocations.
type MockReconciler struct {
	SyncSinceFunc func(ctx context.Context, since time.Time) (*reconciler.Result, error)
	SyncAllFunc   func(ctx context.Context) (*reconciler.Result, error)

	mu         sync.Mutex
	sinceCalls int
	allCalls   int
}

func (m *MockReconciler) SyncSince(ctx context.Context, since time.Time) (*reconciler.Result, error) {
	m.mu.Lock()
	m.sinceCalls++
	m.mu.Unlock()
	if m.SyncSinceFunc != nil {
		return m.SyncSinceFunc(ctx, since)
	}
	return &reconciler.Result{}, nil
}

func (m *MockReconciler) SyncAll(ctx context.Context) (*reconciler.Result, error) {
	m.mu.Lock()
	m.allCalls++
	m.mu.Unlock()
	if m.SyncAllFunc != nil {
		return m.SyncAllFunc(ctx)
	}
	return &reconciler.Result{}, nil
}

func (m *MockReconciler) SinceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinceCalls
}

// MockFeed is a mock implementation of ChangeFeed
type MockFeed struct {
	StartFunc func(ctx context.Context) error
	StateFunc func() listener.State

	mu      sync.Mutex
	stopped bool
}

func (m *MockFeed) Start(ctx context.Context) error {
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return nil
}

func (m *MockFeed) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *MockFeed) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *MockFeed) State() listener.State {
	if m.StateFunc != nil {
		return m.StateFunc()
	}
	return listener.StateListening
}

func (m *MockFeed) ReconnectAttempts() int { return 0 }
