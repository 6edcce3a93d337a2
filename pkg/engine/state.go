package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ustahub/chatsync/internal/metrics"
)

// State holds the in-memory sync counters for the lifetime of the process.
// Counters are advisory: they feed the health evaluation and the status
// endpoint, never sync decisions.
type State struct {
	totalSynced         atomic.Int64
	totalErrors         atomic.Int64
	consecutiveFailures atomic.Int32

	mu           sync.RWMutex
	startedAt    time.Time
	lastSuccess  time.Time
	lastDuration time.Duration
}

// NewState creates a State anchored at the current time.
func NewState() *State {
	return &State{startedAt: time.Now()}
}

// MarkSynced adds n to the total synced counter.
func (s *State) MarkSynced(n int) {
	s.totalSynced.Add(int64(n))
}

// MarkError increments the total error counter.
func (s *State) MarkError() {
	s.totalErrors.Add(1)
}

// RecordPassSuccess resets the consecutive failure counter and stamps the
// last successful pass.
func (s *State) RecordPassSuccess(duration time.Duration) {
	s.consecutiveFailures.Store(0)
	metrics.ConsecutiveFailures.Set(0)

	s.mu.Lock()
	s.lastSuccess = time.Now()
	s.lastDuration = duration
	s.mu.Unlock()
	metrics.LastSuccessfulSync.Set(float64(time.Now().Unix()))
}

// RecordPassFailure increments the consecutive failure counter.
func (s *State) RecordPassFailure() {
	n := s.consecutiveFailures.Add(1)
	metrics.ConsecutiveFailures.Set(float64(n))
}

// ConsecutiveFailures returns the current consecutive failed pass count.
func (s *State) ConsecutiveFailures() int {
	return int(s.consecutiveFailures.Load())
}

// LastSuccess returns the time of the last successful pass; zero if none yet.
func (s *State) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}

// Snapshot is a point-in-time copy of the engine state for the status
// endpoint.
type Snapshot struct {
	TotalSynced         int64      `json:"total_synced"`
	TotalErrors         int64      `json:"total_errors"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessfulSync  *time.Time `json:"last_successful_sync,omitempty"`
	LastSyncDuration    string     `json:"last_sync_duration,omitempty"`
	BatchPassRunning    bool       `json:"batch_pass_running"`
	ListenerState       string     `json:"listener_state"`
	ReconnectAttempts   int        `json:"reconnect_attempts"`
	UptimeSeconds       int64      `json:"uptime_seconds"`
}

func (s *State) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		TotalSynced:         s.totalSynced.Load(),
		TotalErrors:         s.totalErrors.Load(),
		ConsecutiveFailures: int(s.consecutiveFailures.Load()),
		UptimeSeconds:       int64(time.Since(s.startedAt).Seconds()),
	}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		snap.LastSuccessfulSync = &t
		snap.LastSyncDuration = s.lastDuration.String()
	}
	return snap
}
