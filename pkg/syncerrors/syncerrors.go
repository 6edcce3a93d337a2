// Package syncerrors contains helper types to classify sync failures before
// they are persisted to the sync_errors audit table.
package syncerrors

import "errors"

// Type tags a failure with the component and stage that produced it.
type Type string

const (
	// TypeUserSync is a per-record transform or write failure.
	TypeUserSync Type = "user_sync_failed"
	// TypeBatch is a pass-level batch failure (count or pagination query).
	TypeBatch Type = "batch_sync_failed"
	// TypeRealtimeStart is a failure while starting the change feed listener.
	TypeRealtimeStart Type = "realtime_start_failed"
	// TypeDecode is a change notification that could not be decoded.
	TypeDecode Type = "notification_decode_failed"
	// TypeReconnect is raised when reconnection attempts are exhausted.
	TypeReconnect Type = "reconnect_exhausted"
	// TypePool is an unexpected connection pool failure.
	TypePool Type = "pool_error"
	// TypeVerify is a failure of the count comparison queries.
	TypeVerify Type = "verify_failed"
	// TypeFatal is an uncaught failure escaping all other boundaries.
	TypeFatal Type = "uncaught_fatal"
)

// SyncError carries a classified failure plus structured triage context.
type SyncError struct {
	Type    Type
	UserID  string
	Err     error
	Context map[string]any
}

// New wraps err with a classification tag.
func New(t Type, err error) *SyncError {
	return &SyncError{Type: t, Err: err}
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Err != nil {
		return string(e.Type) + ": " + e.Err.Error()
	}
	return string(e.Type)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// WithUser attaches the affected source user id.
func (e *SyncError) WithUser(id string) *SyncError {
	e.UserID = id
	return e
}

// WithContext attaches one structured context value for postmortem triage.
func (e *SyncError) WithContext(key string, value any) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Classify returns err as a *SyncError, wrapping it with the fallback type
// when it is not classified yet.
func Classify(err error, fallback Type) *SyncError {
	var serr *SyncError
	if errors.As(err, &serr) {
		return serr
	}
	return New(fallback, err)
}
