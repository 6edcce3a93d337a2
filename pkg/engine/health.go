package engine

import (
	"fmt"
	"time"

	"github.com/ustahub/chatsync/pkg/listener"
)

// Signal is one health check with a remediation hint when failing.
type Signal struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
	Hint   string `json:"hint,omitempty"`
}

// Evaluation is the aggregate health verdict: healthy iff every signal is.
type Evaluation struct {
	Healthy bool     `json:"healthy"`
	Signals []Signal `json:"signals"`
}

// Health evaluates the three health signals: consecutive pass failures, the
// age of the last successful pass, and the change feed state.
func (e *Engine) Health() Evaluation {
	maxFailures := e.cfg.Health.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	maxAge := e.cfg.Health.MaxSyncAge
	if maxAge <= 0 {
		maxAge = 3 * e.cfg.Sync.Interval
	}

	signals := []Signal{
		e.failureSignal(maxFailures),
		e.syncAgeSignal(maxAge),
	}
	if e.feed != nil {
		signals = append(signals, e.listenerSignal())
	}

	eval := Evaluation{Healthy: true, Signals: signals}
	for _, s := range signals {
		if !s.OK {
			eval.Healthy = false
			break
		}
	}
	return eval
}

func (e *Engine) failureSignal(maxFailures int) Signal {
	failures := e.state.ConsecutiveFailures()
	s := Signal{
		Name:   "consecutive_failures",
		OK:     failures < maxFailures,
		Detail: fmt.Sprintf("%d consecutive failed passes (threshold %d)", failures, maxFailures),
	}
	if !s.OK {
		s.Hint = "check source/chat database connectivity and the sync_errors table for the failing query"
	}
	return s
}

func (e *Engine) syncAgeSignal(maxAge time.Duration) Signal {
	last := e.state.LastSuccess()
	if last.IsZero() {
		return Signal{
			Name:   "last_successful_sync",
			OK:     false,
			Detail: "no successful pass since startup",
			Hint:   "verify the initial full pass completed; see startup logs",
		}
	}
	age := time.Since(last)
	s := Signal{
		Name:   "last_successful_sync",
		OK:     age < maxAge,
		Detail: fmt.Sprintf("last success %s ago (threshold %s)", age.Round(time.Second), maxAge),
	}
	if !s.OK {
		s.Hint = "passes are failing or being skipped; check consecutive_failures and pass duration warnings"
	}
	return s
}

func (e *Engine) listenerSignal() Signal {
	state := e.feed.State()
	s := Signal{
		Name:   "change_feed",
		OK:     state == listener.StateListening,
		Detail: fmt.Sprintf("listener state %s", state),
	}
	if !s.OK {
		switch state {
		case listener.StateGivenUp:
			s.Hint = "reconnect attempts exhausted; restart the service to resume the real-time path"
		default:
			s.Hint = fmt.Sprintf("listener reconnecting (attempt %d); batch passes cover the gap", e.feed.ReconnectAttempts())
		}
	}
	return s
}
