// Package listener implements the real-time path: a LISTEN/NOTIFY
// subscription on the source database, decoded into change events and
// replayed through the transform + upsert pipeline.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/ustahub/chatsync/internal/metrics"
	"github.com/ustahub/chatsync/pkg/chatstore"
	"github.com/ustahub/chatsync/pkg/syncerrors"
	"github.com/ustahub/chatsync/pkg/transform"
	"github.com/ustahub/chatsync/pkg/user"
)

// State is the connection state of the change feed listener.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateListening
	StateReconnecting
	// StateGivenUp is terminal: reconnection attempts are exhausted and the
	// real-time path stays down until process restart.
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateReconnecting:
		return "reconnecting"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// Event is one decoded change notification from the source database.
type Event struct {
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

// deletePayload is the data shape of DELETE notifications.
type deletePayload struct {
	ID string `json:"id"`
}

// Sink receives the outcome of processed change events.
type Sink interface {
	RecordError(ctx context.Context, serr *syncerrors.SyncError)
	MarkSynced(n int)
}

// Config holds listener settings.
type Config struct {
	Channel              string
	MaxReconnectAttempts int
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
}

// Listener owns the dedicated long-lived subscription connection. Regular
// queries keep going through the pooled gateway; only the LISTEN connection
// lives here.
type Listener struct {
	dsn      string
	cfg      Config
	sourceDB *bun.DB
	chat     chatstore.Store
	sink     Sink
	logger   *zap.Logger

	state    atomic.Int32
	attempts atomic.Int32

	pq     *pq.Listener
	events chan *Event
	stopCh chan struct{}
	wg     sync.WaitGroup
}

const (
	eventQueueSize = 256
	pingInterval   = 90 * time.Second
)

// New creates a Listener. sourceDB is used once to provision the
// change-capture trigger; dsn opens the dedicated subscription connection.
func New(dsn string, cfg Config, sourceDB *bun.DB, chat chatstore.Store, sink Sink, logger *zap.Logger) *Listener {
	if cfg.Channel == "" {
		cfg.Channel = "chatsync_user_changes"
	}
	if cfg.MinReconnectInterval <= 0 {
		cfg.MinReconnectInterval = time.Second
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = time.Minute
	}
	return &Listener{
		dsn:      dsn,
		cfg:      cfg,
		sourceDB: sourceDB,
		chat:     chat,
		sink:     sink,
		logger:   logger,
		events:   make(chan *Event, eventQueueSize),
		stopCh:   make(chan struct{}),
	}
}

// State returns the current connection state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// ReconnectAttempts returns the current reconnection attempt counter.
func (l *Listener) ReconnectAttempts() int {
	return int(l.attempts.Load())
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
	metrics.ListenerState.Set(float64(s))
}

// Start provisions the change-capture trigger, opens the subscription and
// launches the receive and processing loops. It returns once listening.
func (l *Listener) Start(ctx context.Context) error {
	l.setState(StateConnecting)

	if err := l.EnsureTrigger(ctx); err != nil {
		l.setState(StateDisconnected)
		return fmt.Errorf("failed to provision change-capture trigger: %w", err)
	}

	l.pq = pq.NewListener(l.dsn, l.cfg.MinReconnectInterval, l.cfg.MaxReconnectInterval, l.onConnEvent)
	if err := l.pq.Listen(l.cfg.Channel); err != nil {
		_ = l.pq.Close()
		l.setState(StateDisconnected)
		return fmt.Errorf("failed to listen on channel %s: %w", l.cfg.Channel, err)
	}

	l.setState(StateListening)
	l.attempts.Store(0)
	l.logger.Info("Change feed listener started", zap.String("channel", l.cfg.Channel))

	l.wg.Add(2)
	go l.receiveLoop(ctx)
	go l.processLoop(ctx)

	return nil
}

// Stop closes the subscription and waits for in-flight event processing.
func (l *Listener) Stop() {
	close(l.stopCh)
	if l.pq != nil {
		_ = l.pq.Close()
	}
	l.wg.Wait()
	if l.State() != StateGivenUp {
		l.setState(StateDisconnected)
	}
	l.logger.Info("Change feed listener stopped")
}

// EnsureTrigger idempotently installs the notify function and row trigger on
// the watched users table. Re-running it is always safe.
func (l *Listener) EnsureTrigger(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE OR REPLACE FUNCTION chatsync_notify_user_change() RETURNS trigger AS $$
DECLARE
	payload JSON;
BEGIN
	IF (TG_OP = 'DELETE') THEN
		payload = json_build_object('operation', TG_OP, 'data', json_build_object('id', OLD.id));
	ELSE
		payload = json_build_object('operation', TG_OP, 'data', row_to_json(NEW));
	END IF;
	PERFORM pg_notify(%s, payload::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`, pq.QuoteLiteral(l.cfg.Channel)),
		`DROP TRIGGER IF EXISTS chatsync_user_changes_trg ON users`,
		`CREATE TRIGGER chatsync_user_changes_trg
AFTER INSERT OR UPDATE OR DELETE ON users
FOR EACH ROW EXECUTE FUNCTION chatsync_notify_user_change()`,
	}

	for _, stmt := range stmts {
		if _, err := l.sourceDB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// onConnEvent tracks the connection state machine from lib/pq's callbacks.
// The library owns the waits between attempts (exponential between the
// configured min and max intervals); this callback owns the attempt budget.
func (l *Listener) onConnEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.attempts.Store(0)
	case pq.ListenerEventReconnected:
		l.setState(StateListening)
		l.attempts.Store(0)
		l.logger.Info("Change feed reconnected", zap.String("channel", l.cfg.Channel))
	case pq.ListenerEventDisconnected:
		if l.State() == StateListening {
			l.setState(StateReconnecting)
		}
		l.logger.Warn("Change feed connection lost", zap.Error(err))
	case pq.ListenerEventConnectionAttemptFailed:
		attempts := l.attempts.Add(1)
		l.logger.Warn("Change feed reconnection attempt failed",
			zap.Int32("attempt", attempts),
			zap.Int("max_attempts", l.cfg.MaxReconnectAttempts),
			zap.Error(err))
		if l.cfg.MaxReconnectAttempts > 0 && int(attempts) >= l.cfg.MaxReconnectAttempts {
			l.giveUp(err)
		}
	}
}

// giveUp transitions to the terminal state after exhausting the reconnect
// budget. The real-time path stays down until restart; the batch reconciler
// keeps the stores converging in the meantime.
func (l *Listener) giveUp(cause error) {
	if l.State() == StateGivenUp {
		return
	}
	l.setState(StateGivenUp)
	l.logger.Error("Change feed reconnection attempts exhausted; giving up until restart",
		zap.Int("max_attempts", l.cfg.MaxReconnectAttempts),
		zap.Error(cause))
	l.sink.RecordError(context.Background(),
		syncerrors.New(syncerrors.TypeReconnect, cause).
			WithContext("channel", l.cfg.Channel).
			WithContext("attempts", l.cfg.MaxReconnectAttempts))
	if l.pq != nil {
		_ = l.pq.Close()
	}
}

// receiveLoop decodes raw notifications onto the internal queue. Decode
// failures are recorded per notification and never tear down the
// subscription.
func (l *Listener) receiveLoop(ctx context.Context) {
	defer l.wg.Done()
	defer close(l.events)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case n, ok := <-l.pq.Notify:
			if !ok {
				return
			}
			if n == nil {
				// lib/pq sends nil after a reconnect; the batch pass
				// covers anything missed during the gap.
				continue
			}
			ev, err := decodeNotification(n.Extra)
			if err != nil {
				l.sink.RecordError(ctx, syncerrors.New(syncerrors.TypeDecode, err).
					WithContext("channel", n.Channel).
					WithContext("payload", truncate(n.Extra, 512)))
				continue
			}
			select {
			case l.events <- ev:
			case <-l.stopCh:
				return
			case <-ctx.Done():
				return
			}
		case <-ping.C:
			if err := l.pq.Ping(); err != nil {
				l.logger.Warn("Change feed ping failed", zap.Error(err))
			}
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processLoop consumes decoded events one at a time so per-channel ordering
// is preserved even though the two sync paths interleave at the store.
func (l *Listener) processLoop(ctx context.Context) {
	defer l.wg.Done()

	for ev := range l.events {
		l.handleEvent(ctx, ev)
	}
}

func (l *Listener) handleEvent(ctx context.Context, ev *Event) {
	switch ev.Operation {
	case "DELETE":
		var payload deletePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			l.sink.RecordError(ctx, syncerrors.New(syncerrors.TypeDecode,
				fmt.Errorf("failed to decode delete event: %w", err)).
				WithContext("operation", ev.Operation))
			return
		}
		if payload.ID == "" {
			l.sink.RecordError(ctx, syncerrors.New(syncerrors.TypeDecode,
				errors.New("delete event without id")).
				WithContext("operation", ev.Operation))
			return
		}
		if err := l.chat.Delete(ctx, payload.ID); err != nil {
			l.sink.RecordError(ctx, syncerrors.Classify(err, syncerrors.TypeUserSync).
				WithUser(payload.ID).
				WithContext("operation", ev.Operation))
			return
		}
		l.logger.Debug("Deleted chat user from change event", zap.String("external_id", payload.ID))

	case "INSERT", "UPDATE":
		var src user.SourceUser
		if err := json.Unmarshal(ev.Data, &src); err != nil {
			l.sink.RecordError(ctx, syncerrors.New(syncerrors.TypeDecode, err).
				WithContext("operation", ev.Operation))
			return
		}
		if !src.Eligible() {
			// Soft-deleted records are left to the batch reconciler or an
			// explicit delete event; the eligibility filter already keeps
			// them from ever being synced in.
			l.logger.Debug("Ignoring change event for ineligible user",
				zap.String("id", src.ID),
				zap.String("status", src.Status))
			return
		}
		cu, err := transform.Transform(&src)
		if err != nil {
			l.sink.RecordError(ctx, syncerrors.New(syncerrors.TypeUserSync, err).
				WithUser(src.ID).
				WithContext("operation", ev.Operation))
			return
		}
		if err := l.chat.Upsert(ctx, cu); err != nil {
			l.sink.RecordError(ctx, syncerrors.Classify(err, syncerrors.TypeUserSync).
				WithUser(src.ID).
				WithContext("operation", ev.Operation).
				WithContext("name", cu.Name))
			return
		}
		l.sink.MarkSynced(1)
		metrics.UsersSynced.WithLabelValues("realtime").Inc()
		l.logger.Debug("Synced chat user from change event",
			zap.String("external_id", src.ID),
			zap.String("operation", ev.Operation))

	default:
		l.sink.RecordError(ctx, syncerrors.New(syncerrors.TypeDecode,
			fmt.Errorf("unknown operation %q", ev.Operation)))
	}
}

func decodeNotification(payload string) (*Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	if ev.Operation == "" {
		return nil, fmt.Errorf("notification missing operation")
	}
	return &ev, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
