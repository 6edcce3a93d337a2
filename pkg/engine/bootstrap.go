package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ustahub/chatsync/pkg/chatstore"
	"github.com/ustahub/chatsync/pkg/config"
	"github.com/ustahub/chatsync/pkg/listener"
	"github.com/ustahub/chatsync/pkg/pgutil"
	"github.com/ustahub/chatsync/pkg/reconciler"
	"github.com/ustahub/chatsync/pkg/retry"
	"github.com/ustahub/chatsync/pkg/sourcestore"
)

// Bootstrap opens both store pools and wires the stores, reconciler and
// (optionally) the change feed into a ready-to-run Engine. The Engine owns
// the pools and closes them on Shutdown.
func Bootstrap(cfg *config.Config, logger *zap.Logger, withFeed bool) (*Engine, error) {
	sourceDB, err := pgutil.ConnectDB(&cfg.SourceDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source database: %w", err)
	}
	chatDB, err := pgutil.ConnectDB(&cfg.ChatDatabase)
	if err != nil {
		_ = sourceDB.Close()
		return nil, fmt.Errorf("failed to connect to chat database: %w", err)
	}

	runner := retry.NewRunner(retry.Config{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.Multiplier,
	})

	source := sourcestore.NewStore(sourceDB, runner)
	chat := chatstore.NewStore(chatDB, runner)
	recon := reconciler.New(source, chat, nil, logger, cfg.Sync.PageSize)

	eng := New(cfg, source, chat, recon, nil, logger)
	eng.closers = append(eng.closers, sourceDB.Close, chatDB.Close)

	// The engine is the error sink for both paths; wire it back in now that
	// it exists.
	recon.SetSink(eng)
	if withFeed {
		eng.feed = listener.New(
			cfg.SourceDatabase.ConnectionString(),
			listener.Config{
				Channel:              cfg.Realtime.Channel,
				MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
				MinReconnectInterval: cfg.Realtime.MinReconnectInterval,
				MaxReconnectInterval: cfg.Realtime.MaxReconnectInterval,
			},
			sourceDB, chat, eng, logger,
		)
	}

	return eng, nil
}
