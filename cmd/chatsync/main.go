package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ustahub/chatsync/pkg/app/api"
	"github.com/ustahub/chatsync/pkg/config"
	"github.com/ustahub/chatsync/pkg/engine"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "chatsync",
		Short:         "Keeps the chat application's user table in sync with the marketplace users table",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	root.AddCommand(
		setupCmd(),
		fullCmd(),
		catchupCmd(),
		realtimeCmd(),
		verifyCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Run the full sync lifecycle: full pass, change feed, scheduled passes and the HTTP surface",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return api.NewServer(cfg, api.ModeSetup).Run()
		},
	}
}

func realtimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "realtime",
		Short: "Run only the change feed listener and the HTTP surface",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return api.NewServer(cfg, api.ModeRealtime).Run()
		},
	}
}

func fullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "full",
		Short: "Run one full population pass over every eligible user and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, eng *engine.Engine, logger *zap.Logger) error {
				res, err := eng.RunFull(ctx)
				if err != nil {
					return err
				}
				logger.Info("Full pass finished",
					zap.Int("synced", res.Synced),
					zap.Int("failed", res.Failed),
					zap.Duration("duration", res.Duration))
				return nil
			})
		},
	}
}

func catchupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catchup",
		Short: "Run one windowed catch-up pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, eng *engine.Engine, logger *zap.Logger) error {
				res, err := eng.RunCatchup(ctx)
				if err != nil {
					return err
				}
				logger.Info("Catch-up pass finished",
					zap.Int("synced", res.Synced),
					zap.Int("failed", res.Failed),
					zap.Duration("duration", res.Duration))
				return nil
			})
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare store counts and exit non-zero when they diverge beyond the tolerance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, eng *engine.Engine, logger *zap.Logger) error {
				res, err := eng.Verify(ctx)
				if err != nil {
					return err
				}
				logger.Info("Verification finished",
					zap.Int64("source_count", res.SourceCount),
					zap.Int64("chat_count", res.ChatCount),
					zap.Int64("difference", res.Difference),
					zap.Int64("tolerance", res.Tolerance),
					zap.Bool("consistent", res.Consistent))
				if !res.Consistent {
					return fmt.Errorf("stores are inconsistent: difference %d exceeds tolerance %d",
						res.Difference, res.Tolerance)
				}
				return nil
			})
		},
	}
}

// runOnce wires a batch-only engine, runs op under signal cancellation and
// tears the pools down afterwards.
func runOnce(parent context.Context, op func(ctx context.Context, eng *engine.Engine, logger *zap.Logger) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	eng, err := engine.Bootstrap(cfg, logger, false)
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	return op(ctx, eng, logger)
}
