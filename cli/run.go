package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jasoft/miniwowbot/config"
	"github.com/jasoft/miniwowbot/journal"
	"github.com/jasoft/miniwowbot/notify"
)

const banner = `
           _       _                        __          __
 _ __ ___ (_)_ __ (_)_      _______      __/ /_  ____  / /_
| '_ ' _ \| | '_ \| \ \ /\ / / _ \ \ /\ / / __ \/ __ \/ __/
| | | | | | | | | | |\ V  V / (_) \ V  V / /_/ / /_/ / /_
|_| |_| |_|_|_| |_|_| \_/\_/ \___/ \_/\_/_.___/\____/\__/

Screen-Driven Game Automation`

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen for device helpers and drive them",
		Long: `Load the config, listen on the device address and run one decision loop
per connected helper until interrupted.

Example:
  miniwowbot run --config bot.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(rootOpts, cmd)
		},
	}
	return cmd
}

func runBot(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	fmt.Fprintln(cmd.OutOrStdout(), banner)
	slog.Info("starting miniwowbot", "config", opts.ConfigPath)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				slog.Error("error closing journal", "error", err)
			}
		}()
		rt.journal = j
		slog.Info("journal ready", "path", cfg.Journal.Path)
	}

	var async *notify.Async
	if cfg.Notify.WebhookURL != "" {
		async = notify.NewAsync(notify.NewWebhook(cfg.Notify.WebhookURL, config.Duration(cfg.Notify.Timeout)), cfg.Notify.QueueSize)
		go async.Start(ctx)
		rt.notifier = async
	}

	listener, err := listen(cfg.Device)
	if err != nil {
		return err
	}
	slog.Info("listening for device helpers", "network", cfg.Device.Network, "address", cfg.Device.Address)

	var sessions sync.WaitGroup
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}
		slog.Info("new connection accepted", "remote", conn.RemoteAddr().String())
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			rt.serve(ctx, conn)
		}()
	}

	slog.Info("shutting down")
	sessions.Wait()
	if async != nil && async.Dropped() > 0 {
		slog.Warn("notifications were dropped", "count", async.Dropped())
	}
	if cfg.Device.Network == "unix" {
		os.Remove(cfg.Device.Address)
	}
	return nil
}

func listen(dc config.DeviceConfig) (net.Listener, error) {
	if dc.Network == "unix" {
		// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
		if err := os.RemoveAll(dc.Address); err != nil {
			return nil, fmt.Errorf("clean up socket %s: %w", dc.Address, err)
		}
	}
	l, err := net.Listen(dc.Network, dc.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", dc.Address, err)
	}
	return l, nil
}
