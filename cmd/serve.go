package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/recordkit/internal/server"
	"github.com/desertthunder/recordkit/internal/shared"
	"github.com/desertthunder/recordkit/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP API until interrupted, with the retention purge on its cron schedule.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Server
	if cmd.IsSet("host") {
		config.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		config.Port = cmd.Int("port")
	}

	if err := r.open(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := tasks.NewScheduler(r.logger)
	if schedule := r.config.Retention.Schedule; schedule != "" && !cmd.Bool("no-retention") {
		if err := r.engine.ScheduleRetention(scheduler, schedule, tasks.NewRetentionPolicy(r.config.Retention)); err != nil {
			return err
		}
		scheduler.Start()
	}

	srv := server.New(server.Options{
		Config:  config,
		Notes:   r.notes,
		Logger:  r.logger,
		Version: version,
	})

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr(), err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	url := shared.LocalURL(ln.Addr().String(), "/health")
	r.writePlain("✓ Serving notes API on http://%s/api/v1\n", ln.Addr().String())
	if cmd.Bool("open") {
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "url", url, "error", err)
		}
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		serveErr,
		srv.Shutdown(shutdownCtx),
		scheduler.Stop(shutdownCtx),
	)
}
