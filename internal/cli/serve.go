package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeffbryner/meraki-activity/common/logging"
	"github.com/jeffbryner/meraki-activity/internal/scheduler"
	"github.com/jeffbryner/meraki-activity/internal/server"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll on an interval and expose health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := opts.cfg, opts.logger

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			sched := scheduler.New(a.poller, scheduler.Config{Interval: cfg.Schedule.Interval}, logger)
			if err := sched.Start(ctx); err != nil {
				return err
			}

			srv := server.NewHTTPServer(cfg.Server, server.NewRouter(sched, logger))
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("ops server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			var runErr error
			select {
			case sig := <-quit:
				logger.Info("shutting down", "signal", sig.String())
			case runErr = <-serveErr:
				logger.Error("ops server failed", logging.Error(runErr))
			case <-ctx.Done():
			}

			_ = sched.Stop()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}

			logger.Info("stopped")
			return runErr
		},
	}
}
