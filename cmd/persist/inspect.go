package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/inspect"
)

func inspectCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve the storage inspector over HTTP",
		Long: `Serve a read-only view of local and database storage.

Endpoints:
  • /api/local, /api/local/{key}
  • /api/db, /api/db/{key}
  • /events   WebSocket stream of storage events
  • /metrics  Prometheus metrics

Examples:
  persist inspect
  persist inspect --addr=:7340`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, flags, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from persist.json)")

	return cmd
}

func runInspect(cmd *cobra.Command, flags *globalFlags, addr string) error {
	e, err := openEnv(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	if addr == "" {
		addr = e.cfg.Inspect.Addr
	}

	handler := inspect.New(inspect.Config{
		Window:   e.window,
		DB:       e.db,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   e.logger,
	})
	defer handler.Close()

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	success(cmd, "Inspector listening on http://%s", addr)
	info(cmd, "Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	info(cmd, "Shutting down...")
	handler.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
