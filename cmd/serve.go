package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/filo/internal/server"
	"github.com/cwbudde/filo/internal/store"
)

var (
	serveAddr      string
	serveDataDir   string
	serveBackend   string
	noCheckpoints  bool
	shutdownWindow time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that runs solver jobs in the background.

Endpoints:
  POST   /api/v1/jobs                create a job (or resume one with resumeFrom)
  GET    /api/v1/jobs                list jobs
  GET    /api/v1/jobs/:id/status     job status
  GET    /api/v1/jobs/:id/solution   best routes in CVRPLIB format
  GET    /api/v1/jobs/:id/stream     progress as server-sent events
  POST   /api/v1/jobs/:id/cancel     cancel a running job
  DELETE /api/v1/jobs/:id            forget a finished job
  GET    /api/v1/checkpoints         list checkpoints
  GET    /metrics                    Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for checkpoints")
	serveCmd.Flags().StringVar(&serveBackend, "store", store.BackendFS, "Checkpoint backend (fs, sqlite)")
	serveCmd.Flags().BoolVar(&noCheckpoints, "no-checkpoints", false, "Disable checkpoints")
	serveCmd.Flags().DurationVar(&shutdownWindow, "shutdown-timeout", 30*time.Second, "Time allowed for running jobs to stop")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var checkpointStore store.Store
	if !noCheckpoints {
		var err error
		checkpointStore, err = store.Open(serveBackend, serveDataDir)
		if err != nil {
			return err
		}
		if c, ok := checkpointStore.(interface{ Close() error }); ok {
			defer c.Close()
		}
	}

	srv := server.NewServer(serveAddr, checkpointStore)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWindow)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	slog.Info("Server stopped")
	return err
}
