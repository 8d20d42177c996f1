package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwbudde/filo/internal/config"
	"github.com/cwbudde/filo/internal/store"
)

var resumeFlags *config.Flags

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a run from its checkpoint",
	Long: `Rebuilds the best solution of a checkpointed run and continues the adaptive
search from it. Construction and route minimization are skipped. The run spends
the iterations its checkpoint left of --core-iterations; an explicit
--core-iterations grants that many additional iterations instead. Other solver
flags override the checkpointed configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeFlags = config.RegisterFlags(resumeCmd.Flags())
	addStoreFlags(resumeCmd)
	resumeCmd.Flags().IntVar(&checkpointInterval, "checkpoint-interval", 60, "Seconds between checkpoints (0 = final checkpoint only)")
	resumeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address during the run")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	if dataDir == "" {
		dataDir = "./data"
	}

	checkpointStore, err := store.Open(storeBackend, dataDir)
	if err != nil {
		return err
	}
	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if c, ok := checkpointStore.(interface{ Close() error }); ok {
		c.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	jobConfig := checkpoint.Config
	resumeFlags.Apply(&jobConfig.Solver)
	if cmd.Flags().Changed("core-iterations") {
		jobConfig.Solver.CoreIterations += checkpoint.Iteration
	}
	jobConfig.CheckpointInterval = checkpointInterval
	if err := jobConfig.Solver.Validate(); err != nil {
		return err
	}
	if err := checkpoint.IsCompatible(jobConfig); err != nil {
		return err
	}

	in, err := jobConfig.Solver.LoadInstance(jobConfig.InstancePath)
	if err != nil {
		return err
	}

	slog.Info("Resuming run",
		"job_id", jobID,
		"instance", jobConfig.InstancePath,
		"best_cost", checkpoint.BestCost,
		"routes", len(checkpoint.Routes),
		"iteration", checkpoint.Iteration,
		"config", jobConfig.Solver.String(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return solveAndWrite(ctx, in, jobConfig, jobID, continuationOf(checkpoint))
}
