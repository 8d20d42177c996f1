package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/filo/internal/config"
	"github.com/cwbudde/filo/internal/instance"
	"github.com/cwbudde/filo/internal/metrics"
	"github.com/cwbudde/filo/internal/opt"
	"github.com/cwbudde/filo/internal/solution"
	"github.com/cwbudde/filo/internal/store"
)

var (
	configPath         string
	runFlags           *config.Flags
	dataDir            string
	storeBackend       string
	checkpointInterval int
	metricsAddr        string
)

var runCmd = &cobra.Command{
	Use:   "run <instance>",
	Short: "Solve a single instance",
	Long: `Solves a CVRPLIB instance and writes <file>_seed-<seed>.out (cost and seconds)
and <file>_seed-<seed>.vrp.sol (routes) into the output directory, where <file> is
the instance file name, for example X-n101-k25.vrp_seed-0.out.

With --data-dir the best routes are checkpointed every --checkpoint-interval
seconds together with a JSONL trace of the search, so an interrupted run can
be continued with "filo resume".`,
	Args: cobra.ExactArgs(1),
	RunE: runSolve,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	runFlags = config.RegisterFlags(runCmd.Flags())
	addStoreFlags(runCmd)
	runCmd.Flags().IntVar(&checkpointInterval, "checkpoint-interval", 60, "Seconds between checkpoints (0 = final checkpoint only)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address during the run")
	rootCmd.AddCommand(runCmd)
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Base directory for checkpoints (empty disables checkpoints)")
	cmd.Flags().StringVar(&storeBackend, "store", store.BackendFS, "Checkpoint backend (fs, sqlite)")
}

func runSolve(cmd *cobra.Command, args []string) error {
	instancePath := args[0]

	cfg, err := runFlags.Resolve(configPath)
	if err != nil {
		return err
	}
	in, err := cfg.LoadInstance(instancePath)
	if err != nil {
		return err
	}
	slog.Info("Starting run", "instance", instancePath, "config", cfg.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobConfig := store.JobConfig{InstancePath: instancePath, Solver: cfg, CheckpointInterval: checkpointInterval}
	return solveAndWrite(ctx, in, jobConfig, uuid.New().String(), nil)
}

// continuation is the state a resumed run picks up from its checkpoint
type continuation struct {
	routes      [][]int
	iterations  int     // main loop iterations already spent
	initialCost float64 // savings cost of the first run
}

func continuationOf(checkpoint *store.Checkpoint) *continuation {
	return &continuation{
		routes:      checkpoint.Routes,
		iterations:  checkpoint.Iteration,
		initialCost: checkpoint.InitialCost,
	}
}

// solveAndWrite runs the solver and writes the output files. A continuation spends only the
// iterations its checkpoint left of CoreIterations. An interrupted run still writes its best
// solution.
func solveAndWrite(ctx context.Context, in *instance.Instance, jobConfig store.JobConfig, runID string, from *continuation) error {
	cfg := jobConfig.Solver
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	offset := 0
	if from != nil {
		offset = from.iterations
		if params.TimeBudget == 0 {
			params.CoreIterations = cfg.CoreIterations - offset
			if params.CoreIterations <= 0 {
				return fmt.Errorf("run %s already spent its %d iterations, set --core-iterations to continue", runID, cfg.CoreIterations)
			}
		}
	}

	observers := opt.Observers{}

	if metricsAddr != "" {
		stopMetrics := serveMetrics(metricsAddr)
		defer stopMetrics()
		observers = append(observers, metrics.NewObserver(runID))
	}

	var saver *checkpointSaver
	if dataDir != "" {
		checkpointStore, err := store.Open(storeBackend, dataDir)
		if err != nil {
			return err
		}
		if c, ok := checkpointStore.(interface{ Close() error }); ok {
			defer c.Close()
		}

		trace, err := store.NewTraceWriter(dataDir, runID, from != nil)
		if err != nil {
			return err
		}
		defer trace.Close()

		saver = newCheckpointSaver(checkpointStore, runID, jobConfig, offset)
		if from != nil {
			saver.initial = from.initialCost
		}
		observers = append(observers, shiftIterations(trace, offset), saver)
		slog.Info("Checkpointing enabled", "run_id", runID, "data_dir", dataDir, "backend", storeBackend)
	}

	var res *opt.Result
	if from != nil {
		res, err = opt.SolveFrom(ctx, in, from.routes, params, observers)
	} else {
		res, err = opt.Solve(ctx, in, params, observers)
	}
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !interrupted {
		return err
	}
	if res == nil {
		return err
	}

	if saver != nil {
		saver.ObserveBest(res.Best)
		saver.iteration = offset + res.Iterations
		if from == nil {
			saver.initial = res.InitialCost
		}
		if err := saver.save(); err != nil {
			slog.Error("Failed to save final checkpoint", "run_id", runID, "error", err)
		}
	}

	summary, sol, err := opt.WriteResult(cfg.OutPath, jobConfig.InstancePath, cfg.Seed, res)
	if err != nil {
		return err
	}

	fmt.Printf("Best cost: %s (%d routes, initial %s)\n",
		solution.FormatCost(res.Best.Cost()), res.Best.RoutesNum(), solution.FormatCost(res.InitialCost))
	fmt.Printf("Iterations: %d in %s\n", res.Iterations, res.Elapsed.Round(time.Millisecond))
	if offset > 0 {
		fmt.Printf("Total iterations: %d\n", offset+res.Iterations)
	}
	fmt.Printf("Wrote %s and %s\n", summary, sol)
	if interrupted {
		if saver != nil {
			fmt.Printf("Interrupted. Continue with: filo resume %s --data-dir %s\n", runID, dataDir)
		} else {
			fmt.Println("Interrupted.")
		}
	}
	return nil
}

// serveMetrics exposes the Prometheus registry until the returned function is called
func serveMetrics(addr string) func() {
	metrics.Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// shiftIterations numbers the snapshots of a resumed run after those of its checkpoint
func shiftIterations(next opt.Observer, offset int) opt.Observer {
	if offset == 0 {
		return next
	}
	return opt.ObserverFunc(func(p opt.Progress) {
		p.Iteration += offset
		next.Observe(p)
	})
}

// checkpointSaver keeps the latest best routes and stores them at most once per interval
type checkpointSaver struct {
	store     store.Store
	runID     string
	config    store.JobConfig
	interval  time.Duration
	lastSave  time.Time
	now       func() time.Time
	offset    int
	routes    [][]int
	bestCost  float64
	initial   float64
	iteration int
}

// newCheckpointSaver creates a saver whose iterations count on from offset
func newCheckpointSaver(checkpointStore store.Store, runID string, jobConfig store.JobConfig, offset int) *checkpointSaver {
	return &checkpointSaver{
		store:     checkpointStore,
		offset:    offset,
		iteration: offset,
		runID:     runID,
		config:    jobConfig,
		interval:  time.Duration(jobConfig.CheckpointInterval) * time.Second,
		now:       time.Now,
		lastSave:  time.Now(),
	}
}

// ObserveBest implements opt.BestObserver
func (c *checkpointSaver) ObserveBest(best *solution.Solution) {
	c.routes = best.Routes()
	c.bestCost = best.Cost()
	if c.routes != nil && c.initial == 0 {
		c.initial = c.bestCost
	}
}

// Observe implements opt.Observer
func (c *checkpointSaver) Observe(p opt.Progress) {
	c.iteration = c.offset + p.Iteration
	if c.interval <= 0 || c.now().Sub(c.lastSave) < c.interval {
		return
	}
	if err := c.save(); err != nil {
		slog.Error("Failed to save checkpoint", "run_id", c.runID, "error", err)
	}
}

func (c *checkpointSaver) save() error {
	if len(c.routes) == 0 {
		return nil
	}
	c.lastSave = c.now()
	checkpoint := store.NewCheckpoint(c.runID, c.routes, c.bestCost, c.initial, c.iteration, c.config)
	if err := c.store.SaveCheckpoint(c.runID, checkpoint); err != nil {
		metrics.Checkpoints.WithLabelValues("error").Inc()
		return err
	}
	metrics.Checkpoints.WithLabelValues("ok").Inc()
	slog.Debug("Checkpoint saved", "run_id", c.runID, "iteration", c.iteration, "best_cost", c.bestCost)
	return nil
}
