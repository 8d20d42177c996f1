package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/filo/internal/config"
	"github.com/cwbudde/filo/internal/tune"
)

var (
	tuneConfigPath string
	tuneFlags      *config.Flags
	tuneSeeds      int
	tuneParallel   int
	tuneIters      int
	tunePop        int
	tuneSeed       int64
	tuneOut        string
)

var tuneCmd = &cobra.Command{
	Use:   "tune <instance>",
	Short: "Tune the adaptation parameters on an instance",
	Long: `Searches gamma base and the shaking factors with the mayfly algorithm.
Every candidate is scored by the mean best cost of --seeds solver runs using
the remaining configuration. Keep --core-iterations small: the search runs
--iters times --pop candidates.`,
	Args: cobra.ExactArgs(1),
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tuneConfigPath, "config", "", "YAML configuration file")
	tuneFlags = config.RegisterFlags(tuneCmd.Flags())
	tuneCmd.Flags().IntVar(&tuneSeeds, "seeds", 3, "Solver runs per candidate")
	tuneCmd.Flags().IntVar(&tuneParallel, "parallel", runtime.NumCPU(), "Solver runs executed concurrently")
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 20, "Mayfly iterations")
	tuneCmd.Flags().IntVar(&tunePop, "pop", 10, "Mayfly population size")
	tuneCmd.Flags().Int64Var(&tuneSeed, "tune-seed", 1, "Random seed of the mayfly search")
	tuneCmd.Flags().StringVar(&tuneOut, "write-config", "", "Write the tuned configuration to this YAML file")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	if tuneSeeds < 1 {
		return fmt.Errorf("--seeds must be at least 1")
	}

	cfg, err := tuneFlags.Resolve(tuneConfigPath)
	if err != nil {
		return err
	}
	in, err := cfg.LoadInstance(args[0])
	if err != nil {
		return err
	}
	base, err := cfg.Params()
	if err != nil {
		return err
	}

	seeds := make([]int64, tuneSeeds)
	for i := range seeds {
		seeds[i] = cfg.Seed + int64(i)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting tuning", "instance", args[0], "seeds", tuneSeeds, "iters", tuneIters, "pop", tunePop)

	tuner := &tune.Tuner{
		Instance:    in,
		Base:        base,
		Seeds:       seeds,
		Parallelism: tuneParallel,
		Optimizer:   tune.NewMayfly(tuneIters, tunePop, tuneSeed),
	}
	outcome, err := tuner.Run(ctx)
	if err != nil {
		return err
	}

	cfg.GammaBase = outcome.Params.GammaBase
	cfg.ShakingLB = outcome.Params.ShakingLB
	cfg.ShakingUB = outcome.Params.ShakingUB

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "gamma_base: %g\nshaking_lb_factor: %g\nshaking_ub_factor: %g\n",
		cfg.GammaBase, cfg.ShakingLB, cfg.ShakingUB)
	fmt.Fprintf(out, "mean cost %g over %d evaluations\n", outcome.MeanCost, outcome.Evaluations)

	if tuneOut != "" {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := os.WriteFile(tuneOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(out, "Wrote %s\n", tuneOut)
	}
	return nil
}
