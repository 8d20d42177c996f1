package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/cwbudde/filo/internal/metrics"
	"github.com/cwbudde/filo/internal/opt"
	"github.com/cwbudde/filo/internal/solution"
	"github.com/cwbudde/filo/internal/store"
)

// runJob executes a solver job in the background.
// If checkpointStore is not nil and the job has a checkpoint interval, periodic checkpoints
// are saved, plus a final one when the job ends.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string) error {
	defer jm.clearCancel(jobID)

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	metrics.Register()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	slog.Info("Starting job", "job_id", jobID, "instance", job.Config.InstancePath, "resumed_from", job.ResumedFrom)

	in, err := job.Config.Solver.LoadInstance(job.Config.InstancePath)
	if err != nil {
		err = fmt.Errorf("failed to load instance: %w", err)
		markJobFailed(jm, jobID, err)
		return err
	}
	params, err := job.Config.Solver.Params()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, checkpointStore, jobID)
		return ctx.Err()
	default:
	}

	checkpointDone := make(chan struct{})
	if checkpointStore != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, checkpointStore, jobID, time.Duration(job.Config.CheckpointInterval)*time.Second, checkpointDone)
	}

	observer := opt.Observers{
		newJobObserver(jm, jobID),
		metrics.NewObserver(jobID),
	}

	var res *opt.Result
	if job.initialRoutes != nil {
		res, err = opt.SolveFrom(ctx, in, job.initialRoutes, params, observer)
	} else {
		res, err = opt.Solve(ctx, in, params, observer)
	}
	close(checkpointDone)

	if res != nil {
		recordResult(jm, jobID, res)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		markJobCancelled(jm, checkpointStore, jobID)
		return err
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	}); err != nil {
		return err
	}
	metrics.Jobs.WithLabelValues(string(StateCompleted)).Inc()

	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", res.Elapsed,
		"initial_cost", res.InitialCost,
		"best_cost", res.Best.Cost(),
		"routes", res.Best.RoutesNum(),
		"iterations", res.Iterations,
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:      jobID,
		State:      StateCompleted,
		Iterations: res.Iterations,
		BestCost:   res.Best.Cost(),
		Routes:     res.Best.RoutesNum(),
		IPS:        iterationsPerSecond(res.Iterations, res.Elapsed),
		Timestamp:  time.Now(),
	})
	return nil
}

func recordResult(jm *JobManager, jobID string, res *opt.Result) {
	routes := res.Best.Routes()
	jm.UpdateJob(jobID, func(j *Job) {
		j.Routes = routes
		j.BestCost = res.Best.Cost()
		j.InitialCost = res.InitialCost
		j.Iterations = res.Iterations
	})
}

// jobObserver mirrors solver progress into the job record and its event stream
type jobObserver struct {
	jm        *JobManager
	jobID     string
	broadcast rate.Sometimes
}

func newJobObserver(jm *JobManager, jobID string) *jobObserver {
	return &jobObserver{jm: jm, jobID: jobID, broadcast: rate.Sometimes{Interval: 500 * time.Millisecond}}
}

// ObserveBest stores the routes of a new best solution for checkpoints and the solution endpoint
func (o *jobObserver) ObserveBest(best *solution.Solution) {
	routes := best.Routes()
	cost := best.Cost()
	o.jm.UpdateJob(o.jobID, func(j *Job) {
		j.Routes = routes
		j.BestCost = cost
	})
}

// Observe updates the job counters and forwards the snapshot to stream subscribers
func (o *jobObserver) Observe(p opt.Progress) {
	o.jm.UpdateJob(o.jobID, func(j *Job) {
		j.Iterations = p.Iteration
		j.BestCost = p.BestCost
		j.CurrentCost = p.CurrentCost
	})

	event := ProgressEvent{
		JobID:       o.jobID,
		State:       StateRunning,
		Iterations:  p.Iteration,
		BestCost:    p.BestCost,
		CurrentCost: p.CurrentCost,
		Routes:      p.BestRoutes,
		Temperature: p.Temperature,
		MeanGamma:   p.MeanGamma,
		MeanOmega:   p.MeanOmega,
		IPS:         iterationsPerSecond(p.Iteration, p.Elapsed),
		Timestamp:   time.Now(),
	}
	if p.Improved {
		o.jm.broadcaster.Broadcast(event)
		return
	}
	o.broadcast.Do(func() { o.jm.broadcaster.Broadcast(event) })
}

func iterationsPerSecond(iterations int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(iterations) / elapsed.Seconds()
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	metrics.Jobs.WithLabelValues(string(StateFailed)).Inc()
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateFailed, Timestamp: endTime})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled and keeps its best routes in a checkpoint
func markJobCancelled(jm *JobManager, checkpointStore store.Store, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	metrics.Jobs.WithLabelValues(string(StateCancelled)).Inc()
	if checkpointStore != nil {
		if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
			slog.Error("Failed to save checkpoint of cancelled job", "job_id", jobID, "error", err)
		}
	}
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateCancelled, Timestamp: endTime})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during optimization
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, interval time.Duration, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.Routes) == 0 {
		slog.Debug("Skipping checkpoint, no solution yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.Routes,
		job.BestCost,
		job.InitialCost,
		job.Iterations,
		job.Config,
	)
	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		metrics.Checkpoints.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	metrics.Checkpoints.WithLabelValues("ok").Inc()

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"best_cost", job.BestCost,
	)
	return nil
}
