package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/filo/internal/config"
)

// JobConfig holds the configuration of a solver job (checkpoint copy).
type JobConfig struct {
	InstancePath       string        `json:"instancePath"`
	Solver             config.Config `json:"solver"`
	CheckpointInterval int           `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// Checkpoint represents a saved solver state that can be resumed later.
//
// Only the best routes are saved. Resuming rebuilds the solution from them and
// restarts the main loop with fresh ruin intensities, sparsification factors
// and annealing temperature; construction and route minimization are skipped.
// The best cost never gets worse across a resume, but the run does not replay
// the trajectory an uninterrupted run would have taken.
type Checkpoint struct {
	// JobID is the unique identifier for this solver job
	JobID string `json:"jobId"`

	// Routes lists the customers of every route of the best solution, depot excluded
	Routes [][]int `json:"routes"`

	// BestCost is the cost of Routes
	BestCost float64 `json:"bestCost"`

	// InitialCost is the cost of the constructed solution, for tracking improvement
	InitialCost float64 `json:"initialCost"`

	// Iteration is the main loop iteration count when this checkpoint was created
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the routes.
type CheckpointInfo struct {
	JobID        string    `json:"jobId"`
	BestCost     float64   `json:"bestCost"`
	Routes       int       `json:"routes"`
	Iteration    int       `json:"iteration"`
	Timestamp    time.Time `json:"timestamp"`
	InstancePath string    `json:"instancePath"`
	Seed         int64     `json:"seed"`
}

// NewCheckpoint creates a checkpoint from job state.
func NewCheckpoint(jobID string, routes [][]int, bestCost, initialCost float64, iteration int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		Routes:      routes,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:        c.JobID,
		BestCost:     c.BestCost,
		Routes:       len(c.Routes),
		Iteration:    c.Iteration,
		Timestamp:    c.Timestamp,
		InstancePath: c.Config.InstancePath,
		Seed:         c.Config.Solver.Seed,
	}
}

// Validate checks if the checkpoint has valid data.
// Route contents are checked against the instance only when the solution is rebuilt.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.Routes) == 0 {
		return &ValidationError{Field: "Routes", Reason: "cannot be empty"}
	}
	seen := make(map[int]bool)
	for k, route := range c.Routes {
		if len(route) == 0 {
			return &ValidationError{Field: "Routes", Reason: fmt.Sprintf("route %d is empty", k+1)}
		}
		for _, customer := range route {
			if customer <= 0 {
				return &ValidationError{Field: "Routes", Reason: fmt.Sprintf("route %d contains invalid customer %d", k+1, customer)}
			}
			if seen[customer] {
				return &ValidationError{Field: "Routes", Reason: fmt.Sprintf("customer %d appears twice", customer)}
			}
			seen[customer] = true
		}
	}
	if c.BestCost < 0 {
		return &ValidationError{Field: "BestCost", Reason: "cannot be negative"}
	}
	if c.InitialCost < 0 {
		return &ValidationError{Field: "InitialCost", Reason: "cannot be negative"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.InstancePath == "" {
		return &ValidationError{Field: "Config.InstancePath", Reason: "cannot be empty"}
	}
	if err := c.Config.Solver.Validate(); err != nil {
		return &ValidationError{Field: "Config.Solver", Reason: err.Error()}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// The instance and its cost model must match; search parameters may differ.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.InstancePath != config.InstancePath {
		return &CompatibilityError{
			Field:    "InstancePath",
			Expected: c.Config.InstancePath,
			Actual:   config.InstancePath,
		}
	}
	if c.Config.Solver.Parser != config.Solver.Parser {
		return &CompatibilityError{
			Field:    "Parser",
			Expected: c.Config.Solver.Parser,
			Actual:   config.Solver.Parser,
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
