package store

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestCheckpoint_JSONSerialization(t *testing.T) {
	original := createTestCheckpoint("test-job-123")
	original.Timestamp = time.Date(2025, 10, 23, 10, 30, 0, 0, time.UTC)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal checkpoint: %v", err)
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal checkpoint: %v", err)
	}

	if restored.JobID != original.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", original.JobID, restored.JobID)
	}
	if restored.BestCost != original.BestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", original.BestCost, restored.BestCost)
	}
	if restored.InitialCost != original.InitialCost {
		t.Errorf("InitialCost mismatch: expected %f, got %f", original.InitialCost, restored.InitialCost)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
	if !reflect.DeepEqual(restored.Routes, original.Routes) {
		t.Errorf("Routes mismatch: expected %v, got %v", original.Routes, restored.Routes)
	}
	if !reflect.DeepEqual(restored.Config, original.Config) {
		t.Errorf("Config mismatch: expected %+v, got %+v", original.Config, restored.Config)
	}
}

func TestCheckpoint_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(createTestCheckpoint("names"))
	if err != nil {
		t.Fatalf("Failed to marshal checkpoint: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal into map: %v", err)
	}
	for _, key := range []string{"jobId", "routes", "bestCost", "initialCost", "iteration", "timestamp", "config"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected JSON key %q", key)
		}
	}
}

func TestCheckpoint_Validate_Valid(t *testing.T) {
	if err := createTestCheckpoint("valid").Validate(); err != nil {
		t.Fatalf("Expected valid checkpoint, got error: %v", err)
	}
}

func TestCheckpoint_Validate_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Checkpoint)
		field  string
	}{
		{"empty job id", func(c *Checkpoint) { c.JobID = "" }, "JobID"},
		{"nil routes", func(c *Checkpoint) { c.Routes = nil }, "Routes"},
		{"empty route", func(c *Checkpoint) { c.Routes = [][]int{{1, 2}, {}} }, "Routes"},
		{"depot in route", func(c *Checkpoint) { c.Routes = [][]int{{0, 1}} }, "Routes"},
		{"duplicate customer", func(c *Checkpoint) { c.Routes = [][]int{{1, 2}, {2, 3}} }, "Routes"},
		{"negative cost", func(c *Checkpoint) { c.BestCost = -1 }, "BestCost"},
		{"negative initial cost", func(c *Checkpoint) { c.InitialCost = -1 }, "InitialCost"},
		{"negative iteration", func(c *Checkpoint) { c.Iteration = -10 }, "Iteration"},
		{"zero timestamp", func(c *Checkpoint) { c.Timestamp = time.Time{} }, "Timestamp"},
		{"no instance", func(c *Checkpoint) { c.Config.InstancePath = "" }, "Config.InstancePath"},
		{"bad solver config", func(c *Checkpoint) { c.Config.Solver.Parser = "Q" }, "Config.Solver"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			checkpoint := createTestCheckpoint("test")
			tc.mutate(checkpoint)

			err := checkpoint.Validate()
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if validationErr.Field != tc.field {
				t.Errorf("Expected field %s, got %s", tc.field, validationErr.Field)
			}
		})
	}
}

func TestCheckpoint_IsCompatible(t *testing.T) {
	checkpoint := createTestCheckpoint("compat")

	same := checkpoint.Config
	same.Solver.Seed = 7
	same.Solver.GammaBase = 0.5
	if err := checkpoint.IsCompatible(same); err != nil {
		t.Errorf("Search parameters may differ, got error: %v", err)
	}

	otherInstance := checkpoint.Config
	otherInstance.InstancePath = "other.vrp"
	var compatErr *CompatibilityError
	if err := checkpoint.IsCompatible(otherInstance); !errors.As(err, &compatErr) || compatErr.Field != "InstancePath" {
		t.Errorf("Expected InstancePath compatibility error, got %v", err)
	}

	otherParser := checkpoint.Config
	otherParser.Solver.Parser = "Z"
	err := checkpoint.IsCompatible(otherParser)
	if !errors.As(err, &compatErr) || compatErr.Field != "Parser" {
		t.Fatalf("Expected Parser compatibility error, got %v", err)
	}
	if compatErr.Expected != "X" || compatErr.Actual != "Z" {
		t.Errorf("Unexpected values: expected=%s actual=%s", compatErr.Expected, compatErr.Actual)
	}
}

func TestNewCheckpoint(t *testing.T) {
	routes := [][]int{{1, 2, 3}, {4}}
	config := JobConfig{InstancePath: "a.vrp", Solver: testSolverConfig()}

	checkpoint := NewCheckpoint("test-job", routes, 12.5, 20, 500, config)

	if checkpoint.JobID != "test-job" {
		t.Errorf("JobID mismatch: got %s", checkpoint.JobID)
	}
	if checkpoint.BestCost != 12.5 || checkpoint.InitialCost != 20 {
		t.Errorf("Cost mismatch: got best=%f initial=%f", checkpoint.BestCost, checkpoint.InitialCost)
	}
	if checkpoint.Iteration != 500 {
		t.Errorf("Iteration mismatch: got %d", checkpoint.Iteration)
	}
	if checkpoint.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if !reflect.DeepEqual(checkpoint.Routes, routes) {
		t.Errorf("Routes mismatch: got %v", checkpoint.Routes)
	}
	if err := checkpoint.Validate(); err != nil {
		t.Errorf("Expected valid checkpoint, got %v", err)
	}
}
