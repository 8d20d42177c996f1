package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "checkpoints.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := setupSQLiteStore(t)

	original := createTestCheckpoint("sqlite-job")
	if err := store.SaveCheckpoint(original.JobID, original); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	loaded, err := store.LoadCheckpoint(original.JobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Routes, original.Routes) {
		t.Errorf("Routes mismatch: expected %v, got %v", original.Routes, loaded.Routes)
	}
	if loaded.BestCost != original.BestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", original.BestCost, loaded.BestCost)
	}
	if loaded.Config.InstancePath != original.Config.InstancePath {
		t.Errorf("InstancePath mismatch: got %s", loaded.Config.InstancePath)
	}
}

func TestSQLiteStore_Overwrite(t *testing.T) {
	store := setupSQLiteStore(t)

	checkpoint := createTestCheckpoint("sqlite-overwrite")
	if err := store.SaveCheckpoint(checkpoint.JobID, checkpoint); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	checkpoint.BestCost = 70
	checkpoint.Iteration = 900
	if err := store.SaveCheckpoint(checkpoint.JobID, checkpoint); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 checkpoint, got %d", len(infos))
	}
	if infos[0].BestCost != 70 || infos[0].Iteration != 900 {
		t.Errorf("Expected updated row, got %+v", infos[0])
	}
}

func TestSQLiteStore_List(t *testing.T) {
	store := setupSQLiteStore(t)

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("Expected empty list, got %d", len(infos))
	}

	for _, jobID := range []string{"job-b", "job-a"} {
		if err := store.SaveCheckpoint(jobID, createTestCheckpoint(jobID)); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
	}

	infos, err = store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 checkpoints, got %d", len(infos))
	}
	if infos[0].JobID != "job-a" || infos[1].JobID != "job-b" {
		t.Errorf("Expected checkpoints ordered by job ID, got %s, %s", infos[0].JobID, infos[1].JobID)
	}
	if infos[0].Routes != 3 || infos[0].Seed != 42 {
		t.Errorf("Unexpected metadata: %+v", infos[0])
	}
	if infos[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to be restored")
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := setupSQLiteStore(t)

	checkpoint := createTestCheckpoint("sqlite-delete")
	if err := store.SaveCheckpoint(checkpoint.JobID, checkpoint); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if err := store.DeleteCheckpoint(checkpoint.JobID); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}
	if _, err := store.LoadCheckpoint(checkpoint.JobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteCheckpoint(checkpoint.JobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for second delete, got %v", err)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	checkpoint := createTestCheckpoint("persisted")
	if err := store.SaveCheckpoint(checkpoint.JobID, checkpoint); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.LoadCheckpoint(checkpoint.JobID); err != nil {
		t.Errorf("Expected checkpoint after reopen, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	fs, err := Open(BackendFS, dir)
	if err != nil {
		t.Fatalf("Open fs failed: %v", err)
	}
	if _, ok := fs.(*FSStore); !ok {
		t.Errorf("Expected *FSStore, got %T", fs)
	}

	db, err := Open(BackendSQLite, dir)
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	sqlite, ok := db.(*SQLiteStore)
	if !ok {
		t.Fatalf("Expected *SQLiteStore, got %T", db)
	}
	sqlite.Close()

	if _, err := Open("redis", dir); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
