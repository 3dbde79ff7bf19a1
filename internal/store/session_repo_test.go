package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/openboard/engine/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	state := domain.SessionState{
		Name:         "s1",
		SessionType:  domain.SessionFeature,
		StateID:      "gather-goals",
		Status:       domain.SessionRunning,
		StateVersion: 1,
		CurrentItem:  0,
		Batches: []domain.TaskBatch{
			{ID: "batch-1", Status: domain.TaskPending, Tasks: []domain.BatchTask{
				{ID: "a", Status: domain.TaskPending},
			}},
		},
		CompletedTasks: []string{},
		PendingTasks:   []string{"a"},
		LastEventSeq:   1,
		UpdatedAtUnix:  1700000000,
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := repo.CreateTx(ctx, tx, state); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.GetByName(ctx, db, "s1")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.Name != "s1" || got.SessionType != domain.SessionFeature {
		t.Errorf("got %q/%q, want s1/feature", got.Name, got.SessionType)
	}
	if got.StateID != "gather-goals" || got.Status != domain.SessionRunning {
		t.Errorf("state = %q/%q", got.StateID, got.Status)
	}
	if !reflect.DeepEqual(got.Batches, state.Batches) {
		t.Errorf("batches round-trip mismatch:\n%+v\n%+v", got.Batches, state.Batches)
	}
	if !reflect.DeepEqual(got.PendingTasks, []string{"a"}) {
		t.Errorf("PendingTasks = %v, want [a]", got.PendingTasks)
	}
}

func TestSessionRepo_GetByName_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := &SessionRepo{}

	if _, err := repo.GetByName(context.Background(), db, "nonexistent"); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepo_UpdateState_OptimisticLock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	state := domain.SessionState{
		Name:         "s1",
		SessionType:  domain.SessionFeature,
		StateID:      "gather-goals",
		Status:       domain.SessionRunning,
		StateVersion: 1,
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.CreateTx(ctx, tx, state); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	tx.Commit()

	// Update with correct version should succeed.
	state.StateID = "route-session"
	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.UpdateStateTx(ctx, tx2, state); err != nil {
		t.Fatalf("UpdateStateTx: %v", err)
	}
	tx2.Commit()

	// Update with stale version should fail.
	state.StateID = "route-brainstorm"
	// state.StateVersion is still 1 but DB is now 2
	tx3, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = repo.UpdateStateTx(ctx, tx3, state)
	tx3.Rollback()

	if err != domain.ErrOptimisticLock {
		t.Errorf("expected ErrOptimisticLock, got %v", err)
	}
}

func TestSessionRepo_DuplicateCreate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	state := domain.SessionState{
		Name:        "s-dup",
		SessionType: domain.SessionFeature,
		StateID:     "gather-goals",
		Status:      domain.SessionRunning,
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.CreateTx(ctx, tx, state); err != nil {
		t.Fatalf("first CreateTx: %v", err)
	}
	tx.Commit()

	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = repo.CreateTx(ctx, tx2, state)
	tx2.Rollback()

	if err == nil {
		t.Error("expected error on duplicate create, got nil")
	}
}
