package workflow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openboard/engine/internal/domain"
	"github.com/openboard/engine/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEngine(db, PhaseBatching())
}

func featureItems() []domain.WorkItem {
	return []domain.WorkItem{
		{Type: domain.ItemCode},
		{Type: domain.ItemTask},
	}
}

func TestEngine_StartSession(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, featureItems()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	state, err := eng.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if state.StateID != StateGatherGoals {
		t.Errorf("StateID = %q, want gather-goals", state.StateID)
	}
	if state.Status != domain.SessionRunning {
		t.Errorf("Status = %q, want running", state.Status)
	}
	if len(state.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(state.Items))
	}
	for i, item := range state.Items {
		if item.Number != i+1 {
			t.Errorf("item %d number = %d", i, item.Number)
		}
		if item.Status != domain.ItemPending {
			t.Errorf("item %d status = %q, want pending", i+1, item.Status)
		}
	}
}

func TestEngine_StartSession_Validation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "", domain.SessionFeature, nil); err == nil {
		t.Error("expected error for empty session name, got nil")
	}
	if err := eng.StartSession(ctx, "s1", "sprint", nil); err == nil {
		t.Error("expected error for unknown session type, got nil")
	}
}

func TestEngine_StartSession_Duplicate(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, nil); err != nil {
		t.Fatalf("first StartSession: %v", err)
	}
	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, nil); err == nil {
		t.Error("expected error on duplicate StartSession, got nil")
	}
}

func TestEngine_Advance_RecordsTransition(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, featureItems()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	state, err := eng.Advance(ctx, "s1")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state.StateID != StateRouteSession {
		t.Errorf("StateID = %q, want route-session", state.StateID)
	}

	events, err := eng.EventRepo.ListBySession(ctx, eng.DB, "s1", 1)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events after start = %d, want 1", len(events))
	}
	if events[0].EventType != "state_transition" {
		t.Errorf("event type = %q, want state_transition", events[0].EventType)
	}
}

func TestEngine_Advance_ToCompletion(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	// Quickfix with no items: gather-goals -> route-session ->
	// generate-task-graph -> route-execute -> cleanup -> done.
	if err := eng.StartSession(ctx, "s1", domain.SessionQuickfix, nil); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	want := []string{StateRouteSession, StateGenerateTaskGraph, StateRouteExecute, StateCleanup}
	for _, expected := range want {
		state, err := eng.Advance(ctx, "s1")
		if err != nil {
			t.Fatalf("Advance to %s: %v", expected, err)
		}
		if state.StateID != expected {
			t.Fatalf("StateID = %q, want %q", state.StateID, expected)
		}
	}

	// Advancing at the terminal state completes the session.
	state, err := eng.Advance(ctx, "s1")
	if err != nil {
		t.Fatalf("final Advance: %v", err)
	}
	if state.Status != domain.SessionDone {
		t.Errorf("Status = %q, want completed", state.Status)
	}

	// A completed session cannot advance again.
	if _, err := eng.Advance(ctx, "s1"); err != domain.ErrSessionDone {
		t.Errorf("expected ErrSessionDone, got %v", err)
	}
}

func TestEngine_UpdateItem(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, featureItems()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	item, err := eng.UpdateItem(ctx, "s1", 1, domain.ItemBrainstormed)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Status != domain.ItemBrainstormed {
		t.Errorf("Status = %q, want brainstormed", item.Status)
	}

	state, err := eng.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if state.Items[0].Status != domain.ItemBrainstormed {
		t.Errorf("persisted status = %q, want brainstormed", state.Items[0].Status)
	}

	// Skipping brainstormed -> complete validation fails.
	if _, err := eng.UpdateItem(ctx, "s1", 2, domain.ItemComplete); err == nil {
		t.Error("expected invalid transition error, got nil")
	}
	if _, err := eng.UpdateItem(ctx, "s1", 99, domain.ItemBrainstormed); err != domain.ErrItemNotFound {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestEngine_SetCurrentItem(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, featureItems()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if err := eng.SetCurrentItem(ctx, "s1", 2); err != nil {
		t.Fatalf("SetCurrentItem: %v", err)
	}
	state, _ := eng.GetSession(ctx, "s1")
	if state.CurrentItem != 2 {
		t.Errorf("CurrentItem = %d, want 2", state.CurrentItem)
	}

	if err := eng.SetCurrentItem(ctx, "s1", 99); err != domain.ErrItemNotFound {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestEngine_MarkTaskComplete(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, nil); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Seed batches the way a sync would.
	state, err := eng.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	seeded := *state
	seeded.Batches = []domain.TaskBatch{
		{ID: "batch-1", Status: domain.TaskPending, Tasks: []domain.BatchTask{
			{ID: "a", Status: domain.TaskPending},
			{ID: "b", Status: domain.TaskPending},
		}},
		{ID: "batch-2", Status: domain.TaskPending, Tasks: []domain.BatchTask{
			{ID: "c", Status: domain.TaskPending, DependsOn: []string{"a", "b"}},
		}},
	}
	seeded.PendingTasks = []string{"a", "b", "c"}
	tx, err := eng.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := eng.SessionRepo.UpdateStateTx(ctx, tx, seeded); err != nil {
		t.Fatalf("seed batches: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := eng.MarkTaskComplete(ctx, "s1", "a")
	if err != nil {
		t.Fatalf("MarkTaskComplete(a): %v", err)
	}
	if got.CurrentBatch != 0 {
		t.Errorf("CurrentBatch = %d, want 0 (b still pending)", got.CurrentBatch)
	}
	if len(got.CompletedTasks) != 1 || got.CompletedTasks[0] != "a" {
		t.Errorf("CompletedTasks = %v, want [a]", got.CompletedTasks)
	}
	if len(got.PendingTasks) != 2 {
		t.Errorf("PendingTasks = %v, want [b c]", got.PendingTasks)
	}

	got, err = eng.MarkTaskComplete(ctx, "s1", "b")
	if err != nil {
		t.Fatalf("MarkTaskComplete(b): %v", err)
	}
	if got.CurrentBatch != 1 {
		t.Errorf("CurrentBatch = %d, want 1 (batch-1 done)", got.CurrentBatch)
	}
	if got.Batches[0].Status != domain.TaskComplete {
		t.Errorf("batch-1 status = %q, want complete", got.Batches[0].Status)
	}

	got, err = eng.MarkTaskComplete(ctx, "s1", "c")
	if err != nil {
		t.Fatalf("MarkTaskComplete(c): %v", err)
	}
	if got.CurrentBatch != 2 {
		t.Errorf("CurrentBatch = %d, want 2 (all batches done)", got.CurrentBatch)
	}
	if len(got.PendingTasks) != 0 {
		t.Errorf("PendingTasks = %v, want empty", got.PendingTasks)
	}

	// Completing the same task twice does not duplicate set membership.
	got, err = eng.MarkTaskComplete(ctx, "s1", "c")
	if err != nil {
		t.Fatalf("repeat MarkTaskComplete(c): %v", err)
	}
	if len(got.CompletedTasks) != 3 {
		t.Errorf("CompletedTasks = %v, want 3 unique ids", got.CompletedTasks)
	}
}

func TestEngine_GetSession_MigratesLegacyStatuses(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if err := eng.StartSession(ctx, "s1", domain.SessionFeature, featureItems()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Simulate a session written under the old per-stage schema.
	if _, err := eng.DB.ExecContext(ctx,
		`UPDATE work_items SET status = 'documented' WHERE session = 's1' AND number = 1`); err != nil {
		t.Fatalf("write legacy status: %v", err)
	}
	if _, err := eng.DB.ExecContext(ctx,
		`UPDATE work_items SET status = 'skeleton' WHERE session = 's1' AND number = 2`); err != nil {
		t.Fatalf("write legacy status: %v", err)
	}

	state, err := eng.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if state.Items[0].Status != domain.ItemBrainstormed {
		t.Errorf("item 1 status = %q, want brainstormed", state.Items[0].Status)
	}
	if state.Items[1].Status != domain.ItemComplete {
		t.Errorf("item 2 status = %q, want complete", state.Items[1].Status)
	}
}

func TestEngine_GetSession_NotFound(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.GetSession(context.Background(), "nope"); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
