package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/openboard/engine/internal/domain"
)

func TestEventRepo_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		event := domain.WorkflowEvent{
			ID:          fmt.Sprintf("ev-%d", i),
			Session:     "s1",
			SeqNo:       i,
			StateID:     "gather-goals",
			EventType:   "state_transition",
			PayloadJSON: "{}",
			CreatedAt:   1700000000 + i,
		}
		if err := repo.AppendTx(ctx, tx, event); err != nil {
			t.Fatalf("AppendTx %d: %v", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	events, err := repo.ListBySession(ctx, db, "s1", 0)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, e := range events {
		if e.SeqNo != int64(i+1) {
			t.Errorf("event %d seq = %d, want %d", i, e.SeqNo, i+1)
		}
	}

	// sinceSeq filters strictly greater.
	events, err = repo.ListBySession(ctx, db, "s1", 2)
	if err != nil {
		t.Fatalf("ListBySession since 2: %v", err)
	}
	if len(events) != 1 || events[0].SeqNo != 3 {
		t.Errorf("since 2: events = %+v, want just seq 3", events)
	}
}

func TestEventRepo_DuplicateSeqRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}

	event := domain.WorkflowEvent{
		ID: "ev-1", Session: "s1", SeqNo: 1,
		StateID: "gather-goals", EventType: "session_started", PayloadJSON: "{}",
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.AppendTx(ctx, tx, event); err != nil {
		t.Fatalf("first AppendTx: %v", err)
	}
	tx.Commit()

	event.ID = "ev-2" // new id, same (session, seq_no)
	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = repo.AppendTx(ctx, tx2, event)
	tx2.Rollback()

	if err == nil {
		t.Error("expected error on duplicate (session, seq_no), got nil")
	}
}
