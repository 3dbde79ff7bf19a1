package taskgraph

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openboard/engine/internal/domain"
	"github.com/openboard/engine/internal/store"
)

// Syncer reconciles freshly built batches with a session's persisted task
// progress. Batches are replaced wholesale on every sync; the completed id
// set is carried forward and never inferred from batch status, so re-sync
// is idempotent with respect to already-finished work.
type Syncer struct {
	DB          *sql.DB
	SessionRepo *store.SessionRepo
	DocRepo     *store.DocumentRepo
	EventRepo   *store.EventRepo
}

// NewSyncer creates a Syncer over the given database.
func NewSyncer(db *sql.DB) *Syncer {
	return &Syncer{
		DB:          db,
		SessionRepo: &store.SessionRepo{},
		DocRepo:     &store.DocumentRepo{},
		EventRepo:   &store.EventRepo{},
	}
}

// Sync loads the session's task declarations, rebuilds batches, recomputes
// the pending set against the carried-forward completed set, and persists
// the merged result with the current batch index reset to zero.
//
// When neither a consolidated task-graph document nor any per-item
// declarations exist, Sync fails with ErrNoTasksFound; that is a
// recoverable precondition for the caller, not a crash.
func (s *Syncer) Sync(ctx context.Context, session string) (*domain.SessionState, error) {
	state, err := s.SessionRepo.GetByName(ctx, s.DB, session)
	if err != nil {
		return nil, err
	}

	tasks, err := s.loadDeclarations(ctx, session)
	if err != nil {
		return nil, err
	}

	batches, err := BuildBatches(tasks)
	if err != nil {
		return nil, err
	}

	inSet := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		inSet[t.ID] = true
	}

	// Completed membership is carried forward verbatim for ids still in the
	// task set; pending is everything else. The two sets stay disjoint and
	// together cover the full id set.
	completed := make([]string, 0, len(state.CompletedTasks))
	done := make(map[string]bool, len(state.CompletedTasks))
	for _, id := range state.CompletedTasks {
		if inSet[id] && !done[id] {
			completed = append(completed, id)
			done[id] = true
		}
	}
	pending := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if !done[t.ID] {
			pending = append(pending, t.ID)
		}
	}

	updated := *state
	updated.Batches = batches
	updated.CurrentBatch = 0
	updated.CompletedTasks = completed
	updated.PendingTasks = pending

	now := time.Now().Unix()
	newSeq := state.LastEventSeq + 1
	updated.LastEventSeq = newSeq
	updated.UpdatedAtUnix = now

	event := domain.WorkflowEvent{
		ID:          uuid.NewString(),
		Session:     session,
		SeqNo:       newSeq,
		StateID:     state.StateID,
		EventType:   "tasks_synced",
		PayloadJSON: fmt.Sprintf(`{"tasks":%d,"batches":%d,"completed":%d,"pending":%d}`, len(tasks), len(batches), len(completed), len(pending)),
		CreatedAt:   now,
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.EventRepo.AppendTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("append sync event: %w", err)
	}
	if err := s.SessionRepo.UpdateStateTx(ctx, tx, updated); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	updated.StateVersion++
	return &updated, nil
}

// loadDeclarations prefers the consolidated task-graph document and falls
// back to merging per-item declarations in first-seen order.
func (s *Syncer) loadDeclarations(ctx context.Context, session string) ([]domain.TaskGraphTask, error) {
	doc, err := s.DocRepo.GetTaskGraph(ctx, s.DB, session)
	if err == nil {
		tasks, err := ParseTasks(doc.Content)
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			return nil, domain.ErrNoTasksFound
		}
		return tasks, nil
	}
	if err != domain.ErrDocumentNotFound {
		return nil, err
	}

	docs, err := s.DocRepo.ListItemDocs(ctx, s.DB, session)
	if err != nil {
		return nil, err
	}

	lists := make([][]domain.TaskGraphTask, 0, len(docs))
	for _, d := range docs {
		tasks, err := ParseTasks(d.Content)
		if err != nil {
			return nil, fmt.Errorf("item %d declarations: %w", d.ItemNumber, err)
		}
		lists = append(lists, tasks)
	}

	merged := MergeDeclarations(lists...)
	if len(merged) == 0 {
		return nil, domain.ErrNoTasksFound
	}
	return merged, nil
}
