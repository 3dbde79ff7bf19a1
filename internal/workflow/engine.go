package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openboard/engine/internal/domain"
	"github.com/openboard/engine/internal/store"
)

// Engine drives persisted sessions through the state machine. The pure
// pieces (Evaluate, NextState, UpdateItemStatus) stay free of I/O; the
// engine wraps them with loads and single-transaction writes.
type Engine struct {
	DB          *sql.DB
	Registry    *Registry
	SessionRepo *store.SessionRepo
	ItemRepo    *store.ItemRepo
	EventRepo   *store.EventRepo
}

// NewEngine creates an engine over the given database and registry.
func NewEngine(db *sql.DB, registry *Registry) *Engine {
	return &Engine{
		DB:          db,
		Registry:    registry,
		SessionRepo: &store.SessionRepo{},
		ItemRepo:    &store.ItemRepo{},
		EventRepo:   &store.EventRepo{},
	}
}

// StartSession creates a session at the registry's entry state with the
// given work items. Item numbers are assigned 1..n in declaration order.
func (e *Engine) StartSession(ctx context.Context, name string, sessionType domain.SessionType, items []domain.WorkItem) error {
	if name == "" {
		return domain.NewEngineError(domain.ErrConfigInvalid.Code, "session name is required")
	}
	switch sessionType {
	case domain.SessionFeature, domain.SessionQuickfix:
	default:
		return domain.NewEngineError(domain.ErrConfigInvalid.Code, fmt.Sprintf("unknown session type: %s", sessionType))
	}

	if _, err := e.SessionRepo.GetByName(ctx, e.DB, name); err == nil {
		return domain.ErrDuplicateSession
	} else if err != domain.ErrSessionNotFound {
		return err
	}

	now := time.Now().Unix()
	state := domain.SessionState{
		Name:          name,
		SessionType:   sessionType,
		StateID:       e.Registry.Initial(),
		Status:        domain.SessionRunning,
		StateVersion:  1,
		LastEventSeq:  1, // The initial session_started event uses seq 1.
		UpdatedAtUnix: now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.SessionRepo.CreateTx(ctx, tx, state); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	for i, item := range items {
		item.Number = i + 1
		item.Status = domain.ItemPending
		if err := e.ItemRepo.InsertTx(ctx, tx, name, item); err != nil {
			return fmt.Errorf("insert item %d: %w", item.Number, err)
		}
	}

	event := domain.WorkflowEvent{
		ID:          uuid.NewString(),
		Session:     name,
		SeqNo:       1,
		StateID:     state.StateID,
		EventType:   "session_started",
		PayloadJSON: "{}",
		CreatedAt:   now,
	}
	if err := e.EventRepo.AppendTx(ctx, tx, event); err != nil {
		return fmt.Errorf("append start event: %w", err)
	}

	return tx.Commit()
}

// GetSession returns a session with its work items populated. Legacy item
// statuses are migrated on load.
func (e *Engine) GetSession(ctx context.Context, name string) (*domain.SessionState, error) {
	state, err := e.SessionRepo.GetByName(ctx, e.DB, name)
	if err != nil {
		return nil, err
	}
	items, err := e.ItemRepo.ListBySession(ctx, e.DB, name)
	if err != nil {
		return nil, err
	}
	state.Items, err = MigrateItems(items)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Advance resolves the session's next state and persists the transition in
// a single transaction with optimistic locking. Reaching a terminal state
// marks the session completed.
func (e *Engine) Advance(ctx context.Context, name string) (*domain.SessionState, error) {
	state, err := e.GetSession(ctx, name)
	if err != nil {
		return nil, err
	}
	if state.Status == domain.SessionDone {
		return nil, domain.ErrSessionDone
	}

	next, ok, err := NextState(e.Registry, state.StateID, state.Snapshot())
	if err != nil {
		return nil, err
	}

	updated := *state
	now := time.Now().Unix()
	newSeq := state.LastEventSeq + 1

	var event domain.WorkflowEvent
	if !ok {
		current, err := e.Registry.State(state.StateID)
		if err != nil {
			return nil, err
		}
		if len(current.Transitions) > 0 {
			// Registry invariant violated: guards matched nothing and no
			// unconditional fallback exists.
			return nil, domain.ErrNoTransition
		}
		updated.Status = domain.SessionDone
		event = domain.WorkflowEvent{
			ID:          uuid.NewString(),
			Session:     name,
			SeqNo:       newSeq,
			StateID:     state.StateID,
			EventType:   "session_completed",
			PayloadJSON: "{}",
			CreatedAt:   now,
		}
	} else {
		updated.StateID = next
		event = domain.WorkflowEvent{
			ID:          uuid.NewString(),
			Session:     name,
			SeqNo:       newSeq,
			StateID:     next,
			EventType:   "state_transition",
			PayloadJSON: fmt.Sprintf(`{"from":%q,"to":%q}`, state.StateID, next),
			CreatedAt:   now,
		}
	}

	updated.LastEventSeq = newSeq
	updated.UpdatedAtUnix = now

	if err := e.commit(ctx, updated, event); err != nil {
		return nil, err
	}
	updated.StateVersion++
	return &updated, nil
}

// UpdateItem applies a validated status transition to one work item.
func (e *Engine) UpdateItem(ctx context.Context, name string, number int, status domain.ItemStatus) (*domain.WorkItem, error) {
	state, err := e.GetSession(ctx, name)
	if err != nil {
		return nil, err
	}

	var current *domain.WorkItem
	for i := range state.Items {
		if state.Items[i].Number == number {
			current = &state.Items[i]
			break
		}
	}
	if current == nil {
		return nil, domain.ErrItemNotFound
	}

	updated, err := UpdateItemStatus(*current, status)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	newSeq := state.LastEventSeq + 1

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.ItemRepo.UpdateStatusTx(ctx, tx, name, updated); err != nil {
		return nil, err
	}

	event := domain.WorkflowEvent{
		ID:          uuid.NewString(),
		Session:     name,
		SeqNo:       newSeq,
		StateID:     state.StateID,
		EventType:   "item_status",
		PayloadJSON: fmt.Sprintf(`{"item":%d,"from":%q,"to":%q}`, number, current.Status, status),
		CreatedAt:   now,
	}
	if err := e.EventRepo.AppendTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("append item event: %w", err)
	}

	sessionRow := *state
	sessionRow.LastEventSeq = newSeq
	sessionRow.UpdatedAtUnix = now
	if err := e.SessionRepo.UpdateStateTx(ctx, tx, sessionRow); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetCurrentItem points the session at the work item a driver is about to
// work on. Guards of kind item_type read this selection.
func (e *Engine) SetCurrentItem(ctx context.Context, name string, number int) error {
	state, err := e.GetSession(ctx, name)
	if err != nil {
		return err
	}

	found := false
	for _, item := range state.Items {
		if item.Number == number {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrItemNotFound
	}

	updated := *state
	updated.CurrentItem = number
	updated.UpdatedAtUnix = time.Now().Unix()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.SessionRepo.UpdateStateTx(ctx, tx, updated); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkTaskComplete records that a batch task finished. The id moves from
// the pending set to the completed set, the batch entry is marked, and the
// current batch index advances once every task in it is complete. Batch
// status never feeds back into the completed set; the set is authoritative.
func (e *Engine) MarkTaskComplete(ctx context.Context, name, taskID string) (*domain.SessionState, error) {
	state, err := e.GetSession(ctx, name)
	if err != nil {
		return nil, err
	}

	updated := *state
	updated.Batches = cloneBatches(state.Batches)

	if !containsID(updated.CompletedTasks, taskID) {
		updated.CompletedTasks = append(append([]string(nil), updated.CompletedTasks...), taskID)
	}
	updated.PendingTasks = removeID(updated.PendingTasks, taskID)

	for bi := range updated.Batches {
		for ti := range updated.Batches[bi].Tasks {
			if updated.Batches[bi].Tasks[ti].ID == taskID {
				updated.Batches[bi].Tasks[ti].Status = domain.TaskComplete
			}
		}
	}
	for updated.CurrentBatch < len(updated.Batches) && batchDone(updated.Batches[updated.CurrentBatch]) {
		updated.Batches[updated.CurrentBatch].Status = domain.TaskComplete
		updated.CurrentBatch++
	}

	now := time.Now().Unix()
	newSeq := state.LastEventSeq + 1
	updated.LastEventSeq = newSeq
	updated.UpdatedAtUnix = now

	event := domain.WorkflowEvent{
		ID:          uuid.NewString(),
		Session:     name,
		SeqNo:       newSeq,
		StateID:     state.StateID,
		EventType:   "task_completed",
		PayloadJSON: fmt.Sprintf(`{"task":%q}`, taskID),
		CreatedAt:   now,
	}

	if err := e.commit(ctx, updated, event); err != nil {
		return nil, err
	}
	updated.StateVersion++
	return &updated, nil
}

// commit appends an event and writes the session row in one transaction.
func (e *Engine) commit(ctx context.Context, state domain.SessionState, event domain.WorkflowEvent) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.EventRepo.AppendTx(ctx, tx, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if err := e.SessionRepo.UpdateStateTx(ctx, tx, state); err != nil {
		return err
	}
	return tx.Commit()
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func batchDone(b domain.TaskBatch) bool {
	for _, t := range b.Tasks {
		if t.Status != domain.TaskComplete {
			return false
		}
	}
	return true
}

func cloneBatches(batches []domain.TaskBatch) []domain.TaskBatch {
	out := make([]domain.TaskBatch, len(batches))
	for i, b := range batches {
		out[i] = b
		out[i].Tasks = append([]domain.BatchTask(nil), b.Tasks...)
	}
	return out
}
