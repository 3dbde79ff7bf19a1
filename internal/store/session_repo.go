package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openboard/engine/internal/domain"
)

// SessionRepo handles persistence for SessionState records. Work items are
// stored separately by ItemRepo; batches and task id sets are JSON columns
// on the session row.
type SessionRepo struct{}

// CreateTx inserts a new session within an existing transaction.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, state domain.SessionState) error {
	batches, completed, pending, err := marshalSets(state)
	if err != nil {
		return err
	}

	const q = `INSERT INTO sessions (name, session_type, state_id, status, state_version, current_item, current_batch, batches_json, completed_json, pending_json, last_event_seq, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		state.Name,
		string(state.SessionType),
		state.StateID,
		string(state.Status),
		state.StateVersion,
		state.CurrentItem,
		state.CurrentBatch,
		batches,
		completed,
		pending,
		state.LastEventSeq,
		state.UpdatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateStateTx updates a session within a transaction using optimistic
// locking. The update only succeeds if the current state_version matches
// the version the caller loaded.
func (r *SessionRepo) UpdateStateTx(ctx context.Context, tx *sql.Tx, state domain.SessionState) error {
	batches, completed, pending, err := marshalSets(state)
	if err != nil {
		return err
	}

	const q = `UPDATE sessions SET
		session_type = ?,
		state_id = ?,
		status = ?,
		state_version = state_version + 1,
		current_item = ?,
		current_batch = ?,
		batches_json = ?,
		completed_json = ?,
		pending_json = ?,
		last_event_seq = ?,
		updated_at_unix = ?
	WHERE name = ? AND state_version = ?`

	res, err := tx.ExecContext(ctx, q,
		string(state.SessionType),
		state.StateID,
		string(state.Status),
		state.CurrentItem,
		state.CurrentBatch,
		batches,
		completed,
		pending,
		state.LastEventSeq,
		state.UpdatedAtUnix,
		state.Name,
		state.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// GetByName retrieves a session by name. Work items are not populated;
// callers load them through ItemRepo.
func (r *SessionRepo) GetByName(ctx context.Context, db *sql.DB, name string) (*domain.SessionState, error) {
	const q = `SELECT name, session_type, state_id, status, state_version, current_item, current_batch, batches_json, completed_json, pending_json, last_event_seq, updated_at_unix
FROM sessions WHERE name = ?`

	row := db.QueryRowContext(ctx, q, name)

	var s domain.SessionState
	var sessionType, stateID, status, batches, completed, pending string
	err := row.Scan(&s.Name, &sessionType, &stateID, &status, &s.StateVersion,
		&s.CurrentItem, &s.CurrentBatch, &batches, &completed, &pending,
		&s.LastEventSeq, &s.UpdatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.SessionType = domain.SessionType(sessionType)
	s.StateID = stateID
	s.Status = domain.SessionStatus(status)

	if err := json.Unmarshal([]byte(batches), &s.Batches); err != nil {
		return nil, fmt.Errorf("decode batches: %w", err)
	}
	if err := json.Unmarshal([]byte(completed), &s.CompletedTasks); err != nil {
		return nil, fmt.Errorf("decode completed tasks: %w", err)
	}
	if err := json.Unmarshal([]byte(pending), &s.PendingTasks); err != nil {
		return nil, fmt.Errorf("decode pending tasks: %w", err)
	}
	return &s, nil
}

func marshalSets(state domain.SessionState) (batches, completed, pending string, err error) {
	b, err := json.Marshal(emptyIfNilBatches(state.Batches))
	if err != nil {
		return "", "", "", fmt.Errorf("encode batches: %w", err)
	}
	c, err := json.Marshal(emptyIfNil(state.CompletedTasks))
	if err != nil {
		return "", "", "", fmt.Errorf("encode completed tasks: %w", err)
	}
	p, err := json.Marshal(emptyIfNil(state.PendingTasks))
	if err != nil {
		return "", "", "", fmt.Errorf("encode pending tasks: %w", err)
	}
	return string(b), string(c), string(p), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyIfNilBatches(b []domain.TaskBatch) []domain.TaskBatch {
	if b == nil {
		return []domain.TaskBatch{}
	}
	return b
}
