package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openboard/engine/internal/domain"
)

// EventRepo handles persistence for WorkflowEvent records.
type EventRepo struct{}

// AppendTx inserts a workflow event within an existing transaction.
func (r *EventRepo) AppendTx(ctx context.Context, tx *sql.Tx, event domain.WorkflowEvent) error {
	const q = `INSERT INTO workflow_events (id, session, seq_no, state_id, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		event.ID,
		event.Session,
		event.SeqNo,
		event.StateID,
		event.EventType,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListBySession returns events for a session with sequence numbers greater
// than sinceSeq, ordered by sequence number ascending.
func (r *EventRepo) ListBySession(ctx context.Context, db *sql.DB, session string, sinceSeq int64) ([]domain.WorkflowEvent, error) {
	const q = `SELECT id, session, seq_no, state_id, event_type, payload_json, created_at
FROM workflow_events
WHERE session = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := db.QueryContext(ctx, q, session, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.WorkflowEvent
	for rows.Next() {
		var e domain.WorkflowEvent
		if err := rows.Scan(&e.ID, &e.Session, &e.SeqNo, &e.StateID, &e.EventType, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
