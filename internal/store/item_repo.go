package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openboard/engine/internal/domain"
)

// ItemRepo handles persistence for WorkItem records.
type ItemRepo struct{}

// InsertTx adds a work item to a session within an existing transaction.
func (r *ItemRepo) InsertTx(ctx context.Context, tx *sql.Tx, session string, item domain.WorkItem) error {
	const q = `INSERT INTO work_items (session, number, type, status) VALUES (?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, session, item.Number, string(item.Type), string(item.Status))
	if err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

// UpdateStatusTx writes an item's status within an existing transaction.
func (r *ItemRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, session string, item domain.WorkItem) error {
	const q = `UPDATE work_items SET status = ? WHERE session = ? AND number = ?`
	res, err := tx.ExecContext(ctx, q, string(item.Status), session, item.Number)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ListBySession returns a session's work items ordered by number. Stored
// statuses are returned verbatim; callers migrate legacy values on load.
func (r *ItemRepo) ListBySession(ctx context.Context, db *sql.DB, session string) ([]domain.WorkItem, error) {
	const q = `SELECT number, type, status FROM work_items WHERE session = ? ORDER BY number ASC`

	rows, err := db.QueryContext(ctx, q, session)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []domain.WorkItem
	for rows.Next() {
		var item domain.WorkItem
		var itemType, status string
		if err := rows.Scan(&item.Number, &itemType, &status); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		item.Type = domain.ItemType(itemType)
		item.Status = domain.ItemStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}
