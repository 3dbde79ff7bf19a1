package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openboard/engine/internal/domain"
)

// DocumentRepo handles persistence for task declaration documents.
type DocumentRepo struct{}

// Put inserts or replaces a document.
func (r *DocumentRepo) Put(ctx context.Context, db *sql.DB, doc domain.Document) error {
	const q = `INSERT INTO documents (session, kind, item_number, content, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session, kind, item_number) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, q, doc.Session, string(doc.Kind), doc.ItemNumber, doc.Content, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

// GetTaskGraph returns the session's consolidated task-graph document, or
// ErrDocumentNotFound when none has been written.
func (r *DocumentRepo) GetTaskGraph(ctx context.Context, db *sql.DB, session string) (*domain.Document, error) {
	const q = `SELECT session, kind, item_number, content, updated_at
FROM documents WHERE session = ? AND kind = ?`

	row := db.QueryRowContext(ctx, q, session, string(domain.DocTaskGraph))
	return scanDocument(row)
}

// ListItemDocs returns a session's per-item declaration documents ordered
// by item number, so first-seen merge order is stable.
func (r *DocumentRepo) ListItemDocs(ctx context.Context, db *sql.DB, session string) ([]domain.Document, error) {
	const q = `SELECT session, kind, item_number, content, updated_at
FROM documents WHERE session = ? AND kind = ? ORDER BY item_number ASC`

	rows, err := db.QueryContext(ctx, q, session, string(domain.DocItemTasks))
	if err != nil {
		return nil, fmt.Errorf("list item documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		var kind string
		if err := rows.Scan(&d.Session, &kind, &d.ItemNumber, &d.Content, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Kind = domain.DocumentKind(kind)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var d domain.Document
	var kind string
	err := row.Scan(&d.Session, &kind, &d.ItemNumber, &d.Content, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	d.Kind = domain.DocumentKind(kind)
	return &d, nil
}
