package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/mintmaths/store"
)

func (d *DB) CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	fields := []string{"cache_key", "uid", "body", "size"}
	args := []any{create.Key, create.UID, create.Body, create.Size}
	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		args = append(args, create.CreatedTs)
	}

	// The first writer for a key wins; later writers read its row back.
	stmt := `INSERT INTO document (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT(cache_key) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to create document")
	}

	document, err := d.GetDocument(ctx, create.Key)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, errors.Errorf("document %s vanished after insert", create.Key)
	}
	return document, nil
}

func (d *DB) GetDocument(ctx context.Context, key string) (*store.Document, error) {
	document := &store.Document{}
	err := d.db.QueryRowContext(ctx,
		"SELECT id, cache_key, uid, body, size, created_ts FROM document WHERE cache_key = "+placeholder(1), key,
	).Scan(&document.ID, &document.Key, &document.UID, &document.Body, &document.Size, &document.CreatedTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get document")
	}
	return document, nil
}

func (d *DB) DeleteDocuments(ctx context.Context, delete *store.DeleteDocument) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := delete.Key; v != nil {
		where, args = append(where, "cache_key = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.CreatedBefore; v != nil {
		where, args = append(where, "created_ts < "+placeholder(len(args)+1)), append(args, *v)
	}

	result, err := d.db.ExecContext(ctx, "DELETE FROM document WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete documents")
	}
	return result.RowsAffected()
}

func (d *DB) GetDocumentStats(ctx context.Context) (*store.DocumentStats, error) {
	stats := &store.DocumentStats{}
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size), 0) FROM document",
	).Scan(&stats.Count, &stats.Bytes); err != nil {
		return nil, errors.Wrap(err, "failed to count documents")
	}
	return stats, nil
}
