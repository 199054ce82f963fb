package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// SystemSetting model related methods.
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
	GetSystemSetting(ctx context.Context, name string) (*SystemSetting, error)

	// Document model related methods.
	// CreateDocument keeps an existing row with the same key and returns it.
	CreateDocument(ctx context.Context, create *Document) (*Document, error)
	GetDocument(ctx context.Context, key string) (*Document, error)
	DeleteDocuments(ctx context.Context, delete *DeleteDocument) (int64, error)
	GetDocumentStats(ctx context.Context) (*DocumentStats, error)
}
