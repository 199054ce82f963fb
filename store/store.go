package store

import (
	"context"

	"github.com/hrygo/mintmaths/internal/profile"
)

// Store provides database access to persisted documents.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateDocument(ctx context.Context, create *Document) (*Document, error) {
	if create.Size == 0 {
		create.Size = int64(len(create.Body))
	}
	return s.driver.CreateDocument(ctx, create)
}

func (s *Store) GetDocument(ctx context.Context, key string) (*Document, error) {
	return s.driver.GetDocument(ctx, key)
}

func (s *Store) DeleteDocuments(ctx context.Context, delete *DeleteDocument) (int64, error) {
	return s.driver.DeleteDocuments(ctx, delete)
}

func (s *Store) GetDocumentStats(ctx context.Context) (*DocumentStats, error) {
	return s.driver.GetDocumentStats(ctx)
}

func (s *Store) GetSystemSetting(ctx context.Context, name string) (*SystemSetting, error) {
	return s.driver.GetSystemSetting(ctx, name)
}

func (s *Store) UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error) {
	return s.driver.UpsertSystemSetting(ctx, upsert)
}
