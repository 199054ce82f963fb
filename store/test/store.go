package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/mintmaths/internal/profile"
	"github.com/hrygo/mintmaths/store"
	"github.com/hrygo/mintmaths/store/db"
)

// getDriverFromEnv returns DRIVER, defaulting to sqlite.
func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver != "" {
		return driver
	}
	return "sqlite"
}

func getTestingProfile(t *testing.T) *profile.Profile {
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:        "dev",
		Data:        dir,
		Driver:      getDriverFromEnv(),
		CatalogPath: filepath.Join(dir, "questions.csv"),
	}
	switch p.Driver {
	case "sqlite":
		p.DSN = filepath.Join(dir, "mintmaths_test.db")
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	}
	return p
}

// NewTestingStore returns a migrated store backed by the driver named in DRIVER.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(t)
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}
