package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/mintmaths/internal/version"
)

// Profile is the configuration to start the generator.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Data is the data directory; the sqlite document store lives here
	Data string
	// Driver is the persistent document store driver: "sqlite", "postgres" or "" (memory only)
	Driver string
	// DSN points to where the document store keeps its data
	DSN string
	// Version is the current version of the generator
	Version string

	// CatalogPath is the question spreadsheet (.xlsx, .ods or .csv)
	CatalogPath string
	// SourceRoot is the base directory for relative question and solution references
	SourceRoot string
	// IncludeSolutions appends solution pages after the question pages.
	// MINTMATHS_INCLUDE_SOLUTIONS (default: true); false counts as unset in FromEnv.
	IncludeSolutions bool

	// Cache Configuration
	CacheCapacity        int           // MINTMATHS_CACHE_CAPACITY (default: 128)
	CacheTTL             time.Duration // MINTMATHS_CACHE_TTL (default: 24h)
	CacheCleanupInterval time.Duration // MINTMATHS_CACHE_CLEANUP_INTERVAL (default: 10m)
	MaxConcurrentBuilds  int64         // MINTMATHS_MAX_CONCURRENT_BUILDS (default: 3)

	// Remote source fetching
	FetchTimeout  time.Duration // MINTMATHS_FETCH_TIMEOUT (default: 30s)
	FetchRetryMax int           // MINTMATHS_FETCH_RETRY_MAX (default: 2)
	FetchRate     float64       // MINTMATHS_FETCH_RATE requests per second per host (default: 5, <= 0 unlimited)
	FetchBurst    int           // MINTMATHS_FETCH_BURST (default: 10)
}

const (
	defaultCacheCapacity        = 128
	defaultCacheTTL             = 24 * time.Hour
	defaultCacheCleanupInterval = 10 * time.Minute
	defaultMaxConcurrentBuilds  = 3
	defaultFetchTimeout         = 30 * time.Second
	defaultFetchRetryMax        = 2
	defaultFetchRate            = 5
	defaultFetchBurst           = 10
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// HasPersistentCache returns true if documents are also kept in a database.
func (p *Profile) HasPersistentCache() bool {
	return p.Driver != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("ignoring invalid integer env", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("ignoring invalid boolean env", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("ignoring invalid number env", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("ignoring invalid duration env", slog.String("key", key), slog.String("value", value))
	}
	return defaultValue
}

// FromEnv loads cache and fetch tuning from environment variables.
// Fields already set by the caller are kept.
func (p *Profile) FromEnv() {
	if p.CacheCapacity == 0 {
		p.CacheCapacity = getIntEnvOrDefault("MINTMATHS_CACHE_CAPACITY", defaultCacheCapacity)
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = getDurationEnvOrDefault("MINTMATHS_CACHE_TTL", defaultCacheTTL)
	}
	if p.CacheCleanupInterval == 0 {
		p.CacheCleanupInterval = getDurationEnvOrDefault("MINTMATHS_CACHE_CLEANUP_INTERVAL", defaultCacheCleanupInterval)
	}
	if p.MaxConcurrentBuilds == 0 {
		p.MaxConcurrentBuilds = int64(getIntEnvOrDefault("MINTMATHS_MAX_CONCURRENT_BUILDS", defaultMaxConcurrentBuilds))
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = getDurationEnvOrDefault("MINTMATHS_FETCH_TIMEOUT", defaultFetchTimeout)
	}
	if p.FetchRetryMax == 0 {
		p.FetchRetryMax = getIntEnvOrDefault("MINTMATHS_FETCH_RETRY_MAX", defaultFetchRetryMax)
	}
	if p.FetchRate == 0 {
		p.FetchRate = getFloatEnvOrDefault("MINTMATHS_FETCH_RATE", defaultFetchRate)
	}
	if p.FetchBurst == 0 {
		p.FetchBurst = getIntEnvOrDefault("MINTMATHS_FETCH_BURST", defaultFetchBurst)
	}
	if !p.IncludeSolutions {
		p.IncludeSolutions = getBoolEnvOrDefault("MINTMATHS_INCLUDE_SOLUTIONS", true)
	}
	if p.SourceRoot == "" {
		p.SourceRoot = getEnvOrDefault("MINTMATHS_SOURCE_ROOT", "")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Version != "" {
		if err := version.Validate(p.Version); err != nil {
			return err
		}
	}

	if p.CatalogPath == "" {
		return errors.New("catalog path is required")
	}

	switch p.Driver {
	case "", "sqlite", "postgres":
	default:
		return errors.Errorf("unknown driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.SourceRoot == "" {
		p.SourceRoot = filepath.Dir(p.CatalogPath)
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("mintmaths_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	if p.CacheCapacity <= 0 {
		p.CacheCapacity = defaultCacheCapacity
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = defaultCacheTTL
	}
	if p.CacheCleanupInterval <= 0 {
		p.CacheCleanupInterval = defaultCacheCleanupInterval
	}
	if p.MaxConcurrentBuilds <= 0 {
		p.MaxConcurrentBuilds = defaultMaxConcurrentBuilds
	}
	if p.FetchTimeout <= 0 {
		p.FetchTimeout = defaultFetchTimeout
	}
	if p.FetchRetryMax < 0 {
		p.FetchRetryMax = 0
	}
	if p.FetchBurst <= 0 {
		p.FetchBurst = defaultFetchBurst
	}

	return nil
}
