package db

import (
	"fmt"
	"strings"

	"microbench/internal/benchmark"
)

const (
	DefaultFilePath   = ".microbench/history.json"
	DefaultSQLitePath = ".microbench/history.db"
)

// StoreConfig holds configuration for the history backend
type StoreConfig struct {
	Backend string // "file", "sqlite" or "postgres"
	Path    string // File path for file and SQLite backends
	DSN     string // Connection string for Postgres
}

// NewStore creates a run store based on the provided configuration
func NewStore(config StoreConfig) (benchmark.Store, error) {
	switch strings.ToLower(config.Backend) {
	case "", "file", "json":
		if config.Path == "" {
			config.Path = DefaultFilePath
		}
		return benchmark.NewFileStore(config.Path)
	case "sqlite", "sqlite3":
		if config.Path == "" || strings.HasSuffix(config.Path, ".json") {
			config.Path = DefaultSQLitePath
		}
		return NewSQLiteStore(config.Path)
	case "postgres", "postgresql":
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		return NewPostgresStore(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", config.Backend)
	}
}
