package kvstore

import (
	"context"
	"fmt"
	"path/filepath"
)

// Config contains configuration for creating a store
type Config struct {
	// DatabaseURL is required for postgres stores
	DatabaseURL string
	// DataDir is required for file stores
	DataDir string
	// SQLitePath is the database file for sqlite stores (default: DataDir/twofa.db)
	SQLitePath string
}

// NewStore creates a store based on the persistence type
func NewStore(ctx context.Context, persistenceType string, config Config) (Store, error) {
	switch persistenceType {
	case "memory", "inmem", "":
		return NewInMemoryStore(), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file store")
		}
		return NewFileStore(config.DataDir)
	case "postgres", "postgresql":
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("database url required for postgres store")
		}
		return OpenPostgresStore(ctx, config.DatabaseURL)
	case "sqlite":
		path := config.SQLitePath
		if path == "" {
			if config.DataDir == "" {
				return nil, fmt.Errorf("sqlite path or dataDir required for sqlite store")
			}
			path = filepath.Join(config.DataDir, "twofa.db")
		}
		return OpenSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: memory, file, postgres, sqlite)", persistenceType)
	}
}
