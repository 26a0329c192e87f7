package shared

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Recent listing bounds.
const (
	DefaultRecentLimit = 5
	MaxRecentLimit     = 50
)

// RecentFilter selects the newest shaders, optionally for one creator.
type RecentFilter struct {
	CreatorID string
	Limit     int
}

// ClampLimit applies the default and the [1, MaxRecentLimit] bounds.
func (f RecentFilter) ClampLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultRecentLimit
	case f.Limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return f.Limit
	}
}

// ShaderStore persists shaders. Shaders are immutable once inserted.
type ShaderStore interface {
	// Insert writes a new shader. A duplicate id is a *StorageError.
	Insert(ctx context.Context, s *Shader) error
	// GetByID returns ErrNotFound when no shader has id.
	GetByID(ctx context.Context, id string) (*Shader, error)
	// Recent returns shaders newest first.
	Recent(ctx context.Context, f RecentFilter) ([]Shader, error)
}

// Store drivers accepted by NewShaderStore.
const (
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
)

// NewShaderStore opens the store named by cfg.StoreDriver. The returned
// closer releases the underlying handle and is never nil.
func NewShaderStore(ctx context.Context, cfg Config, logger *zap.Logger) (ShaderStore, func() error, error) {
	switch cfg.StoreDriver {
	case StoreDynamoDB, "":
		client, err := InitDynamoDB(ctx)
		if err != nil {
			return nil, nil, &StorageError{Op: "connect", Err: err}
		}
		return NewDynamoShaderStore(client, cfg.TableName, logger), func() error { return nil }, nil
	case StoreSQLite:
		store, err := OpenSQLiteShaderStore(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
