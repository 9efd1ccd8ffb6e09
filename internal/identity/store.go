package identity

import (
	"context"
	"errors"
	"fmt"
)

// Store - долговременное хранилище личностей по sessionID
type Store interface {
	Save(ctx context.Context, sessionID string, id *Identity) error
	// Load возвращает ErrNotFound, если записи нет
	Load(ctx context.Context, sessionID string) (*Identity, error)
	Delete(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}

// StoreType - драйвер хранилища
type StoreType string

const (
	StoreTypePostgres StoreType = "postgres"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
)

var ErrInvalidStoreType = errors.New("invalid identity store type")

// Params - параметры подключения для NewStore
type Params struct {
	PostgresDSN string
	SQLitePath  string
	ProfilePath string
}

// NewStore создает хранилище по типу драйвера
func NewStore(ctx context.Context, storeType StoreType, params Params) (Store, error) {
	switch storeType {
	case StoreTypePostgres:
		return NewPostgresStore(ctx, params.PostgresDSN)
	case StoreTypeSQLite:
		return NewSQLiteStore(ctx, params.SQLitePath)
	case StoreTypeFile:
		return NewFileStore(params.ProfilePath)
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, storeType)
	}
}
