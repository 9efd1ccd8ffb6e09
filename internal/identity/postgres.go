package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore реализует Store для PostgreSQL (Infrastructure Layer)
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore создает хранилище из строки подключения
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройки пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := newSQLStore(ctx, db, false)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{sqlStore: store}, nil
}
