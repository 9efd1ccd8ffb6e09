package identity

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore - локальное хранилище для запуска без PostgreSQL
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore открывает (или создает) файл базы. ":memory:" - база в памяти.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// одна база в памяти живет в рамках одного соединения
	db.SetMaxOpenConns(1)

	store, err := newSQLStore(ctx, db, true)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{sqlStore: store}, nil
}
