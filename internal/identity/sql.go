package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const createIdentitiesSQL = `
CREATE TABLE IF NOT EXISTS identities (
    session_id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    access_token TEXT NOT NULL,
    source TEXT NOT NULL,
    signed_in_at BIGINT NOT NULL
)`

// sqlStore - общая реализация для PostgreSQL и SQLite.
// Запросы пишутся с плейсхолдерами $n; для SQLite они переписываются в ?.
type sqlStore struct {
	db         *sql.DB
	positional bool
}

func newSQLStore(ctx context.Context, db *sql.DB, positional bool) (*sqlStore, error) {
	s := &sqlStore{db: db, positional: positional}
	if _, err := db.ExecContext(ctx, createIdentitiesSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return s, nil
}

func (s *sqlStore) rebind(query string) string {
	if !s.positional {
		return query
	}
	for i := 5; i >= 1; i-- {
		query = strings.ReplaceAll(query, "$"+strconv.Itoa(i), "?")
	}
	return query
}

func (s *sqlStore) Save(ctx context.Context, sessionID string, id *Identity) error {
	query := s.rebind(`
		INSERT INTO identities (session_id, username, access_token, source, signed_in_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id)
		DO UPDATE SET username = excluded.username, access_token = excluded.access_token,
			source = excluded.source, signed_in_at = excluded.signed_in_at
	`)

	_, err := s.db.ExecContext(ctx, query,
		sessionID,
		id.Username,
		id.AccessToken,
		string(id.Source),
		id.SignedInAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

func (s *sqlStore) Load(ctx context.Context, sessionID string) (*Identity, error) {
	query := s.rebind(`
		SELECT username, access_token, source, signed_in_at
		FROM identities
		WHERE session_id = $1
	`)

	var id Identity
	var source string
	var signedInAt int64

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&id.Username,
		&id.AccessToken,
		&source,
		&signedInAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	id.Source = Source(source)
	id.SignedInAt = time.UnixMilli(signedInAt).UTC()
	return &id, nil
}

func (s *sqlStore) Delete(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM identities WHERE session_id = $1`), sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
