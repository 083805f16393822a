package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/openclaw/tether-go/internal/database"
)

// SQLStore keeps entries in the kv_store table of a postgres or sqlite database.
type SQLStore struct {
	db        *database.DB
	namespace string
}

func NewSQLStore(db *database.DB, namespace string) *SQLStore {
	return &SQLStore{db: db, namespace: namespace}
}

func (s *SQLStore) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO kv_store (namespace, record_key, record_value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (namespace, record_key) DO UPDATE SET
			record_value = excluded.record_value,
			updated_at = CURRENT_TIMESTAMP
	`), s.namespace, key, value)
	return err
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`
		SELECT record_value FROM kv_store
		WHERE namespace = ? AND record_key = ?
	`), s.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM kv_store WHERE namespace = ? AND record_key = ?
	`), s.namespace, key)
	return err
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM kv_store WHERE namespace = ?
	`), s.namespace)
	return err
}
