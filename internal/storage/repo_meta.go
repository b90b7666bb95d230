package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type metaRepository struct {
	q querier
}

func (r *metaRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := r.q.QueryRowContext(ctx, `SELECT value FROM app_meta WHERE key = ?`, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, true, nil
}

func (r *metaRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO app_meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}
