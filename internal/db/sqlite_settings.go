package db

import (
	"context"
	"database/sql"
)

type sqliteSettingsRepo struct{ db *sql.DB }

// NewSettingsRepository returns the raw settings persistence boundary.
// internal/config.Store wraps this with the TTL cache and env fallback.
func NewSettingsRepository(sqlDB *sql.DB) SettingsRepository { return &sqliteSettingsRepo{db: sqlDB} }

func (r *sqliteSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, key).Scan(&v)
	return v, err
}

// Set is an upsert against the unique key index (spec.md §4.2: "Settings
// writes are upserts against the unique key index").
func (r *sqliteSettingsRepo) Set(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`
	_, err := r.db.ExecContext(ctx, q, key, value)
	return err
}

func (r *sqliteSettingsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key=?`, key)
	return err
}

func (r *sqliteSettingsRepo) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

type sqliteHistoryRepo struct{ db *sql.DB }

func NewDownloadHistoryRepository(sqlDB *sql.DB) DownloadHistoryRepository {
	return &sqliteHistoryRepo{db: sqlDB}
}

func (r *sqliteHistoryRepo) Insert(ctx context.Context, h DownloadHistory) (int64, error) {
	const q = `INSERT INTO download_history(game_id, release_id, event, at, detail) VALUES(?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, h.GameID, h.ReleaseID, h.Event, h.At.UTC(), h.Detail)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
