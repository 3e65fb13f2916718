package db

import (
	"context"
	"database/sql"
	"time"
)

type sqliteGameUpdateRepo struct{ db *sql.DB }

func NewGameUpdateRepository(sqlDB *sql.DB) GameUpdateRepository {
	return &sqliteGameUpdateRepo{db: sqlDB}
}

const gameUpdateColumns = `id, game_id, update_type, title, version, size, quality, seeders, download_url, indexer, status, created_at`

func scanGameUpdate(row interface{ Scan(...any) error }) (GameUpdate, error) {
	var u GameUpdate
	var version, quality sql.NullString
	if err := row.Scan(&u.ID, &u.GameID, &u.UpdateType, &u.Title, &version, &u.Size, &quality,
		&u.Seeders, &u.DownloadURL, &u.Indexer, &u.Status, &u.CreatedAt); err != nil {
		return GameUpdate{}, err
	}
	if version.Valid {
		u.Version = &version.String
	}
	if quality.Valid {
		u.Quality = &quality.String
	}
	return u, nil
}

func (r *sqliteGameUpdateRepo) ListForGame(ctx context.Context, gameID int64) ([]GameUpdate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+gameUpdateColumns+` FROM game_updates WHERE game_id=?`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GameUpdate
	for rows.Next() {
		u, err := scanGameUpdate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *sqliteGameUpdateRepo) Insert(ctx context.Context, u GameUpdate) (int64, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT OR IGNORE INTO game_updates(game_id, update_type, title, version, size, quality, seeders, download_url, indexer, status, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, u.GameID, u.UpdateType, u.Title, u.Version, u.Size,
		u.Quality, u.Seeders, u.DownloadURL, u.Indexer, u.Status, u.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// BatchInsert inserts many candidates in one transaction. Dedup keys
// (game_id, download_url) and (game_id, title) are both unique indexes, so
// a conflict on either is silently ignored (spec.md §4.8 step 6).
func (r *sqliteGameUpdateRepo) BatchInsert(ctx context.Context, us []GameUpdate) error {
	if len(us) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const q = `
INSERT OR IGNORE INTO game_updates(game_id, update_type, title, version, size, quality, seeders, download_url, indexer, status, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, u := range us {
		createdAt := u.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, u.GameID, u.UpdateType, u.Title, u.Version, u.Size,
			u.Quality, u.Seeders, u.DownloadURL, u.Indexer, u.Status, createdAt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *sqliteGameUpdateRepo) UpdateStatus(ctx context.Context, id int64, status UpdateStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE game_updates SET status=? WHERE id=?`, status, id)
	return err
}

func (r *sqliteGameUpdateRepo) Get(ctx context.Context, id int64) (GameUpdate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameUpdateColumns+` FROM game_updates WHERE id=?`, id)
	return scanGameUpdate(row)
}
