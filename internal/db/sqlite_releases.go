package db

import (
	"context"
	"database/sql"
	"strings"
)

type sqliteReleaseRepo struct{ db *sql.DB }

func NewReleaseRepository(sqlDB *sql.DB) ReleaseRepository { return &sqliteReleaseRepo{db: sqlDB} }

const releaseColumns = `id, game_id, title, size, seeders, download_url, indexer, quality, torrent_hash, grabbed_at, status`

func scanRelease(row interface{ Scan(...any) error }) (Release, error) {
	var r Release
	var quality, hash sql.NullString
	if err := row.Scan(&r.ID, &r.GameID, &r.Title, &r.Size, &r.Seeders, &r.DownloadURL,
		&r.Indexer, &quality, &hash, &r.GrabbedAt, &r.Status); err != nil {
		return Release{}, err
	}
	if quality.Valid {
		r.Quality = &quality.String
	}
	if hash.Valid {
		r.TorrentHash = &hash.String
	}
	return r, nil
}

func (r *sqliteReleaseRepo) Get(ctx context.Context, id int64) (Release, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id=?`, id)
	return scanRelease(row)
}

func (r *sqliteReleaseRepo) Insert(ctx context.Context, rel Release) (int64, error) {
	const q = `
INSERT INTO releases(game_id, title, size, seeders, download_url, indexer, quality, torrent_hash, grabbed_at, status)
VALUES(?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, rel.GameID, rel.Title, rel.Size, rel.Seeders, rel.DownloadURL,
		rel.Indexer, rel.Quality, rel.TorrentHash, rel.GrabbedAt.UTC(), rel.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *sqliteReleaseRepo) UpdateStatus(ctx context.Context, id int64, status ReleaseStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE releases SET status=? WHERE id=?`, status, id)
	return err
}

func (r *sqliteReleaseRepo) SetTorrentHash(ctx context.Context, id int64, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE releases SET torrent_hash=? WHERE id=?`, hash, id)
	return err
}

func (r *sqliteReleaseRepo) ListActiveByGame(ctx context.Context, gameID int64) ([]Release, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE game_id=? AND status IN ('pending','downloading')`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *sqliteReleaseRepo) ListByStatus(ctx context.Context, status ReleaseStatus) ([]Release, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE status=?`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *sqliteReleaseRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM releases WHERE id=?`, id)
	return err
}

// BatchDelete removes many releases in a single statement (spec.md §4.9.1).
func (r *sqliteReleaseRepo) BatchDelete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	q := `DELETE FROM releases WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}
