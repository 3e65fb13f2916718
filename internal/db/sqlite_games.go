package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type sqliteGameRepo struct{ db *sql.DB }

// NewGameRepository returns a GameRepository backed by sqlDB.
func NewGameRepository(sqlDB *sql.DB) GameRepository { return &sqliteGameRepo{db: sqlDB} }

const gameColumns = `id, external_id, title, year, platform, cover_url, folder_path, monitored,
	status, installed_version, installed_quality, update_policy, update_available,
	last_update_check, latest_version, library_id`

func scanGame(row interface{ Scan(...any) error }) (Game, error) {
	var g Game
	var monitored, updateAvailable int
	var year, libraryID sql.NullInt64
	var installedVersion, installedQuality, latestVersion sql.NullString
	var lastCheck sql.NullTime
	if err := row.Scan(
		&g.ID, &g.ExternalID, &g.Title, &year, &g.Platform, &g.CoverURL, &g.FolderPath,
		&monitored, &g.Status, &installedVersion, &installedQuality, &g.UpdatePolicy,
		&updateAvailable, &lastCheck, &latestVersion, &libraryID,
	); err != nil {
		return Game{}, err
	}
	g.Monitored = monitored == 1
	g.UpdateAvailable = updateAvailable == 1
	if year.Valid {
		y := int(year.Int64)
		g.Year = &y
	}
	if libraryID.Valid {
		g.LibraryID = &libraryID.Int64
	}
	if installedVersion.Valid {
		g.InstalledVersion = &installedVersion.String
	}
	if installedQuality.Valid {
		g.InstalledQuality = &installedQuality.String
	}
	if latestVersion.Valid {
		g.LatestVersion = &latestVersion.String
	}
	if lastCheck.Valid {
		t := lastCheck.Time
		g.LastUpdateCheck = &t
	}
	return g, nil
}

func (r *sqliteGameRepo) Get(ctx context.Context, id int64) (Game, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=?`, id)
	return scanGame(row)
}

func (r *sqliteGameRepo) GetByExternalID(ctx context.Context, externalID string) (Game, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE external_id=?`, externalID)
	return scanGame(row)
}

// FindByIds batch-fetches games in one query; required so the scheduler's
// failed-download reset (spec.md §4.9.1) never issues N+1 queries.
func (r *sqliteGameRepo) FindByIds(ctx context.Context, ids []int64) (map[int64]Game, error) {
	out := make(map[int64]Game, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	q := `SELECT ` + gameColumns + ` FROM games WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out[g.ID] = g
	}
	return out, rows.Err()
}

func (r *sqliteGameRepo) ListByStatus(ctx context.Context, status GameStatus, monitoredOnly bool) ([]Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games WHERE status=?`
	args := []any{status}
	if monitoredOnly {
		q += ` AND monitored=1`
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *sqliteGameRepo) ListDownloaded(ctx context.Context, excludeIgnoredPolicy bool) ([]Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games WHERE status='downloaded'`
	if excludeIgnoredPolicy {
		q += ` AND update_policy != 'ignore'`
	}
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *sqliteGameRepo) Insert(ctx context.Context, g Game) (int64, error) {
	const q = `
INSERT INTO games(external_id, title, year, platform, cover_url, folder_path, monitored,
	status, installed_version, installed_quality, update_policy, update_available,
	last_update_check, latest_version, library_id)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, g.ExternalID, g.Title, g.Year, g.Platform, g.CoverURL,
		g.FolderPath, boolToInt(g.Monitored), g.Status, g.InstalledVersion, g.InstalledQuality,
		g.UpdatePolicy, boolToInt(g.UpdateAvailable), g.LastUpdateCheck, g.LatestVersion, g.LibraryID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *sqliteGameRepo) Update(ctx context.Context, g Game) error {
	const q = `
UPDATE games SET external_id=?, title=?, year=?, platform=?, cover_url=?, folder_path=?,
	monitored=?, status=?, installed_version=?, installed_quality=?, update_policy=?,
	update_available=?, last_update_check=?, latest_version=?, library_id=?
WHERE id=?`
	_, err := r.db.ExecContext(ctx, q, g.ExternalID, g.Title, g.Year, g.Platform, g.CoverURL,
		g.FolderPath, boolToInt(g.Monitored), g.Status, g.InstalledVersion, g.InstalledQuality,
		g.UpdatePolicy, boolToInt(g.UpdateAvailable), g.LastUpdateCheck, g.LatestVersion, g.LibraryID, g.ID)
	return err
}

func (r *sqliteGameRepo) UpdateStatus(ctx context.Context, id int64, status GameStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE games SET status=? WHERE id=?`, status, id)
	return err
}

// BatchUpdateStatus updates many games in a single statement, per spec.md
// §4.2/§4.9.1 (no per-row queries for the failed-download reset).
func (r *sqliteGameRepo) BatchUpdateStatus(ctx context.Context, ids []int64, status GameStatus) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, status)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := fmt.Sprintf(`UPDATE games SET status=? WHERE id IN (%s)`, strings.Join(placeholders, ","))
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *sqliteGameRepo) SetUpdateFields(ctx context.Context, id int64, updateAvailable bool, latestVersion *string, lastCheck time.Time) error {
	const q = `UPDATE games SET update_available=?, latest_version=COALESCE(?, latest_version), last_update_check=? WHERE id=?`
	_, err := r.db.ExecContext(ctx, q, boolToInt(updateAvailable), latestVersion, lastCheck.UTC(), id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
