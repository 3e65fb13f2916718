package db

import (
	"context"
	"database/sql"
	"strings"
)

type sqliteLibraryRepo struct{ db *sql.DB }

func NewLibraryRepository(sqlDB *sql.DB) LibraryRepository { return &sqliteLibraryRepo{db: sqlDB} }

const libraryColumns = `id, name, path, platform, monitored, download_enabled, priority`

func scanLibraryRow(row interface{ Scan(...any) error }) (Library, error) {
	var l Library
	var platform sql.NullString
	var monitored, downloadEnabled int
	if err := row.Scan(&l.ID, &l.Name, &l.Path, &platform, &monitored, &downloadEnabled, &l.Priority); err != nil {
		return Library{}, err
	}
	if platform.Valid {
		l.Platform = &platform.String
	}
	l.Monitored = monitored == 1
	l.DownloadEnabled = downloadEnabled == 1
	return l, nil
}

func (r *sqliteLibraryRepo) List(ctx context.Context) ([]Library, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+libraryColumns+` FROM libraries ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Library
	for rows.Next() {
		l, err := scanLibraryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *sqliteLibraryRepo) Get(ctx context.Context, id int64) (Library, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+libraryColumns+` FROM libraries WHERE id=?`, id)
	return scanLibraryRow(row)
}

func (r *sqliteLibraryRepo) Insert(ctx context.Context, l Library) (int64, error) {
	const q = `INSERT INTO libraries(name, path, platform, monitored, download_enabled, priority) VALUES(?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, l.Name, l.Path, l.Platform, boolToInt(l.Monitored), boolToInt(l.DownloadEnabled), l.Priority)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type sqliteLibraryFileRepo struct{ db *sql.DB }

func NewLibraryFileRepository(sqlDB *sql.DB) LibraryFileRepository {
	return &sqliteLibraryFileRepo{db: sqlDB}
}

const libraryFileColumns = `id, folder_path, parsed_title, parsed_year, matched_game_id, library_id, ignored, scanned_at`

func scanLibraryFile(row interface{ Scan(...any) error }) (LibraryFile, error) {
	var f LibraryFile
	var year, matchedGameID, libraryID sql.NullInt64
	var ignored int
	if err := row.Scan(&f.ID, &f.FolderPath, &f.ParsedTitle, &year, &matchedGameID, &libraryID, &ignored, &f.ScannedAt); err != nil {
		return LibraryFile{}, err
	}
	if year.Valid {
		y := int(year.Int64)
		f.ParsedYear = &y
	}
	if matchedGameID.Valid {
		f.MatchedGameID = &matchedGameID.Int64
	}
	if libraryID.Valid {
		f.LibraryID = &libraryID.Int64
	}
	f.Ignored = ignored == 1
	return f, nil
}

func (r *sqliteLibraryFileRepo) ListByLibrary(ctx context.Context, libraryID int64) ([]LibraryFile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+libraryFileColumns+` FROM library_files WHERE library_id=?`, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LibraryFile
	for rows.Next() {
		f, err := scanLibraryFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Upsert keeps the folder_path-unique invariant of spec.md §3.
func (r *sqliteLibraryFileRepo) Upsert(ctx context.Context, f LibraryFile) (int64, error) {
	const q = `
INSERT INTO library_files(folder_path, parsed_title, parsed_year, matched_game_id, library_id, ignored, scanned_at)
VALUES(?,?,?,?,?,?,?)
ON CONFLICT(folder_path) DO UPDATE SET
  parsed_title = excluded.parsed_title,
  parsed_year  = excluded.parsed_year,
  matched_game_id = excluded.matched_game_id,
  library_id   = excluded.library_id,
  ignored      = excluded.ignored,
  scanned_at   = excluded.scanned_at`
	_, err := r.db.ExecContext(ctx, q, f.FolderPath, f.ParsedTitle, f.ParsedYear, f.MatchedGameID,
		f.LibraryID, boolToInt(f.Ignored), f.ScannedAt.UTC())
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM library_files WHERE folder_path=?`, f.FolderPath).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteMissing removes rows for the library whose folder_path is no
// longer present on disk (spec.md §3 LibraryFile lifecycle).
func (r *sqliteLibraryFileRepo) DeleteMissing(ctx context.Context, libraryID int64, presentFolderPaths []string) (int64, error) {
	placeholders := make([]string, len(presentFolderPaths))
	args := make([]any, 0, len(presentFolderPaths)+1)
	args = append(args, libraryID)
	for i, p := range presentFolderPaths {
		placeholders[i] = "?"
		args = append(args, p)
	}
	q := `DELETE FROM library_files WHERE library_id=?`
	if len(presentFolderPaths) > 0 {
		q += ` AND folder_path NOT IN (` + strings.Join(placeholders, ",") + `)`
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
