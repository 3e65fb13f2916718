package db

import (
	"context"
	"database/sql"
	"time"
)

// ErrNoRows is re-exported so callers can check db.ErrNoRows without
// importing database/sql directly (teacher idiom, db/repo.go).
var ErrNoRows = sql.ErrNoRows

// GameRepository is the persistence boundary for the Game entity. Batch
// operations are first-class per spec.md §4.2: the scheduler's
// failed-download reset must not issue N+1 queries.
type GameRepository interface {
	Get(ctx context.Context, id int64) (Game, error)
	GetByExternalID(ctx context.Context, externalID string) (Game, error)
	FindByIds(ctx context.Context, ids []int64) (map[int64]Game, error)
	ListByStatus(ctx context.Context, status GameStatus, monitoredOnly bool) ([]Game, error)
	ListDownloaded(ctx context.Context, excludeIgnoredPolicy bool) ([]Game, error)
	Insert(ctx context.Context, g Game) (int64, error)
	Update(ctx context.Context, g Game) error
	UpdateStatus(ctx context.Context, id int64, status GameStatus) error
	BatchUpdateStatus(ctx context.Context, ids []int64, status GameStatus) error
	SetUpdateFields(ctx context.Context, id int64, updateAvailable bool, latestVersion *string, lastCheck time.Time) error
}

// ReleaseRepository is the persistence boundary for the Release entity.
type ReleaseRepository interface {
	Get(ctx context.Context, id int64) (Release, error)
	Insert(ctx context.Context, r Release) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status ReleaseStatus) error
	SetTorrentHash(ctx context.Context, id int64, hash string) error
	ListActiveByGame(ctx context.Context, gameID int64) ([]Release, error)
	ListByStatus(ctx context.Context, status ReleaseStatus) ([]Release, error)
	Delete(ctx context.Context, id int64) error
	BatchDelete(ctx context.Context, ids []int64) error
}

// GameUpdateRepository is the persistence boundary for GameUpdate candidates.
type GameUpdateRepository interface {
	ListForGame(ctx context.Context, gameID int64) ([]GameUpdate, error)
	Insert(ctx context.Context, u GameUpdate) (int64, error)
	BatchInsert(ctx context.Context, us []GameUpdate) error
	UpdateStatus(ctx context.Context, id int64, status UpdateStatus) error
	Get(ctx context.Context, id int64) (GameUpdate, error)
}

// LibraryRepository is the persistence boundary for configured library roots.
type LibraryRepository interface {
	List(ctx context.Context) ([]Library, error)
	Get(ctx context.Context, id int64) (Library, error)
	Insert(ctx context.Context, l Library) (int64, error)
}

// LibraryFileRepository is the persistence boundary for scanned folders.
type LibraryFileRepository interface {
	ListByLibrary(ctx context.Context, libraryID int64) ([]LibraryFile, error)
	Upsert(ctx context.Context, f LibraryFile) (int64, error)
	DeleteMissing(ctx context.Context, libraryID int64, presentFolderPaths []string) (int64, error)
}

// DownloadHistoryRepository is the persistence boundary for the audit trail.
type DownloadHistoryRepository interface {
	Insert(ctx context.Context, h DownloadHistory) (int64, error)
}

// SettingsRepository is the raw persistence boundary under the TTL cache
// of internal/config. It never applies env fallback; that is the config
// package's job (spec.md §4.1: getFromDb "deliberately bypasses fallback").
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error) // ErrNoRows if absent
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}
