// Package db holds the logical data model of spec.md §3 and its
// repositories. Layout and idiom (Open/ApplyMigrations, interface-first
// Repo types, upsert-by-unique-index writes, explicit field projection)
// are adapted from the teacher's db/schema.go, db/repo.go and
// db/sqlite_repo.go.
package db

import "time"

// GameStatus is the lifecycle state of a Game (spec.md §3).
type GameStatus string

const (
	GameStatusWanted      GameStatus = "wanted"
	GameStatusDownloading GameStatus = "downloading"
	GameStatusDownloaded  GameStatus = "downloaded"
)

// UpdatePolicy governs whether the update detector acts on a downloaded game.
type UpdatePolicy string

const (
	UpdatePolicyNotify UpdatePolicy = "notify"
	UpdatePolicyAuto   UpdatePolicy = "auto"
	UpdatePolicyIgnore UpdatePolicy = "ignore"
)

// ReleaseStatus is the lifecycle state of a grabbed Release (spec.md §3).
type ReleaseStatus string

const (
	ReleaseStatusPending     ReleaseStatus = "pending"
	ReleaseStatusDownloading ReleaseStatus = "downloading"
	ReleaseStatusCompleted   ReleaseStatus = "completed"
	ReleaseStatusFailed      ReleaseStatus = "failed"
)

// UpdateType classifies a GameUpdate candidate (spec.md §4.8).
type UpdateType string

const (
	UpdateTypeVersion       UpdateType = "version"
	UpdateTypeDLC           UpdateType = "dlc"
	UpdateTypeBetterRelease UpdateType = "better_release"
)

// UpdateStatus is the lifecycle state of a GameUpdate candidate.
type UpdateStatus string

const (
	UpdateStatusPending   UpdateStatus = "pending"
	UpdateStatusDismissed UpdateStatus = "dismissed"
	UpdateStatusGrabbed   UpdateStatus = "grabbed"
)

// Game is the catalog entry for a wanted/downloading/downloaded title.
type Game struct {
	ID               int64
	ExternalID       string
	Title            string
	Year             *int
	Platform         string
	CoverURL         string
	FolderPath       string
	Monitored        bool
	Status           GameStatus
	InstalledVersion *string
	InstalledQuality *string
	UpdatePolicy     UpdatePolicy
	UpdateAvailable  bool
	LastUpdateCheck  *time.Time
	LatestVersion    *string
	LibraryID        *int64
}

// Release is a grabbed candidate artifact for a Game.
type Release struct {
	ID          int64
	GameID      int64
	Title       string
	Size        int64
	Seeders     int
	DownloadURL string
	Indexer     string
	Quality     *string
	TorrentHash *string
	GrabbedAt   time.Time
	Status      ReleaseStatus
}

// GameUpdate is a candidate successor release for a downloaded Game.
type GameUpdate struct {
	ID          int64
	GameID      int64
	UpdateType  UpdateType
	Title       string
	Version     *string
	Size        int64
	Quality     *string
	Seeders     int
	DownloadURL string
	Indexer     string
	Status      UpdateStatus
	CreatedAt   time.Time
}

// Library is a configured root directory scanned for game folders.
type Library struct {
	ID              int64
	Name            string
	Path            string
	Platform        *string
	Monitored       bool
	DownloadEnabled bool
	Priority        int
}

// LibraryFile is a scanned folder, matched (or not) to a catalog Game.
type LibraryFile struct {
	ID            int64
	FolderPath    string
	ParsedTitle   string
	ParsedYear    *int
	MatchedGameID *int64
	LibraryID     *int64
	Ignored       bool
	ScannedAt     time.Time
}

// DownloadHistoryEvent enumerates download lifecycle edges. The download
// service (C6) records grabbed, completed and failed; no component
// currently writes reset.
type DownloadHistoryEvent string

const (
	HistoryEventGrabbed   DownloadHistoryEvent = "grabbed"
	HistoryEventCompleted DownloadHistoryEvent = "completed"
	HistoryEventFailed    DownloadHistoryEvent = "failed"
	HistoryEventReset     DownloadHistoryEvent = "reset"
)

// DownloadHistory is an append-only audit trail entry.
type DownloadHistory struct {
	ID        int64
	GameID    int64
	ReleaseID *int64
	Event     DownloadHistoryEvent
	At        time.Time
	Detail    string
}

// Setting is a persisted key/value configuration record (spec.md §3, §4.1).
type Setting struct {
	Key   string
	Value string
}
