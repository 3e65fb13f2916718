// Package download implements the download service of spec.md §4.6: grab a
// scored release, track in-flight downloads, reconcile daemon state against
// the database, and clean up orphaned torrents.
//
// Adapted from the teacher's service/refresh.go (the only teacher file that
// coordinates a repository write with an external-client call and logs
// both sides of it); the daemon reconciliation loop borrows the
// by-hash-then-by-title-prefix matching idiom documented in
// other_examples/.../autobrr-qui__hardlink_index.go.
package download

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/errs"
	"github.com/gamearr/gamearr/internal/qbt"
	"github.com/gamearr/gamearr/internal/scoring"
)

// legacyTitlePrefixLen is the fallback-match prefix length for releases
// that have no torrentHash yet. GrabRelease does not record a hash, so
// every new release is matched this way until SyncDownloadStatus stores
// the hash of the torrent it matched.
const legacyTitlePrefixLen = 20

// Organizer is the completion-edge handler C11 delegates to once a
// transfer reaches 100% (spec.md §4.6, §4.7): internal/organizer.Organizer
// satisfies this.
type Organizer interface {
	OrganizeDownload(ctx context.Context, libraryRoot string, game db.Game, sourcePath string) (string, error)
}

type Service struct {
	games     db.GameRepository
	releases  db.ReleaseRepository
	history   db.DownloadHistoryRepository
	libraries db.LibraryRepository
	daemon    qbt.Daemon
	organizer Organizer
	settings  *config.Store
	log       zerolog.Logger
}

func New(games db.GameRepository, releases db.ReleaseRepository, history db.DownloadHistoryRepository, libraries db.LibraryRepository, daemon qbt.Daemon, organizer Organizer, settings *config.Store, log zerolog.Logger) *Service {
	return &Service{games: games, releases: releases, history: history, libraries: libraries, daemon: daemon, organizer: organizer, settings: settings, log: log.With().Str("component", "download").Logger()}
}

// GrabRelease persists a pending release and submits it to the torrent
// daemon, short-circuiting entirely under dry-run (spec.md §4.6, §9: dry
// run performs no persistence and no daemon call, and synthesizes a
// releaseId of -1 for the caller).
func (s *Service) GrabRelease(ctx context.Context, gameID int64, candidate scoring.Scored) (int64, error) {
	if s.settings.DryRun(ctx) {
		s.log.Info().
			Int64("game_id", gameID).
			Str("title", candidate.Candidate.Title).
			Int("score", candidate.Score).
			Msg("dry run: would grab release")
		return -1, nil
	}

	if !s.daemon.IsConfigured() {
		return 0, errs.NotConfigured("torrent daemon is not configured")
	}

	releaseID, err := s.releases.Insert(ctx, db.Release{
		GameID:      gameID,
		Title:       candidate.Candidate.Title,
		Indexer:     candidate.Candidate.Indexer,
		DownloadURL: candidate.Candidate.DownloadURL,
		Size:        candidate.Candidate.Size,
		Seeders:     candidate.Candidate.Seeders,
		Quality:     candidate.Quality,
		Status:      db.ReleaseStatusPending,
		GrabbedAt:   nowFunc(),
	})
	if err != nil {
		return 0, errs.Database("insert release", err)
	}

	category := s.settings.QBittorrentCategory(ctx)
	correlationTag := uuid.NewString()
	tags := fmt.Sprintf("gamearr,game-%d,%s", gameID, correlationTag)
	err = s.daemon.AddTorrent(ctx, candidate.Candidate.DownloadURL, qbt.AddOptions{Category: category, Tags: tags})
	if err != nil {
		_ = s.releases.UpdateStatus(ctx, releaseID, db.ReleaseStatusFailed)
		_ = s.history.Insert(ctx, db.DownloadHistory{GameID: gameID, ReleaseID: &releaseID, Event: db.HistoryEventFailed, At: nowFunc(), Detail: err.Error()})
		return 0, err
	}
	s.log.Debug().Int64("release_id", releaseID).Str("tags", tags).Msg("tagged torrent for this grab")

	if err := s.releases.UpdateStatus(ctx, releaseID, db.ReleaseStatusDownloading); err != nil {
		s.log.Error().Err(err).Int64("release_id", releaseID).Msg("failed to mark release downloading")
	}
	if err := s.games.UpdateStatus(ctx, gameID, db.GameStatusDownloading); err != nil {
		s.log.Error().Err(err).Int64("game_id", gameID).Msg("failed to mark game downloading")
	}
	_ = s.history.Insert(ctx, db.DownloadHistory{GameID: gameID, ReleaseID: &releaseID, Event: db.HistoryEventGrabbed, At: nowFunc()})

	s.log.Info().Int64("game_id", gameID).Int64("release_id", releaseID).Str("title", candidate.Candidate.Title).Msg("grabbed release")
	return releaseID, nil
}

// ActiveDownload pairs a persisted release with its live daemon torrent, if
// any is currently matched (spec.md §4.6).
type ActiveDownload struct {
	Release db.Release
	Torrent *qbt.Torrent
}

// GetActiveDownloads returns downloading releases, optionally including
// completed ones, each paired with daemon state when resolvable.
func (s *Service) GetActiveDownloads(ctx context.Context, includeCompleted bool) ([]ActiveDownload, error) {
	statuses := []db.ReleaseStatus{db.ReleaseStatusDownloading}
	if includeCompleted {
		statuses = append(statuses, db.ReleaseStatusCompleted)
	}

	var out []ActiveDownload
	for _, st := range statuses {
		releases, err := s.releases.ListByStatus(ctx, st)
		if err != nil {
			return nil, errs.Database("list releases by status", err)
		}
		torrents, err := s.daemonTorrents(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range releases {
			ad := ActiveDownload{Release: r}
			if t := matchTorrent(r, torrents); t != nil {
				ad.Torrent = t
			}
			out = append(out, ad)
		}
	}
	return out, nil
}

func (s *Service) daemonTorrents(ctx context.Context) ([]qbt.Torrent, error) {
	if !s.daemon.IsConfigured() {
		return nil, nil
	}
	category := s.settings.QBittorrentCategory(ctx)
	torrents, err := s.daemon.GetTorrents(ctx, category)
	if err != nil {
		return nil, errs.Integration("qbittorrent", "list torrents", err)
	}
	return torrents, nil
}

// matchTorrent matches a release to a daemon torrent primarily by stored
// torrentHash, falling back to a title-prefix heuristic for rows whose hash
// is unset (every release until its first matching sync tick). Two
// releases whose titles share the prefix can be matched to the same
// torrent by that fallback.
func matchTorrent(r db.Release, torrents []qbt.Torrent) *qbt.Torrent {
	if r.TorrentHash != nil {
		for i := range torrents {
			if strings.EqualFold(torrents[i].Hash, *r.TorrentHash) {
				return &torrents[i]
			}
		}
		return nil
	}

	prefix := titlePrefix(r.Title, legacyTitlePrefixLen)
	for i := range torrents {
		if titlePrefix(torrents[i].Name, legacyTitlePrefixLen) == prefix {
			return &torrents[i]
		}
	}
	return nil
}

func titlePrefix(s string, n int) string {
	lower := strings.ToLower(s)
	if len(lower) <= n {
		return lower
	}
	return lower[:n]
}

// SyncDownloadStatus reconciles every downloading release against daemon
// state: completed torrents are marked completed and their game marked
// downloaded, and torrents reporting an error state are marked failed
// (spec.md §4.6, §4.11).
func (s *Service) SyncDownloadStatus(ctx context.Context) error {
	active, err := s.GetActiveDownloads(ctx, false)
	if err != nil {
		return err
	}

	for _, ad := range active {
		if ad.Torrent == nil {
			continue
		}
		t := ad.Torrent
		switch {
		case t.Progress >= 1.0:
			if err := s.releases.SetTorrentHash(ctx, ad.Release.ID, t.Hash); err != nil {
				s.log.Error().Err(err).Msg("failed to persist torrent hash")
			}
			if err := s.releases.UpdateStatus(ctx, ad.Release.ID, db.ReleaseStatusCompleted); err != nil {
				s.log.Error().Err(err).Msg("failed to mark release completed")
				continue
			}
			if err := s.games.UpdateStatus(ctx, ad.Release.GameID, db.GameStatusDownloaded); err != nil {
				s.log.Error().Err(err).Msg("failed to mark game downloaded")
			}
			releaseID := ad.Release.ID
			_ = s.history.Insert(ctx, db.DownloadHistory{GameID: ad.Release.GameID, ReleaseID: &releaseID, Event: db.HistoryEventCompleted, At: nowFunc()})
			s.log.Info().Int64("release_id", ad.Release.ID).Msg("download completed")
			s.organizeCompleted(ctx, ad.Release.GameID, *t)
		case isErrorState(t.State):
			if err := s.releases.UpdateStatus(ctx, ad.Release.ID, db.ReleaseStatusFailed); err != nil {
				s.log.Error().Err(err).Msg("failed to mark release failed")
				continue
			}
			releaseID := ad.Release.ID
			_ = s.history.Insert(ctx, db.DownloadHistory{GameID: ad.Release.GameID, ReleaseID: &releaseID, Event: db.HistoryEventFailed, At: nowFunc(), Detail: t.State})
			s.log.Warn().Int64("release_id", ad.Release.ID).Str("state", t.State).Msg("download failed")
		default:
			if ad.Release.TorrentHash == nil {
				_ = s.releases.SetTorrentHash(ctx, ad.Release.ID, t.Hash)
			}
		}
	}
	return nil
}

// organizeCompleted resolves the game's library root and hands the
// finished transfer to the organizer; failures are logged, not returned,
// since a sync tick covers many releases and one bad move shouldn't abort
// the rest (spec.md §4.11's completion-edge detection feeding §4.7).
func (s *Service) organizeCompleted(ctx context.Context, gameID int64, t qbt.Torrent) {
	if s.organizer == nil {
		return
	}
	game, err := s.games.Get(ctx, gameID)
	if err != nil {
		s.log.Error().Err(err).Int64("game_id", gameID).Msg("failed to load game for organize")
		return
	}
	if game.LibraryID == nil {
		return
	}
	lib, err := s.libraries.Get(ctx, *game.LibraryID)
	if err != nil {
		s.log.Error().Err(err).Int64("library_id", *game.LibraryID).Msg("failed to load library for organize")
		return
	}

	dest, err := s.organizer.OrganizeDownload(ctx, lib.Path, game, t.SavePath)
	if err != nil {
		s.log.Error().Err(err).Str("source", t.SavePath).Msg("failed to organize completed download")
		return
	}
	if err := s.games.Update(ctx, setFolderPath(game, dest)); err != nil {
		s.log.Error().Err(err).Msg("failed to persist organized folder path")
	}
}

func setFolderPath(g db.Game, path string) db.Game {
	g.FolderPath = path
	return g
}

func isErrorState(state string) bool {
	switch strings.ToLower(state) {
	case "error", "missingfiles", "unknown":
		return true
	default:
		return false
	}
}

// gameTagPattern extracts the game id gamearr stamps onto every torrent it
// adds (spec.md §4.6: tags `gamearr,game-<gameId>`).
var gameTagPattern = regexp.MustCompile(`(?:^|,)\s*game-(\d+)\s*(?:,|$)`)

func parseGameTag(tags string) (int64, bool) {
	m := gameTagPattern.FindStringSubmatch(tags)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// RemoveOrphanedTorrents deletes daemon torrents bearing a `game-<id>` tag
// whose game no longer exists, per spec.md §4.6. Torrents without our tag
// (not added by gamearr) are left untouched.
func (s *Service) RemoveOrphanedTorrents(ctx context.Context, deleteFiles bool) error {
	torrents, err := s.daemonTorrents(ctx)
	if err != nil {
		return err
	}
	if len(torrents) == 0 {
		return nil
	}

	var orphanHashes []string
	for _, t := range torrents {
		gameID, ok := parseGameTag(t.Tags)
		if !ok {
			continue
		}
		if _, err := s.games.Get(ctx, gameID); err != nil {
			if errors.Is(err, db.ErrNoRows) {
				orphanHashes = append(orphanHashes, t.Hash)
				continue
			}
			s.log.Error().Err(err).Int64("game_id", gameID).Msg("failed to check game existence for orphan cleanup")
		}
	}
	if len(orphanHashes) == 0 {
		return nil
	}

	s.log.Info().Int("count", len(orphanHashes)).Msg("removing orphaned torrents")
	if err := s.daemon.DeleteTorrents(ctx, orphanHashes, deleteFiles); err != nil {
		return errs.Integration("qbittorrent", "delete orphaned torrents", err)
	}
	return nil
}

// nowFunc is a seam for tests; production always uses time.Now.
var nowFunc = time.Now
