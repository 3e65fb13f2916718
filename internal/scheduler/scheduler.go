// Package scheduler implements the search scheduler of spec.md §4.9: a
// periodic worker that enumerates wanted games, searches and grabs the
// best candidate for each, and batch-corrects failed downloads.
//
// The tick-with-exclusion-flag and restart-on-interval-change pattern is
// adapted from the teacher's service/refresh.go worker-pool loop
// (buffered work channel + sync.WaitGroup), generalized here to a single
// ticker goroutine guarded by an atomic.Bool so overlapping ticks are
// skipped rather than queued.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/download"
	"github.com/gamearr/gamearr/internal/indexer"
	"github.com/gamearr/gamearr/internal/scoring"
)

// interGameDelay throttles per-game search+grab within a single tick so
// the indexer's own rate limiter isn't the only thing pacing us (spec.md
// §4.9).
const interGameDelay = 2 * time.Second

type Scheduler struct {
	games     db.GameRepository
	releases  db.ReleaseRepository
	idx       *indexer.Client
	downloads *download.Service
	settings  *config.Store
	log       zerolog.Logger

	running atomic.Bool
}

func New(games db.GameRepository, releases db.ReleaseRepository, idx *indexer.Client, downloads *download.Service, settings *config.Store, log zerolog.Logger) *Scheduler {
	return &Scheduler{games: games, releases: releases, idx: idx, downloads: downloads, settings: settings, log: log.With().Str("component", "scheduler").Logger()}
}

// Run starts the periodic loop. It restarts its ticker whenever the
// configured interval changes, and returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.settings.SearchSchedulerInterval(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)

			if next := s.settings.SearchSchedulerInterval(ctx); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug().Msg("previous tick still running, skipping")
		return
	}
	defer s.running.Store(false)

	if err := s.resetFailedDownloads(ctx); err != nil {
		s.log.Error().Err(err).Msg("failed-download reset errored")
	}

	wanted, err := s.games.ListByStatus(ctx, db.GameStatusWanted, true)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list wanted games")
		return
	}

	for i, game := range wanted {
		if ctx.Err() != nil {
			return
		}
		s.searchAndGrab(ctx, game)
		if i < len(wanted)-1 {
			time.Sleep(interGameDelay)
		}
	}
}

func (s *Scheduler) searchAndGrab(ctx context.Context, game db.Game) {
	if !s.idx.IsConfigured() {
		return
	}
	categories := s.settings.ProwlarrCategories(ctx, game.Platform)
	candidates, err := s.idx.Search(ctx, game.Title, categories, 25)
	if err != nil {
		s.log.Error().Err(err).Int64("game_id", game.ID).Msg("search failed")
		return
	}
	if len(candidates) == 0 {
		return
	}

	scoredGame := scoring.Game{Title: game.Title, Year: game.Year, InstalledQuality: game.InstalledQuality}
	var scored []scoring.Scored
	now := time.Now()
	for _, c := range candidates {
		scored = append(scored, scoring.Score(scoring.Candidate{
			Title:       c.Title,
			Size:        c.Size,
			Seeders:     c.Seeders,
			PublishedAt: c.PublishedAt,
			DownloadURL: c.DownloadURL,
			Indexer:     c.Indexer,
			GUID:        c.GUID,
		}, scoredGame, now))
	}
	scoring.RankCandidates(scored)

	best := scored[0]
	minScore := s.settings.AutoGrabMinScore(ctx)
	minSeeders := s.settings.AutoGrabMinSeeders(ctx)
	if !scoring.ShouldAutoGrab(best, minScore, minSeeders) {
		return
	}

	if _, err := s.downloads.GrabRelease(ctx, game.ID, best); err != nil {
		s.log.Error().Err(err).Int64("game_id", game.ID).Msg("grab failed")
	}
}

// resetFailedDownloads implements spec.md §4.9.1: load all failed
// releases, batch-fetch their unique games, filter to monitored+
// downloading, and reset both in two statements total — no per-row
// queries.
func (s *Scheduler) resetFailedDownloads(ctx context.Context) error {
	failed, err := s.releases.ListByStatus(ctx, db.ReleaseStatusFailed)
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		return nil
	}

	gameIDSet := make(map[int64]struct{}, len(failed))
	releaseIDs := make([]int64, 0, len(failed))
	for _, r := range failed {
		gameIDSet[r.GameID] = struct{}{}
		releaseIDs = append(releaseIDs, r.ID)
	}
	uniqueIDs := make([]int64, 0, len(gameIDSet))
	for id := range gameIDSet {
		uniqueIDs = append(uniqueIDs, id)
	}

	games, err := s.games.FindByIds(ctx, uniqueIDs)
	if err != nil {
		return err
	}

	var toReset []int64
	for id, g := range games {
		if g.Monitored && g.Status == db.GameStatusDownloading {
			toReset = append(toReset, id)
		}
	}

	if len(toReset) > 0 {
		if err := s.games.BatchUpdateStatus(ctx, toReset, db.GameStatusWanted); err != nil {
			return err
		}
	}
	// Every failed release row is cleared regardless of whether its game
	// qualified for a reset, so no failed release survives past this tick
	// (spec.md §4.9.1, §8).
	if err := s.releases.BatchDelete(ctx, releaseIDs); err != nil {
		return err
	}

	s.log.Info().Int("games", len(toReset)).Int("releases", len(releaseIDs)).Msg("reset failed downloads")
	return nil
}
