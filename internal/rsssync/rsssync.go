// Package rsssync implements the RSS synchronizer of spec.md §4.10: a
// periodic global-feed puller that matches fresh releases against wanted
// games, bounded by a process-local set of already-seen GUIDs.
//
// The bounded, insertion-order-evicted GUID set is the teacher's
// config-TTL idiom turned inside out: instead of expiring by time, entries
// expire by insertion order once the set is full, matching spec.md §4.10's
// "bounded GUID memory, not recency-based" requirement.
package rsssync

import (
	"container/list"
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/download"
	"github.com/gamearr/gamearr/internal/indexer"
	"github.com/gamearr/gamearr/internal/scoring"
)

// maxSeenGUIDs bounds the synchronizer's process memory (spec.md §4.10).
const maxSeenGUIDs = 1000

// feedLimit is how many of the aggregator's most recent global-feed items
// are pulled per tick (spec.md §4.10).
const feedLimit = 100

// seenSet is a fixed-capacity set with insertion-order eviction: the
// oldest inserted GUID is dropped first, regardless of how recently it
// was looked up (spec.md §4.10: "not recency-based").
type seenSet struct {
	cap   int
	order *list.List
	index map[string]*list.Element
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{cap: capacity, order: list.New(), index: make(map[string]*list.Element, capacity)}
}

func (s *seenSet) Contains(guid string) bool {
	_, ok := s.index[guid]
	return ok
}

func (s *seenSet) Add(guid string) {
	if s.Contains(guid) {
		return
	}
	el := s.order.PushBack(guid)
	s.index[guid] = el
	if s.order.Len() > s.cap {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}
}

type Synchronizer struct {
	games     db.GameRepository
	idx       *indexer.Client
	downloads *download.Service
	settings  *config.Store
	log       zerolog.Logger

	seen *seenSet
}

func New(games db.GameRepository, idx *indexer.Client, downloads *download.Service, settings *config.Store, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		games:     games,
		idx:       idx,
		downloads: downloads,
		settings:  settings,
		log:       log.With().Str("component", "rsssync").Logger(),
		seen:      newSeenSet(maxSeenGUIDs),
	}
}

// Run starts the periodic loop, restarting its ticker when the configured
// interval changes, and returns when ctx is cancelled.
func (sy *Synchronizer) Run(ctx context.Context) {
	interval := sy.settings.RSSSyncInterval(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sy.tick(ctx)
			if next := sy.settings.RSSSyncInterval(ctx); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (sy *Synchronizer) tick(ctx context.Context) {
	if !sy.idx.IsConfigured() {
		return
	}

	wanted, err := sy.games.ListByStatus(ctx, db.GameStatusWanted, true)
	if err != nil {
		sy.log.Error().Err(err).Msg("failed to list wanted games")
		return
	}
	if len(wanted) == 0 {
		return
	}

	// The global feed has no per-game platform, so the platform-default
	// category list applies unless prowlarr_categories is set.
	categories := sy.settings.ProwlarrCategories(ctx, "")
	releases, err := sy.idx.GetRssReleases(ctx, indexer.RSSOptions{Categories: categories, Limit: feedLimit})
	if err != nil {
		sy.log.Error().Err(err).Msg("rss fetch failed")
		return
	}

	// working is a local copy of the wanted set; a matched game is removed
	// from it so a later item in the same tick can't re-match it
	// (spec.md §4.10).
	working := make([]db.Game, len(wanted))
	copy(working, wanted)

	minScore := sy.settings.AutoGrabMinScore(ctx)
	minSeeders := sy.settings.AutoGrabMinSeeders(ctx)
	now := time.Now()

	for _, rel := range releases {
		if rel.GUID != "" && sy.seen.Contains(rel.GUID) {
			continue
		}
		if rel.GUID != "" {
			sy.seen.Add(rel.GUID)
		}

		idx, scored, ok := bestMatch(working, rel, now)
		if !ok {
			continue
		}
		if !scoring.ShouldAutoGrab(scored, minScore, minSeeders) {
			continue
		}

		game := working[idx]
		if _, err := sy.downloads.GrabRelease(ctx, game.ID, scored); err != nil {
			sy.log.Error().Err(err).Int64("game_id", game.ID).Msg("grab failed")
			continue
		}
		working = append(working[:idx], working[idx+1:]...)
	}
}

// bestMatch scores rel against every candidate game still in the working
// set and returns the highest-scoring match above a plausible-match
// bar, per spec.md §4.10.
func bestMatch(candidates []db.Game, rel indexer.Release, now time.Time) (int, scoring.Scored, bool) {
	bestIdx := -1
	var best scoring.Scored

	for i, g := range candidates {
		scored := scoring.Score(scoring.Candidate{
			Title:       rel.Title,
			Size:        rel.Size,
			Seeders:     rel.Seeders,
			PublishedAt: rel.PublishedAt,
			DownloadURL: rel.DownloadURL,
			Indexer:     rel.Indexer,
			GUID:        rel.GUID,
		}, scoring.Game{Title: g.Title, Year: g.Year, InstalledQuality: g.InstalledQuality}, now)

		if scored.MatchConfidence == scoring.ConfidenceLow {
			continue
		}
		if bestIdx == -1 || scored.Score > best.Score {
			bestIdx = i
			best = scored
		}
	}

	if bestIdx == -1 {
		return 0, scoring.Scored{}, false
	}
	return bestIdx, best, true
}
