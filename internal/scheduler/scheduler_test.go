package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/db"
)

// fakeGames and fakeReleases back only the methods resetFailedDownloads
// exercises; everything else panics so a test that reaches past its
// intended scope fails loudly instead of silently no-opping.
type fakeGames struct {
	db.GameRepository
	byID             map[int64]db.Game
	findByIdsCalls   int
	batchUpdateCalls [][]int64
}

func (f *fakeGames) FindByIds(ctx context.Context, ids []int64) (map[int64]db.Game, error) {
	f.findByIdsCalls++
	out := make(map[int64]db.Game, len(ids))
	for _, id := range ids {
		if g, ok := f.byID[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

func (f *fakeGames) BatchUpdateStatus(ctx context.Context, ids []int64, status db.GameStatus) error {
	f.batchUpdateCalls = append(f.batchUpdateCalls, ids)
	for _, id := range ids {
		g := f.byID[id]
		g.Status = status
		f.byID[id] = g
	}
	return nil
}

type fakeReleases struct {
	db.ReleaseRepository
	failed          []db.Release
	batchDeleteCall []int64
}

func (f *fakeReleases) ListByStatus(ctx context.Context, status db.ReleaseStatus) ([]db.Release, error) {
	if status != db.ReleaseStatusFailed {
		return nil, nil
	}
	return f.failed, nil
}

func (f *fakeReleases) BatchDelete(ctx context.Context, ids []int64) error {
	f.batchDeleteCall = ids
	return nil
}

func TestResetFailedDownloadsOnlyResetsMonitoredDownloadingGames(t *testing.T) {
	games := &fakeGames{byID: map[int64]db.Game{
		1: {ID: 1, Monitored: true, Status: db.GameStatusDownloading},
		2: {ID: 2, Monitored: false, Status: db.GameStatusDownloading},
		3: {ID: 3, Monitored: true, Status: db.GameStatusWanted},
	}}
	releases := &fakeReleases{failed: []db.Release{
		{ID: 10, GameID: 1, Status: db.ReleaseStatusFailed},
		{ID: 11, GameID: 2, Status: db.ReleaseStatusFailed},
		{ID: 12, GameID: 3, Status: db.ReleaseStatusFailed},
	}}

	s := &Scheduler{games: games, releases: releases, log: zerolog.Nop()}
	if err := s.resetFailedDownloads(context.Background()); err != nil {
		t.Fatal(err)
	}

	if games.findByIdsCalls != 1 {
		t.Fatalf("FindByIds called %d times, want exactly 1 (no per-row queries)", games.findByIdsCalls)
	}
	if len(games.batchUpdateCalls) != 1 || len(games.batchUpdateCalls[0]) != 1 || games.batchUpdateCalls[0][0] != 1 {
		t.Fatalf("batch update calls = %v, want a single call resetting only game 1", games.batchUpdateCalls)
	}
	if games.byID[1].Status != db.GameStatusWanted {
		t.Fatalf("game 1 status = %s, want wanted", games.byID[1].Status)
	}
	if len(releases.batchDeleteCall) != 3 {
		t.Fatalf("batch delete ids = %v, want all 3 failed release ids deleted regardless of which games reset", releases.batchDeleteCall)
	}
}

func TestResetFailedDownloadsDeletesFailedReleaseEvenWhenNoGameQualifiesForReset(t *testing.T) {
	games := &fakeGames{byID: map[int64]db.Game{
		3: {ID: 3, Monitored: true, Status: db.GameStatusWanted},
	}}
	releases := &fakeReleases{failed: []db.Release{
		{ID: 12, GameID: 3, Status: db.ReleaseStatusFailed},
	}}

	s := &Scheduler{games: games, releases: releases, log: zerolog.Nop()}
	if err := s.resetFailedDownloads(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(games.batchUpdateCalls) != 0 {
		t.Fatalf("batch update calls = %v, want none (no game qualified)", games.batchUpdateCalls)
	}
	if len(releases.batchDeleteCall) != 1 || releases.batchDeleteCall[0] != 12 {
		t.Fatalf("batch delete ids = %v, want [12] deleted even though no game reset", releases.batchDeleteCall)
	}
}

func TestResetFailedDownloadsNoopWhenNoFailedReleases(t *testing.T) {
	games := &fakeGames{byID: map[int64]db.Game{}}
	releases := &fakeReleases{}
	s := &Scheduler{games: games, releases: releases, log: zerolog.Nop()}

	if err := s.resetFailedDownloads(context.Background()); err != nil {
		t.Fatal(err)
	}
	if games.findByIdsCalls != 0 {
		t.Fatal("expected no FindByIds call when there are no failed releases")
	}
}
