package scoring

import (
	"testing"
	"time"
)

func TestScoreAutoGrabHappyPath(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	year := 2020
	game := Game{Title: "Hades", Year: &year}
	candidate := Candidate{
		Title:       "Hades v1.38.22 [GOG]",
		Seeders:     42,
		Size:        8 * 1024 * 1024 * 1024,
		PublishedAt: now.Add(-30 * 24 * time.Hour),
	}

	scored := Score(candidate, game, now)

	if scored.Score != 210 {
		t.Fatalf("score = %d, want 210", scored.Score)
	}
	if scored.MatchConfidence != ConfidenceHigh {
		t.Fatalf("confidence = %s, want high", scored.MatchConfidence)
	}
	if scored.Quality == nil || *scored.Quality != "GOG" {
		t.Fatalf("quality = %v, want GOG", scored.Quality)
	}
	if !ShouldAutoGrab(scored, 100, 5) {
		t.Fatal("expected auto-grab to pass")
	}
}

func TestScoreIsPure(t *testing.T) {
	now := time.Now()
	game := Game{Title: "Stardew Valley"}
	candidate := Candidate{Title: "Stardew Valley 1.6.3", Seeders: 10, Size: 500 * 1024 * 1024, PublishedAt: now}

	a := Score(candidate, game, now)
	b := Score(candidate, game, now)
	if a != b {
		t.Fatalf("Score is not pure: %+v != %+v", a, b)
	}
}

func TestShouldAutoGrabMonotone(t *testing.T) {
	base := Scored{Score: 120, MatchConfidence: ConfidenceMedium, Candidate: Candidate{Seeders: 10}}
	if !ShouldAutoGrab(base, 100, 5) {
		t.Fatal("expected base to pass")
	}
	lowerScore := base
	lowerScore.Score = 90
	if ShouldAutoGrab(lowerScore, 100, 5) {
		t.Fatal("lowering score must not flip false->true")
	}
	lowerSeeders := base
	lowerSeeders.Candidate.Seeders = 2
	if ShouldAutoGrab(lowerSeeders, 100, 5) {
		t.Fatal("lowering seeders must not flip false->true")
	}
}

func TestShouldAutoGrabLowConfidenceDisqualifies(t *testing.T) {
	s := Scored{Score: 500, MatchConfidence: ConfidenceLow, Candidate: Candidate{Seeders: 100}}
	if ShouldAutoGrab(s, 100, 5) {
		t.Fatal("low confidence must disqualify regardless of score")
	}
}

func TestLowMatchPenalizesScore(t *testing.T) {
	now := time.Now()
	game := Game{Title: "Hollow Knight"}
	candidate := Candidate{Title: "Totally Unrelated Thing", Seeders: 10, Size: 1024 * 1024 * 1024, PublishedAt: now}

	scored := Score(candidate, game, now)
	if scored.MatchConfidence != ConfidenceLow {
		t.Fatalf("confidence = %s, want low", scored.MatchConfidence)
	}
	if scored.Score >= 80 {
		t.Fatalf("score = %d, expected a heavily penalized score", scored.Score)
	}
}

func TestRankCandidatesTieBreaks(t *testing.T) {
	now := time.Now()
	older := now.Add(-48 * time.Hour)
	newer := now.Add(-1 * time.Hour)

	list := []Scored{
		{Score: 100, Candidate: Candidate{Title: "c", Seeders: 5, PublishedAt: older}},
		{Score: 150, Candidate: Candidate{Title: "a", Seeders: 1, PublishedAt: older}},
		{Score: 150, Candidate: Candidate{Title: "b", Seeders: 1, PublishedAt: newer}},
		{Score: 150, Candidate: Candidate{Title: "d", Seeders: 20, PublishedAt: older}},
	}
	RankCandidates(list)

	want := []string{"d", "b", "a", "c"}
	for i, title := range want {
		if list[i].Candidate.Title != title {
			t.Fatalf("rank[%d] = %s, want %s", i, list[i].Candidate.Title, title)
		}
	}
}

func TestSizeOutOfRangePenalized(t *testing.T) {
	now := time.Now()
	game := Game{Title: "Tiny Game"}
	tooSmall := Candidate{Title: "Tiny Game", Seeders: 10, Size: 10 * 1024 * 1024, PublishedAt: now}
	scored := Score(tooSmall, game, now)
	// +50 substring, -50 size => base 100 stays 100, but seeders<20 no bonus.
	if scored.Score != 100 {
		t.Fatalf("score = %d, want 100 (substring +50, size -50)", scored.Score)
	}
}
