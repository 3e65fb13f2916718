package rsssync

import (
	"testing"
	"time"

	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/indexer"
)

func TestSeenSetEvictsOldestOnceOverCapacity(t *testing.T) {
	s := newSeenSet(2)
	s.Add("a")
	s.Add("b")
	s.Add("c")

	if s.Contains("a") {
		t.Fatal("expected the oldest GUID to be evicted")
	}
	if !s.Contains("b") || !s.Contains("c") {
		t.Fatal("expected the two most recently inserted GUIDs to remain")
	}
}

func TestSeenSetReAddDoesNotBumpOrder(t *testing.T) {
	s := newSeenSet(2)
	s.Add("a")
	s.Add("b")
	s.Add("a") // a is already seen; this must not refresh its position
	s.Add("c")

	if s.Contains("a") {
		t.Fatal("expected a to be evicted since re-adding it is a no-op, not a touch")
	}
	if !s.Contains("b") || !s.Contains("c") {
		t.Fatal("expected b and c to remain")
	}
}

func TestBestMatchSkipsLowConfidenceAndPicksHighestScore(t *testing.T) {
	games := []db.Game{
		{ID: 1, Title: "Hollow Knight"},
		{ID: 2, Title: "Stardew Valley"},
	}
	rel := indexer.Release{Title: "Hollow Knight", Seeders: 50, DownloadURL: "u1"}

	idx, scored, ok := bestMatch(games, rel, time.Now())
	if !ok {
		t.Fatal("expected a match")
	}
	if idx != 0 || scored.Score <= 0 {
		t.Fatalf("idx = %d, scored = %+v, want match against game 0", idx, scored)
	}
}

func TestBestMatchNoCandidatesReturnsFalse(t *testing.T) {
	_, _, ok := bestMatch(nil, indexer.Release{Title: "Anything"}, time.Now())
	if ok {
		t.Fatal("expected no match with an empty candidate set")
	}
}
