package library

import (
	"testing"

	"github.com/gamearr/gamearr/internal/db"
)

func TestParseFolderNameStripsTagsAndExtractsYear(t *testing.T) {
	title, year := ParseFolderName("Hollow.Knight.v1.5.78.GOG.(2017)-CODEX")
	if title != "Hollow Knight" {
		t.Fatalf("title = %q, want %q", title, "Hollow Knight")
	}
	if year == nil || *year != 2017 {
		t.Fatalf("year = %v, want 2017", year)
	}
}

func TestParseFolderNameNoYear(t *testing.T) {
	title, year := ParseFolderName("Stardew_Valley-RUNE")
	if title != "Stardew Valley" {
		t.Fatalf("title = %q, want %q", title, "Stardew Valley")
	}
	if year != nil {
		t.Fatalf("year = %v, want nil", *year)
	}
}

func TestMatchGameByTitleAndYear(t *testing.T) {
	y2017 := 2017
	y2019 := 2019
	catalog := []db.Game{
		{ID: 1, Title: "Hollow Knight", Year: &y2017},
		{ID: 2, Title: "Hollow Knight", Year: &y2019},
	}
	got := matchGame("hollow knight", &y2017, catalog)
	if got == nil || got.ID != 1 {
		t.Fatalf("matchGame = %v, want id 1", got)
	}
}

func TestMatchGameNoYearOnEitherSideMatchesByTitleOnly(t *testing.T) {
	catalog := []db.Game{{ID: 5, Title: "Celeste"}}
	got := matchGame("Celeste", nil, catalog)
	if got == nil || got.ID != 5 {
		t.Fatalf("matchGame = %v, want id 5", got)
	}
}

func TestFindDuplicateGamesBySimilarity(t *testing.T) {
	games := []db.Game{
		{ID: 1, Title: "Hollow Knight"},
		{ID: 2, Title: "Hollow Knigth"}, // transposed, high similarity
		{ID: 3, Title: "Stardew Valley"},
	}
	pairs := FindDuplicateGames(games)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0][0].ID != 1 || pairs[0][1].ID != 2 {
		t.Fatalf("unexpected pair: %+v", pairs[0])
	}
}

func TestSimilarityIdentical(t *testing.T) {
	if s := similarity("Celeste", "Celeste"); s != 1 {
		t.Fatalf("similarity = %f, want 1", s)
	}
}
