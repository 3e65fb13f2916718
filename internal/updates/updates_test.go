package updates

import (
	"testing"

	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/indexer"
)

func TestClassifyDLC(t *testing.T) {
	game := db.Game{ID: 1, Title: "Hades"}
	rel := indexer.Release{Title: "Hades - Soundtrack DLC", DownloadURL: "u1"}
	u, ok := classify(rel, game)
	if !ok {
		t.Fatal("expected classification")
	}
	if u.UpdateType != db.UpdateTypeDLC {
		t.Fatalf("type = %s, want dlc", u.UpdateType)
	}
}

func TestClassifyVersionNewerThanInstalled(t *testing.T) {
	installed := "1.2.0"
	game := db.Game{ID: 1, Title: "Hades", InstalledVersion: &installed}
	rel := indexer.Release{Title: "Hades v1.3.0", DownloadURL: "u2"}
	u, ok := classify(rel, game)
	if !ok {
		t.Fatal("expected classification")
	}
	if u.UpdateType != db.UpdateTypeVersion || u.Version == nil || *u.Version != "1.3.0" {
		t.Fatalf("unexpected update: %+v", u)
	}
}

func TestClassifyVersionNotNewerIsRejected(t *testing.T) {
	installed := "1.3.0"
	game := db.Game{ID: 1, Title: "Hades", InstalledVersion: &installed}
	rel := indexer.Release{Title: "Hades v1.2.0", DownloadURL: "u3"}
	_, ok := classify(rel, game)
	if ok {
		t.Fatal("expected rejection of non-newer version")
	}
}

func TestClassifyBetterRelease(t *testing.T) {
	scene := "Scene"
	game := db.Game{ID: 1, Title: "Hades", InstalledQuality: &scene}
	rel := indexer.Release{Title: "Hades [GOG]", DownloadURL: "u4"}
	u, ok := classify(rel, game)
	if !ok {
		t.Fatal("expected classification")
	}
	if u.UpdateType != db.UpdateTypeBetterRelease || u.Quality == nil || *u.Quality != "GOG" {
		t.Fatalf("unexpected update: %+v", u)
	}
}

func TestClassifyVersionSuffixIsNotMisclassifiedAsDLC(t *testing.T) {
	installed := "1.1.0"
	game := db.Game{ID: 1, Title: "Hades", InstalledVersion: &installed}
	rel := indexer.Release{Title: "Hades - v1.2", DownloadURL: "u6"}
	u, ok := classify(rel, game)
	if !ok {
		t.Fatal("expected classification")
	}
	if u.UpdateType != db.UpdateTypeVersion {
		t.Fatalf("type = %s, want version (connector trailing content is only 4 chars, below the >5 DLC threshold)", u.UpdateType)
	}
}

func TestClassifyConnectorDLCWithEnoughTrailingContent(t *testing.T) {
	game := db.Game{ID: 1, Title: "Hades"}
	rel := indexer.Release{Title: "Hades - Trials of the Gods", DownloadURL: "u7"}
	u, ok := classify(rel, game)
	if !ok {
		t.Fatal("expected classification")
	}
	if u.UpdateType != db.UpdateTypeDLC {
		t.Fatalf("type = %s, want dlc (connector + >5 trailing chars with no explicit marker)", u.UpdateType)
	}
}

func TestClassifyNullWhenNothingMatches(t *testing.T) {
	game := db.Game{ID: 1, Title: "Hades"}
	rel := indexer.Release{Title: "Hades", DownloadURL: "u5"}
	_, ok := classify(rel, game)
	if ok {
		t.Fatal("expected no classification for an unremarkable re-release")
	}
}

func TestParseVersionOrderedPatterns(t *testing.T) {
	cases := map[string]string{
		"Hades v1.38.22":     "1.38.22",
		"Hades v1.38":        "1.38",
		"Hades version 1.5":  "1.5",
		"Hades 1.2.3 repack": "1.2.3",
		"Hades build 456":    "456",
		"Hades update 7":     "7",
		"Hades u9":           "9",
		"Hades patch 1.2":    "1.2",
	}
	for title, want := range cases {
		if got := parseVersion(title); got != want {
			t.Errorf("parseVersion(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	if compareVersions("1.2.0", "1.10.0") >= 0 {
		t.Fatal("1.2.0 should be less than 1.10.0 numerically, not lexically")
	}
	if compareVersions("1.2.3", "1.2.3") != 0 {
		t.Fatal("equal versions should compare equal")
	}
	if compareVersions("2.0", "1.9.9") <= 0 {
		t.Fatal("2.0 should be greater than 1.9.9")
	}
}
