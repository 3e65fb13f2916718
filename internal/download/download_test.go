package download

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/qbt"
)

type fakeGamesForOrphans struct {
	db.GameRepository
	existing map[int64]bool
}

func (f *fakeGamesForOrphans) Get(ctx context.Context, id int64) (db.Game, error) {
	if f.existing[id] {
		return db.Game{ID: id}, nil
	}
	return db.Game{}, db.ErrNoRows
}

type fakeSettingsRepo struct{}

func (fakeSettingsRepo) Get(ctx context.Context, key string) (string, error) { return "", db.ErrNoRows }
func (fakeSettingsRepo) Set(ctx context.Context, key, value string) error    { return nil }
func (fakeSettingsRepo) Delete(ctx context.Context, key string) error        { return nil }
func (fakeSettingsRepo) All(ctx context.Context) (map[string]string, error)  { return nil, nil }

type fakeDaemon struct {
	qbt.Daemon
	torrents      []qbt.Torrent
	deletedHashes []string
}

func (f *fakeDaemon) IsConfigured() bool { return true }

func (f *fakeDaemon) GetTorrents(ctx context.Context, categoryFilter string) ([]qbt.Torrent, error) {
	return f.torrents, nil
}

func (f *fakeDaemon) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	f.deletedHashes = hashes
	return nil
}

func TestRemoveOrphanedTorrentsDeletesOnlyTaggedGamesThatNoLongerExist(t *testing.T) {
	daemon := &fakeDaemon{torrents: []qbt.Torrent{
		{Hash: "h1", Tags: "gamearr,game-1"}, // game 1 still exists: kept
		{Hash: "h2", Tags: "gamearr,game-2"}, // game 2 deleted: orphaned
		{Hash: "h3", Tags: "unrelated-tool"}, // not ours: left alone
	}}
	games := &fakeGamesForOrphans{existing: map[int64]bool{1: true}}
	settings := config.New(fakeSettingsRepo{}, zerolog.Nop())

	s := &Service{games: games, daemon: daemon, settings: settings, log: zerolog.Nop()}
	if err := s.RemoveOrphanedTorrents(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	if len(daemon.deletedHashes) != 1 || daemon.deletedHashes[0] != "h2" {
		t.Fatalf("deleted hashes = %v, want [h2]", daemon.deletedHashes)
	}
}

func TestMatchTorrentByHashTakesPriorityOverTitle(t *testing.T) {
	hash := "ABCDEF1234567890"
	r := db.Release{Title: "Unrelated Title Entirely", TorrentHash: &hash}
	torrents := []qbt.Torrent{
		{Hash: "deadbeef", Name: "Unrelated Title Entirely [GOG]"},
		{Hash: "abcdef1234567890", Name: "Something else"},
	}

	got := matchTorrent(r, torrents)
	if got == nil || got.Hash != "abcdef1234567890" {
		t.Fatalf("matchTorrent = %v, want the hash match", got)
	}
}

func TestMatchTorrentFallsBackToTitlePrefixWithoutHash(t *testing.T) {
	r := db.Release{Title: "Hollow Knight Silksong GOG Repack"}
	torrents := []qbt.Torrent{
		{Hash: "x", Name: "Hollow Knight Silksong GOG Repack-CODEX"},
		{Hash: "y", Name: "Stardew Valley"},
	}

	got := matchTorrent(r, torrents)
	if got == nil || got.Hash != "x" {
		t.Fatalf("matchTorrent = %v, want the title-prefix match", got)
	}
}

func TestMatchTorrentNoMatch(t *testing.T) {
	r := db.Release{Title: "Nothing Like It"}
	torrents := []qbt.Torrent{{Hash: "x", Name: "Completely Different"}}

	if got := matchTorrent(r, torrents); got != nil {
		t.Fatalf("matchTorrent = %v, want nil", got)
	}
}

func TestIsErrorState(t *testing.T) {
	cases := map[string]bool{
		"error":        true,
		"missingFiles": true,
		"unknown":      true,
		"downloading":  false,
		"uploading":    false,
		"pausedUP":     false,
	}
	for state, want := range cases {
		if got := isErrorState(state); got != want {
			t.Errorf("isErrorState(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestParseGameTag(t *testing.T) {
	cases := map[string]struct {
		id int64
		ok bool
	}{
		"gamearr,game-42,9d8f": {42, true},
		"game-7":               {7, true},
		"gamearr,game-7":       {7, true},
		"gamearr":              {0, false},
		"gamearr,other-tag":    {0, false},
		"":                     {0, false},
	}
	for tags, want := range cases {
		id, ok := parseGameTag(tags)
		if ok != want.ok || (ok && id != want.id) {
			t.Errorf("parseGameTag(%q) = (%d, %v), want (%d, %v)", tags, id, ok, want.id, want.ok)
		}
	}
}

func TestSetFolderPathDoesNotMutateOriginal(t *testing.T) {
	g := db.Game{ID: 1, FolderPath: "old"}
	updated := setFolderPath(g, "new")

	if g.FolderPath != "old" {
		t.Fatal("expected the original struct to be unaffected (passed by value)")
	}
	if updated.FolderPath != "new" {
		t.Fatalf("updated.FolderPath = %q, want new", updated.FolderPath)
	}
}
