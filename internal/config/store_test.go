package config

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/db"
)

type fakeSettingsRepo struct {
	values map[string]string
}

func newFakeRepo() *fakeSettingsRepo { return &fakeSettingsRepo{values: map[string]string{}} }

func (f *fakeSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", db.ErrNoRows
	}
	return v, nil
}

func (f *fakeSettingsRepo) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettingsRepo) Delete(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeSettingsRepo) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func TestGetReadsThroughToDbOnCacheMiss(t *testing.T) {
	repo := newFakeRepo()
	repo.values["dry_run"] = "false"
	s := New(repo, zerolog.Nop())

	v, ok := s.Get(context.Background(), "dry_run")
	if !ok || v != "false" {
		t.Fatalf("Get = (%q, %v), want (false, true)", v, ok)
	}
}

func TestSetInvalidatesCache(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo, zerolog.Nop())

	s.putCached("dry_run", "true")
	if err := s.Set(context.Background(), "dry_run", "false"); err != nil {
		t.Fatal(err)
	}
	v, ok := s.Get(context.Background(), "dry_run")
	if !ok || v != "false" {
		t.Fatalf("Get after Set = (%q, %v), want (false, true)", v, ok)
	}
}

func TestDryRunDefaultsTrueWhenUnset(t *testing.T) {
	s := New(newFakeRepo(), zerolog.Nop())
	if !s.DryRun(context.Background()) {
		t.Fatal("expected dry_run to default true")
	}
}

func TestAutoGrabMinScoreClampsToRange(t *testing.T) {
	repo := newFakeRepo()
	repo.values["auto_grab_min_score"] = "9999"
	s := New(repo, zerolog.Nop())
	if got := s.AutoGrabMinScore(context.Background()); got != 500 {
		t.Fatalf("AutoGrabMinScore = %d, want clamped to 500", got)
	}
}

func TestIsSensitiveMatchesCaseInsensitively(t *testing.T) {
	cases := map[string]bool{
		"qbittorrent_password": true,
		"PROWLARR_API_KEY":     true,
		"igdb_client_secret":   true,
		"dry_run":              false,
	}
	for key, want := range cases {
		if got := IsSensitive(key); got != want {
			t.Errorf("IsSensitive(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestProwlarrCategoriesDefaultsByPlatform(t *testing.T) {
	s := New(newFakeRepo(), zerolog.Nop())
	if cats := s.ProwlarrCategories(context.Background(), "ps5"); len(cats) != 1 || cats[0] != 1030 {
		t.Fatalf("ps5 categories = %v", cats)
	}
	if cats := s.ProwlarrCategories(context.Background(), "pc"); len(cats) != 2 {
		t.Fatalf("pc categories = %v", cats)
	}
}
