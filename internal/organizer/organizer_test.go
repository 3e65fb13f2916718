package organizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/db"
)

func TestSanitizeFolderName(t *testing.T) {
	got := sanitizeFolderName(`Hollow Knight: Silksong?`)
	if got != "Hollow Knight Silksong" {
		t.Fatalf("sanitizeFolderName = %q", got)
	}
}

func TestSanitizeFolderNameEmptyFallsBackToUnknown(t *testing.T) {
	if got := sanitizeFolderName(`???`); got != "Unknown" {
		t.Fatalf("sanitizeFolderName(empty) = %q, want Unknown", got)
	}
}

func TestAssertWithinRootRejectsEscape(t *testing.T) {
	o := New(zerolog.Nop())
	root := "/library/pc"
	if err := o.assertWithinRoot(root, "/library/pc/Game"); err != nil {
		t.Fatalf("expected no error for a contained path, got %v", err)
	}
	if err := o.assertWithinRoot(root, "/library/other/Game"); err == nil {
		t.Fatal("expected path-traversal error for an escaping path")
	}
}

func TestOrganizeDownloadMovesContentsAndAvoidsCollision(t *testing.T) {
	root := t.TempDir()
	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "game.exe"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	o := New(zerolog.Nop())
	game := db.Game{Title: "Hollow Knight"}

	dest, err := o.OrganizeDownload(context.Background(), root, game, source)
	if err != nil {
		t.Fatalf("OrganizeDownload: %v", err)
	}
	if filepath.Base(dest) != "Hollow Knight" {
		t.Fatalf("dest = %q, want folder named Hollow Knight", dest)
	}
	if _, err := os.Stat(filepath.Join(dest, "game.exe")); err != nil {
		t.Fatalf("expected moved file, got %v", err)
	}

	// A second, distinct source organizing under the same title must not
	// collide with (or be treated as a re-run of) the first. Its payload is
	// 2 MiB, beyond the 1 MiB "already organized" size tolerance.
	source2 := t.TempDir()
	if err := os.WriteFile(filepath.Join(source2, "game.exe"), make([]byte, 2<<20), 0o644); err != nil {
		t.Fatal(err)
	}
	dest2, err := o.OrganizeDownload(context.Background(), root, game, source2)
	if err != nil {
		t.Fatalf("OrganizeDownload (2nd): %v", err)
	}
	if dest2 == dest {
		t.Fatalf("expected a distinct destination, got the same one: %s", dest2)
	}
}
