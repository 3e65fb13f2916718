// Package organizer implements the file organizer of spec.md §4.7: once a
// transfer completes, move its contents into the owning library's tree
// under a deterministic, collision-safe folder name, never escaping the
// library root.
//
// Grounded on the teacher's path-joining discipline in db/schema.go's
// migration-file loader (os.ReadDir + filepath.Join, never raw string
// concatenation) generalized into a canonical-prefix traversal guard.
package organizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/errs"
)

type Organizer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Organizer {
	return &Organizer{log: log.With().Str("component", "organizer").Logger()}
}

var invalidFolderChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// sanitizeFolderName strips characters that are invalid on common
// filesystems and trims the result (spec.md §4.7).
func sanitizeFolderName(title string) string {
	clean := invalidFolderChars.ReplaceAllString(title, "")
	clean = strings.TrimSpace(clean)
	clean = strings.TrimRight(clean, ".")
	if clean == "" {
		clean = "Unknown"
	}
	return clean
}

// OrganizeDownload moves sourcePath's contents into the library root for
// game, under a sanitized, collision-safe folder name, and returns the
// final folder path. If the destination already holds the same content
// (within 1 MiB of sourcePath's total size), organizing is a no-op that
// returns the existing destination (spec.md §4.7: "already organized"
// check).
func (o *Organizer) OrganizeDownload(ctx context.Context, libraryRoot string, game db.Game, sourcePath string) (string, error) {
	absRoot, err := filepath.Abs(libraryRoot)
	if err != nil {
		return "", errs.FileSystem("resolve library root", err)
	}

	baseName := sanitizeFolderName(game.Title)
	dest, err := o.resolveDestination(absRoot, baseName, sourcePath)
	if err != nil {
		return "", err
	}

	if err := o.assertWithinRoot(absRoot, dest); err != nil {
		return "", err
	}

	if already, err := o.alreadyOrganized(dest, sourcePath); err != nil {
		return "", err
	} else if already {
		o.log.Debug().Str("dest", dest).Msg("already organized, skipping move")
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errs.FileSystem("create destination parent", err)
	}
	if err := moveContents(sourcePath, dest); err != nil {
		return "", errs.FileSystem("move contents", err)
	}

	o.log.Info().Str("game", game.Title).Str("dest", dest).Msg("organized download")
	return dest, nil
}

// resolveDestination appends a numeric "(n)" suffix until it finds a path
// that either doesn't exist, or already holds this same content (spec.md
// §4.7 "collision avoidance").
func (o *Organizer) resolveDestination(root, baseName, sourcePath string) (string, error) {
	candidate := filepath.Join(root, baseName)
	for n := 2; ; n++ {
		info, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", errs.FileSystem("stat candidate destination", err)
		}
		if !info.IsDir() {
			return "", errs.FileSystem("destination exists and is not a directory", nil)
		}
		if already, err := o.alreadyOrganized(candidate, sourcePath); err == nil && already {
			return candidate, nil
		}
		candidate = filepath.Join(root, fmt.Sprintf("%s (%d)", baseName, n))
	}
}

// alreadyOrganized compares total directory sizes within a 1 MiB
// tolerance as a cheap proxy for "this is the same transfer" (spec.md
// §4.7).
func (o *Organizer) alreadyOrganized(dest, sourcePath string) (bool, error) {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return false, nil
	}
	const tolerance = 1 << 20 // 1 MiB

	destSize, err := dirSize(dest)
	if err != nil {
		return false, errs.FileSystem("measure destination size", err)
	}
	srcSize, err := dirSize(sourcePath)
	if err != nil {
		return false, errs.FileSystem("measure source size", err)
	}

	diff := destSize - srcSize
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance, nil
}

func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// assertWithinRoot rejects any destination that resolves outside the
// library root's canonical prefix; this error is never retried (spec.md
// §4.7, §9: "path-traversal safe").
func (o *Organizer) assertWithinRoot(root, dest string) error {
	rel, err := filepath.Rel(root, dest)
	if err != nil {
		return errs.PathTraversal("destination not relative to library root")
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errs.PathTraversal(fmt.Sprintf("destination %q escapes library root %q", dest, root))
	}
	return nil
}

// moveContents moves src's entries into dst (creating dst), preferring a
// plain rename and falling back to copy+remove across filesystem
// boundaries.
func moveContents(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if err := os.Rename(from, to); err != nil {
			if err := copyThenRemove(from, to); err != nil {
				return err
			}
		}
	}
	return os.RemoveAll(src)
}

func copyThenRemove(from, to string) error {
	info, err := os.Stat(from)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.MkdirAll(to, info.Mode()); err != nil {
			return err
		}
		entries, err := os.ReadDir(from)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyThenRemove(filepath.Join(from, e.Name()), filepath.Join(to, e.Name())); err != nil {
				return err
			}
		}
		return os.RemoveAll(from)
	}

	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	if err := os.WriteFile(to, data, info.Mode()); err != nil {
		return err
	}
	return os.Remove(from)
}
