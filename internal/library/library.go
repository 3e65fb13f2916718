// Package library implements the library importer of spec.md §4.13:
// scans configured library roots, parses folder names into a candidate
// title/year, matches against the catalog, and reconciles stale scans.
package library

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/errs"
)

type Importer struct {
	libraries db.LibraryRepository
	files     db.LibraryFileRepository
	games     db.GameRepository
	log       zerolog.Logger
}

func New(libraries db.LibraryRepository, files db.LibraryFileRepository, games db.GameRepository, log zerolog.Logger) *Importer {
	return &Importer{libraries: libraries, files: files, games: games, log: log.With().Str("component", "library").Logger()}
}

// sceneTagPatterns strips release-group and distribution tags from a raw
// folder name before title extraction (spec.md §4.13).
var sceneTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)-?\b(CODEX|PLAZA|SKIDROW|RELOADED|FitGirl|DODI|ElAmigos|GOG|DARKSiDERS|EMPRESS|Razor1911|RUNE|TiNYiSO|HOODLUM)\b`),
	regexp.MustCompile(`\[[^\]]*\]`),
	regexp.MustCompile(`\([^)]*repack[^)]*\)`),
}

var versionTagPattern = regexp.MustCompile(`(?i)\bv\d+(\.\d+)*\b`)
var yearPattern = regexp.MustCompile(`\((\d{4})\)`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// ParseFolderName extracts a candidate title and optional year from a raw
// folder name, per spec.md §4.13's ordered strip rules: year extraction
// first, then scene/repack tags (with any leading dash), bracketed tags,
// version strings, then separators.
func ParseFolderName(name string) (title string, year *int) {
	working := name

	if m := yearPattern.FindStringSubmatch(working); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			year = &y
		}
		working = yearPattern.ReplaceAllString(working, "")
	}

	for _, p := range sceneTagPatterns {
		working = p.ReplaceAllString(working, "")
	}
	working = versionTagPattern.ReplaceAllString(working, "")

	working = strings.ReplaceAll(working, ".", " ")
	working = strings.ReplaceAll(working, "_", " ")
	working = whitespaceRun.ReplaceAllString(working, " ")
	working = strings.TrimSpace(working)

	return working, year
}

// isGameFolder reports whether dir contains at least one regular file,
// distinguishing a game folder from a pure category/grouping folder
// (spec.md §4.13).
func isGameFolder(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			return true, nil
		}
	}
	return false, nil
}

// ScanLibrary walks a library root, matches each game folder against the
// catalog by lowercase title and year, upserts the scan result, and
// deletes LibraryFile rows for folders that no longer exist (spec.md
// §4.13).
func (im *Importer) ScanLibrary(ctx context.Context, libraryID int64) error {
	lib, err := im.libraries.Get(ctx, libraryID)
	if err != nil {
		return errs.Database("load library", err)
	}

	entries, err := os.ReadDir(lib.Path)
	if err != nil {
		return errs.FileSystem("read library root", err)
	}

	allGames, err := im.games.ListByStatus(ctx, db.GameStatusWanted, false)
	if err != nil {
		return errs.Database("list games", err)
	}
	downloaded, err := im.games.ListDownloaded(ctx, false)
	if err != nil {
		return errs.Database("list downloaded games", err)
	}
	allGames = append(allGames, downloaded...)

	var present []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folderPath := filepath.Join(lib.Path, e.Name())

		isGame, err := isGameFolder(folderPath)
		if err != nil {
			im.log.Error().Err(err).Str("path", folderPath).Msg("failed to inspect folder")
			continue
		}
		if !isGame {
			continue
		}

		present = append(present, folderPath)
		im.importFolder(ctx, lib, folderPath, e.Name(), allGames)
	}

	if _, err := im.files.DeleteMissing(ctx, libraryID, present); err != nil {
		return errs.Database("delete missing library files", err)
	}
	return nil
}

func (im *Importer) importFolder(ctx context.Context, lib db.Library, folderPath, folderName string, catalog []db.Game) {
	title, year := ParseFolderName(folderName)

	f := db.LibraryFile{
		FolderPath:  folderPath,
		ParsedTitle: title,
		ParsedYear:  year,
		LibraryID:   &lib.ID,
	}

	if match := matchGame(title, year, catalog); match != nil {
		id := match.ID
		f.MatchedGameID = &id
	}

	if _, err := im.files.Upsert(ctx, f); err != nil {
		im.log.Error().Err(err).Str("path", folderPath).Msg("failed to upsert library file")
	}
}

func matchGame(title string, year *int, catalog []db.Game) *db.Game {
	lowerTitle := strings.ToLower(title)
	for i := range catalog {
		g := catalog[i]
		if strings.ToLower(g.Title) != lowerTitle {
			continue
		}
		if year != nil && g.Year != nil && *year != *g.Year {
			continue
		}
		return &catalog[i]
	}
	return nil
}

// FindDuplicateGames reports pairs of games whose titles are at least 80%
// similar by Levenshtein distance, a cheap defense against the same title
// being imported into the catalog twice (spec.md §4.13).
func FindDuplicateGames(games []db.Game) [][2]db.Game {
	var pairs [][2]db.Game
	for i := 0; i < len(games); i++ {
		for j := i + 1; j < len(games); j++ {
			if similarity(games[i].Title, games[j].Title) >= 0.8 {
				pairs = append(pairs, [2]db.Game{games[i], games[j]})
			}
		}
	}
	return pairs
}

func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			min := curr[j-1] + 1
			if prev[j]+1 < min {
				min = prev[j] + 1
			}
			if prev[j-1]+cost < min {
				min = prev[j-1] + cost
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
