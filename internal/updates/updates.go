// Package updates implements the update detector of spec.md §4.8: for a
// downloaded game, search the indexer, classify fresh candidates as
// version/dlc/better_release, dedupe against existing GameUpdate rows, and
// batch-insert survivors.
//
// Per-game checks are coalesced with golang.org/x/sync/singleflight so a
// scheduled sweep and a manual trigger for the same game share one
// in-flight search, the concurrency idiom documented in
// other_examples/.../autobrr-qui__hardlink_index.go.
package updates

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/errs"
	"github.com/gamearr/gamearr/internal/indexer"
	"github.com/gamearr/gamearr/internal/scoring"
)

// dlcTitleMarkers are substrings that, in a candidate title, mark it as
// probable DLC rather than a version update (spec.md §4.8).
var dlcTitleMarkers = []string{
	"dlc", "expansion", "season pass", "goty",
	"ultimate edition", "complete edition", "deluxe edition", "gold edition",
	"premium edition", "collector's edition", "definitive edition", "legendary edition",
}

// dlcConnectors separate a base game title from trailing DLC content in
// release naming conventions (spec.md §4.8's "connector-based heuristic").
var dlcConnectors = []string{" - ", " + ", " and ", " with "}

// dlcConnectorMinTrailingLen is the minimum length of content after the
// connector for it to count as a genuine DLC subtitle rather than e.g. a
// bare "Game - v1.2" version suffix (spec.md §4.8: ">5 characters").
const dlcConnectorMinTrailingLen = 5

type Detector struct {
	games    db.GameRepository
	updates  db.GameUpdateRepository
	idx      *indexer.Client
	settings *config.Store
	log      zerolog.Logger

	sf singleflight.Group
}

func New(games db.GameRepository, updates db.GameUpdateRepository, idx *indexer.Client, settings *config.Store, log zerolog.Logger) *Detector {
	return &Detector{games: games, updates: updates, idx: idx, settings: settings, log: log.With().Str("component", "updates").Logger()}
}

// CheckResult summarizes one game's update check.
type CheckResult struct {
	Checked     bool
	Found       int
	UpdateFound bool
}

// CheckGameForUpdates performs the per-game update scan of spec.md §4.8,
// coalescing concurrent callers for the same game via singleflight so a
// scheduled sweep and a manual trigger never duplicate work.
func (d *Detector) CheckGameForUpdates(ctx context.Context, gameID int64) (CheckResult, error) {
	key := strconv.FormatInt(gameID, 10)
	v, err, _ := d.sf.Do(key, func() (interface{}, error) {
		return d.checkGameForUpdates(ctx, gameID)
	})
	if err != nil {
		return CheckResult{}, err
	}
	return v.(CheckResult), nil
}

func (d *Detector) checkGameForUpdates(ctx context.Context, gameID int64) (CheckResult, error) {
	game, err := d.games.Get(ctx, gameID)
	if err != nil {
		return CheckResult{}, errs.Database("load game", err)
	}
	if game.Status != db.GameStatusDownloaded {
		return CheckResult{Checked: false}, nil
	}

	existing, err := d.updates.ListForGame(ctx, gameID)
	if err != nil {
		return CheckResult{}, errs.Database("list existing updates", err)
	}
	seenURLs := make(map[string]bool, len(existing))
	seenTitles := make(map[string]bool, len(existing))
	for _, u := range existing {
		seenURLs[u.DownloadURL] = true
		seenTitles[strings.ToLower(u.Title)] = true
	}

	if !d.idx.IsConfigured() {
		return CheckResult{Checked: false}, nil
	}
	categories := d.settings.ProwlarrCategories(ctx, game.Platform)
	candidates, err := d.idx.Search(ctx, game.Title, categories, 50)
	if err != nil {
		return CheckResult{}, err
	}

	var fresh []db.GameUpdate
	for _, c := range candidates {
		if seenURLs[c.DownloadURL] || seenTitles[strings.ToLower(c.Title)] {
			continue
		}

		classified, ok := classify(c, game)
		if !ok {
			continue
		}

		seenURLs[c.DownloadURL] = true
		seenTitles[strings.ToLower(c.Title)] = true
		fresh = append(fresh, classified)
	}

	if len(fresh) == 0 {
		_ = d.games.SetUpdateFields(ctx, gameID, game.UpdateAvailable, game.LatestVersion, nowFunc())
		return CheckResult{Checked: true, Found: 0}, nil
	}

	if err := d.updates.BatchInsert(ctx, fresh); err != nil {
		return CheckResult{}, errs.Database("batch insert updates", err)
	}

	latest := game.LatestVersion
	for _, u := range fresh {
		if u.UpdateType == db.UpdateTypeVersion && u.Version != nil {
			if latest == nil || compareVersions(*u.Version, *latest) > 0 {
				latest = u.Version
			}
		}
	}
	if err := d.games.SetUpdateFields(ctx, gameID, true, latest, nowFunc()); err != nil {
		d.log.Error().Err(err).Int64("game_id", gameID).Msg("failed to set update fields")
	}

	return CheckResult{Checked: true, Found: len(fresh), UpdateFound: true}, nil
}

// classify implements spec.md §4.8's type decision: DLC markers first,
// then a parseable version newer than installed, then (for candidates with
// no newer version) a quality tag ranked strictly above the installed one,
// else the candidate is discarded (null classification).
func classify(c indexer.Release, game db.Game) (db.GameUpdate, bool) {
	base := db.GameUpdate{
		GameID:      game.ID,
		Title:       c.Title,
		Size:        c.Size,
		Seeders:     c.Seeders,
		DownloadURL: c.DownloadURL,
		Indexer:     c.Indexer,
		Status:      db.UpdateStatusPending,
	}

	if looksLikeDLC(c.Title, game.Title) {
		base.UpdateType = db.UpdateTypeDLC
		return base, true
	}

	if v := parseVersion(c.Title); v != "" {
		if game.InstalledVersion == nil || compareVersions(v, *game.InstalledVersion) > 0 {
			base.UpdateType = db.UpdateTypeVersion
			version := v
			base.Version = &version
			return base, true
		}
	}

	quality, _ := extractQualityTag(c.Title)
	if quality != nil && scoring.QualityRankOf(quality) > scoring.QualityRankOf(game.InstalledQuality) {
		base.UpdateType = db.UpdateTypeBetterRelease
		base.Quality = quality
		return base, true
	}

	return db.GameUpdate{}, false
}

// looksLikeDLC implements spec.md §4.8's DLC test: an explicit marker
// anywhere in the title, or the game's own title followed by a connector
// and more than 5 characters of additional content.
func looksLikeDLC(releaseTitle, gameTitle string) bool {
	lower := strings.ToLower(releaseTitle)
	for _, marker := range dlcTitleMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	normGame := strings.ToLower(strings.TrimSpace(gameTitle))
	if normGame == "" {
		return false
	}
	idx := strings.Index(lower, normGame)
	if idx == -1 {
		return false
	}

	rest := releaseTitle[idx+len(normGame):]
	for _, connector := range dlcConnectors {
		if !strings.HasPrefix(strings.ToLower(rest), connector) {
			continue
		}
		trailing := strings.TrimSpace(rest[len(connector):])
		if len(trailing) > dlcConnectorMinTrailingLen {
			return true
		}
	}
	return false
}

// versionPatterns are tried in order; the first match wins (spec.md
// §4.8's ordered-pattern version parser).
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bv(\d+\.\d+\.\d+)\b`),
	regexp.MustCompile(`(?i)\bv(\d+\.\d+)\b`),
	regexp.MustCompile(`(?i)\bversion\s+(\d+(?:\.\d+)*)\b`),
	regexp.MustCompile(`\b(\d+\.\d+\.\d+)\b`),
	regexp.MustCompile(`(?i)\bbuild\s+(\d+)\b`),
	regexp.MustCompile(`(?i)\bupdate\s+(\d+)\b`),
	regexp.MustCompile(`(?i)\bu(\d+)\b`),
	regexp.MustCompile(`(?i)\br(\d+)\b`),
	regexp.MustCompile(`(?i)\bpatch\s+(\d+(?:\.\d+)*)\b`),
}

func parseVersion(title string) string {
	for _, re := range versionPatterns {
		if m := re.FindStringSubmatch(title); m != nil {
			return m[1]
		}
	}
	return ""
}

// compareVersions compares two dotted numeric version strings by
// zero-padded numeric tuple, returning -1/0/1 (spec.md §4.8).
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

var qualityPatterns = []struct {
	substr string
	tag    string
}{
	{"gog", "GOG"},
	{"drm-free", "DRM-Free"},
	{"drm free", "DRM-Free"},
	{"repack", "Repack"},
	{"scene", "Scene"},
}

func extractQualityTag(title string) (*string, bool) {
	lower := strings.ToLower(title)
	for _, p := range qualityPatterns {
		if strings.Contains(lower, p.substr) {
			tag := p.tag
			return &tag, true
		}
	}
	return nil, false
}

// nowFunc is a seam for tests; production always uses time.Now.
var nowFunc = time.Now
