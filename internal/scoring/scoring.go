// Package scoring implements the deterministic release scorer of spec.md
// §4.5: a pure function from (candidate release, wanted game) to a score
// and match confidence, plus the auto-grab gate.
//
// Grounded on the shape of other_examples/.../owine-radarr-go__release.go
// (Quality/score fields on a release-like struct) and the scoring idiom in
// other_examples/.../jatassi-SlipStream__scoring_selection_test.go (pure,
// table-driven, no mutation of shared state).
package scoring

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MatchConfidence is the three-level confidence label of spec.md §4.5.
type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
)

// Candidate is the minimal shape of a release surfaced by the indexer
// that the scorer needs (spec.md §4.3).
type Candidate struct {
	Title       string
	Size        int64
	Seeders     int
	PublishedAt time.Time
	DownloadURL string
	Indexer     string
	GUID        string
}

// Game is the minimal shape of a wanted game the scorer needs.
type Game struct {
	Title            string
	Year             *int
	InstalledQuality *string
}

// Scored is the result of scoring one Candidate against one Game.
type Scored struct {
	Candidate       Candidate
	Quality         *string
	Score           int
	MatchConfidence MatchConfidence
}

var nonAlphanumericRun = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTitle lowercases, strips apostrophes, replaces non-alphanumeric
// runs with a single space, and collapses whitespace (spec.md §4.5 step 2).
func normalizeTitle(title string) string {
	lower := strings.ToLower(title)
	lower = strings.ReplaceAll(lower, "'", "")
	normalized := nonAlphanumericRun.ReplaceAllString(lower, " ")
	return strings.TrimSpace(normalized)
}

// qualityRank orders quality tags for "better_release" comparisons
// (spec.md §4.8 step 5: "Scene < Repack < DRM-Free < GOG; null is lowest").
var qualityRank = map[string]int{
	"":         0,
	"scene":    1,
	"repack":   2,
	"drm-free": 3,
	"gog":      4,
}

// QualityRankOf returns the rank of a quality tag, treating nil/unknown as
// the lowest rank (0).
func QualityRankOf(quality *string) int {
	if quality == nil {
		return 0
	}
	return qualityRank[strings.ToLower(*quality)]
}

// qualityPatterns are matched case-insensitively in priority order; at
// most one tag is recorded (spec.md §4.5 step 6).
var qualityPatterns = []struct {
	substr string
	tag    string
	bonus  int
}{
	{"gog", "GOG", 50},
	{"drm-free", "DRM-Free", 40},
	{"drm free", "DRM-Free", 40},
	{"repack", "Repack", 20},
	{"scene", "Scene", 10},
}

func extractQuality(releaseTitle string) (*string, int) {
	lower := strings.ToLower(releaseTitle)
	for _, p := range qualityPatterns {
		if strings.Contains(lower, p.substr) {
			tag := p.tag
			return &tag, p.bonus
		}
	}
	return nil, 0
}

// Score scores one candidate release against one game, per spec.md §4.5.
// now is injected so the function stays pure and test-repeatable (callers
// pass time.Now() in production).
func Score(c Candidate, g Game, now time.Time) Scored {
	score := 100
	confidence := ConfidenceMedium

	normGame := normalizeTitle(g.Title)
	normRelease := normalizeTitle(c.Title)

	if normGame != "" && strings.Contains(normRelease, normGame) {
		score += 50
		confidence = ConfidenceHigh
	} else {
		words := significantWords(normGame)
		hitRatio := wordHitRatio(words, normRelease)
		switch {
		case hitRatio >= 0.8:
			score += 30
			confidence = ConfidenceHigh
		case hitRatio >= 0.5:
			score += 15
		default:
			score -= 60
			confidence = ConfidenceLow
		}
	}

	if g.Year != nil {
		yearStr := strconv.Itoa(*g.Year)
		if strings.Contains(c.Title, yearStr) {
			score += 20
		}
	}

	quality, qualityBonus := extractQuality(c.Title)
	score += qualityBonus

	if c.Seeders < 5 {
		score -= 30
	} else if c.Seeders >= 20 {
		score += 10
	}

	if !c.PublishedAt.IsZero() {
		age := now.Sub(c.PublishedAt)
		if age > 2*365*24*time.Hour {
			score -= 20
		}
	}

	gb := float64(c.Size) / (1024 * 1024 * 1024)
	if gb < 0.1 || gb > 200 {
		score -= 50
	}

	// Confidence promotion/demotion on final score (step 10).
	if score >= 150 {
		confidence = ConfidenceHigh
	} else if score < 80 {
		confidence = ConfidenceLow
	}

	return Scored{Candidate: c, Quality: quality, Score: score, MatchConfidence: confidence}
}

// significantWords splits a normalized title into words longer than 2
// characters (spec.md §4.5 step 4).
func significantWords(normalized string) []string {
	var words []string
	for _, w := range strings.Fields(normalized) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func wordHitRatio(words []string, normRelease string) float64 {
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(normRelease, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// ShouldAutoGrab implements the auto-grab gate of spec.md §4.5: monotone
// in score and seeders (lowering either cannot flip false->true, per
// spec.md §8).
func ShouldAutoGrab(s Scored, minScore, minSeeders int) bool {
	return s.Score >= minScore && s.Candidate.Seeders >= minSeeders && s.MatchConfidence != ConfidenceLow
}

// RankCandidates sorts scored releases by the tie-break rule of spec.md
// §4.5: descending score, then descending seeders, then newer publishedAt.
func RankCandidates(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Candidate.Seeders != b.Candidate.Seeders {
			return a.Candidate.Seeders > b.Candidate.Seeders
		}
		return a.Candidate.PublishedAt.After(b.Candidate.PublishedAt)
	})
}
