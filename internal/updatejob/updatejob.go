// Package updatejob implements the update-check job of spec.md §4.12: a
// scheduled (hourly/daily/weekly) sweep over downloaded games, coalesced
// with manual triggers so both share one in-flight scan, using the same
// singleflight idiom as internal/updates' per-game coalescing.
package updatejob

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/updates"
)

// startupDelay defers the first sweep so the process has time to finish
// booting before it starts hammering the indexer (spec.md §4.12).
const startupDelay = 60 * time.Second

// interGameDelay paces the sweep across many games (spec.md §4.12).
const interGameDelay = 1 * time.Second

// sweepKey is the single singleflight key: scheduled ticks and manual
// triggers always join the same in-flight sweep (spec.md §4.12).
const sweepKey = "sweep"

type Job struct {
	games    db.GameRepository
	detector *updates.Detector
	settings *config.Store
	log      zerolog.Logger

	sf singleflight.Group
}

func New(games db.GameRepository, detector *updates.Detector, settings *config.Store, log zerolog.Logger) *Job {
	return &Job{games: games, detector: detector, settings: settings, log: log.With().Str("component", "updatejob").Logger()}
}

// Result summarizes a full sweep.
type Result struct {
	Checked      int
	UpdatesFound int
}

// Run drives the scheduled loop: a startup delay, then re-evaluates the
// configured schedule after every sweep so a mid-run settings change takes
// effect on the following cycle (spec.md §4.12).
func (j *Job) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(startupDelay):
	}

	for {
		if !j.settings.UpdateCheckEnabled(ctx) {
			if !sleepCtx(ctx, time.Hour) {
				return
			}
			continue
		}

		if _, err := j.RunSweep(ctx); err != nil {
			j.log.Error().Err(err).Msg("update sweep failed")
		}

		if !sleepCtx(ctx, scheduleInterval(j.settings.UpdateCheckSchedule(ctx))) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func scheduleInterval(schedule string) time.Duration {
	switch schedule {
	case "hourly":
		return time.Hour
	case "weekly":
		return 7 * 24 * time.Hour
	default: // "daily"
		return 24 * time.Hour
	}
}

// RunSweep triggers an immediate sweep, coalesced via singleflight with
// any sweep already in flight (spec.md §4.12: "scheduled and manual
// triggers join the same in-flight sweep").
func (j *Job) RunSweep(ctx context.Context) (Result, error) {
	v, err, _ := j.sf.Do(sweepKey, func() (interface{}, error) {
		return j.sweep(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (j *Job) sweep(ctx context.Context) (Result, error) {
	games, err := j.games.ListDownloaded(ctx, true)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for i, g := range games {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		result, err := j.detector.CheckGameForUpdates(ctx, g.ID)
		if err != nil {
			j.log.Error().Err(err).Int64("game_id", g.ID).Msg("update check failed")
		} else if result.UpdateFound {
			res.UpdatesFound++
		}
		if i < len(games)-1 {
			time.Sleep(interGameDelay)
		}
	}

	j.log.Info().Int("checked", res.Checked).Int("updates_found", res.UpdatesFound).Msg("update sweep complete")
	return res, nil
}
