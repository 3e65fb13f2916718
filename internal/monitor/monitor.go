// Package monitor implements the download monitor of spec.md §4.11: a
// short-interval reconciler that delegates to the download service's
// status sync, with connection-state discipline so daemon outages don't
// spam logs.
//
// The connected/disconnected state machine with a first-failure WARN and
// periodic DEBUG reminders is grounded on the connection-state handling in
// other_examples/.../jatassi-SlipStream__reannounce-service.go, which logs
// the same way around a flaky external daemon.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/download"
	"github.com/gamearr/gamearr/internal/errs"
)

// tickInterval is fixed, not configurable, per spec.md §4.11.
const tickInterval = 30 * time.Second

// reminderInterval governs how often a still-disconnected daemon gets a
// DEBUG reminder log instead of silence (spec.md §4.11).
const reminderInterval = 5 * time.Minute

type Monitor struct {
	downloads *download.Service
	log       zerolog.Logger

	connected      bool
	lastReminderAt time.Time
}

func New(downloads *download.Service, log zerolog.Logger) *Monitor {
	return &Monitor{downloads: downloads, log: log.With().Str("component", "monitor").Logger(), connected: true}
}

// Run starts the fixed-interval reconciliation loop and returns when ctx
// is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	err := m.downloads.SyncDownloadStatus(ctx)
	if err == nil {
		m.onSuccess()
		return
	}

	if isConnectionError(err) {
		m.onConnectionFailure(err)
		return
	}

	// Non-connection errors are always surfaced at ERROR, regardless of
	// connection state (spec.md §4.11).
	m.log.Error().Err(err).Msg("download status sync failed")
}

func (m *Monitor) onSuccess() {
	if !m.connected {
		m.log.Info().Msg("connection restored")
	}
	m.connected = true
}

func (m *Monitor) onConnectionFailure(err error) {
	now := time.Now()
	if m.connected {
		m.log.Warn().Err(err).Msg("lost connection to torrent daemon")
		m.connected = false
		m.lastReminderAt = now
		return
	}

	if now.Sub(m.lastReminderAt) >= reminderInterval {
		m.log.Debug().Err(err).Msg("still disconnected from torrent daemon")
		m.lastReminderAt = now
	}
}

func isConnectionError(err error) bool {
	return errs.Is(err, errs.KindIntegration) || errs.Is(err, errs.KindNotConfigured)
}
