// Command gamearrd is the composition root: it opens the database,
// applies migrations, wires every repository and service, starts the
// four periodic workers, and exposes the thin manual-trigger/health HTTP
// surface of spec.md §6.
//
// Structure (DB open, migrate, wire, start server) is adapted from the
// teacher's main.go; the route surface is deliberately three routes, not
// the teacher's full view-rendering surface, since the REST API is out of
// scope (spec.md §1 Non-goals).
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/gamearr/gamearr/internal/config"
	"github.com/gamearr/gamearr/internal/db"
	"github.com/gamearr/gamearr/internal/download"
	"github.com/gamearr/gamearr/internal/indexer"
	"github.com/gamearr/gamearr/internal/library"
	"github.com/gamearr/gamearr/internal/logging"
	"github.com/gamearr/gamearr/internal/monitor"
	"github.com/gamearr/gamearr/internal/organizer"
	"github.com/gamearr/gamearr/internal/qbt"
	"github.com/gamearr/gamearr/internal/rsssync"
	"github.com/gamearr/gamearr/internal/scheduler"
	"github.com/gamearr/gamearr/internal/scoring"
	"github.com/gamearr/gamearr/internal/updatejob"
	"github.com/gamearr/gamearr/internal/updates"
)

func main() {
	_ = godotenv.Load()

	log := logging.New(os.Getenv("ENV") != "production", zerolog.InfoLevel)

	dbPath := os.Getenv("GAMEARR_DB_PATH")
	if dbPath == "" {
		dbPath = "data/gamearr.db"
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer func(d *sql.DB) { _ = d.Close() }(sqlDB)

	migrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.ApplyMigrations(migrateCtx, sqlDB); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	games := db.NewGameRepository(sqlDB)
	releases := db.NewReleaseRepository(sqlDB)
	gameUpdates := db.NewGameUpdateRepository(sqlDB)
	libraries := db.NewLibraryRepository(sqlDB)
	libraryFiles := db.NewLibraryFileRepository(sqlDB)
	history := db.NewDownloadHistoryRepository(sqlDB)
	settingsRepo := db.NewSettingsRepository(sqlDB)

	settings := config.New(settingsRepo, log)

	idx := indexer.New()
	if baseURL, ok := settings.Get(context.Background(), "prowlarr_base_url"); ok {
		if apiKey, ok := settings.Get(context.Background(), "prowlarr_api_key"); ok {
			idx.Configure(baseURL, apiKey)
		}
	}

	daemon := qbt.New()
	if host, ok := settings.Get(context.Background(), "qbittorrent_host"); ok {
		username, _ := settings.Get(context.Background(), "qbittorrent_username")
		password, _ := settings.Get(context.Background(), "qbittorrent_password")
		if err := daemon.Configure(host, username, password); err != nil {
			log.Error().Err(err).Msg("configure torrent daemon")
		}
	}

	org := organizer.New(log)
	downloads := download.New(games, releases, history, libraries, daemon, org, settings, log)
	detector := updates.New(games, gameUpdates, idx, settings, log)
	importer := library.New(libraries, libraryFiles, games, log)

	sched := scheduler.New(games, releases, idx, downloads, settings, log)
	rss := rsssync.New(games, idx, downloads, settings, log)
	mon := monitor.New(downloads, log)
	job := updatejob.New(games, detector, settings, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sched.Run(ctx)
	go rss.Run(ctx)
	go mon.Run(ctx)
	go job.Run(ctx)
	go scanLibrariesAtStartup(ctx, importer, libraries, log)

	server := echo.New()
	server.HideBanner = true
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	server.POST("/internal/grab/:gameId", func(c echo.Context) error {
		gameID, err := strconv.ParseInt(c.Param("gameId"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid gameId"})
		}
		game, err := games.Get(c.Request().Context(), gameID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "game not found"})
		}
		categories := settings.ProwlarrCategories(c.Request().Context(), game.Platform)
		candidates, err := idx.Search(c.Request().Context(), game.Title, categories, 25)
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		if len(candidates) == 0 {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no candidates found"})
		}

		scoredGame := scoring.Game{Title: game.Title, Year: game.Year, InstalledQuality: game.InstalledQuality}
		now := time.Now()
		var scored []scoring.Scored
		for _, cand := range candidates {
			scored = append(scored, scoring.Score(scoring.Candidate{
				Title: cand.Title, Size: cand.Size, Seeders: cand.Seeders,
				PublishedAt: cand.PublishedAt, DownloadURL: cand.DownloadURL,
				Indexer: cand.Indexer, GUID: cand.GUID,
			}, scoredGame, now))
		}
		scoring.RankCandidates(scored)

		releaseID, err := downloads.GrabRelease(c.Request().Context(), gameID, scored[0])
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]int64{"releaseId": releaseID})
	})

	server.POST("/internal/updates/check", func(c echo.Context) error {
		result, err := job.RunSweep(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, result)
	})

	addr := os.Getenv("GAMEARR_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Fatal().Err(server.Start(addr)).Msg("server stopped")
}

// scanLibrariesAtStartup runs one import pass over every configured
// library root shortly after boot, per spec.md §4.13; subsequent scans
// are triggered externally (out of scope for this process's own
// schedule).
func scanLibrariesAtStartup(ctx context.Context, importer *library.Importer, libraries db.LibraryRepository, log zerolog.Logger) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(5 * time.Second):
	}

	libs, err := libraries.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list libraries for startup scan")
		return
	}
	for _, lib := range libs {
		if err := importer.ScanLibrary(ctx, lib.ID); err != nil {
			log.Error().Err(err).Int64("library_id", lib.ID).Msg("startup library scan failed")
		}
	}
}
