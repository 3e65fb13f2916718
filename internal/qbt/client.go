// Package qbt is the torrent daemon client of spec.md §4.4: session
// authenticated add/pause/resume/delete/list plus category/tag management,
// with canonicalized torrent metadata.
//
// It wraps github.com/autobrr/go-qbittorrent (grounded on
// other_examples/.../autobrr-qui__hardlink_index.go and
// .../reannounce-service.go, both of which import it as `qbt`) behind our
// own Daemon interface so the rest of the core never sees the upstream
// client's shape directly — apart from the composition root that
// constructs it, only internal/download depends on this package.
package qbt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	qbittorrent "github.com/autobrr/go-qbittorrent"

	"github.com/gamearr/gamearr/internal/errs"
)

// Torrent is the canonicalized daemon torrent shape of spec.md §4.4.
type Torrent struct {
	Hash          string
	Name          string
	Size          int64
	Progress      float64 // [0,1]
	DownloadSpeed int64
	UploadSpeed   int64
	ETA           int64 // seconds
	State         string
	Category      string
	Tags          string
	SavePath      string
	AddedOn       time.Time
	CompletionOn  *time.Time
}

// AddOptions configures a torrent addition (spec.md §4.4).
type AddOptions struct {
	Category string
	Tags     string
	Paused   bool
	SavePath string
}

// Daemon is the interface internal/download programs against.
type Daemon interface {
	IsConfigured() bool
	Configure(host, username, password string) error
	TestConnection(ctx context.Context) error
	AddTorrent(ctx context.Context, urlOrMagnet string, opts AddOptions) error
	GetTorrents(ctx context.Context, categoryFilter string) ([]Torrent, error)
	GetTorrent(ctx context.Context, hash string) (Torrent, error)
	PauseTorrents(ctx context.Context, hashes []string) error
	ResumeTorrents(ctx context.Context, hashes []string) error
	DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error
	GetCategories(ctx context.Context) ([]string, error)
	AddTags(ctx context.Context, hashes []string, tagsCSV string) error
	FindTorrentsByPath(ctx context.Context, pathPrefix string) ([]Torrent, error)
}

type client struct {
	mu       sync.Mutex
	inner    *qbittorrent.Client
	host     string
	username string
	password string
	loggedIn bool
}

// New constructs an unconfigured Daemon client. Call Configure before use.
func New() Daemon {
	return &client{}
}

func (c *client) IsConfigured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host != "" && c.username != ""
}

func (c *client) Configure(host, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = host
	c.username = username
	c.password = password
	c.inner = qbittorrent.NewClient(qbittorrent.Config{
		Host:     host,
		Username: username,
		Password: password,
	})
	c.loggedIn = false
	return nil
}

// ensureSession implements the "one session cookie per process, lazy
// login on first request, re-login on 401/403" discipline of spec.md
// §4.4/§5.
func (c *client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inner == nil {
		return errs.NotConfigured("torrent daemon is not configured")
	}
	if c.loggedIn {
		return nil
	}
	if err := c.inner.LoginCtx(ctx); err != nil {
		return errs.Integration("qbittorrent", "login failed", err)
	}
	c.loggedIn = true
	return nil
}

// withSession runs fn, and on an auth failure re-authenticates once and
// retries (spec.md §4.4: "re-authenticates when the daemon returns
// 401/403").
func (c *client) withSession(ctx context.Context, fn func() error) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	err := fn()
	if isAuthError(err) {
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		if err2 := c.ensureSession(ctx); err2 != nil {
			return err2
		}
		err = fn()
	}
	return err
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "403") || strings.Contains(msg, "401") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "unauthorized")
}

func (c *client) TestConnection(ctx context.Context) error {
	return c.withSession(ctx, func() error {
		_, err := c.inner.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{})
		return err
	})
}

// AddTorrent passes magnet URIs through as form fields; for non-magnet
// URLs it downloads the .torrent bytes itself and uploads them as
// multipart, per spec.md §4.4.
func (c *client) AddTorrent(ctx context.Context, urlOrMagnet string, opts AddOptions) error {
	return c.withSession(ctx, func() error {
		options := map[string]string{
			"category": opts.Category,
			"tags":     opts.Tags,
			"paused":   fmt.Sprintf("%t", opts.Paused),
		}
		if opts.SavePath != "" {
			options["savepath"] = opts.SavePath
		}

		var err error
		if strings.HasPrefix(urlOrMagnet, "magnet:") {
			err = c.inner.AddTorrentFromUrlCtx(ctx, urlOrMagnet, options)
		} else {
			body, derr := downloadTorrentFile(ctx, urlOrMagnet)
			if derr != nil {
				return errs.Integration("qbittorrent", "failed to fetch .torrent file", derr)
			}
			err = c.inner.AddTorrentFromMemoryCtx(ctx, body, options)
		}
		if err != nil {
			return errs.Integration("qbittorrent", "add torrent rejected", err)
		}
		return nil
	})
}

func downloadTorrentFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download .torrent: http %d", resp.StatusCode)
	}
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return buf, nil
}

func (c *client) GetTorrents(ctx context.Context, categoryFilter string) ([]Torrent, error) {
	var out []Torrent
	err := c.withSession(ctx, func() error {
		opts := qbittorrent.TorrentFilterOptions{}
		if categoryFilter != "" {
			opts.Category = categoryFilter
		}
		torrents, err := c.inner.GetTorrentsCtx(ctx, opts)
		if err != nil {
			return err
		}
		out = make([]Torrent, 0, len(torrents))
		for _, t := range torrents {
			out = append(out, canonicalize(t))
		}
		return nil
	})
	return out, err
}

func (c *client) GetTorrent(ctx context.Context, hash string) (Torrent, error) {
	torrents, err := c.GetTorrents(ctx, "")
	if err != nil {
		return Torrent{}, err
	}
	normalizedHash := strings.ToLower(hash)
	for _, t := range torrents {
		if strings.ToLower(t.Hash) == normalizedHash {
			return t, nil
		}
	}
	return Torrent{}, errs.NotFound("torrent not found: " + hash)
}

func (c *client) PauseTorrents(ctx context.Context, hashes []string) error {
	return c.withSession(ctx, func() error { return c.inner.PauseCtx(ctx, hashes) })
}

func (c *client) ResumeTorrents(ctx context.Context, hashes []string) error {
	return c.withSession(ctx, func() error { return c.inner.ResumeCtx(ctx, hashes) })
}

func (c *client) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	return c.withSession(ctx, func() error { return c.inner.DeleteTorrentsCtx(ctx, hashes, deleteFiles) })
}

func (c *client) GetCategories(ctx context.Context) ([]string, error) {
	var names []string
	err := c.withSession(ctx, func() error {
		cats, err := c.inner.GetCategoriesCtx(ctx)
		if err != nil {
			return err
		}
		for name := range cats {
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

func (c *client) AddTags(ctx context.Context, hashes []string, tagsCSV string) error {
	return c.withSession(ctx, func() error { return c.inner.AddTagsCtx(ctx, hashes, tagsCSV) })
}

// FindTorrentsByPath is case-insensitive and tolerant to OS path-separator
// differences, per spec.md §4.4.
func (c *client) FindTorrentsByPath(ctx context.Context, pathPrefix string) ([]Torrent, error) {
	all, err := c.GetTorrents(ctx, "")
	if err != nil {
		return nil, err
	}
	normalizedPrefix := normalizePath(pathPrefix)
	var matches []Torrent
	for _, t := range all {
		if strings.HasPrefix(normalizePath(t.SavePath), normalizedPrefix) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

func normalizePath(p string) string {
	p = strings.ToLower(p)
	return strings.ReplaceAll(p, "\\", "/")
}

func canonicalize(t qbittorrent.Torrent) Torrent {
	out := Torrent{
		Hash:          t.Hash,
		Name:          t.Name,
		Size:          t.Size,
		Progress:      t.Progress,
		DownloadSpeed: t.DlSpeed,
		UploadSpeed:   t.UpSpeed,
		ETA:           t.ETA,
		State:         string(t.State),
		Category:      t.Category,
		Tags:          t.Tags,
		SavePath:      t.SavePath,
		AddedOn:       time.Unix(t.AddedOn, 0),
	}
	if t.CompletionOn > 0 {
		ct := time.Unix(t.CompletionOn, 0)
		out.CompletionOn = &ct
	}
	return out
}
