package announcement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Downloader saves announcement documents to a local directory.
type Downloader struct {
	client  *http.Client
	workers int
	limiter *rate.Limiter
}

// NewDownloader creates a Downloader running at most workers requests at once
// and starting at most perSecond requests per second (unlimited when <= 0).
func NewDownloader(client *http.Client, workers int, perSecond float64) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if workers <= 0 {
		workers = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Downloader{
		client:  client,
		workers: workers,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Download fetches every URL into dir, naming files after the last path
// segment. A failed document is logged and skipped; the returned count is the
// number of files written.
func (d *Downloader) Download(ctx context.Context, urls []string, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}

	var saved atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, u := range urls {
		g.Go(func() error {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
			dest, err := d.fetch(ctx, u, dir)
			if err != nil {
				slog.Error("error downloading announcement", "url", u, "error", err)
				return nil
			}
			saved.Add(1)
			slog.Debug("downloaded announcement", "url", u, "path", dest)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(saved.Load()), err
	}
	return int(saved.Load()), nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL, dir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("url has no file name")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	res, err := d.client.Do(req) //nolint:gosec // URL assembled from registry paths
	if err != nil {
		return "", err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", res.StatusCode)
	}

	dest := filepath.Join(dir, name)
	f, err := os.Create(dest) //nolint:gosec // name is a single path segment
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", err
	}
	return dest, f.Close()
}
