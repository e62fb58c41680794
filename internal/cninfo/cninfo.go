// Package cninfo queries the CNINFO full-text announcement search.
package cninfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ahmethakanbesel/cn-dataset/internal/table"
)

const (
	defaultSearchEndpoint = "https://www.cninfo.com.cn/new/fulltextSearch/full"
	defaultReferer        = "https://www.cninfo.com.cn"
	defaultTimeout        = 10 * time.Second
	userAgent             = "Mozilla/5.0"
	pageSize              = 40

	// DefaultKeyword searches for annual reports.
	DefaultKeyword = "年报"
)

// Client searches the CNINFO announcement index.
type Client struct {
	client         *http.Client
	searchEndpoint string
	referer        string
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		client:         &http.Client{Timeout: defaultTimeout},
		searchEndpoint: defaultSearchEndpoint,
		referer:        defaultReferer,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithClient sets the HTTP client. Its Timeout is the per-request deadline.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request deadline on the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithSearchEndpoint overrides the full-text search URL.
func WithSearchEndpoint(ep string) Option {
	return func(c *Client) { c.searchEndpoint = ep }
}

// WithReferer overrides the Referer header.
func WithReferer(r string) Option {
	return func(c *Client) { c.referer = r }
}

type searchResponse struct {
	Announcements []map[string]any `json:"announcements"`
	TotalAnnounce int              `json:"totalAnnouncement"`
}

// Search runs one search page for "{code} {keyword}" and returns the
// announcements as a table. Columns are the sorted union of the keys the
// registry returned. Only the requested page is fetched.
func (c *Client) Search(ctx context.Context, code, keyword string, page int) (*table.Table, error) {
	if keyword == "" {
		keyword = DefaultKeyword
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("searchkey", code+" "+keyword)
	params.Set("pageNum", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, "GET", c.searchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Referer", c.referer)
	req.Header.Set("User-Agent", userAgent)

	res, err := c.client.Do(req) //nolint:gosec // URL from internal config
	if err != nil {
		return nil, fmt.Errorf("cninfo search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cninfo returned HTTP %d for %s", res.StatusCode, code)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read cninfo response: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var resp searchResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse cninfo response: %w", err)
	}

	tbl, err := toTable(resp.Announcements)
	if err != nil {
		return nil, err
	}

	slog.Info("retrieved cninfo announcements", "code", code, "keyword", keyword,
		"page", page, "count", tbl.Len(), "total", resp.TotalAnnounce)
	return tbl, nil
}

func toTable(items []map[string]any) (*table.Table, error) {
	keys := make(map[string]struct{})
	for _, it := range items {
		for k := range it {
			keys[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	tbl := table.New(columns...)
	for _, it := range items {
		row := make([]string, len(columns))
		for i, col := range columns {
			v, err := cell(it[col])
			if err != nil {
				return nil, fmt.Errorf("announcement field %s: %w", col, err)
			}
			row[i] = v
		}
		if err := tbl.Append(row); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

// cell renders a decoded JSON value as CSV text. Numbers keep their original
// spelling so millisecond timestamps are not reformatted.
func cell(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
