package announcement

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
	"github.com/ahmethakanbesel/cn-dataset/internal/run"
	"github.com/ahmethakanbesel/cn-dataset/internal/table"
)

// Searcher runs a single page of a registry full-text search.
type Searcher interface {
	Search(ctx context.Context, code, keyword string, page int) (*table.Table, error)
}

type FetchRequest struct {
	Code        string
	Keyword     string
	Page        int
	OutputPath  string // relative to the output dir; empty selects announcements.csv
	DownloadDir string // non-empty also downloads each document
}

func (r FetchRequest) Validate() *apperror.AppError {
	if r.Code == "" {
		return apperror.New(apperror.BadRequest, "code is required")
	}
	if r.Page < 0 {
		return apperror.New(apperror.BadRequest, "page must be positive")
	}
	return nil
}

type Service struct {
	searcher   Searcher
	runs       *run.Service
	staticHost string
	outputDir  string
	downloader *Downloader // optional
}

func NewService(searcher Searcher, runs *run.Service, staticHost, outputDir string) *Service {
	if staticHost == "" {
		staticHost = DefaultStaticHost
	}
	if outputDir == "" {
		outputDir = "."
	}
	return &Service{
		searcher:   searcher,
		runs:       runs,
		staticHost: staticHost,
		outputDir:  outputDir,
	}
}

// SetDownloader enables document downloads for requests with a DownloadDir.
func (s *Service) SetDownloader(d *Downloader) { s.downloader = d }

// Fetch searches one page, derives document URLs, writes the title/time/URL
// subset as CSV and returns that subset. Search, URL and write failures are
// returned and nothing is written for a failed search. Documents are
// downloaded after the CSV is saved; download failures are logged only.
func (s *Service) Fetch(ctx context.Context, req FetchRequest) (*table.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	path := req.OutputPath
	if path == "" {
		path = DefaultFileName
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.outputDir, path)
	}

	r := &run.Run{
		Pipeline:   run.PipelineAnnouncements,
		Symbol:     req.Code,
		Query:      req.Keyword + " p" + strconv.Itoa(max(req.Page, 1)),
		OutputPath: path,
	}
	s.runs.Start(ctx, r)

	out, err := s.fetch(ctx, req, path)
	if err != nil {
		s.runs.Finish(ctx, r, run.StatusFailed, err)
		return nil, err
	}

	r.RecordsCount = int64(out.Len())
	s.runs.Finish(ctx, r, run.StatusCompleted, nil)
	return out, nil
}

func (s *Service) fetch(ctx context.Context, req FetchRequest, path string) (*table.Table, error) {
	tbl, err := s.searcher.Search(ctx, req.Code, req.Keyword, req.Page)
	if err != nil {
		return nil, apperror.Wrap(apperror.Upstream, fmt.Errorf("search %s: %w", req.Code, err))
	}

	if err := AssembleURLs(tbl, s.staticHost); err != nil {
		return nil, fmt.Errorf("assemble document urls: %w", err)
	}

	out, err := tbl.Select(OutputColumns...)
	if err != nil {
		return nil, fmt.Errorf("select announcement columns: %w", err)
	}

	if err := table.WriteCSV(path, out); err != nil {
		return nil, fmt.Errorf("save announcements: %w", err)
	}
	slog.Info("saved announcements", "code", req.Code, "path", path, "rows", out.Len())

	// The CSV is already saved; a failed download only loses documents.
	if req.DownloadDir != "" && s.downloader != nil {
		urls, _ := out.Column(ColumnDocumentURL)
		n, err := s.downloader.Download(ctx, urls, req.DownloadDir)
		if err != nil {
			slog.Error("error downloading announcement documents", "code", req.Code, "dir", req.DownloadDir, "files", n, "error", err)
		} else {
			slog.Info("downloaded announcement documents", "code", req.Code, "dir", req.DownloadDir, "files", n, "total", len(urls))
		}
	}

	return out, nil
}
