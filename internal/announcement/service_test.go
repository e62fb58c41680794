package announcement

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
	"github.com/ahmethakanbesel/cn-dataset/internal/run"
	"github.com/ahmethakanbesel/cn-dataset/internal/table"
)

// --- mock searcher ---
type mockSearcher struct {
	tbl     *table.Table
	err     error
	gotCode string
	gotPage int
}

func (m *mockSearcher) Search(_ context.Context, code, _ string, page int) (*table.Table, error) {
	m.gotCode = code
	m.gotPage = page
	if m.err != nil {
		return nil, m.err
	}
	return m.tbl, nil
}

func searchResult() *table.Table {
	t := table.New("adjunctSize", ColumnAdjunctURL, "announcementId", ColumnTime, ColumnTitle, "secCode")
	t.Rows = [][]string{
		{"1840", "finalpage/2024-03-29/1219374585.PDF", "1219374585", "1711641600000", "贵州茅台2023年年度报告", "600519"},
		{"310", "finalpage/2023-03-31/1216290580.PDF", "1216290580", "1680192000000", "贵州茅台2022年年度报告摘要", "600519"},
	}
	return t
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return records
}

func TestDocumentURL(t *testing.T) {
	got := DocumentURL(DefaultStaticHost, "finalpage/2021-01-01/X.pdf")
	want := "https://static.cninfo.com.cn/finalpage/2021-01-01/X.pdf"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if again := DocumentURL("https://static.cninfo.com.cn", "/finalpage/2021-01-01/X.pdf"); again != want {
		t.Errorf("expected slashes to be normalised, got %s", again)
	}
}

func TestAssembleURLs_MissingColumn(t *testing.T) {
	tbl := table.New(ColumnTitle, ColumnTime)
	if err := AssembleURLs(tbl, DefaultStaticHost); err == nil {
		t.Fatal("expected error when adjunctUrl is absent")
	}
}

func TestFetch_WritesThreeColumns(t *testing.T) {
	dir := t.TempDir()
	ms := &mockSearcher{tbl: searchResult()}
	svc := NewService(ms, nil, "", dir)

	out, err := svc.Fetch(context.Background(), FetchRequest{Code: "600519", Keyword: "年报", Page: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(out.Columns, OutputColumns) {
		t.Errorf("unexpected columns %v", out.Columns)
	}

	records := readCSV(t, filepath.Join(dir, DefaultFileName))
	if !slices.Equal(records[0], []string{"announcementTitle", "announcementTime", "pdf_url"}) {
		t.Errorf("unexpected header %v", records[0])
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[1][2] != "https://static.cninfo.com.cn/finalpage/2024-03-29/1219374585.PDF" {
		t.Errorf("unexpected url %s", records[1][2])
	}
	if ms.gotCode != "600519" || ms.gotPage != 1 {
		t.Errorf("unexpected search args %s/%d", ms.gotCode, ms.gotPage)
	}
}

func TestFetch_SearchFailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(&mockSearcher{err: fmt.Errorf("cninfo search: %w", context.DeadlineExceeded)}, nil, "", dir)

	_, err := svc.Fetch(context.Background(), FetchRequest{Code: "600519"})
	if !apperror.Is(err, apperror.Upstream) {
		t.Fatalf("expected UPSTREAM error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, DefaultFileName)); statErr == nil {
		t.Error("no file must be written on failure")
	}
}

func TestFetch_EmptyResultFails(t *testing.T) {
	svc := NewService(&mockSearcher{tbl: table.New()}, nil, "", t.TempDir())
	if _, err := svc.Fetch(context.Background(), FetchRequest{Code: "600519"}); err == nil {
		t.Fatal("expected error for a page without adjunctUrl")
	}
}

func TestFetch_Validation(t *testing.T) {
	svc := NewService(&mockSearcher{}, nil, "", t.TempDir())
	if _, err := svc.Fetch(context.Background(), FetchRequest{}); !apperror.Is(err, apperror.BadRequest) {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}

func TestRecords(t *testing.T) {
	tbl := searchResult()
	if err := AssembleURLs(tbl, DefaultStaticHost); err != nil {
		t.Fatal(err)
	}
	recs, err := Records(tbl)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	want := time.Date(2024, 3, 28, 16, 0, 0, 0, time.UTC)
	if !recs[0].Time.Equal(want) {
		t.Errorf("time = %s, want %s", recs[0].Time, want)
	}
	if !strings.HasSuffix(recs[1].URL, "1216290580.PDF") {
		t.Errorf("unexpected url %s", recs[1].URL)
	}
}

func TestFetch_DownloadsDocuments(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "1216290580") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	docs := filepath.Join(dir, "pdf")
	svc := NewService(&mockSearcher{tbl: searchResult()}, nil, ts.URL, dir)
	svc.SetDownloader(NewDownloader(ts.Client(), 2, 0))

	if _, err := svc.Fetch(context.Background(), FetchRequest{Code: "600519", DownloadDir: docs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
	body, err := os.ReadFile(filepath.Join(docs, "1219374585.PDF"))
	if err != nil {
		t.Fatalf("expected downloaded file: %v", err)
	}
	if string(body) != "%PDF-1.4" {
		t.Errorf("unexpected body %q", body)
	}
	if _, err := os.Stat(filepath.Join(docs, "1216290580.PDF")); err == nil {
		t.Error("failed download must not leave a file")
	}
}

func TestFetch_DownloadFailureKeepsCSV(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the download directory should be.
	blocked := filepath.Join(dir, "pdf")
	if err := os.WriteFile(blocked, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	repo := &runRepo{}
	svc := NewService(&mockSearcher{tbl: searchResult()}, run.NewService(repo), "", dir)
	svc.SetDownloader(NewDownloader(nil, 1, 0))

	out, err := svc.Fetch(context.Background(), FetchRequest{Code: "600519", DownloadDir: filepath.Join(blocked, "docs")})
	if err != nil {
		t.Fatalf("download failure must not fail the fetch: %v", err)
	}
	if out.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", out.Len())
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultFileName)); err != nil {
		t.Errorf("expected csv to be kept: %v", err)
	}
	if repo.last.Status != run.StatusCompleted {
		t.Errorf("expected completed run, got %s", repo.last.Status)
	}
}

// --- mock run repository ---
type runRepo struct {
	last run.Run
}

func (m *runRepo) Create(_ context.Context, r *run.Run) error {
	r.ID = 1
	m.last = *r
	return nil
}
func (m *runRepo) Update(_ context.Context, r *run.Run) error {
	m.last = *r
	return nil
}
func (m *runRepo) Get(_ context.Context, _ int64) (*run.Run, error) { return &m.last, nil }
func (m *runRepo) List(_ context.Context, _, _ string) ([]run.Run, error) {
	return []run.Run{m.last}, nil
}
func (m *runRepo) FailInterrupted(_ context.Context) (int64, error) { return 0, nil }
