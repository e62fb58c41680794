package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
	"github.com/ahmethakanbesel/cn-dataset/internal/baostock"
	"github.com/ahmethakanbesel/cn-dataset/internal/run"
	"github.com/ahmethakanbesel/cn-dataset/internal/table"
)

// SessionCounter reports how many trading sessions an exchange held.
type SessionCounter interface {
	TradingDays(code string, from, to time.Time) int
}

type Service struct {
	provider  Provider
	runs      *run.Service
	outputDir string
	sessions  SessionCounter // optional: row count sanity check
}

func NewService(provider Provider, runs *run.Service, outputDir string) *Service {
	if outputDir == "" {
		outputDir = "."
	}
	return &Service{
		provider:  provider,
		runs:      runs,
		outputDir: outputDir,
	}
}

// SetSessionCounter enables the trading-calendar check on daily fetches.
func (s *Service) SetSessionCounter(c SessionCounter) { s.sessions = c }

// Fetch opens a provider session, drains every row of the query into a table,
// writes it as CSV and returns it. When the session cannot be established the
// table is nil, no file is written and the error carries the
// SESSION_REJECTED code. The session is released on every path.
func (s *Service) Fetch(ctx context.Context, req FetchRequest) (*table.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.EndDate.IsZero() {
		req.EndDate = today()
	}

	path := req.OutputPath
	if path == "" {
		path = DefaultFileName(req.Code, req.StartDate, req.EndDate)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.outputDir, path)
	}

	r := &run.Run{
		Pipeline:   run.PipelinePrices,
		Symbol:     req.Code,
		Query:      req.describe(),
		OutputPath: path,
	}
	s.runs.Start(ctx, r)

	sess, err := s.provider.Open(ctx)
	if err != nil {
		var le *baostock.LoginError
		if errors.As(err, &le) {
			slog.Error("market data login rejected", "symbol", req.Code, "code", le.Code, "error", le.Message)
		} else {
			slog.Error("market data login failed", "symbol", req.Code, "error", err)
		}
		s.runs.Finish(ctx, r, run.StatusRejected, err)
		return nil, apperror.New(apperror.SessionRejected, fmt.Sprintf("login failed: %v", err))
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("market data logout failed", "symbol", req.Code, "error", cerr)
		}
	}()

	tbl, err := s.query(ctx, sess, req)
	if err != nil {
		s.runs.Finish(ctx, r, run.StatusFailed, err)
		return nil, err
	}
	s.check(req, tbl)

	if err := table.WriteCSV(path, tbl); err != nil {
		s.runs.Finish(ctx, r, run.StatusFailed, err)
		return nil, fmt.Errorf("save prices: %w", err)
	}
	slog.Info("saved price data", "symbol", req.Code, "path", path, "rows", tbl.Len())

	r.RecordsCount = int64(tbl.Len())
	s.runs.Finish(ctx, r, run.StatusCompleted, nil)
	return tbl, nil
}

func (s *Service) query(ctx context.Context, sess Session, req FetchRequest) (*table.Table, error) {
	cur, err := sess.Query(ctx, baostock.KDataQuery{
		Code:       req.Code,
		Fields:     Fields(req.Frequency),
		StartDate:  req.StartDate.Format(time.DateOnly),
		EndDate:    req.EndDate.Format(time.DateOnly),
		Frequency:  string(req.Frequency),
		AdjustFlag: string(req.Adjust),
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.Upstream, fmt.Errorf("query %s: %w", req.Code, err))
	}

	var rows [][]string
	for cur.Next(ctx) {
		rows = append(rows, cur.Row())
	}
	if err := cur.Err(); err != nil {
		return nil, apperror.Wrap(apperror.Upstream, fmt.Errorf("read %s: %w", req.Code, err))
	}

	tbl := table.New(cur.Fields()...)
	for _, row := range rows {
		if err := tbl.Append(row); err != nil {
			return nil, apperror.Wrap(apperror.Upstream, fmt.Errorf("malformed row for %s: %w", req.Code, err))
		}
	}
	return tbl, nil
}

// check logs bars that do not parse or are dated outside the requested range
// and, for daily bars, a row count that disagrees with the exchange calendar.
// Suspensions remove rows and the calendar's holiday data is not exact for the
// A-share market, so the count is only logged at debug level. Nothing here
// fails the fetch.
func (s *Service) check(req FetchRequest, tbl *table.Table) {
	bars, err := Bars(tbl)
	if err != nil {
		slog.Warn("unparseable price data", "symbol", req.Code, "error", err)
		return
	}
	end := req.EndDate.AddDate(0, 0, 1)
	for i, b := range bars {
		if b.Date.Before(req.StartDate) || !b.Date.Before(end) {
			slog.Warn("bar outside requested range", "symbol", req.Code, "date", b.Date.Format(time.DateOnly))
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			slog.Warn("bars out of order", "symbol", req.Code, "date", b.Date.Format(time.DateOnly))
		}
	}

	if s.sessions == nil || req.Frequency != FrequencyDaily {
		return
	}
	if want := s.sessions.TradingDays(req.Code, req.StartDate, req.EndDate); want != len(bars) {
		slog.Debug("row count differs from trading calendar",
			"symbol", req.Code, "rows", len(bars), "sessions", want)
	}
}

// today is the current local calendar date at midnight UTC, matching the
// dates parsed from requests.
func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
