package run

import (
	"context"
	"log/slog"

	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
)

// Service records pipeline runs. A nil *Service or one without a repository
// records nothing, so pipelines can run with the log disabled.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) enabled() bool { return s != nil && s.repo != nil }

// Start stores r with status running. Failures are logged, not returned: the
// run log never blocks a fetch.
func (s *Service) Start(ctx context.Context, r *Run) {
	if !s.enabled() {
		return
	}
	r.Status = StatusRunning
	if err := s.repo.Create(ctx, r); err != nil {
		slog.Warn("failed to record run", "pipeline", r.Pipeline, "symbol", r.Symbol, "error", err)
	}
}

// Finish stores the terminal state of r.
func (s *Service) Finish(ctx context.Context, r *Run, status Status, err error) {
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
	if !s.enabled() || r.ID == 0 {
		return
	}
	if uerr := s.repo.Update(ctx, r); uerr != nil {
		slog.Warn("failed to update run", "id", r.ID, "error", uerr)
	}
}

// FailInterrupted marks runs left in running state by a previous process as
// failed.
func (s *Service) FailInterrupted(ctx context.Context) error {
	if !s.enabled() {
		return nil
	}
	n, err := s.repo.FailInterrupted(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("marked interrupted runs as failed", "count", n)
	}
	return nil
}

var errDisabled = apperror.New(apperror.BadRequest, "run log is disabled")

func (s *Service) Get(ctx context.Context, req GetRunRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.enabled() {
		return nil, errDisabled
	}
	return s.repo.Get(ctx, req.ID)
}

func (s *Service) List(ctx context.Context, req ListRunsRequest) ([]Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.enabled() {
		return nil, errDisabled
	}
	return s.repo.List(ctx, req.Pipeline, req.Symbol)
}
