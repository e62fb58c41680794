package run

import "context"

type Repository interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	Get(ctx context.Context, id int64) (*Run, error)
	List(ctx context.Context, pipeline, symbol string) ([]Run, error)
	FailInterrupted(ctx context.Context) (int64, error)
}
