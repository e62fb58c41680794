package run

import "github.com/ahmethakanbesel/cn-dataset/internal/apperror"

type GetRunRequest struct {
	ID int64
}

func (r GetRunRequest) Validate() *apperror.AppError {
	if r.ID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid run id")
	}
	return nil
}

type ListRunsRequest struct {
	Pipeline string
	Symbol   string
}

func (r ListRunsRequest) Validate() *apperror.AppError {
	switch Pipeline(r.Pipeline) {
	case "", PipelinePrices, PipelineAnnouncements:
		return nil
	}
	return apperror.New(apperror.BadRequest, "pipeline must be prices or announcements")
}
