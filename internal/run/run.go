package run

import "time"

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

type Pipeline string

const (
	PipelinePrices        Pipeline = "prices"
	PipelineAnnouncements Pipeline = "announcements"
)

// Run records one execution of a pipeline. Query holds the pipeline specific
// parameters (date range and frequency, or search key and page).
type Run struct {
	ID           int64     `json:"id"`
	Pipeline     Pipeline  `json:"pipeline"`
	Symbol       string    `json:"symbol"`
	Query        string    `json:"query"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	RecordsCount int64     `json:"recordsCount"`
	OutputPath   string    `json:"outputPath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
