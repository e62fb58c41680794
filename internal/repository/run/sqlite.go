package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
	domain "github.com/ahmethakanbesel/cn-dataset/internal/run"
)

const selectColumns = `SELECT id, pipeline, symbol, query, status, error,
		records_count, output_path, created_at, updated_at
		FROM runs`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, run *domain.Run) error {
	const query = `INSERT INTO runs (pipeline, symbol, query, status, output_path)
		VALUES (?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		string(run.Pipeline), run.Symbol, run.Query,
		string(run.Status), run.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	run.ID, _ = res.LastInsertId()
	run.CreatedAt = time.Now().UTC()
	run.UpdatedAt = run.CreatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, run *domain.Run) error {
	const query = `UPDATE runs SET status = ?, error = ?, records_count = ?, output_path = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`

	var dbErr sql.NullString
	if run.Error != "" {
		dbErr = sql.NullString{String: run.Error, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, string(run.Status), dbErr, run.RecordsCount, run.OutputPath, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	run.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (r *Repository) List(ctx context.Context, pipeline, symbol string) ([]domain.Run, error) {
	query := selectColumns + " WHERE 1=1"

	var args []any
	if pipeline != "" {
		query += " AND pipeline = ?"
		args = append(args, pipeline)
	}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY id DESC LIMIT 100"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func (r *Repository) FailInterrupted(ctx context.Context) (int64, error) {
	const query = `UPDATE runs SET status = 'failed', error = 'interrupted',
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE status = 'running'`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted runs: %w", err)
	}

	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.Run, error) {
	run := &domain.Run{}
	var pipeline, status, createdStr, updatedStr string
	var dbErr sql.NullString

	if err := s.Scan(
		&run.ID, &pipeline, &run.Symbol, &run.Query, &status, &dbErr,
		&run.RecordsCount, &run.OutputPath, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	run.Pipeline = domain.Pipeline(pipeline)
	run.Status = domain.Status(status)
	if dbErr.Valid {
		run.Error = dbErr.String
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return run, nil
}
