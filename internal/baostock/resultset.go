package baostock

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// KDataQuery describes a query_history_k_data_plus request. Dates are
// YYYY-MM-DD; Frequency is d/w/m; AdjustFlag is 1 (backward), 2 (forward) or
// 3 (none).
type KDataQuery struct {
	Code       string
	Fields     []string
	StartDate  string
	EndDate    string
	Frequency  string
	AdjustFlag string
}

// QueryError is returned when the server answers a query with a non-zero
// error code.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("baostock query failed: %s (code %s)", e.Message, e.Code)
}

// ResultSet is a pull cursor over the pages of a k-data query.
type ResultSet struct {
	session *Session
	query   KDataQuery
	page    int
	fields  []string
	rows    [][]string
	cursor  int
	err     error
}

// QueryHistoryKDataPlus fetches the first page of a k-data query.
func (s *Session) QueryHistoryKDataPlus(ctx context.Context, q KDataQuery) (*ResultSet, error) {
	rs := &ResultSet{session: s, query: q, fields: q.Fields}
	if err := rs.fetch(ctx, 1); err != nil {
		return nil, err
	}
	return rs, nil
}

// Fields returns the column names reported by the server.
func (rs *ResultSet) Fields() []string { return rs.fields }

// Row returns the current row. Valid only after Next returned true.
func (rs *ResultSet) Row() []string {
	if rs.cursor == 0 || rs.cursor > len(rs.rows) {
		return nil
	}
	return rs.rows[rs.cursor-1]
}

// Err returns the error that stopped iteration, if any.
func (rs *ResultSet) Err() error { return rs.err }

// Next advances to the next row, requesting the following page when the
// current one was full and is exhausted.
func (rs *ResultSet) Next(ctx context.Context) bool {
	if rs.err != nil {
		return false
	}
	if rs.cursor < len(rs.rows) {
		rs.cursor++
		return true
	}
	if len(rs.rows) < rs.session.pageSize {
		return false
	}
	if err := rs.fetch(ctx, rs.page+1); err != nil {
		rs.err = err
		return false
	}
	if len(rs.rows) == 0 {
		return false
	}
	rs.cursor = 1
	return true
}

func (rs *ResultSet) fetch(ctx context.Context, page int) error {
	q := rs.query
	resp, err := rs.session.roundTrip(ctx, msgKDataPlusRequest,
		"query_history_k_data_plus",
		rs.session.userID,
		strconv.Itoa(page),
		strconv.Itoa(rs.session.pageSize),
		q.Code,
		strings.Join(q.Fields, ","),
		q.StartDate,
		q.EndDate,
		q.Frequency,
		q.AdjustFlag,
	)
	if err != nil {
		return fmt.Errorf("query %s page %d: %w", q.Code, page, err)
	}
	if resp.errorCode() != successCode {
		return &QueryError{Code: resp.errorCode(), Message: resp.errorMsg()}
	}

	rows, err := decodeRecords(resp.field(6))
	if err != nil {
		return fmt.Errorf("query %s page %d: %w", q.Code, page, err)
	}
	if f := resp.field(8); f != "" {
		rs.fields = strings.Split(f, ",")
	}

	rs.page = page
	rs.rows = rows
	rs.cursor = 0
	return nil
}

func decodeRecords(data string) ([][]string, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var payload struct {
		Record [][]string `json:"record"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return payload.Record, nil
}
