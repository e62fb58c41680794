package price

import (
	"context"

	"github.com/ahmethakanbesel/cn-dataset/internal/baostock"
)

// Provider opens market-data sessions.
type Provider interface {
	Open(ctx context.Context) (Session, error)
}

// Session is an open provider session. Close releases it.
type Session interface {
	Query(ctx context.Context, q baostock.KDataQuery) (Cursor, error)
	Close() error
}

// Cursor pulls query rows one at a time.
type Cursor interface {
	Next(ctx context.Context) bool
	Row() []string
	Fields() []string
	Err() error
}

type baostockProvider struct {
	client *baostock.Client
}

// NewBaostockProvider adapts a Baostock client to Provider.
func NewBaostockProvider(c *baostock.Client) Provider {
	return &baostockProvider{client: c}
}

func (p *baostockProvider) Open(ctx context.Context) (Session, error) {
	s, err := p.client.Login(ctx)
	if err != nil {
		return nil, err
	}
	return &baostockSession{s: s}, nil
}

type baostockSession struct {
	s *baostock.Session
}

func (b *baostockSession) Query(ctx context.Context, q baostock.KDataQuery) (Cursor, error) {
	rs, err := b.s.QueryHistoryKDataPlus(ctx, q)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (b *baostockSession) Close() error { return b.s.Close() }
