// Package baostock is a client for the Baostock market-data service. It speaks
// the service's framed TCP protocol: anonymous login yields a Session, the
// Session issues paged k-line queries, and Logout releases it.
package baostock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const (
	defaultAddr        = "public-api.baostock.com:10030"
	defaultDialTimeout = 10 * time.Second
	defaultUser        = "anonymous"
	defaultPassword    = "123456"
	defaultPageSize    = 10000
	readBufferSize     = 8192
)

// Client opens sessions against a Baostock server.
type Client struct {
	addr        string
	dialTimeout time.Duration
	user        string
	password    string
	pageSize    int
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		addr:        defaultAddr,
		dialTimeout: defaultDialTimeout,
		user:        defaultUser,
		password:    defaultPassword,
		pageSize:    defaultPageSize,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithAddr overrides the server host:port.
func WithAddr(addr string) Option {
	return func(c *Client) { c.addr = addr }
}

// WithDialTimeout sets the TCP connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithCredentials sets the login user and password.
func WithCredentials(user, password string) Option {
	return func(c *Client) {
		c.user = user
		c.password = password
	}
}

// WithPageSize sets the number of rows requested per query page.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// LoginError is returned when the server rejects a login.
type LoginError struct {
	Code    string
	Message string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("baostock login rejected: %s (code %s)", e.Message, e.Code)
}

// Login dials the server and authenticates. The returned Session owns the
// connection and must be released with Close.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial baostock: %w", err)
	}

	s := &Session{conn: conn, userID: c.user, pageSize: c.pageSize}
	resp, err := s.roundTrip(ctx, msgLoginRequest, "login", c.user, c.password, "0")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.errorCode() != successCode {
		_ = conn.Close()
		return nil, &LoginError{Code: resp.errorCode(), Message: resp.errorMsg()}
	}
	if uid := resp.field(3); uid != "" {
		s.userID = uid
	}

	slog.Debug("baostock: logged in", "user", s.userID)
	return s, nil
}

// Session is an authenticated connection. It is not safe for concurrent use.
type Session struct {
	conn     net.Conn
	userID   string
	pageSize int
	closed   bool
}

// Logout ends the session on the server side. The connection stays open until
// Close.
func (s *Session) Logout(ctx context.Context) error {
	if s.closed {
		return nil
	}
	resp, err := s.roundTrip(ctx, msgLogoutRequest, "logout", s.userID, time.Now().Format("20060102150405"))
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if resp.errorCode() != successCode {
		return fmt.Errorf("logout: %s (code %s)", resp.errorMsg(), resp.errorCode())
	}
	return nil
}

// Close logs out and closes the connection. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logoutErr := s.Logout(ctx)
	s.closed = true
	closeErr := s.conn.Close()
	if logoutErr != nil {
		slog.Warn("baostock: logout failed", "error", logoutErr)
	}
	return errors.Join(logoutErr, closeErr)
}

// roundTrip writes one request frame and reads one complete response.
func (s *Session) roundTrip(ctx context.Context, msgType string, fields ...string) (*response, error) {
	if s.closed {
		return nil, errors.New("session closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := s.conn.Write(encodeFrame(msgType, fields...)); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	var raw bytes.Buffer
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		raw.Write(buf[:n])
		if bytes.HasSuffix(raw.Bytes(), []byte(responseTerminator)) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("read response: %w", err)
		}
	}

	return decodeResponse(raw.Bytes())
}
