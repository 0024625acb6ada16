package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/studiowebux/tablesync/internal/types"
)

// Conn is the part of a Channel the table controller needs
type Conn interface {
	Send(params types.QueryParams)
	Close() error
}

// Hooks are the callbacks a subscriber receives
type Hooks struct {
	OnReplace func(types.RecordSet)
	OnState   func(State)
}

// Dialer opens a push subscription on endpoint
type Dialer func(ctx context.Context, endpoint string, hooks Hooks) (Conn, error)

// NewDialer returns a Dialer that opens real websocket channels. token is
// read on every dial so refreshed tokens are picked up on reconnect.
func NewDialer(token func() string, opts ...Option) Dialer {
	return func(ctx context.Context, endpoint string, hooks Hooks) (Conn, error) {
		all := []Option{WithTokenSource(token)}
		all = append(all, opts...)
		if hooks.OnState != nil {
			all = append(all, WithOnState(hooks.OnState))
		}
		return Open(ctx, endpoint, token(), hooks.OnReplace, all...)
	}
}

// Binding owns the connection of one table
type Binding struct {
	dial   Dialer
	hooks  Hooks
	logger *slog.Logger

	mu       sync.Mutex
	endpoint string
	conn     Conn
}

// NewBinding creates an unbound binding
func NewBinding(dial Dialer, hooks Hooks, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binding{dial: dial, hooks: hooks, logger: logger}
}

// Bind connects to endpoint. An unchanged endpoint keeps the current
// connection; a new one closes the old connection first. It reports whether
// a new connection was opened.
func (b *Binding) Bind(ctx context.Context, endpoint string) (bool, error) {
	b.mu.Lock()
	if b.conn != nil && b.endpoint == endpoint {
		b.mu.Unlock()
		return false, nil
	}
	old := b.conn
	b.conn = nil
	b.endpoint = ""
	b.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			b.logger.Warn("failed to close previous channel", "error", err)
		}
	}

	conn, err := b.dial(ctx, endpoint, b.hooks)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	b.conn = conn
	b.endpoint = endpoint
	b.mu.Unlock()
	return true, nil
}

// Endpoint returns the bound endpoint, or "" when unbound
func (b *Binding) Endpoint() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.endpoint
}

// Send forwards params to the bound connection
func (b *Binding) Send(params types.QueryParams) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		b.logger.Debug("send on unbound channel ignored")
		return
	}
	conn.Send(params)
}

// Close closes the bound connection
func (b *Binding) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.endpoint = ""
	b.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
