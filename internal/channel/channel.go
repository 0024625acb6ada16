package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studiowebux/tablesync/internal/types"
)

const (
	// HandshakeTimeout bounds the websocket handshake
	HandshakeTimeout = 45 * time.Second

	writeTimeout = 10 * time.Second
)

var (
	// ErrAlreadyOpen is returned by Reopen on a handle that is not closed
	ErrAlreadyOpen = errors.New("channel already open")

	// ErrClosed is reported to OnClose when the server ends the connection
	// and no reconnect policy is set
	ErrClosed = errors.New("channel closed by server")
)

// State is the connection state of a Channel
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReconnectPolicy controls redialing after the connection drops
type ReconnectPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	MaxAttempts int // 0 = unlimited
}

// DefaultReconnect returns the default exponential backoff
func DefaultReconnect() ReconnectPolicy {
	return ReconnectPolicy{
		Initial:     500 * time.Millisecond,
		Max:         30 * time.Second,
		Factor:      2,
		MaxAttempts: 0,
	}
}

// Delay returns the wait before the given retry attempt (0-based)
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	d := p.Initial
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	factor := p.Factor
	if factor < 1 {
		factor = 2
	}
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * factor)
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

func (p ReconnectPolicy) allows(attempt int) bool {
	return p.MaxAttempts <= 0 || attempt < p.MaxAttempts
}

// Option configures a Channel
type Option func(*Channel)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithOnClose is called once when the channel stops for any reason other
// than Close
func WithOnClose(fn func(error)) Option {
	return func(c *Channel) { c.onClose = fn }
}

// WithOnState is called on every state change
func WithOnState(fn func(State)) Option {
	return func(c *Channel) { c.onState = fn }
}

// WithReconnect enables redialing with backoff. The last params sent are
// re-sent after every reconnect.
func WithReconnect(p ReconnectPolicy) Option {
	return func(c *Channel) { c.reconnect = &p }
}

// WithTokenSource supplies a fresh token for every dial, overriding the
// token passed to Open
func WithTokenSource(fn func() string) Option {
	return func(c *Channel) { c.tokenFn = fn }
}

// Channel is a push subscription for one table
type Channel struct {
	endpoint  string
	token     string
	tokenFn   func() string
	onReplace func(types.RecordSet)
	onClose   func(error)
	onState   func(State)
	reconnect *ReconnectPolicy
	dialer    *websocket.Dialer
	logger    *slog.Logger

	mu     sync.Mutex
	state  State
	closed bool
	conn   *websocket.Conn
	last   *types.QueryParams
	unsent bool
	cancel context.CancelFunc
	done   chan struct{}
}

// subscribeMessage is the client->server payload
type subscribeMessage struct {
	Action string `json:"action"`
	types.QueryParams
}

// replaceMessage is the server->client payload
type replaceMessage struct {
	UpdatedData *[]map[string]interface{} `json:"updated_data"`
}

// Open starts a push subscription to endpoint. It returns at once; the
// connection is made in the background and params sent before it is ready
// are flushed when it is.
func Open(ctx context.Context, endpoint, token string, onReplace func(types.RecordSet), opts ...Option) (*Channel, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", endpoint)
	}

	c := &Channel{
		endpoint:  endpoint,
		token:     token,
		onReplace: onReplace,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: HandshakeTimeout,
		},
		logger: slog.Default(),
		closed: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("endpoint", endpoint)

	if err := c.Reopen(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reopen restarts a closed channel. It fails with ErrAlreadyOpen while the
// channel is connecting, open or reconnecting.
func (c *Channel) Reopen(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.closed = false
	c.cancel = cancel
	c.done = done
	c.state = StateConnecting
	if c.last != nil {
		c.unsent = true
	}
	c.mu.Unlock()

	c.notifyState(StateConnecting)
	go c.run(runCtx, done)
	return nil
}

// Endpoint returns the push URL without the token
func (c *Channel) Endpoint() string {
	return c.endpoint
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send subscribes with new params. Before the connection is ready only the
// latest params are kept.
func (c *Channel) Send(params types.QueryParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("send on closed channel ignored")
		return
	}

	p := params
	c.last = &p
	if c.conn == nil || c.state != StateOpen {
		c.unsent = true
		return
	}

	if err := c.write(c.conn, p); err != nil {
		// the read loop notices the broken connection; resend on reconnect
		c.logger.Warn("failed to send subscription", "error", err)
		c.unsent = true
		return
	}
	c.unsent = false
}

// Close tears the subscription down and waits for the background goroutine.
// Callbacks are not invoked after Close returns, so it must not be called
// from OnReplace or OnState.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	conn := c.conn
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	<-done

	c.notifyState(StateClosed)
	return nil
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			attempt = 0
			if !c.attach(conn) {
				conn.Close()
				return
			}
			err = c.readLoop(ctx, conn)

			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			conn.Close()
		}

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrClosed
		}

		if c.reconnect == nil || !c.reconnect.allows(attempt) {
			c.logger.Warn("push channel closed", "error", err)
			c.stop(err)
			return
		}

		delay := c.reconnect.Delay(attempt)
		attempt++
		c.logger.Warn("push channel lost, reconnecting", "error", err, "attempt", attempt, "delay", delay)
		if !c.transition(StateReconnecting) {
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	token := c.token
	if c.tokenFn != nil {
		token = c.tokenFn()
	}

	target, err := withToken(c.endpoint, token)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return conn, nil
}

// attach installs conn and flushes the pending params. It reports false when
// the channel was closed while dialing.
func (c *Channel) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = StateOpen
	if c.last != nil && (c.unsent || c.reconnect != nil) {
		if err := c.write(conn, *c.last); err != nil {
			c.logger.Warn("failed to flush subscription", "error", err)
		} else {
			c.unsent = false
		}
	}
	c.mu.Unlock()

	c.logger.Debug("push channel open")
	c.notifyState(StateOpen)
	return true
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		rows, err := DecodeReplacement(data)
		if err != nil {
			c.logger.Warn("dropping unparseable push message", "error", err, "size", len(data))
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if c.onReplace != nil {
			c.onReplace(rows)
		}
	}
}

func (c *Channel) write(conn *websocket.Conn, p types.QueryParams) error {
	data, err := json.Marshal(subscribeMessage{Action: "subscribe", QueryParams: p})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) transition(s State) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()
	c.notifyState(s)
	return true
}

func (c *Channel) stop(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosed
	c.cancel()
	c.mu.Unlock()

	c.notifyState(StateClosed)
	if c.onClose != nil {
		c.onClose(err)
	}
}

func (c *Channel) notifyState(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}

// DecodeReplacement parses a server push into the full replacement dataset
func DecodeReplacement(data []byte) (types.RecordSet, error) {
	var msg replaceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if msg.UpdatedData == nil {
		return nil, errors.New("missing updated_data")
	}

	rows := make(types.RecordSet, 0, len(*msg.UpdatedData))
	for _, item := range *msg.UpdatedData {
		if item == nil {
			return nil, errors.New("null record in updated_data")
		}
		rows = append(rows, types.Record(item))
	}
	if err := rows.Validate(); err != nil {
		return nil, err
	}
	return rows, nil
}

// EndpointURL derives the push URL of a resource from the REST base URL:
// http://host:8000 + department -> ws://host:8000/ws/department
func EndpointURL(restBase, resource string) (string, error) {
	u, err := url.Parse(restBase)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", restBase, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid base URL %q: unsupported scheme %q", restBase, u.Scheme)
	}

	resource = strings.Trim(resource, "/")
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		resource = resource[i+1:]
	}
	if resource == "" {
		return "", errors.New("empty resource")
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + resource
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func withToken(endpoint, token string) (string, error) {
	if token == "" {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
