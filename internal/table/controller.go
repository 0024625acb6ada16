// Package table is the generic live table: paginated REST fetches, a push
// subscription that can replace the rows at any time, and the search and
// paging state both are driven by.
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/studiowebux/tablesync/internal/channel"
	"github.com/studiowebux/tablesync/internal/types"
)

var (
	// ErrInvalidPageSize is returned by SetPageSize for sizes outside types.PageSizes
	ErrInvalidPageSize = errors.New("invalid page size")
)

// FetchFunc loads one page
type FetchFunc func(ctx context.Context, p types.QueryParams) (types.Page, error)

// Snapshot is a consistent copy of the controller state
type Snapshot struct {
	Version      uint64
	Mounted      bool
	Rows         types.RecordSet
	Params       types.QueryParams
	TotalCount   int
	TotalPages   int
	Loading      bool
	Err          error // last fetch error, cleared by the next successful fetch
	ChannelState channel.State
}

// Controller owns the rows and query params of one table
type Controller struct {
	fetch    FetchFunc
	dial     channel.Dialer
	logger   *slog.Logger
	binding  *channel.Binding
	endpoint string

	mu         sync.Mutex
	mounted    bool
	ctx        context.Context
	cancel     context.CancelFunc
	params     types.QueryParams
	rows       types.RecordSet
	totalCount int
	fetchSeq   uint64
	loading    bool
	lastErr    error
	chanState  channel.State
	version    uint64
	subs       map[int]func(Snapshot)
	nextSub    int
	inflight   sync.WaitGroup
}

// Option configures a Controller
type Option func(*Controller)

// WithDialer sets how the push channel is opened. Without one the table only
// fetches.
func WithDialer(d channel.Dialer) Option {
	return func(c *Controller) { c.dial = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithParams sets the initial query params
func WithParams(p types.QueryParams) Option {
	return func(c *Controller) { c.params = p.Normalize() }
}

// New creates an unmounted controller. endpoint is the push URL.
func New(fetch FetchFunc, endpoint string, opts ...Option) *Controller {
	c := &Controller{
		fetch:     fetch,
		endpoint:  endpoint,
		logger:    slog.Default(),
		params:    types.DefaultQueryParams(),
		chanState: channel.StateClosed,
		subs:      make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial != nil {
		c.binding = channel.NewBinding(c.dial, channel.Hooks{
			OnReplace: func(rows types.RecordSet) { c.Replace(rows) },
			OnState:   c.setChannelState,
		}, c.logger)
	}
	return c
}

// Mount starts the table: the first fetch and the push subscription
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	mountCtx := c.ctx
	params := c.params
	endpoint := c.endpoint
	c.mu.Unlock()

	c.logger.Debug("table mounted", "endpoint", endpoint, "params", params)
	c.bind(mountCtx, endpoint, params)
	c.load(params)
}

// Unmount closes the push channel and cancels in-flight fetches. No state
// changes are applied afterwards.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.loading = false
	c.chanState = channel.StateClosed
	c.cancel()
	c.mu.Unlock()

	if c.binding != nil {
		if err := c.binding.Close(); err != nil {
			c.logger.Warn("failed to close push channel", "error", err)
		}
	}
	c.logger.Debug("table unmounted", "endpoint", c.endpoint)
}

// Wait blocks until every fetch issued so far has returned
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) bind(ctx context.Context, endpoint string, params types.QueryParams) {
	if c.binding == nil || endpoint == "" {
		return
	}
	if _, err := c.binding.Bind(ctx, endpoint); err != nil {
		c.logger.Warn("failed to open push channel", "endpoint", endpoint, "error", err)
		return
	}
	c.binding.Send(params)
}

// Rows returns a copy of the current rows
func (c *Controller) Rows() types.RecordSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows.Clone()
}

// Params returns the current query params
func (c *Controller) Params() types.QueryParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// TotalPages returns ceil(totalCount / pageSize)
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.TotalPages(c.totalCount, c.params.PageSize)
}

// SetParams changes the query. A new search text or page size sends the
// table back to page 1. The push channel and the next fetch both receive
// exactly the resulting params.
func (c *Controller) SetParams(p types.QueryParams) {
	p = p.Normalize()

	c.mu.Lock()
	old := c.params
	if p.SearchText != old.SearchText || p.PageSize != old.PageSize {
		p.Page = 1
	}
	if p == old {
		c.mu.Unlock()
		return
	}
	c.params = p
	c.version++
	mounted := c.mounted
	c.mu.Unlock()

	if !mounted {
		c.publish()
		return
	}
	if c.binding != nil {
		c.binding.Send(p)
	}
	c.load(p)
}

// SetSearch changes the search text
func (c *Controller) SetSearch(text string) {
	p := c.Params()
	p.SearchText = text
	c.SetParams(p)
}

// SetPage moves to page n; values below 1 mean page 1
func (c *Controller) SetPage(n int) {
	p := c.Params()
	p.Page = n
	c.SetParams(p)
}

// SetPageSize changes the page size
func (c *Controller) SetPageSize(n int) error {
	if !types.IsValidPageSize(n) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	p := c.Params()
	p.PageSize = n
	c.SetParams(p)
	return nil
}

// NextPage advances one page unless already on the last one
func (c *Controller) NextPage() {
	c.mu.Lock()
	p := c.params
	last := types.TotalPages(c.totalCount, p.PageSize)
	c.mu.Unlock()

	if p.Page >= last {
		return
	}
	c.SetPage(p.Page + 1)
}

// PrevPage goes back one page
func (c *Controller) PrevPage() {
	p := c.Params()
	if p.Page <= 1 {
		return
	}
	c.SetPage(p.Page - 1)
}

// Refresh re-fetches with the current params and waits for the result
func (c *Controller) Refresh(ctx context.Context) error {
	done := c.load(c.Params())

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Replace swaps the rows wholesale. Push messages and optimistic reorders
// both land here. It reports false once the table is unmounted.
func (c *Controller) Replace(rows types.RecordSet) bool {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return false
	}
	c.rows = rows
	c.version++
	c.mu.Unlock()

	c.publish()
	return true
}

func (c *Controller) setChannelState(s channel.State) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.chanState = s
	c.version++
	c.mu.Unlock()

	c.publish()
}

// load starts a fetch. The returned channel yields the fetch error, or nil
// when the result was applied or superseded.
func (c *Controller) load(p types.QueryParams) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		done <- nil
		return done
	}
	c.fetchSeq++
	seq := c.fetchSeq
	ctx := c.ctx
	c.loading = true
	c.version++
	c.inflight.Add(1)
	c.mu.Unlock()

	c.publish()

	go func() {
		defer c.inflight.Done()

		page, err := c.fetch(ctx, p)

		c.mu.Lock()
		if !c.mounted {
			c.mu.Unlock()
			done <- nil
			return
		}
		if seq != c.fetchSeq {
			c.mu.Unlock()
			c.logger.Debug("dropping stale fetch", "seq", seq, "params", p)
			done <- nil
			return
		}
		c.loading = false
		c.version++
		if err != nil {
			c.lastErr = err
			c.mu.Unlock()
			c.logger.Warn("fetch failed", "endpoint", c.endpoint, "params", p, "error", err)
			c.publish()
			done <- err
			return
		}
		c.rows = page.Rows
		c.totalCount = page.TotalCount
		c.lastErr = nil
		c.mu.Unlock()

		c.publish()
		done <- nil
	}()

	return done
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Version:      c.version,
		Mounted:      c.mounted,
		Rows:         c.rows.Clone(),
		Params:       c.params,
		TotalCount:   c.totalCount,
		TotalPages:   types.TotalPages(c.totalCount, c.params.PageSize),
		Loading:      c.loading,
		Err:          c.lastErr,
		ChannelState: c.chanState,
	}
}

// Subscribe calls fn with a snapshot after every change. Snapshots may
// arrive out of order across goroutines; compare Version to discard older
// ones.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
