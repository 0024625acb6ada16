// Package reorder applies drag-and-drop row moves: the new order is shown at
// once and the full sort assignment is persisted in one batched call.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/studiowebux/tablesync/internal/notify"
	"github.com/studiowebux/tablesync/internal/types"
)

// Source is the row store being reordered. Replace reports whether the rows
// were taken; a detached source (an unmounted table) refuses them.
type Source interface {
	Rows() types.RecordSet
	Replace(rows types.RecordSet) bool
}

// ErrDetached is returned by OnDrop when the source refused the new order.
// Nothing is saved in that case.
var ErrDetached = errors.New("rows are no longer shown")

// PersistFunc stores a sort assignment
type PersistFunc func(ctx context.Context, assignments []types.SortAssignment) error

// SortClient is the REST call behind PersistVia
type SortClient interface {
	Sort(ctx context.Context, resource string, assignments []types.SortAssignment) (types.APIResult, error)
}

// PersistVia persists through the sort endpoint of resource. An unsuccessful
// result is reported as an error.
func PersistVia(client SortClient, resource string) PersistFunc {
	return func(ctx context.Context, assignments []types.SortAssignment) error {
		result, err := client.Sort(ctx, resource, assignments)
		if err != nil {
			return err
		}
		if !result.Success {
			return errors.New(result.Message)
		}
		return nil
	}
}

// Permute moves the element at from to position to, shifting the rest. The
// input is not modified.
func Permute(set types.RecordSet, from, to int) (types.RecordSet, error) {
	if from < 0 || from >= len(set) || to < 0 || to >= len(set) {
		return nil, fmt.Errorf("move %d -> %d out of range for %d rows", from, to, len(set))
	}

	out := make(types.RecordSet, 0, len(set))
	moved := set[from]
	for i, r := range set {
		if i != from {
			out = append(out, r)
		}
	}
	out = append(out[:to], append(types.RecordSet{moved}, out[to:]...)...)
	return out, nil
}

// Assign gives every row the sort key (index+1)*SortSpacing
func Assign(set types.RecordSet) []types.SortAssignment {
	out := make([]types.SortAssignment, len(set))
	for i, r := range set {
		out[i] = types.SortAssignment{ID: r["id"], SortKey: (i + 1) * types.SortSpacing}
	}
	return out
}

// Coordinator turns drops into optimistic reorders
type Coordinator struct {
	source   Source
	persist  PersistFunc
	logger   *slog.Logger
	notifier notify.Notifier
	ctx      context.Context

	mu       sync.Mutex
	inflight sync.WaitGroup
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithNotifier reports the outcome of each save
func WithNotifier(n notify.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithContext bounds persist calls
func WithContext(ctx context.Context) Option {
	return func(c *Coordinator) { c.ctx = ctx }
}

// New creates a coordinator over source
func New(source Source, persist PersistFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:  source,
		persist: persist,
		logger:  slog.Default(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnDrop moves row dragged to target. The rows change immediately; the sort
// assignment of the whole list is saved in the background. A failed save is
// logged and notified, and the local order is kept. Dropping a row on itself does nothing.
func (c *Coordinator) OnDrop(dragged, target int) error {
	if dragged == target {
		return nil
	}

	c.mu.Lock()
	permuted, err := Permute(c.source.Rows(), dragged, target)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	applied := c.source.Replace(permuted)
	c.mu.Unlock()
	if !applied {
		return ErrDetached
	}

	assignments := Assign(permuted)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.persist(c.ctx, assignments); err != nil {
			c.logger.Error("failed to save row order", "from", dragged, "to", target, "error", err)
			if c.notifier != nil {
				c.notifier.Error("Failed to save order: " + err.Error())
			}
			return
		}
		c.logger.Debug("row order saved", "rows", len(assignments))
		if c.notifier != nil {
			c.notifier.Success("Order updated")
		}
	}()
	return nil
}

// Wait blocks until every save started so far has finished
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// Tracker follows one drag gesture. Hover only moves the drop indicator;
// the reorder happens once, on Drop.
type Tracker struct {
	mu      sync.Mutex
	active  bool
	origin  int
	hovered int
	drop    func(dragged, target int) error
}

// NewTracker creates a tracker that commits to drop, usually
// Coordinator.OnDrop
func NewTracker(drop func(dragged, target int) error) *Tracker {
	return &Tracker{drop: drop}
}

// Begin starts dragging the row at index
func (t *Tracker) Begin(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = true
	t.origin = index
	t.hovered = index
}

// Hover moves the drop indicator
func (t *Tracker) Hover(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		t.hovered = index
	}
}

// Drop commits the drag. It reports whether a drag was in progress.
func (t *Tracker) Drop() (bool, error) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return false, nil
	}
	origin, hovered := t.origin, t.hovered
	t.active = false
	t.mu.Unlock()

	return true, t.drop(origin, hovered)
}

// Abort cancels the drag without reordering
func (t *Tracker) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
}

// State returns the drag origin and hovered index
func (t *Tracker) State() (origin, hovered int, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.origin, t.hovered, t.active
}
