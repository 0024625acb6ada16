// Package modal turns "open a dialog and wait for the answer" into a call
// that returns a Result. Each named slot shows one dialog at a time; later
// calls for the same slot wait in FIFO order.
package modal

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/studiowebux/tablesync/internal/types"
)

// Well-known slots
const (
	SlotConfirm = "confirm"
	SlotForm    = "form"
)

var (
	// ErrClosed is returned by Invoke after the invoker is closed
	ErrClosed = errors.New("modal invoker closed")
)

// Result is what a dialog resolves with. A cancelled dialog yields the zero
// Result.
type Result struct {
	Confirmed bool
	Payload   any
}

// ConfirmProps are the props of a yes/no dialog
type ConfirmProps struct {
	Title        string
	Message      string
	ConfirmLabel string
}

// FormProps are the props of a record editor
type FormProps struct {
	Title  string
	Fields []string
	Values types.Record
	Errors map[string]string // field -> validation message
}

// Call is one pending dialog
type Call struct {
	ID          string
	Slot        string
	ComponentID string
	Props       any

	done   chan Result
	result Result
	err    error
	once   sync.Once
}

func newCall(slot, componentID string, props any) *Call {
	return &Call{
		ID:          uuid.NewString(),
		Slot:        slot,
		ComponentID: componentID,
		Props:       props,
		done:        make(chan Result, 1),
	}
}

// Done delivers the result once, then is closed
func (c *Call) Done() <-chan Result {
	return c.done
}

// Err is ErrClosed when the call ended because the invoker closed
func (c *Call) Err() error {
	return c.err
}

// settle never blocks, so it may run under Invoker.mu
func (c *Call) settle(r Result, err error) bool {
	settled := false
	c.once.Do(func() {
		c.result = r
		c.err = err
		c.done <- r
		close(c.done)
		settled = true
	})
	return settled
}

// Invoker owns the slots
type Invoker struct {
	mu       sync.Mutex
	active   map[string]*Call
	queues   map[string][]*Call
	watchers map[int]func(slot string)
	nextID   int
	closed   bool
	logger   *slog.Logger
}

// Option configures an Invoker
type Option func(*Invoker)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Invoker) { m.logger = l }
}

// NewInvoker creates an invoker with no open dialogs
func NewInvoker(opts ...Option) *Invoker {
	m := &Invoker{
		active:   make(map[string]*Call),
		queues:   make(map[string][]*Call),
		watchers: make(map[int]func(string)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InvokeAsync opens componentID in slot, or queues it behind the dialog
// already shown there
func (m *Invoker) InvokeAsync(slot, componentID string, props any) *Call {
	call := newCall(slot, componentID, props)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		call.settle(Result{}, ErrClosed)
		return call
	}
	if _, busy := m.active[slot]; busy {
		m.queues[slot] = append(m.queues[slot], call)
		queued := len(m.queues[slot])
		m.mu.Unlock()
		m.logger.Debug("modal queued", "slot", slot, "component", componentID, "queued", queued)
		return call
	}
	m.active[slot] = call
	m.mu.Unlock()

	m.logger.Debug("modal opened", "slot", slot, "component", componentID)
	m.notify(slot)
	return call
}

// Invoke opens a dialog and blocks until it is resolved or ctx is done. A
// cancelled context removes a queued call and cancels an active one. A call
// settled before the cancellation took effect returns its own result.
func (m *Invoker) Invoke(ctx context.Context, slot, componentID string, props any) (Result, error) {
	call := m.InvokeAsync(slot, componentID, props)

	select {
	case r := <-call.Done():
		return r, call.Err()
	case <-ctx.Done():
		select {
		case r := <-call.Done():
			return r, call.Err()
		default:
		}
		if !m.abandon(call) {
			return <-call.Done(), call.Err()
		}
		return Result{}, ctx.Err()
	}
}

// Active returns the dialog currently shown in slot
func (m *Invoker) Active(slot string) (*Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.active[slot]
	return call, ok
}

// Queued returns how many calls wait behind the active one
func (m *Invoker) Queued(slot string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[slot])
}

// Slots returns the slots that currently show a dialog, sorted
func (m *Invoker) Slots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]string, 0, len(m.active))
	for slot := range m.active {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Resolve confirms the active dialog of slot with payload
func (m *Invoker) Resolve(slot string, payload any) bool {
	return m.finish(slot, "", Result{Confirmed: true, Payload: payload})
}

// Cancel dismisses the active dialog of slot
func (m *Invoker) Cancel(slot string) bool {
	return m.finish(slot, "", Result{})
}

// ResolveCall is Resolve guarded by the call id, so a stale UI cannot answer
// the dialog promoted after it
func (m *Invoker) ResolveCall(call *Call, payload any) bool {
	return m.finish(call.Slot, call.ID, Result{Confirmed: true, Payload: payload})
}

// CancelCall is Cancel guarded by the call id
func (m *Invoker) CancelCall(call *Call) bool {
	return m.finish(call.Slot, call.ID, Result{})
}

// Watch registers fn to run whenever a slot changes. The returned func
// unregisters it.
func (m *Invoker) Watch(fn func(slot string)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Close cancels every active and queued dialog. Later calls fail with
// ErrClosed.
func (m *Invoker) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	var calls []*Call
	var slots []string
	for slot, call := range m.active {
		calls = append(calls, call)
		calls = append(calls, m.queues[slot]...)
		slots = append(slots, slot)
	}
	m.active = make(map[string]*Call)
	m.queues = make(map[string][]*Call)
	for _, call := range calls {
		call.settle(Result{}, ErrClosed)
	}
	m.mu.Unlock()

	for _, slot := range slots {
		m.notify(slot)
	}
}

func (m *Invoker) finish(slot, id string, r Result) bool {
	m.mu.Lock()
	call, ok := m.active[slot]
	if !ok || (id != "" && call.ID != id) {
		m.mu.Unlock()
		return false
	}
	m.promote(slot)
	call.settle(r, nil)
	m.mu.Unlock()

	m.logger.Debug("modal closed", "slot", slot, "component", call.ComponentID, "confirmed", r.Confirmed)
	m.notify(slot)
	return true
}

// promote replaces the active call of slot with the next queued one.
// Callers hold m.mu.
func (m *Invoker) promote(slot string) {
	queue := m.queues[slot]
	if len(queue) == 0 {
		delete(m.active, slot)
		delete(m.queues, slot)
		return
	}
	m.active[slot] = queue[0]
	m.queues[slot] = queue[1:]
}

// abandon drops call from its slot. It reports false when the call had
// already been settled elsewhere.
func (m *Invoker) abandon(call *Call) bool {
	m.mu.Lock()
	if active, ok := m.active[call.Slot]; ok && active == call {
		m.promote(call.Slot)
		settled := call.settle(Result{}, nil)
		m.mu.Unlock()
		m.notify(call.Slot)
		return settled
	}

	queue := m.queues[call.Slot]
	for i, queued := range queue {
		if queued == call {
			m.queues[call.Slot] = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}
	settled := call.settle(Result{}, nil)
	m.mu.Unlock()
	return settled
}

func (m *Invoker) notify(slot string) {
	m.mu.Lock()
	watchers := make([]func(string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		watchers = append(watchers, fn)
	}
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(slot)
	}
}
