package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// stateChangedMsg tells the model to re-read the table, menu and modal state
type stateChangedMsg struct{}

// WakeSignal coalesces change notifications from background goroutines.
// At most one wake-up is pending; the model reads the latest state when it
// handles it, so a dropped notification loses nothing.
type WakeSignal struct {
	ch chan struct{}
}

// NewWakeSignal creates a signal with no pending wake-up
func NewWakeSignal() *WakeSignal {
	return &WakeSignal{ch: make(chan struct{}, 1)}
}

// Notify schedules a wake-up. It never blocks.
func (w *WakeSignal) Notify() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Wait returns a Cmd that delivers stateChangedMsg on the next wake-up, or
// nil once ctx is done
func (w *WakeSignal) Wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.ch:
			return stateChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// Pending reports whether a wake-up is waiting
func (w *WakeSignal) Pending() bool {
	return len(w.ch) > 0
}

// SessionState owns the lifetime of the running UI
type SessionState struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionState derives a cancellable context from parent
func NewSessionState(parent context.Context) *SessionState {
	ctx, cancel := context.WithCancel(parent)
	return &SessionState{ctx: ctx, cancel: cancel}
}

// Context returns the session context
func (s *SessionState) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Cancel ends the session. Safe to call more than once.
func (s *SessionState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Done reports whether the session has ended
func (s *SessionState) Done() bool {
	return s.Context().Err() != nil
}
