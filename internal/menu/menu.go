// Package menu is the per-table context menu: at most one menu is visible,
// anchored at the pointer and bound to the row it was opened on.
package menu

import (
	"log/slog"
	"sync"

	"github.com/studiowebux/tablesync/internal/types"
)

// DefaultSystemDepartment is the department whose admins may act on every table
const DefaultSystemDepartment = "管理者"

// Event is the secondary-click that opens a menu
type Event interface {
	Position() types.Position
	PreventDefault()
}

// MouseEvent is a plain Event
type MouseEvent struct {
	X, Y      int
	Prevented bool
}

func (e *MouseEvent) Position() types.Position { return types.Position{X: e.X, Y: e.Y} }
func (e *MouseEvent) PreventDefault()          { e.Prevented = true }

// Authorizer decides whether the current user may open a menu on targetID
// in a table scoped to scope
type Authorizer func(targetID types.ID, scope string) bool

// Action is one menu entry
type Action struct {
	Key   string
	Label string
	Run   func(targetID types.ID)
}

// Controller holds the menu state of one table
type Controller struct {
	mu        sync.Mutex
	state     types.MenuState
	authorize Authorizer
	onChange  func(types.MenuState)
	logger    *slog.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithOnChange is called after every state change
func WithOnChange(fn func(types.MenuState)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a hidden menu. A nil authorize allows every open.
func New(authorize Authorizer, opts ...Option) *Controller {
	c := &Controller{authorize: authorize, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open shows the menu for targetID at the event position. A denied open does
// nothing and reports false. An already visible menu is replaced.
func (c *Controller) Open(ev Event, targetID types.ID, scope string) bool {
	if c.authorize != nil && !c.authorize(targetID, scope) {
		c.logger.Debug("context menu denied", "target", targetID, "scope", scope)
		return false
	}
	ev.PreventDefault()

	id := targetID
	c.mu.Lock()
	wasVisible := c.state.Visible
	c.state = types.MenuState{
		Visible:  true,
		TargetID: &id,
		Position: ev.Position(),
	}
	state := c.state
	c.mu.Unlock()

	if wasVisible {
		c.changed(types.MenuState{})
	}
	c.changed(state)
	return true
}

// Hide closes the menu
func (c *Controller) Hide() {
	c.mu.Lock()
	if !c.state.Visible {
		c.mu.Unlock()
		return
	}
	c.state = types.MenuState{}
	c.mu.Unlock()

	c.changed(types.MenuState{})
}

// OutsideClick hides a visible menu unless the click landed inside it
func (c *Controller) OutsideClick(insideMenu bool) {
	if insideMenu {
		return
	}
	c.Hide()
}

// Select hides the menu, then runs action on the target row. It reports
// false when no menu was visible.
func (c *Controller) Select(action Action) bool {
	c.mu.Lock()
	if !c.state.Visible || c.state.TargetID == nil {
		c.mu.Unlock()
		return false
	}
	target := *c.state.TargetID
	c.state = types.MenuState{}
	c.mu.Unlock()

	c.changed(types.MenuState{})
	if action.Run != nil {
		action.Run(target)
	}
	return true
}

// State returns a copy of the menu state
func (c *Controller) State() types.MenuState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	if state.TargetID != nil {
		id := *state.TargetID
		state.TargetID = &id
	}
	return state
}

// Visible reports whether the menu is shown
func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Visible
}

func (c *Controller) changed(state types.MenuState) {
	if c.onChange != nil {
		c.onChange(state)
	}
}
