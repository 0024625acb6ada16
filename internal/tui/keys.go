package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studiowebux/tablesync/internal/keybinds"
	"github.com/studiowebux/tablesync/internal/menu"
	"github.com/studiowebux/tablesync/internal/modal"
	"github.com/studiowebux/tablesync/internal/types"
)

const msgNotAllowed = "Not allowed"

// handleKeyPress routes key presses based on current mode
func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	// Global keys (work in all modes)
	if action, ok := m.keybinds.Match(keybinds.ContextGlobal, msg.String()); ok && action == keybinds.ActionQuitForce {
		m.Cleanup()
		return tea.Quit
	}

	// Mode-specific handling
	switch m.mode {
	case ModeNormal:
		return m.handleNormalKeys(msg)
	case ModeSearch:
		return m.handleSearchKeys(msg)
	case ModeMenu:
		return m.handleMenuKeys(msg)
	case ModeConfirm:
		return m.handleConfirmKeys(msg)
	case ModeForm:
		return m.handleFormKeys(msg)
	case ModeDrag:
		return m.handleDragKeys(msg)
	case ModePicker:
		return m.handlePickerKeys(msg)
	case ModeInspect:
		return m.handleInspectKeys(msg)
	case ModeHelp:
		m.mode = ModeNormal
	}

	return nil
}

// handleNormalKeys handles the row list
func (m *Model) handleNormalKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok, partial := m.keybinds.MatchSequence(keybinds.ContextTable, msg.String())
	if partial || !ok {
		return nil
	}

	ctrl := m.table.ctrl
	switch action {
	case keybinds.ActionQuit:
		m.Cleanup()
		return tea.Quit

	case keybinds.ActionHelp:
		m.mode = ModeHelp

	case keybinds.ActionNavigateUp:
		if m.cursor > 0 {
			m.cursor--
		}

	case keybinds.ActionNavigateDown:
		if m.cursor < len(m.snap.Rows)-1 {
			m.cursor++
		}

	case keybinds.ActionGoToTop:
		m.cursor = 0

	case keybinds.ActionGoToBottom:
		m.cursor = max(len(m.snap.Rows)-1, 0)

	case keybinds.ActionNextPage:
		ctrl.NextPage()

	case keybinds.ActionPrevPage:
		ctrl.PrevPage()

	case keybinds.ActionPageSizeNext:
		size := nextPageSize(ctrl.Params().PageSize)
		if err := ctrl.SetPageSize(size); err != nil {
			return m.setErrorMessage(err.Error())
		}
		return m.setStatusMessage(formatPageSize(size))

	case keybinds.ActionSearch:
		m.mode = ModeSearch
		m.search.SetValue(ctrl.Params().SearchText)
		m.search.CursorEnd()
		return m.search.Focus()

	case keybinds.ActionClearSearch:
		m.search.SetValue("")
		ctrl.SetSearch("")

	case keybinds.ActionRefresh:
		return m.refreshCmd()

	case keybinds.ActionOpenMenu:
		if idx, ok := m.selectedRow(); ok {
			return m.openMenu(idx, menu.MouseEvent{X: 2, Y: TableRowOffset + idx})
		}

	case keybinds.ActionCreate:
		m.runAction("create", func(ctx context.Context) error { return m.table.actions.Create(ctx) })

	case keybinds.ActionEdit:
		if id, ok := m.selectedID(); ok {
			if !m.allowed(id) {
				return m.setErrorMessage(msgNotAllowed)
			}
			m.runAction("edit", func(ctx context.Context) error { return m.table.actions.Edit(ctx, id) })
		}

	case keybinds.ActionDelete:
		if id, ok := m.selectedID(); ok {
			if !m.allowed(id) {
				return m.setErrorMessage(msgNotAllowed)
			}
			m.runAction("delete", func(ctx context.Context) error { return m.table.actions.Delete(ctx, id) })
		}

	case keybinds.ActionInspect:
		if id, ok := m.selectedID(); ok {
			m.openInspect(id)
		}

	case keybinds.ActionCopyRow:
		if id, ok := m.selectedID(); ok {
			m.copyRow(id)
		}

	case keybinds.ActionDragBegin:
		if idx, ok := m.selectedRow(); ok && m.table.Reorderable() {
			m.table.tracker.Begin(idx)
			m.mode = ModeDrag
		}

	case keybinds.ActionMoveRowUp:
		return m.moveRow(-1)

	case keybinds.ActionMoveRowDown:
		return m.moveRow(1)

	case keybinds.ActionSwitchTable:
		m.picker = NewPickerState(m.tables, m.table.def.Name)
		m.mode = ModePicker
		return m.picker.Focus()
	}

	return nil
}

// handleSearchKeys edits the search text. Every change is applied to the
// table at once.
func (m *Model) handleSearchKeys(msg tea.KeyMsg) tea.Cmd {
	if action, ok := m.keybinds.Match(keybinds.ContextSearch, msg.String()); ok {
		switch action {
		case keybinds.ActionSubmit:
			m.search.Blur()
			m.mode = ModeNormal
			return nil
		case keybinds.ActionCancel:
			m.search.Blur()
			m.search.SetValue("")
			m.table.ctrl.SetSearch("")
			m.mode = ModeNormal
			return nil
		}
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.table.ctrl.Params().SearchText {
		m.cursor = 0
		m.table.ctrl.SetSearch(m.search.Value())
	}
	return cmd
}

// handleMenuKeys moves through the context menu entries
func (m *Model) handleMenuKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keybinds.Match(keybinds.ContextMenu, msg.String())
	if !ok {
		return nil
	}

	items := m.table.items
	switch action {
	case keybinds.ActionNavigateUp:
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case keybinds.ActionNavigateDown:
		if m.menuIndex < len(items)-1 {
			m.menuIndex++
		}
	case keybinds.ActionConfirm:
		if m.menuIndex < len(items) {
			m.selectMenuItem(m.menuIndex)
		}
	case keybinds.ActionCancel:
		m.table.menu.Hide()
		m.mode = ModeNormal
	}
	return nil
}

// handleConfirmKeys answers the confirm dialog on screen
func (m *Model) handleConfirmKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keybinds.Match(keybinds.ContextConfirm, msg.String())
	if !ok || m.confirmCall == nil {
		return nil
	}

	switch action {
	case keybinds.ActionConfirm:
		m.invoker.ResolveCall(m.confirmCall, nil)
	case keybinds.ActionCancel:
		m.invoker.CancelCall(m.confirmCall)
	}
	m.syncModals()
	return nil
}

// handleFormKeys edits the form on screen
func (m *Model) handleFormKeys(msg tea.KeyMsg) tea.Cmd {
	if m.form == nil {
		return nil
	}

	if action, ok := m.keybinds.Match(keybinds.ContextForm, msg.String()); ok {
		switch action {
		case keybinds.ActionNextField:
			return m.form.NextField()
		case keybinds.ActionPrevField:
			return m.form.PrevField()
		case keybinds.ActionSubmit:
			m.invoker.ResolveCall(m.form.call, m.form.Record())
			m.syncModals()
			return nil
		case keybinds.ActionCancel:
			m.invoker.CancelCall(m.form.call)
			m.syncModals()
			return nil
		}
	}

	return m.form.Update(msg)
}

// handleDragKeys moves the drop indicator of a keyboard drag
func (m *Model) handleDragKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keybinds.Match(keybinds.ContextDrag, msg.String())
	if !ok {
		return nil
	}

	tracker := m.table.tracker
	_, hovered, _ := tracker.State()
	switch action {
	case keybinds.ActionDragUp:
		if hovered > 0 {
			tracker.Hover(hovered - 1)
		}
	case keybinds.ActionDragDown:
		if hovered < len(m.snap.Rows)-1 {
			tracker.Hover(hovered + 1)
		}
	case keybinds.ActionDragDrop:
		m.mode = ModeNormal
		return m.drop()
	case keybinds.ActionCancel:
		tracker.Abort()
		m.mode = ModeNormal
	}
	return nil
}

// handleInspectKeys handles keyboard input in inspect mode
func (m *Model) handleInspectKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keybinds.Match(keybinds.ContextInspect, msg.String())
	if !ok {
		return nil
	}

	switch action {
	case keybinds.ActionCancel:
		m.mode = ModeNormal
	case keybinds.ActionNavigateUp:
		m.inspectView.ScrollUp(1)
	case keybinds.ActionNavigateDown:
		m.inspectView.ScrollDown(1)
	case keybinds.ActionCopyRow:
		m.copyText(m.inspectJSON)
	}
	return nil
}

// handlePickerKeys handles the table picker
func (m *Model) handlePickerKeys(msg tea.KeyMsg) tea.Cmd {
	if action, ok := m.keybinds.Match(keybinds.ContextPicker, msg.String()); ok {
		switch action {
		case keybinds.ActionNavigateUp:
			m.picker.Up()
			return nil
		case keybinds.ActionNavigateDown:
			m.picker.Down()
			return nil
		case keybinds.ActionConfirm:
			def, ok := m.picker.Selected()
			m.picker = nil
			m.mode = ModeNormal
			if ok {
				m.switchTable(def)
				return m.setStatusMessage("Switched to " + def.DisplayTitle())
			}
			return nil
		case keybinds.ActionCancel:
			m.picker = nil
			m.mode = ModeNormal
			return nil
		}
	}

	return m.picker.Update(msg)
}

// openMenu opens the context menu on row idx. A denied open shows an error
// instead.
func (m *Model) openMenu(idx int, ev menu.MouseEvent) tea.Cmd {
	id := m.snap.Rows[idx].ID()
	if !m.table.menu.Open(&ev, id, m.table.def.Scope) {
		return m.setErrorMessage(msgNotAllowed)
	}
	m.cursor = idx
	m.menuIndex = 0
	m.mode = ModeMenu
	return nil
}

// selectMenuItem runs entry i of the context menu
func (m *Model) selectMenuItem(i int) {
	m.mode = ModeNormal
	m.table.menu.Select(m.table.items[i])
	m.syncModals()
}

// runAction starts a row flow in the background. Its dialogs reach the UI
// through the invoker.
func (m *Model) runAction(op string, fn func(ctx context.Context) error) {
	ctx := m.session.Context()
	go func() {
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, modal.ErrClosed) {
			m.logger.Warn("table action failed", "op", op, "error", err)
		}
	}()
}

// allowed applies the menu authorization to keyboard shortcuts
func (m *Model) allowed(id types.ID) bool {
	return m.authorize == nil || m.authorize(id, m.table.def.Scope)
}

func (m *Model) selectedID() (types.ID, bool) {
	idx, ok := m.selectedRow()
	if !ok {
		return "", false
	}
	return m.snap.Rows[idx].ID(), true
}

type refreshFailedMsg struct{ err error }

// refreshCmd re-fetches the current page off the UI goroutine
func (m *Model) refreshCmd() tea.Cmd {
	ctrl := m.table.ctrl
	ctx := m.session.Context()
	return func() tea.Msg {
		if err := ctrl.Refresh(ctx); err != nil && ctx.Err() == nil {
			return refreshFailedMsg{err: err}
		}
		return nil
	}
}

// moveRow moves the selected row by delta positions
func (m *Model) moveRow(delta int) tea.Cmd {
	idx, ok := m.selectedRow()
	if !ok || !m.table.Reorderable() {
		return nil
	}
	target := idx + delta
	if target < 0 || target >= len(m.snap.Rows) {
		return nil
	}
	if err := m.table.coord.OnDrop(idx, target); err != nil {
		return m.setErrorMessage(err.Error())
	}
	m.cursor = target
	m.refresh()
	return nil
}

// drop commits the drag in progress
func (m *Model) drop() tea.Cmd {
	_, hovered, _ := m.table.tracker.State()
	dropped, err := m.table.tracker.Drop()
	if err != nil {
		return m.setErrorMessage(err.Error())
	}
	if dropped {
		m.cursor = hovered
		m.refresh()
	}
	return nil
}

func nextPageSize(current int) int {
	for i, size := range types.PageSizes {
		if size == current {
			return types.PageSizes[(i+1)%len(types.PageSizes)]
		}
	}
	return types.PageSizes[0]
}
