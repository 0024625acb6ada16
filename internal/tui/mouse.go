package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studiowebux/tablesync/internal/menu"
)

// handleMouse implements the pointer gestures: right-click opens the context
// menu, a left-click outside it closes it, and press-move-release on a row
// of a reorderable table drags it.
func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch m.mode {
	case ModeMenu:
		return m.handleMenuMouse(msg)
	case ModeNormal, ModeDrag:
	default:
		return nil
	}

	row, onRow := m.rowAt(msg.Y)

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		if m.cursor > 0 {
			m.cursor--
		}

	case msg.Button == tea.MouseButtonWheelDown:
		if m.cursor < len(m.snap.Rows)-1 {
			m.cursor++
		}

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonRight:
		if onRow {
			return m.openMenu(row, menu.MouseEvent{X: msg.X, Y: msg.Y})
		}

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if !onRow {
			return nil
		}
		m.cursor = row
		if m.table.Reorderable() {
			m.table.tracker.Begin(row)
			m.mouseDrag = true
		}

	case msg.Action == tea.MouseActionMotion:
		if !m.mouseDrag || !onRow {
			return nil
		}
		m.table.tracker.Hover(row)
		m.mode = ModeDrag

	case msg.Action == tea.MouseActionRelease:
		if !m.mouseDrag {
			return nil
		}
		m.mouseDrag = false
		m.mode = ModeNormal
		if onRow {
			m.table.tracker.Hover(row)
		}
		return m.drop()
	}

	return nil
}

// handleMenuMouse selects an entry on click, closes the menu on a click
// elsewhere and moves it on another right-click
func (m *Model) handleMenuMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action != tea.MouseActionPress {
		return nil
	}

	switch msg.Button {
	case tea.MouseButtonLeft:
		item, inside := m.menuItemAt(msg.X, msg.Y)
		if inside {
			if item >= 0 {
				m.selectMenuItem(item)
			}
			return nil
		}
		m.table.menu.OutsideClick(false)
		m.mode = ModeNormal

	case tea.MouseButtonRight:
		if row, onRow := m.rowAt(msg.Y); onRow {
			return m.openMenu(row, menu.MouseEvent{X: msg.X, Y: msg.Y})
		}
		m.table.menu.Hide()
		m.mode = ModeNormal
	}
	return nil
}

// rowAt maps a screen line to a row index
func (m *Model) rowAt(y int) (int, bool) {
	line := y - TableRowOffset
	if line < 0 || line >= m.visibleRows() {
		return 0, false
	}
	idx := m.offset + line
	if idx >= len(m.snap.Rows) {
		return 0, false
	}
	return idx, true
}

// menuItemAt hit-tests the menu box. inside is true anywhere on the box,
// item is -1 on its border.
func (m *Model) menuItemAt(x, y int) (item int, inside bool) {
	left, top, width, height := m.menuBounds()
	if x < left || x >= left+width || y < top || y >= top+height {
		return -1, false
	}
	item = y - top - 1
	if item < 0 || item >= len(m.table.items) {
		return -1, true
	}
	return item, true
}

// menuBounds returns the box of the visible menu, kept on screen
func (m *Model) menuBounds() (left, top, width, height int) {
	state := m.table.menu.State()

	width = MenuMinWidth
	for _, item := range m.table.items {
		if w := len([]rune(item.Label)) + MenuChromeWidth; w > width {
			width = w
		}
	}
	height = len(m.table.items) + 2

	left, top = state.Position.X, state.Position.Y
	if m.width > 0 && left+width > m.width {
		left = max(m.width-width, 0)
	}
	if m.height > 0 && top+height > m.height {
		top = max(m.height-height, 0)
	}
	return left, top, width, height
}

// visibleRows is the number of table rows that fit on screen
func (m *Model) visibleRows() int {
	if m.height == 0 {
		return len(m.snap.Rows)
	}
	return max(m.height-TableRowOffset-TableFooterLines, 1)
}

// ensureVisible scrolls so the cursor row is on screen
func (m *Model) ensureVisible() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset > max(len(m.snap.Rows)-rows, 0) {
		m.offset = max(len(m.snap.Rows)-rows, 0)
	}
	if m.offset < 0 {
		m.offset = 0
	}
}
