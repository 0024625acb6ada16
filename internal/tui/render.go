package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/tablesync/internal/channel"
	"github.com/studiowebux/tablesync/internal/keybinds"
)

// Adaptive color definitions for light/dark terminal support
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#00ff00"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ff0000"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#b8860b", Dark: "#ffff00"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#00008b", Dark: "#0000ff"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#00ffff"}
)

// Style definitions
var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	styleSelected = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#d3d3d3", Dark: "#3a3a3a"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"})

	styleDropTarget = lipgloss.NewStyle().
			Underline(true).
			Foreground(colorYellow)

	styleHeader = lipgloss.NewStyle().
			Bold(true)

	styleInput = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorGray)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorYellow)

	styleSubtle = lipgloss.NewStyle().
			Foreground(colorGray)
)

// View renders the current mode
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	switch m.mode {
	case ModeConfirm:
		if m.confirmCall != nil {
			return m.renderConfirm()
		}
	case ModeForm:
		if m.form != nil {
			return m.renderForm()
		}
	case ModePicker:
		if m.picker != nil {
			return m.renderPicker()
		}
	case ModeInspect:
		return m.renderInspect()
	case ModeHelp:
		return m.renderHelp()
	}

	main := m.renderMain()
	if m.mode == ModeMenu && m.table.menu.Visible() {
		main = m.overlayMenu(main)
	}
	return main
}

// renderMain renders title, query line, rows and status bar
func (m *Model) renderMain() string {
	lines := []string{m.renderTitle(), m.renderQueryLine()}

	columns := m.columns()
	widths := m.columnWidths(columns)
	lines = append(lines, "  "+styleHeader.Render(joinCells(columns, widths)))
	lines = append(lines, styleSubtle.Render(strings.Repeat("─", min(m.width, totalWidth(widths)+2))))

	rows := m.visibleRows()
	origin, hovered, dragging := -1, -1, false
	if m.table.tracker != nil {
		origin, hovered, dragging = m.table.tracker.State()
	}

	body := 0
	for i := m.offset; i < len(m.snap.Rows) && body < rows; i++ {
		cells := make([]string, len(columns))
		for c, col := range columns {
			cells[c] = formatValue(m.snap.Rows[i][col])
		}
		line := joinCells(cells, widths)

		switch {
		case dragging && i == origin:
			line = "≡ " + styleWarning.Render(line)
		case dragging && i == hovered:
			line = "▸ " + styleDropTarget.Render(line)
		case i == m.cursor:
			line = styleSelected.Render("› " + line)
		default:
			line = "  " + line
		}
		lines = append(lines, line)
		body++
	}
	if len(m.snap.Rows) == 0 {
		lines = append(lines, styleSubtle.Render("  No rows"))
		body++
	}
	for ; body < rows; body++ {
		lines = append(lines, "")
	}

	lines = append(lines, m.renderStatusBar(), m.renderHints())
	return strings.Join(lines, "\n")
}

func (m *Model) renderTitle() string {
	def := m.table.def
	left := styleTitle.Render(def.DisplayTitle()) + styleSubtle.Render("  "+def.Resource)

	var right string
	switch {
	case m.dialer == nil:
		right = styleSubtle.Render("push off")
	case m.snap.ChannelState == channel.StateOpen:
		right = styleSuccess.Render("● live")
	case m.snap.ChannelState == channel.StateReconnecting:
		right = styleWarning.Render("○ reconnecting...")
	case m.snap.ChannelState == channel.StateConnecting:
		right = styleWarning.Render("○ connecting...")
	default:
		right = styleError.Render("○ offline")
	}
	if m.version != "" {
		right += styleSubtle.Render("  v" + m.version)
	}

	return spread(left, right, m.width)
}

func (m *Model) renderQueryLine() string {
	p := m.snap.Params

	var left string
	if m.mode == ModeSearch {
		left = m.search.View()
	} else if p.SearchText != "" {
		left = "Search: " + styleWarning.Render(p.SearchText)
	} else {
		left = styleSubtle.Render("Search: -")
	}

	pages := max(m.snap.TotalPages, 1)
	right := fmt.Sprintf("Page %d/%d · %s · %d rows", p.Page, pages, formatPageSize(p.PageSize), m.snap.TotalCount)
	if m.snap.Loading {
		right = styleWarning.Render("loading... ") + right
	}
	if m.snap.Err != nil {
		right = styleError.Render("fetch failed ") + right
	}

	return spread(left, right, m.width)
}

// renderStatusBar shows the latest notification
func (m *Model) renderStatusBar() string {
	if m.statusMsg == "" {
		if m.mode == ModeDrag {
			return styleWarning.Render("Dragging: move to the target row and drop")
		}
		return ""
	}
	if m.isError {
		return styleError.Render(m.statusMsg)
	}
	return styleSuccess.Render(m.statusMsg)
}

func (m *Model) renderHints() string {
	k := func(a keybinds.Action) string {
		return m.keyHint(keybinds.ContextTable, a)
	}
	hints := []string{
		"[" + k(keybinds.ActionSearch) + "] search",
		"[" + k(keybinds.ActionPrevPage) + "/" + k(keybinds.ActionNextPage) + "] page",
		"[" + k(keybinds.ActionOpenMenu) + "] menu",
		"[" + k(keybinds.ActionCreate) + "] new",
	}
	if m.table.Reorderable() {
		hints = append(hints, "["+k(keybinds.ActionDragBegin)+"] drag")
	}
	hints = append(hints,
		"["+k(keybinds.ActionSwitchTable)+"] tables",
		"["+k(keybinds.ActionHelp)+"] help",
		"["+k(keybinds.ActionQuit)+"] quit",
	)
	return styleSubtle.Render(truncate(strings.Join(hints, "  "), max(m.width, 10)))
}

// overlayMenu draws the context menu over base, replacing the lines it
// covers
func (m *Model) overlayMenu(base string) string {
	left, top, width, _ := m.menuBounds()

	var items []string
	for i, item := range m.table.items {
		label := item.Label
		if i == m.menuIndex {
			label = styleSelected.Render(label)
		}
		items = append(items, label)
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Padding(0, 1).
		Width(width - 2).
		Render(strings.Join(items, "\n"))

	lines := strings.Split(base, "\n")
	for i, boxLine := range strings.Split(box, "\n") {
		y := top + i
		if y >= len(lines) {
			break
		}
		lines[y] = strings.Repeat(" ", left) + boxLine
	}
	return strings.Join(lines, "\n")
}

// renderHelp lists the row bindings
func (m *Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("Keys") + "\n\n")

	byAction := map[keybinds.Action][]string{}
	for _, binding := range m.keybinds.List(keybinds.ContextTable) {
		byAction[binding.Action] = append(byAction[binding.Action], displayKey(binding.Key))
	}
	actions := make([]string, 0, len(byAction))
	for action := range byAction {
		actions = append(actions, string(action))
	}
	sort.Strings(actions)
	for _, action := range actions {
		keys := byAction[keybinds.Action(action)]
		b.WriteString(fmt.Sprintf("  %-16s %s\n", strings.Join(keys, " "), strings.ReplaceAll(action, "_", " ")))
	}
	b.WriteString("\n" + styleSubtle.Render("Right-click a row for its menu; drag rows with the mouse."))
	b.WriteString("\n" + styleSubtle.Render("Press any key to close"))

	return m.renderModalBox(b.String(), FormModalWidth, colorCyan)
}

// keyHint lists the keys of action for display, spelling out the space key
func (m *Model) keyHint(context keybinds.Context, action keybinds.Action) string {
	var keys []string
	seen := map[string]bool{}
	for _, key := range m.keybinds.Keys(context, action) {
		key = displayKey(key)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return "unbound"
	}
	return strings.Join(keys, "/")
}

func displayKey(key string) string {
	if key == " " {
		return "space"
	}
	return key
}

// columns returns the configured columns, or every field of the first row
func (m *Model) columns() []string {
	if len(m.table.def.Columns) > 0 {
		return append([]string{"id"}, m.table.def.Columns...)
	}
	cols := []string{"id"}
	if len(m.snap.Rows) == 0 {
		return cols
	}
	var rest []string
	for key := range m.snap.Rows[0] {
		if key != "id" && key != "sort" {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func (m *Model) columnWidths(columns []string) []int {
	widths := make([]int, len(columns))
	for i, col := range columns {
		w := max(lipgloss.Width(col), MinColumnWidth)
		for _, row := range m.snap.Rows {
			w = max(w, lipgloss.Width(formatValue(row[col])))
		}
		if col == "id" {
			w = min(w, IDColumnWidth)
		}
		widths[i] = min(w, MaxColumnWidth)
	}
	return widths
}

func totalWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	return total
}

func joinCells(cells []string, widths []int) string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		out[i] = fit(cell, widths[i])
	}
	return strings.Join(out, "  ")
}

// fit pads or truncates s to w display columns. Wide characters count as two.
func fit(s string, w int) string {
	if lipgloss.Width(s) <= w {
		return s + strings.Repeat(" ", w-lipgloss.Width(s))
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if used+rw > w-1 {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	return b.String() + "…" + strings.Repeat(" ", max(w-used-1, 0))
}

// spread places left and right at both ends of a line of width w
func spread(left, right string, w int) string {
	spacing := w - lipgloss.Width(left) - lipgloss.Width(right)
	if spacing < 1 {
		spacing = 1
	}
	return left + strings.Repeat(" ", spacing) + right
}

func formatPageSize(size int) string {
	return fmt.Sprintf("%d per page", size)
}

// wrapText wraps text at word boundaries
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(paragraph) {
			if line != "" && lipgloss.Width(line)+1+lipgloss.Width(word) > width {
				lines = append(lines, line)
				line = word
				continue
			}
			if line != "" {
				line += " "
			}
			line += word
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
