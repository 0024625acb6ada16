package tui

import (
	"bytes"
	"encoding/json"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/tablesync/internal/keybinds"
	"github.com/studiowebux/tablesync/internal/types"
)

// openInspect shows the record with id as highlighted JSON
func (m *Model) openInspect(id types.ID) {
	row, ok := m.snap.Rows.Find(id)
	if !ok {
		m.notifier.Error("Row is no longer displayed")
		return
	}
	data, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		m.notifier.Error(err.Error())
		return
	}

	m.inspectJSON = string(data)
	m.inspectView.SetContent(highlightJSON(m.inspectJSON))
	m.inspectView.GotoTop()
	m.updateInspectView()
	m.mode = ModeInspect
}

// copyRow copies the record with id to the clipboard as JSON
func (m *Model) copyRow(id types.ID) {
	row, ok := m.snap.Rows.Find(id)
	if !ok {
		m.notifier.Error("Row is no longer displayed")
		return
	}
	data, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		m.notifier.Error(err.Error())
		return
	}
	m.copyText(string(data))
}

func (m *Model) copyText(text string) {
	if err := clipboard.WriteAll(text); err != nil {
		m.logger.Warn("clipboard write failed", "error", err)
		m.notifier.Error("Failed to copy: " + err.Error())
		return
	}
	m.notifier.Success("Copied to clipboard")
}

// highlightJSON colors src for a 256-color terminal. Highlighting failures
// return src unchanged.
func highlightJSON(src string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, src, "json", "terminal256", "monokai"); err != nil {
		return src
	}
	return buf.String()
}

func (m *Model) updateInspectView() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.inspectView.Width = m.width - ModalWidthMargin - ViewportPadding
	m.inspectView.Height = m.height - ModalHeightMargin - ModalOverheadLines
}

// renderInspect renders the record inspection modal
func (m *Model) renderInspect() string {
	modalWidth := m.width - ModalWidthMargin
	modalHeight := m.height - ModalHeightMargin

	footer := styleSubtle.Render(
		m.keybinds.KeyString(keybinds.ContextInspect, keybinds.ActionNavigateDown) + " scroll  " +
			"[" + m.keybinds.KeyString(keybinds.ContextInspect, keybinds.ActionCopyRow) + "] copy  " +
			"[" + m.keybinds.KeyString(keybinds.ContextInspect, keybinds.ActionCancel) + "] close")

	inspectView := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBlue).
		Width(modalWidth).
		Height(modalHeight).
		Padding(1, 2).
		Render(styleTitle.Render("Inspect Record") + "\n\n" + m.inspectView.View() + "\n\n" + footer)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, inspectView)
}
