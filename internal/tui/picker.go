package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/keybinds"
)

// PickerState is the table switcher with fuzzy search
type PickerState struct {
	input    textinput.Model
	tables   []config.TableDef
	current  string
	matches  []fuzzy.Match
	selected int
}

// NewPickerState lists every table; current is marked in the view
func NewPickerState(tables *config.Tables, current string) *PickerState {
	input := textinput.New()
	input.Placeholder = "Type a table name..."
	input.Prompt = "> "
	input.CharLimit = 64
	input.Width = PickerModalWidth - 8

	p := &PickerState{input: input, tables: tables.Tables, current: current}
	p.updateMatches()
	return p
}

// Focus focuses the input
func (p *PickerState) Focus() tea.Cmd {
	return p.input.Focus()
}

// Up moves the selection up
func (p *PickerState) Up() {
	if p.selected > 0 {
		p.selected--
	}
}

// Down moves the selection down
func (p *PickerState) Down() {
	if p.selected < len(p.matches)-1 {
		p.selected++
	}
}

// Selected returns the highlighted table
func (p *PickerState) Selected() (config.TableDef, bool) {
	if p.selected >= len(p.matches) {
		return config.TableDef{}, false
	}
	return p.tables[p.matches[p.selected].Index], true
}

// Update edits the query and re-ranks the tables
func (p *PickerState) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.updateMatches()
	p.selected = 0
	return cmd
}

// SetQuery replaces the query
func (p *PickerState) SetQuery(q string) {
	p.input.SetValue(q)
	p.updateMatches()
	p.selected = 0
}

// matchSource exposes "name title" of each table to fuzzy.FindFrom
type matchSource []config.TableDef

func (s matchSource) String(i int) string { return s[i].Name + " " + s[i].DisplayTitle() }
func (s matchSource) Len() int            { return len(s) }

func (p *PickerState) updateMatches() {
	query := strings.TrimSpace(p.input.Value())
	if query == "" {
		p.matches = make([]fuzzy.Match, len(p.tables))
		for i := range p.tables {
			p.matches[i] = fuzzy.Match{Index: i}
		}
		return
	}
	p.matches = fuzzy.FindFrom(query, matchSource(p.tables))
}

// renderPicker renders the table picker
func (m *Model) renderPicker() string {
	p := m.picker
	var b strings.Builder

	b.WriteString(styleTitle.Render("Switch Table") + "\n")
	b.WriteString(p.input.View() + "\n")
	b.WriteString(strings.Repeat("─", PickerModalWidth-6) + "\n")

	for i, match := range p.matches {
		if i >= PickerMaxResults {
			break
		}
		def := p.tables[match.Index]
		line := def.Name + styleSubtle.Render("  "+def.DisplayTitle())
		if def.Name == p.current {
			line += styleSubtle.Render(" (current)")
		}
		if i == p.selected {
			line = styleSelected.Render("> " + def.Name + "  " + def.DisplayTitle())
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(p.matches) == 0 {
		b.WriteString(styleSubtle.Render("  No matches") + "\n")
	}

	footer := styleSubtle.Render("[" + m.keybinds.KeyString(keybinds.ContextPicker, keybinds.ActionConfirm) + "] open  [" +
		m.keybinds.KeyString(keybinds.ContextPicker, keybinds.ActionCancel) + "] cancel")

	return m.renderModalBox(b.String()+"\n"+footer, PickerModalWidth, colorBlue)
}
