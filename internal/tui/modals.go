package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/tablesync/internal/keybinds"
	"github.com/studiowebux/tablesync/internal/modal"
	"github.com/studiowebux/tablesync/internal/types"
)

// FormState is the editor for the active form call
type FormState struct {
	call   *modal.Call
	props  modal.FormProps
	inputs []textinput.Model
	focus  int
}

// NewFormState builds one input per field of call's FormProps
func NewFormState(call *modal.Call) *FormState {
	props, _ := call.Props.(modal.FormProps)
	f := &FormState{call: call, props: props}

	for _, field := range props.Fields {
		input := textinput.New()
		input.Prompt = ""
		input.CharLimit = 256
		input.Width = FormModalWidth - 8
		input.SetValue(formatValue(props.Values[field]))
		f.inputs = append(f.inputs, input)
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

// NextField focuses the next input, wrapping around
func (f *FormState) NextField() tea.Cmd {
	return f.setFocus(f.focus + 1)
}

// PrevField focuses the previous input, wrapping around
func (f *FormState) PrevField() tea.Cmd {
	return f.setFocus(f.focus - 1)
}

func (f *FormState) setFocus(i int) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	f.inputs[f.focus].Blur()
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

// Update forwards msg to the focused input
func (f *FormState) Update(msg tea.Msg) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// Record returns the original values with the edited fields applied.
// Numbers and booleans keep their type when the text still parses.
func (f *FormState) Record() types.Record {
	rec := f.props.Values.Clone()
	if rec == nil {
		rec = types.Record{}
	}
	for i, field := range f.props.Fields {
		rec[field] = parseValue(f.props.Values[field], f.inputs[i].Value())
	}
	return rec
}

// SetValue replaces the text of field, for tests and prefill
func (f *FormState) SetValue(field, value string) bool {
	for i, name := range f.props.Fields {
		if name == field {
			f.inputs[i].SetValue(value)
			return true
		}
	}
	return false
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func parseValue(original any, text string) any {
	switch original.(type) {
	case float64:
		if n, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return n
		}
	case bool:
		if b, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
			return b
		}
	}
	return text
}

// renderForm renders the form modal with validation messages under their
// fields
func (m *Model) renderForm() string {
	f := m.form
	var b strings.Builder

	for i, field := range f.props.Fields {
		label := field
		if i == f.focus {
			label = styleTitle.Render(label)
		}
		b.WriteString(label + "\n")
		b.WriteString(styleInput.Render(f.inputs[i].View()) + "\n")
		if msg, ok := f.props.Errors[field]; ok && msg != "" {
			b.WriteString(styleError.Render("  "+msg) + "\n")
		}
	}
	if len(f.props.Fields) == 0 {
		b.WriteString(styleSubtle.Render("No editable fields") + "\n")
	}

	footer := styleSubtle.Render(fmt.Sprintf("[%s] next  [%s] save  [%s] cancel",
		m.keybinds.KeyString(keybinds.ContextForm, keybinds.ActionNextField),
		m.keybinds.KeyString(keybinds.ContextForm, keybinds.ActionSubmit),
		m.keybinds.KeyString(keybinds.ContextForm, keybinds.ActionCancel)))

	title := f.props.Title
	if queued := m.invoker.Queued(modal.SlotForm); queued > 0 {
		title += styleSubtle.Render(fmt.Sprintf("  (+%d waiting)", queued))
	}

	return m.renderModalBox(styleTitle.Render(title)+"\n\n"+b.String()+"\n"+footer, FormModalWidth, colorCyan)
}

// renderConfirm renders the yes/no dialog of the active confirm call
func (m *Model) renderConfirm() string {
	props, _ := m.confirmCall.Props.(modal.ConfirmProps)
	label := props.ConfirmLabel
	if label == "" {
		label = "OK"
	}

	footer := styleSubtle.Render(fmt.Sprintf("[%s] %s  [%s] cancel",
		m.keybinds.KeyString(keybinds.ContextConfirm, keybinds.ActionConfirm), strings.ToLower(label),
		m.keybinds.KeyString(keybinds.ContextConfirm, keybinds.ActionCancel)))

	content := styleTitle.Render(props.Title) + "\n\n" +
		wrapText(props.Message, ConfirmModalWidth-4) + "\n\n" + footer

	return m.renderModalBox(content, ConfirmModalWidth, colorRed)
}

// renderModalBox centers a bordered box on screen
func (m *Model) renderModalBox(content string, width int, border lipgloss.AdaptiveColor) string {
	if width > m.width-ModalWidthMargin && m.width > ModalWidthMargin {
		width = m.width - ModalWidthMargin
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(width).
		Padding(1, 2).
		Render(content)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
