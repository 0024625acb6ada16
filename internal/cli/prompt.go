package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().MarginLeft(2).Bold(true)
	labelStyle = lipgloss.NewStyle().PaddingLeft(2)
	focusStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("170"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1).MarginLeft(2)
)

// errPromptCancelled is returned when the user leaves the prompt
var errPromptCancelled = errors.New("login cancelled")

// credentialsModel asks for an employee number and a password
type credentialsModel struct {
	inputs    []textinput.Model
	labels    []string
	focus     int
	done      bool
	cancelled bool
}

func newCredentialsModel(employeeNo string) credentialsModel {
	user := textinput.New()
	user.Placeholder = "0001"
	user.CharLimit = 32
	user.SetValue(employeeNo)

	pass := textinput.New()
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 128

	m := credentialsModel{
		inputs: []textinput.Model{user, pass},
		labels: []string{"Employee No", "Password"},
	}
	if employeeNo != "" {
		m.focus = 1
	}
	m.inputs[m.focus].Focus()
	return m
}

func (m credentialsModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m credentialsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "enter":
			if m.focus == len(m.inputs)-1 {
				m.done = true
				return m, tea.Quit
			}
			return m, m.setFocus(m.focus + 1)

		case "tab", "down":
			return m, m.setFocus((m.focus + 1) % len(m.inputs))

		case "shift+tab", "up":
			return m, m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *credentialsModel) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[m.focus].Focus()
}

func (m credentialsModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Log in") + "\n\n")
	for i, input := range m.inputs {
		style := labelStyle
		if i == m.focus {
			style = focusStyle
		}
		b.WriteString(style.Render(m.labels[i]+": ") + input.View() + "\n")
	}
	b.WriteString(helpStyle.Render("tab: next field • enter: submit • esc: cancel"))
	return b.String()
}

// promptCredentials runs the login prompt on the terminal
func promptCredentials(employeeNo string) (string, string, error) {
	p := tea.NewProgram(newCredentialsModel(employeeNo))
	final, err := p.Run()
	if err != nil {
		return "", "", fmt.Errorf("error running prompt: %w", err)
	}

	result := final.(credentialsModel)
	if result.cancelled {
		return "", "", errPromptCancelled
	}
	return strings.TrimSpace(result.inputs[0].Value()), result.inputs[1].Value(), nil
}

// isInteractive checks if stdin is a terminal (not piped)
func isInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
