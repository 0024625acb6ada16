package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studiowebux/tablesync/internal/channel"
	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/keybinds"
	"github.com/studiowebux/tablesync/internal/menu"
	"github.com/studiowebux/tablesync/internal/modal"
	"github.com/studiowebux/tablesync/internal/notify"
	"github.com/studiowebux/tablesync/internal/table"
)

// Mode represents the current TUI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeMenu
	ModeConfirm
	ModeForm
	ModeDrag
	ModePicker
	ModeInspect
	ModeHelp
)

var (
	// ErrNoTables is returned by New when there is nothing to show
	ErrNoTables = errors.New("no tables defined")
)

// Options configures the terminal UI
type Options struct {
	Backend Backend
	Dialer  channel.Dialer // nil disables push updates
	BaseURL string
	Tables  *config.Tables
	Initial string // table shown first; defaults to the first one

	// Users gates the context menu. Nil allows every open.
	Users            menu.UserSource
	SystemDepartment string

	Keybinds *keybinds.Registry
	Logger   *slog.Logger
	Version  string
}

// Model represents the TUI state
type Model struct {
	// Core state
	backend   Backend
	dialer    channel.Dialer
	baseURL   string
	tables    *config.Tables
	keybinds  *keybinds.Registry
	logger    *slog.Logger
	version   string
	authorize menu.Authorizer

	session  *SessionState
	wake     *WakeSignal
	invoker  *modal.Invoker
	notifier *notify.Chan

	// Active table
	table  *TableState
	snap   table.Snapshot
	cursor int // index into snap.Rows
	offset int // first row on screen
	mode   Mode

	// Pointer drag started by a left press
	mouseDrag bool

	// Query
	search textinput.Model

	// Context menu
	menuIndex int

	// Dialogs rendered from the invoker
	confirmCall *modal.Call
	form        *FormState

	// Table picker
	picker *PickerState

	// Inspect modal
	inspectView viewport.Model
	inspectJSON string

	// UI state
	width     int
	height    int
	statusMsg string
	isError   bool
	toastSeq  int
	quitting  bool
}

// New creates the model and mounts the initial table
func New(ctx context.Context, opts Options) (*Model, error) {
	if opts.Tables == nil || len(opts.Tables.Tables) == 0 {
		return nil, ErrNoTables
	}
	if opts.Backend == nil {
		return nil, errors.New("tui: backend is required")
	}

	def := opts.Tables.Tables[0]
	if opts.Initial != "" {
		found, ok := opts.Tables.Find(opts.Initial)
		if !ok {
			return nil, fmt.Errorf("unknown table %q", opts.Initial)
		}
		def = found
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Keybinds
	if registry == nil {
		registry = keybinds.NewDefaultRegistry()
	}

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search"
	search.CharLimit = 128

	m := &Model{
		backend:     opts.Backend,
		dialer:      opts.Dialer,
		baseURL:     opts.BaseURL,
		tables:      opts.Tables,
		keybinds:    registry,
		logger:      logger,
		version:     opts.Version,
		session:     NewSessionState(ctx),
		wake:        NewWakeSignal(),
		invoker:     modal.NewInvoker(modal.WithLogger(logger)),
		notifier:    notify.NewChan(NotificationBuffer),
		search:      search,
		inspectView: viewport.New(80, 20),
		mode:        ModeNormal,
	}
	if opts.Users != nil {
		m.authorize = menu.AdminAccessFrom(opts.Users, opts.SystemDepartment)
	}

	m.invoker.Watch(func(string) { m.wake.Notify() })
	m.table = m.openTable(def)
	m.refresh()
	return m, nil
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.wake.Wait(m.session.Context()), m.waitForToast())
}

// Cleanup unmounts the table and releases pending dialogs
func (m *Model) Cleanup() {
	if m.quitting {
		return
	}
	m.quitting = true
	m.table.Close(m.logger)
	m.invoker.Close()
	m.session.Cancel()
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyPress(msg))

	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = msg.Width / 3
		m.updateInspectView()

	case stateChangedMsg:
		m.refresh()
		if !m.session.Done() {
			cmds = append(cmds, m.wake.Wait(m.session.Context()))
		}

	case toastMsg:
		cmds = append(cmds, m.showToast(notify.Message(msg)))
		if !m.session.Done() {
			cmds = append(cmds, m.waitForToast())
		}

	case refreshFailedMsg:
		cmds = append(cmds, m.setErrorMessage("Refresh failed: "+msg.err.Error()))

	case clearToastMsg:
		if int(msg) == m.toastSeq {
			m.statusMsg = ""
			m.isError = false
		}
	}

	m.ensureVisible()
	return m, tea.Batch(cmds...)
}

// refresh re-reads the table snapshot and the menu and dialog state
func (m *Model) refresh() {
	m.snap = m.table.ctrl.Snapshot()
	m.clampCursor()
	m.syncMenu()
	m.syncModals()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.snap.Rows) {
		m.cursor = len(m.snap.Rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// syncMenu follows the menu controller: the menu mode exists exactly while
// the menu is visible
func (m *Model) syncMenu() {
	visible := m.table.menu.Visible()
	switch {
	case visible && m.mode != ModeMenu && m.mode != ModeConfirm && m.mode != ModeForm:
		m.mode = ModeMenu
		m.menuIndex = 0
	case !visible && m.mode == ModeMenu:
		m.mode = ModeNormal
	}
}

// syncModals shows the active confirm or form call of the invoker. Confirm
// takes precedence when both slots are busy.
func (m *Model) syncModals() {
	if call, ok := m.invoker.Active(modal.SlotConfirm); ok {
		m.confirmCall = call
		m.mode = ModeConfirm
		return
	}
	m.confirmCall = nil

	if call, ok := m.invoker.Active(modal.SlotForm); ok {
		if m.form == nil || m.form.call.ID != call.ID {
			m.form = NewFormState(call)
		}
		m.mode = ModeForm
		return
	}
	m.form = nil

	if m.mode == ModeConfirm || m.mode == ModeForm {
		m.mode = ModeNormal
	}
}

// selectedRow returns the index of the row under the cursor
func (m *Model) selectedRow() (int, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Rows) {
		return 0, false
	}
	return m.cursor, true
}

// switchTable replaces the table on screen
func (m *Model) switchTable(def config.TableDef) {
	if def.Name == m.table.def.Name {
		return
	}
	m.table.Close(m.logger)
	m.table = m.openTable(def)
	m.cursor = 0
	m.search.SetValue("")
	m.mode = ModeNormal
	m.refresh()
}

type toastMsg notify.Message

type clearToastMsg int

// waitForToast returns a Cmd that waits for the next notification
func (m *Model) waitForToast() tea.Cmd {
	ctx := m.session.Context()
	return func() tea.Msg {
		select {
		case msg := <-m.notifier.C():
			return toastMsg(msg)
		case <-ctx.Done():
			return nil
		}
	}
}

// showToast puts a notification in the status bar until it times out
func (m *Model) showToast(msg notify.Message) tea.Cmd {
	if msg.Level == notify.LevelError {
		return m.setErrorMessage(msg.Text)
	}
	return m.setStatusMessage(msg.Text)
}

// Helper methods for setting messages with timeout
func (m *Model) setStatusMessage(msg string) tea.Cmd {
	m.statusMsg = truncate(msg, StatusMaxLength)
	m.isError = false
	return m.clearToastAfter()
}

func (m *Model) setErrorMessage(msg string) tea.Cmd {
	m.statusMsg = truncate(msg, StatusMaxLength)
	m.isError = true
	return m.clearToastAfter()
}

func (m *Model) clearToastAfter() tea.Cmd {
	m.toastSeq++
	seq := m.toastSeq
	return tea.Tick(ToastTimeout, func(time.Time) tea.Msg {
		return clearToastMsg(seq)
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
