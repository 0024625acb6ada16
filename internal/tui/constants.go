package tui

import "time"

// UI Layout Constants
// These constants define spacing, margins, and dimensions for the TUI layout

const (
	// Modal Dimensions - Standard margins for modal dialogs
	ModalWidthMargin  = 6 // Standard horizontal margin (m.width - 6)
	ModalHeightMargin = 3 // Standard vertical margin (m.height - 3)
	FormModalWidth    = 60
	ConfirmModalWidth = 50
	PickerModalWidth  = 50

	// Viewport chrome inside a modal: border (2) + horizontal padding (4)
	ViewportPadding = 6
	// Title (2) + padding (2) + border (2) + footer (2)
	ModalOverheadLines = 8

	// Table layout: title, query line, column header, separator
	TableRowOffset = 4
	// Status bar and key hints below the table
	TableFooterLines = 2

	// Column widths
	MinColumnWidth = 6
	MaxColumnWidth = 40
	IDColumnWidth  = 6

	// Context menu box: border (2) + horizontal padding (2)
	MenuChromeWidth = 4
	MenuMinWidth    = 14

	// Picker results shown at once
	PickerMaxResults = 8

	// Status messages longer than this are truncated in the footer
	StatusMaxLength = 100
)

const (
	// ToastTimeout clears a notification from the status bar
	ToastTimeout = 4 * time.Second

	// NotificationBuffer is the size of the notifier channel
	NotificationBuffer = 16
)
