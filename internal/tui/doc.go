/*
Package tui implements the terminal user interface for tablesync.

# Architecture

The TUI follows the Bubble Tea framework's Model-Update-View pattern:
  - Model: the table on screen, the current mode and the dialog state
  - Update: processes key, mouse and wake-up messages
  - View: renders the table or the dialog of the current mode

# Key Components

  - model.go: core state, modes and message handling
  - table_state.go: builds the controller, actions, menu and reorder
    coordinator of a table definition
  - keys.go, mouse.go: input routing through the keybinds registry
  - modals.go: confirm and form dialogs rendered from the modal invoker
  - picker.go, inspect_modal.go: table switcher and record inspector
  - render.go: styles and the main table view

# State Flow

Table controllers, the modal invoker and the context menu change state on
their own goroutines. They never send into the program directly: each
change calls WakeSignal.Notify, which keeps at most one wake-up pending.
The model then re-reads every snapshot on the UI goroutine, so a slow
terminal never blocks a push update.

Row actions (edit, delete, create) run on background goroutines and open
their dialogs through the invoker; the UI answers them with ResolveCall or
CancelCall.
*/
package tui
