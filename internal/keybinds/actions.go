package keybinds

// Action represents a user action that can be triggered by a keybinding
type Action string

// Context represents the context in which keybindings are active
type Context string

const (
	ContextGlobal  Context = "global"  // Available everywhere
	ContextTable   Context = "table"   // Row list of the active table
	ContextSearch  Context = "search"  // Search input focused
	ContextMenu    Context = "menu"    // Context menu open
	ContextConfirm Context = "confirm" // Confirm dialog
	ContextForm    Context = "form"    // Form dialog
	ContextDrag    Context = "drag"    // Keyboard drag in progress
	ContextPicker  Context = "picker"  // Table picker
	ContextInspect Context = "inspect" // Record inspector
)

const (
	ActionQuit      Action = "quit"
	ActionQuitForce Action = "quit_force"
	ActionHelp      Action = "help"

	// Rows
	ActionNavigateUp   Action = "navigate_up"
	ActionNavigateDown Action = "navigate_down"
	ActionGoToTop      Action = "go_to_top"
	ActionGoToBottom   Action = "go_to_bottom"

	// Paging and query
	ActionNextPage     Action = "next_page"
	ActionPrevPage     Action = "prev_page"
	ActionPageSizeNext Action = "page_size_next"
	ActionSearch       Action = "search"
	ActionClearSearch  Action = "clear_search"
	ActionRefresh      Action = "refresh"

	// Row actions
	ActionOpenMenu Action = "open_menu"
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionInspect  Action = "inspect"
	ActionCopyRow  Action = "copy_row"

	// Reorder
	ActionDragBegin    Action = "drag_begin"
	ActionDragUp       Action = "drag_up"
	ActionDragDown     Action = "drag_down"
	ActionDragDrop     Action = "drag_drop"
	ActionMoveRowUp    Action = "move_row_up"
	ActionMoveRowDown  Action = "move_row_down"
	ActionSwitchTable  Action = "switch_table"

	// Dialogs and inputs
	ActionConfirm   Action = "confirm"
	ActionCancel    Action = "cancel"
	ActionNextField Action = "next_field"
	ActionPrevField Action = "prev_field"
	ActionSubmit    Action = "submit"
)

// AllActions lists every known action
var AllActions = []Action{
	ActionQuit, ActionQuitForce, ActionHelp,
	ActionNavigateUp, ActionNavigateDown, ActionGoToTop, ActionGoToBottom,
	ActionNextPage, ActionPrevPage, ActionPageSizeNext, ActionSearch, ActionClearSearch, ActionRefresh,
	ActionOpenMenu, ActionCreate, ActionEdit, ActionDelete, ActionInspect, ActionCopyRow,
	ActionDragBegin, ActionDragUp, ActionDragDown, ActionDragDrop, ActionMoveRowUp, ActionMoveRowDown,
	ActionSwitchTable,
	ActionConfirm, ActionCancel, ActionNextField, ActionPrevField, ActionSubmit,
}

// AllContexts lists every known context
var AllContexts = []Context{
	ContextGlobal, ContextTable, ContextSearch, ContextMenu, ContextConfirm,
	ContextForm, ContextDrag, ContextPicker, ContextInspect,
}

// IsKnownAction reports whether a is one of AllActions
func IsKnownAction(a Action) bool {
	for _, known := range AllActions {
		if known == a {
			return true
		}
	}
	return false
}

// IsKnownContext reports whether c is one of AllContexts
func IsKnownContext(c Context) bool {
	for _, known := range AllContexts {
		if known == c {
			return true
		}
	}
	return false
}
