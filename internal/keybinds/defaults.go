package keybinds

// NewDefaultRegistry creates a registry with all default keybindings
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	registerGlobalBindings(r)
	registerTableBindings(r)
	registerSearchBindings(r)
	registerMenuBindings(r)
	registerDialogBindings(r)
	registerDragBindings(r)
	registerPickerBindings(r)
	registerInspectBindings(r)

	return r
}

func registerGlobalBindings(r *Registry) {
	r.Register(ContextGlobal, "ctrl+c", ActionQuitForce)
}

func registerTableBindings(r *Registry) {
	r.Register(ContextTable, "q", ActionQuit)
	r.Register(ContextTable, "?", ActionHelp)
	r.RegisterMultiple(ContextTable, []string{"up", "k"}, ActionNavigateUp)
	r.RegisterMultiple(ContextTable, []string{"down", "j"}, ActionNavigateDown)
	r.RegisterMultiple(ContextTable, []string{"gg", "home"}, ActionGoToTop)
	r.RegisterMultiple(ContextTable, []string{"G", "end"}, ActionGoToBottom)
	r.RegisterMultiple(ContextTable, []string{"right", "l", "pgdown"}, ActionNextPage)
	r.RegisterMultiple(ContextTable, []string{"left", "h", "pgup"}, ActionPrevPage)
	r.Register(ContextTable, "s", ActionPageSizeNext)
	r.Register(ContextTable, "/", ActionSearch)
	r.Register(ContextTable, "esc", ActionClearSearch)
	r.RegisterMultiple(ContextTable, []string{"r", "ctrl+r"}, ActionRefresh)
	r.RegisterMultiple(ContextTable, []string{"m", "enter"}, ActionOpenMenu)
	r.Register(ContextTable, "n", ActionCreate)
	r.Register(ContextTable, "e", ActionEdit)
	r.Register(ContextTable, "d", ActionDelete)
	r.Register(ContextTable, "i", ActionInspect)
	r.Register(ContextTable, "y", ActionCopyRow)
	r.RegisterMultiple(ContextTable, []string{" ", "space"}, ActionDragBegin)
	r.Register(ContextTable, "K", ActionMoveRowUp)
	r.Register(ContextTable, "J", ActionMoveRowDown)
	r.Register(ContextTable, "t", ActionSwitchTable)
}

func registerSearchBindings(r *Registry) {
	r.Register(ContextSearch, "enter", ActionSubmit)
	r.Register(ContextSearch, "esc", ActionCancel)
}

func registerMenuBindings(r *Registry) {
	r.RegisterMultiple(ContextMenu, []string{"up", "k"}, ActionNavigateUp)
	r.RegisterMultiple(ContextMenu, []string{"down", "j"}, ActionNavigateDown)
	r.Register(ContextMenu, "enter", ActionConfirm)
	r.RegisterMultiple(ContextMenu, []string{"esc", "q"}, ActionCancel)
}

func registerDialogBindings(r *Registry) {
	r.RegisterMultiple(ContextConfirm, []string{"enter", "y"}, ActionConfirm)
	r.RegisterMultiple(ContextConfirm, []string{"esc", "n"}, ActionCancel)

	r.Register(ContextForm, "tab", ActionNextField)
	r.Register(ContextForm, "shift+tab", ActionPrevField)
	r.RegisterMultiple(ContextForm, []string{"enter", "ctrl+s"}, ActionSubmit)
	r.Register(ContextForm, "esc", ActionCancel)
}

func registerDragBindings(r *Registry) {
	r.RegisterMultiple(ContextDrag, []string{"up", "k"}, ActionDragUp)
	r.RegisterMultiple(ContextDrag, []string{"down", "j"}, ActionDragDown)
	r.RegisterMultiple(ContextDrag, []string{"enter", " ", "space"}, ActionDragDrop)
	r.Register(ContextDrag, "esc", ActionCancel)
}

func registerPickerBindings(r *Registry) {
	r.RegisterMultiple(ContextPicker, []string{"up", "ctrl+p"}, ActionNavigateUp)
	r.RegisterMultiple(ContextPicker, []string{"down", "ctrl+n"}, ActionNavigateDown)
	r.Register(ContextPicker, "enter", ActionConfirm)
	r.Register(ContextPicker, "esc", ActionCancel)
}

func registerInspectBindings(r *Registry) {
	r.RegisterMultiple(ContextInspect, []string{"up", "k"}, ActionNavigateUp)
	r.RegisterMultiple(ContextInspect, []string{"down", "j"}, ActionNavigateDown)
	r.Register(ContextInspect, "y", ActionCopyRow)
	r.RegisterMultiple(ContextInspect, []string{"esc", "q", "i"}, ActionCancel)
}
