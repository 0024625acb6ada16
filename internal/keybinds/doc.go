/*
Package keybinds maps terminal keys to table actions per UI context.

Contexts are checked specific first, then global: a key bound in the form
context overrides the same key in the global context. Two-key sequences
such as "gg" are matched through Registry.MatchSequence.

Defaults live in defaults.go. Users override them with keybinds.yaml in the
config directory:

	bindings:
	  table:
	    x: delete
	    d: ""        # unbind
	  drag:
	    ctrl+j: drag_down

Validate reports rebound reserved keys, dialogs that can no longer be
confirmed or cancelled, and bindings that shadow global ones.
*/
package keybinds
