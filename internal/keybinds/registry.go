package keybinds

import (
	"sort"
	"strings"
	"sync"
)

// Binding represents a keybinding mapping
type Binding struct {
	Key     string
	Action  Action
	Context Context
}

// Registry manages keybinding mappings and matching
type Registry struct {
	mu sync.RWMutex

	// bindings maps context -> key -> action
	bindings map[Context]map[string]Action

	// pending holds the first key of an unfinished sequence like "gg"
	pending map[Context]string
}

// NewRegistry creates a new keybinding registry
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[Context]map[string]Action),
		pending:  make(map[Context]string),
	}
}

// Register adds a keybinding to the registry
func (r *Registry) Register(context Context, key string, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bindings[context] == nil {
		r.bindings[context] = make(map[string]Action)
	}
	r.bindings[context][key] = action
}

// RegisterMultiple registers multiple keybindings for the same action
func (r *Registry) RegisterMultiple(context Context, keys []string, action Action) {
	for _, key := range keys {
		r.Register(context, key, action)
	}
}

// Unregister removes key from context
func (r *Registry) Unregister(context Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings[context], key)
}

// Match looks key up in context, then in the global context
func (r *Registry) Match(context Context, key string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matchLocked(context, key)
}

func (r *Registry) matchLocked(context Context, key string) (Action, bool) {
	if action, ok := r.bindings[context][key]; ok {
		return action, true
	}
	if action, ok := r.bindings[ContextGlobal][key]; ok {
		return action, true
	}
	return "", false
}

// MatchSequence handles multi-key sequences such as "gg". It returns the
// action, whether it matched, and whether key started a sequence that needs
// another key.
func (r *Registry) MatchSequence(context Context, key string) (Action, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.pending[context]; ok {
		delete(r.pending, context)
		if action, ok := r.matchLocked(context, prev+key); ok {
			return action, true, false
		}
		// fall through: treat key on its own
	}

	if r.startsSequenceLocked(context, key) {
		r.pending[context] = key
		return "", false, true
	}

	action, ok := r.matchLocked(context, key)
	return action, ok, false
}

// startsSequenceLocked reports whether a longer plain-key binding begins
// with key. Modifier combos never start sequences.
func (r *Registry) startsSequenceLocked(context Context, key string) bool {
	if strings.Contains(key, "+") {
		return false
	}
	for _, ctx := range []Context{context, ContextGlobal} {
		for bound := range r.bindings[ctx] {
			if len(bound) > len(key) && !strings.Contains(bound, "+") && strings.HasPrefix(bound, key) && isSequence(bound) {
				return true
			}
		}
	}
	return false
}

// isSequence reports whether bound is a run of single-character keys,
// e.g. "gg", as opposed to a named key like "enter"
func isSequence(bound string) bool {
	return len(bound) == 2 && bound[0] == bound[1]
}

// Keys returns the keys bound to action in context, falling back to global.
// The result is sorted.
func (r *Registry) Keys(context Context, action Action) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	for _, ctx := range []Context{context, ContextGlobal} {
		for key, act := range r.bindings[ctx] {
			if act == action {
				keys = append(keys, key)
			}
		}
		if len(keys) > 0 {
			break
		}
	}
	sort.Strings(keys)
	return keys
}

// KeyString returns a human-readable string of keys bound to an action
func (r *Registry) KeyString(context Context, action Action) string {
	keys := r.Keys(context, action)
	if len(keys) == 0 {
		return "unbound"
	}
	return strings.Join(keys, "/")
}

// List returns the bindings of context without the global ones, sorted by key
func (r *Registry) List(context Context) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := make([]Binding, 0, len(r.bindings[context]))
	for key, action := range r.bindings[context] {
		bindings = append(bindings, Binding{Key: key, Action: action, Context: context})
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Key < bindings[j].Key })
	return bindings
}

// Clone creates a deep copy of the registry
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := NewRegistry()
	for context, contextBindings := range r.bindings {
		for key, action := range contextBindings {
			clone.Register(context, key, action)
		}
	}
	return clone
}
