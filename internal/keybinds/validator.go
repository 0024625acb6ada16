package keybinds

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a keybinding validation error
type ValidationError struct {
	Type    string // "conflict", "invalid", "warning"
	Context Context
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s in context '%s': %s", e.Type, e.Key, e.Context, e.Message)
}

// ValidationResult contains all validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// String returns a human-readable summary of validation results
func (r *ValidationResult) String() string {
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		return "No issues found"
	}

	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("Errors (%d):\n", len(r.Errors)))
		for _, err := range r.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("Warnings (%d):\n", len(r.Warnings)))
		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn.Error()))
		}
	}
	return sb.String()
}

// reservedKeys are keys that must keep their action everywhere
var reservedKeys = map[string]Action{
	"ctrl+c": ActionQuitForce,
}

// requiredActions must stay reachable in their context or the UI locks up
var requiredActions = map[Context][]Action{
	ContextConfirm: {ActionConfirm, ActionCancel},
	ContextForm:    {ActionSubmit, ActionCancel},
	ContextDrag:    {ActionDragDrop, ActionCancel},
	ContextMenu:    {ActionCancel},
}

// Validate checks a registry for rebound reserved keys, unreachable dialog
// actions and context bindings that shadow global ones
func Validate(registry *Registry) *ValidationResult {
	result := &ValidationResult{}

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	contexts := make([]Context, 0, len(registry.bindings))
	for c := range registry.bindings {
		contexts = append(contexts, c)
	}
	sort.Slice(contexts, func(i, j int) bool { return contexts[i] < contexts[j] })

	for _, context := range contexts {
		for key, action := range registry.bindings[context] {
			if want, ok := reservedKeys[key]; ok && action != want {
				result.Errors = append(result.Errors, ValidationError{
					Type: "conflict", Context: context, Key: key,
					Message: fmt.Sprintf("reserved key rebound to %s", action),
				})
			}
			if context == ContextGlobal {
				continue
			}
			if global, ok := registry.bindings[ContextGlobal][key]; ok && global != action {
				result.Warnings = append(result.Warnings, ValidationError{
					Type: "warning", Context: context, Key: key,
					Message: fmt.Sprintf("shadows global binding (%s -> %s)", global, action),
				})
			}
		}
	}

	for context, actions := range requiredActions {
		for _, action := range actions {
			if !boundLocked(registry, context, action) {
				result.Errors = append(result.Errors, ValidationError{
					Type: "invalid", Context: context,
					Message: fmt.Sprintf("no key bound to %s", action),
				})
			}
		}
	}

	return result
}

func boundLocked(registry *Registry, context Context, action Action) bool {
	for _, ctx := range []Context{context, ContextGlobal} {
		for _, act := range registry.bindings[ctx] {
			if act == action {
				return true
			}
		}
	}
	return false
}

// ValidateKey checks if a key string is valid
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	for _, mod := range []string{"ctrl+", "alt+", "shift+", "super+"} {
		if key == mod {
			return fmt.Errorf("modifier without key: %s", key)
		}
	}
	return nil
}
