package api

import (
	"github.com/studiowebux/tablesync/internal/notify"
	"github.com/studiowebux/tablesync/internal/types"
)

// FieldHandlers maps a form field name to the function that shows a
// validation message next to it
type FieldHandlers map[string]func(message string)

// Dispatch routes a mutation result. Success shows a toast and runs
// onSuccess. A failure naming a registered field goes to that field's
// handler; anything else becomes an error toast.
func Dispatch(result types.APIResult, fields FieldHandlers, n notify.Notifier, onSuccess func()) {
	if result.Success {
		if n != nil {
			n.Success(result.Message)
		}
		if onSuccess != nil {
			onSuccess()
		}
		return
	}

	if result.Field != "" {
		if handler, ok := fields[result.Field]; ok && handler != nil {
			handler(result.Message)
			return
		}
	}
	if n != nil {
		n.Error(result.Message)
	}
}
