package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/studiowebux/tablesync/internal/api"
	"github.com/studiowebux/tablesync/internal/menu"
	"github.com/studiowebux/tablesync/internal/modal"
	"github.com/studiowebux/tablesync/internal/notify"
	"github.com/studiowebux/tablesync/internal/types"
)

// Component ids rendered by the UI
const (
	ComponentEditForm      = "edit-form"
	ComponentCreateForm    = "create-form"
	ComponentConfirmDelete = "confirm-delete"
)

var (
	// ErrRowNotFound is returned when a menu target is no longer displayed
	ErrRowNotFound = errors.New("row not found")
)

// Mutator performs record mutations
type Mutator interface {
	Create(ctx context.Context, resource string, rec types.Record) (types.APIResult, error)
	Update(ctx context.Context, resource string, id types.ID, rec types.Record) (types.APIResult, error)
	Delete(ctx context.Context, resource string, id types.ID) (types.APIResult, error)
}

// Invoker opens dialogs and waits for them
type Invoker interface {
	Invoke(ctx context.Context, slot, componentID string, props any) (modal.Result, error)
}

// Actions wires a table to its edit, delete and create flows
type Actions struct {
	Table    *Controller
	Resource string
	Title    string
	Fields   []string // editable fields, also the fields validation errors may name
	API      Mutator
	Modals   Invoker
	Notifier notify.Notifier
	Logger   *slog.Logger
}

func (a *Actions) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// Edit opens the form for the row with id and saves it. A validation error
// on a known field reopens the form with the message next to that field.
func (a *Actions) Edit(ctx context.Context, id types.ID) error {
	row, ok := a.Table.Rows().Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return a.form(ctx, ComponentEditForm, "Edit "+a.Title, row.Clone(), func(rec types.Record) (types.APIResult, error) {
		return a.API.Update(ctx, a.Resource, id, rec)
	})
}

// Create opens an empty form and posts the new record
func (a *Actions) Create(ctx context.Context) error {
	values := make(types.Record, len(a.Fields))
	for _, f := range a.Fields {
		values[f] = ""
	}
	return a.form(ctx, ComponentCreateForm, "New "+a.Title, values, func(rec types.Record) (types.APIResult, error) {
		return a.API.Create(ctx, a.Resource, rec)
	})
}

// Delete asks for confirmation and deletes the row with id
func (a *Actions) Delete(ctx context.Context, id types.ID) error {
	row, ok := a.Table.Rows().Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}

	res, err := a.Modals.Invoke(ctx, modal.SlotConfirm, ComponentConfirmDelete, modal.ConfirmProps{
		Title:        "Delete " + a.Title,
		Message:      fmt.Sprintf("Delete %s?", describe(row)),
		ConfirmLabel: "Delete",
	})
	if err != nil {
		return err
	}
	if !res.Confirmed {
		return nil
	}

	result, err := a.API.Delete(ctx, a.Resource, id)
	if err != nil {
		a.transportError("delete", err)
		return err
	}
	api.Dispatch(result, nil, a.Notifier, a.refresh(ctx))
	return nil
}

func (a *Actions) form(ctx context.Context, component, title string, values types.Record, save func(types.Record) (types.APIResult, error)) error {
	errs := map[string]string{}
	for {
		res, err := a.Modals.Invoke(ctx, modal.SlotForm, component, modal.FormProps{
			Title:  title,
			Fields: a.Fields,
			Values: values,
			Errors: errs,
		})
		if err != nil {
			return err
		}
		if !res.Confirmed {
			return nil
		}

		rec, ok := res.Payload.(types.Record)
		if !ok {
			return fmt.Errorf("unexpected form payload %T", res.Payload)
		}
		values = rec

		result, err := save(rec)
		if err != nil {
			a.transportError("save", err)
			return err
		}

		errs = map[string]string{}
		fields := make(api.FieldHandlers, len(a.Fields))
		for _, f := range a.Fields {
			field := f
			fields[field] = func(message string) { errs[field] = message }
		}
		api.Dispatch(result, fields, a.Notifier, a.refresh(ctx))
		if len(errs) == 0 {
			return nil
		}
	}
}

func (a *Actions) refresh(ctx context.Context) func() {
	return func() {
		if err := a.Table.Refresh(ctx); err != nil {
			a.logger().Warn("refresh after mutation failed", "resource", a.Resource, "error", err)
		}
	}
}

func (a *Actions) transportError(op string, err error) {
	a.logger().Error("mutation failed", "op", op, "resource", a.Resource, "error", err)
	if a.Notifier != nil {
		a.Notifier.Error(err.Error())
	}
}

// MenuItems returns the context menu entries of the table. Each entry runs
// its flow in a goroutine so the caller's event loop can keep rendering the
// dialogs it opens.
func (a *Actions) MenuItems(ctx context.Context) []menu.Action {
	run := func(op string, fn func(context.Context, types.ID) error) func(types.ID) {
		return func(id types.ID) {
			go func() {
				if err := fn(ctx, id); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, modal.ErrClosed) {
					a.logger().Warn("menu action failed", "op", op, "id", id, "error", err)
				}
			}()
		}
	}
	return []menu.Action{
		{Key: "edit", Label: "Edit", Run: run("edit", a.Edit)},
		{Key: "delete", Label: "Delete", Run: run("delete", a.Delete)},
	}
}

func describe(row types.Record) string {
	if name, ok := row["name"].(string); ok && name != "" {
		return fmt.Sprintf("%q", name)
	}
	return "record " + string(row.ID())
}
