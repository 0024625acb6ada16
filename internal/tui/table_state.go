package tui

import (
	"context"
	"log/slog"

	"github.com/studiowebux/tablesync/internal/channel"
	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/menu"
	"github.com/studiowebux/tablesync/internal/reorder"
	"github.com/studiowebux/tablesync/internal/table"
	"github.com/studiowebux/tablesync/internal/types"
)

// Backend is the REST side the UI needs. *api.Client implements it.
type Backend interface {
	Fetch(ctx context.Context, resource, recordsPath string, p types.QueryParams) (types.Page, error)
	table.Mutator
	reorder.SortClient
}

// TableState is the table currently on screen together with its menu and
// reorder machinery
type TableState struct {
	def     config.TableDef
	ctrl    *table.Controller
	actions *table.Actions
	menu    *menu.Controller
	items   []menu.Action
	coord   *reorder.Coordinator
	tracker *reorder.Tracker

	unsubscribe func()
}

// openTable builds and mounts the table described by def
func (m *Model) openTable(def config.TableDef) *TableState {
	ctx := m.session.Context()
	logger := m.logger.With("table", def.Name)

	fetch := func(ctx context.Context, p types.QueryParams) (types.Page, error) {
		return m.backend.Fetch(ctx, def.Resource, def.Path(), p)
	}

	opts := []table.Option{
		table.WithLogger(logger),
		table.WithParams(def.InitialParams()),
	}
	endpoint := ""
	if m.dialer != nil {
		url, err := channel.EndpointURL(m.baseURL, def.Resource)
		if err != nil {
			logger.Warn("push disabled", "error", err)
		} else {
			endpoint = url
			opts = append(opts, table.WithDialer(m.dialer))
		}
	}

	ts := &TableState{def: def}
	ts.ctrl = table.New(fetch, endpoint, opts...)
	ts.actions = &table.Actions{
		Table:    ts.ctrl,
		Resource: def.Resource,
		Title:    def.DisplayTitle(),
		Fields:   def.Editable,
		API:      m.backend,
		Modals:   m.invoker,
		Notifier: m.notifier,
		Logger:   logger,
	}
	ts.menu = menu.New(m.authorize,
		menu.WithLogger(logger),
		menu.WithOnChange(func(types.MenuState) { m.wake.Notify() }),
	)
	ts.items = append(ts.actions.MenuItems(ctx),
		menu.Action{Key: "inspect", Label: "Inspect", Run: m.openInspect},
		menu.Action{Key: "copy", Label: "Copy JSON", Run: m.copyRow},
	)

	if def.Reorderable {
		ts.coord = reorder.New(ts.ctrl, reorder.PersistVia(m.backend, def.Resource),
			reorder.WithLogger(logger),
			reorder.WithNotifier(m.notifier),
			reorder.WithContext(ctx),
		)
		ts.tracker = reorder.NewTracker(ts.coord.OnDrop)
	}

	ts.unsubscribe = ts.ctrl.Subscribe(func(table.Snapshot) { m.wake.Notify() })
	ts.ctrl.Mount(ctx)
	logger.Debug("table opened", "resource", def.Resource, "endpoint", endpoint)
	return ts
}

// Reorderable reports whether rows can be dragged
func (ts *TableState) Reorderable() bool {
	return ts.coord != nil
}

// Close unmounts the table. In-flight saves keep running in the background.
func (ts *TableState) Close(logger *slog.Logger) {
	if ts.tracker != nil {
		ts.tracker.Abort()
	}
	ts.menu.Hide()
	ts.unsubscribe()
	ts.ctrl.Unmount()
	logger.Debug("table closed", "table", ts.def.Name)
}
