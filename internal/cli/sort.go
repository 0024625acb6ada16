package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/studiowebux/tablesync/internal/notify"
	"github.com/studiowebux/tablesync/internal/reorder"
	"github.com/studiowebux/tablesync/internal/table"
	"github.com/studiowebux/tablesync/internal/types"
)

// SortOptions moves one row. Positions are 1-based within the page.
type SortOptions struct {
	Table    string
	Search   string
	PageSize int
	From     int
	To       int
}

// Sort moves a row the way a drag and drop in the UI does and waits for the
// new order to be saved
func Sort(ctx context.Context, env *Env, opts SortOptions) error {
	def, err := env.Table(opts.Table)
	if err != nil {
		return err
	}
	if !def.Reorderable {
		return fmt.Errorf("table %s is not reorderable", def.Name)
	}

	p := def.InitialParams()
	p.SearchText = opts.Search
	if opts.PageSize != 0 {
		p.PageSize = opts.PageSize
	}

	ctrl := table.New(env.Client.Fetcher(def.Resource, def.Path()), "",
		table.WithLogger(env.Logger),
		table.WithParams(p))
	ctrl.Mount(ctx)
	defer ctrl.Unmount()
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if snap.Err != nil {
		return fmt.Errorf("failed to fetch %s: %w", def.Name, snap.Err)
	}
	n := len(snap.Rows)
	if opts.From < 1 || opts.From > n || opts.To < 1 || opts.To > n {
		return fmt.Errorf("positions must be between 1 and %d", n)
	}
	if opts.From == opts.To {
		return errors.New("nothing to move")
	}

	var saveErr error
	persist := reorder.PersistVia(env.Client, def.Resource)
	coord := reorder.New(ctrl, func(ctx context.Context, assignments []types.SortAssignment) error {
		saveErr = persist(ctx, assignments)
		return saveErr
	},
		reorder.WithLogger(env.Logger),
		reorder.WithNotifier(notify.Log{Logger: env.Logger}),
		reorder.WithContext(ctx))

	if err := coord.OnDrop(opts.From-1, opts.To-1); err != nil {
		return err
	}
	coord.Wait()
	if saveErr != nil {
		return fmt.Errorf("failed to save order: %w", saveErr)
	}
	fmt.Fprintf(env.Out, "%s: %s\n", def.DisplayTitle(), names(ctrl.Rows()))
	return nil
}
