package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studiowebux/tablesync/internal/channel"
	"github.com/studiowebux/tablesync/internal/types"
)

// WatchOptions selects the query watched by Watch
type WatchOptions struct {
	Table    string
	Search   string
	PageSize int
	Output   string
}

// Watch prints the current page of a table and then every replacement the
// server pushes, until ctx is done
func Watch(ctx context.Context, env *Env, opts WatchOptions) error {
	def, err := env.Table(opts.Table)
	if err != nil {
		return err
	}

	p := def.InitialParams()
	p.SearchText = opts.Search
	if opts.PageSize != 0 {
		if !types.IsValidPageSize(opts.PageSize) {
			return fmt.Errorf("invalid page size %d (allowed: %v)", opts.PageSize, types.PageSizes)
		}
		p.PageSize = opts.PageSize
	}

	format := opts.Output
	if format == "" {
		format = env.Settings.Output
	}
	if err := checkFormat(format); err != nil {
		return err
	}

	page, err := env.Client.Fetch(ctx, def.Resource, def.Path(), p)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", def.Name, err)
	}

	var mu sync.Mutex
	show := func(rows types.RecordSet, total int) {
		mu.Lock()
		defer mu.Unlock()
		if format == FormatTable || format == "" {
			fmt.Fprintf(env.Out, "\n%s\n", time.Now().Format(time.TimeOnly))
		}
		view := pageView{
			Table:      def.Name,
			Page:       p.Page,
			PageSize:   p.PageSize,
			TotalCount: total,
			TotalPages: types.TotalPages(total, p.PageSize),
			Rows:       rows,
		}
		if err := writeRows(env.Out, def, view, format); err != nil {
			env.Logger.Error("failed to print rows", "error", err)
		}
	}
	show(page.Rows, page.TotalCount)

	endpoint, err := channel.EndpointURL(env.Settings.BaseURL, def.Resource)
	if err != nil {
		return err
	}

	// pushes carry rows only; the count is the last one fetched
	chOpts := append(env.channelOptions(),
		channel.WithTokenSource(env.token),
		channel.WithOnState(func(s channel.State) {
			env.Logger.Info("push channel", "table", def.Name, "state", s)
		}),
		channel.WithOnClose(func(err error) {
			env.Logger.Warn("push channel closed", "table", def.Name, "error", err)
		}),
	)
	ch, err := channel.Open(ctx, endpoint, env.token(), func(rows types.RecordSet) {
		show(rows, page.TotalCount)
	}, chOpts...)
	if err != nil {
		return err
	}
	ch.Send(p)
	env.Logger.Debug("watching", "table", def.Name, "endpoint", ch.Endpoint())

	<-ctx.Done()
	return ch.Close()
}
