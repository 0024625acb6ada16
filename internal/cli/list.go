package cli

import (
	"context"
	"fmt"

	"github.com/studiowebux/tablesync/internal/types"
)

// ListOptions selects the page printed by List
type ListOptions struct {
	Table    string
	Search   string
	Page     int
	PageSize int
	Output   string // table, json or yaml
	Query    string // JMESPath applied to the rows; the result is printed as JSON
}

// List fetches one page of a table and prints it
func List(ctx context.Context, env *Env, opts ListOptions) error {
	def, err := env.Table(opts.Table)
	if err != nil {
		return err
	}

	p := def.InitialParams()
	p.SearchText = opts.Search
	if opts.Page > 0 {
		p.Page = opts.Page
	}
	if opts.PageSize != 0 {
		if !types.IsValidPageSize(opts.PageSize) {
			return fmt.Errorf("invalid page size %d (allowed: %v)", opts.PageSize, types.PageSizes)
		}
		p.PageSize = opts.PageSize
	}

	page, err := env.Client.Fetch(ctx, def.Resource, def.Path(), p)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", def.Name, err)
	}
	env.Logger.Debug("page fetched", "table", def.Name, "rows", len(page.Rows), "total", page.TotalCount)

	if opts.Query != "" {
		result, err := query(page.Rows, opts.Query)
		if err != nil {
			return err
		}
		return writeJSON(env.Out, result)
	}

	format := opts.Output
	if format == "" {
		format = env.Settings.Output
	}
	return writeRows(env.Out, def, pageView{
		Table:      def.Name,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: page.TotalCount,
		TotalPages: types.TotalPages(page.TotalCount, p.PageSize),
		Rows:       page.Rows,
	}, format)
}
