package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jmespath/go-jmespath"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/types"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// pageView is what json and yaml output print
type pageView struct {
	Table      string          `json:"table" yaml:"table"`
	Page       int             `json:"page" yaml:"page"`
	PageSize   int             `json:"pageSize" yaml:"pageSize"`
	TotalCount int             `json:"totalCount" yaml:"totalCount"`
	TotalPages int             `json:"totalPages" yaml:"totalPages"`
	Rows       types.RecordSet `json:"rows" yaml:"rows"`
}

func checkFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML, "":
		return nil
	}
	return fmt.Errorf("unsupported output format %q (use table, json or yaml)", format)
}

// writeRows prints rows in format
func writeRows(w io.Writer, def config.TableDef, view pageView, format string) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, view)

	case FormatYAML:
		data, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err

	case FormatTable, "":
		columns := columnsFor(def, view.Rows)
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle(def.DisplayTitle())

		header := make(table.Row, len(columns))
		for i, col := range columns {
			header[i] = col
		}
		t.AppendHeader(header)

		for _, rec := range view.Rows {
			row := make(table.Row, len(columns))
			for i, col := range columns {
				row[i] = cell(rec[col])
			}
			t.AppendRow(row)
		}
		t.AppendFooter(table.Row{fmt.Sprintf("page %d/%d", view.Page, max(view.TotalPages, 1)), fmt.Sprintf("%d rows", view.TotalCount)})
		t.Render()
		return nil

	default:
		return fmt.Errorf("unsupported output format %q (use table, json or yaml)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// query applies a JMESPath expression to rows
func query(rows types.RecordSet, expr string) (any, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}
	return result, nil
}

// columnsFor returns id plus the configured columns, or every field of the
// first row
func columnsFor(def config.TableDef, rows types.RecordSet) []string {
	if len(def.Columns) > 0 {
		return append([]string{"id"}, def.Columns...)
	}
	cols := []string{"id"}
	if len(rows) == 0 {
		return cols
	}
	var rest []string
	for key := range rows[0] {
		if key != "id" && key != "sort" {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// names lists the name field of rows, falling back to the id
func names(rows types.RecordSet) string {
	out := make([]string, len(rows))
	for i, r := range rows {
		if name, ok := r["name"].(string); ok && name != "" {
			out[i] = name
		} else {
			out[i] = cell(r["id"])
		}
	}
	return strings.Join(out, ", ")
}
