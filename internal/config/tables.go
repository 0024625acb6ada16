package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/tablesync/internal/types"
)

// TableDef describes one live table
type TableDef struct {
	Name        string   `yaml:"name" json:"name"`
	Title       string   `yaml:"title,omitempty" json:"title,omitempty"`
	Resource    string   `yaml:"resource" json:"resource"`
	ResourceKey string   `yaml:"resourceKey,omitempty" json:"resourceKey,omitempty"`
	RecordsPath string   `yaml:"recordsPath,omitempty" json:"recordsPath,omitempty"` // JMESPath; defaults to ResourceKey
	Columns     []string `yaml:"columns,omitempty" json:"columns,omitempty"`
	Editable    []string `yaml:"editable,omitempty" json:"editable,omitempty"`
	Reorderable bool     `yaml:"reorderable,omitempty" json:"reorderable,omitempty"`
	Scope       string   `yaml:"scope,omitempty" json:"scope,omitempty"` // department whose admins may edit
	PageSize    int      `yaml:"pageSize,omitempty" json:"pageSize,omitempty"`
}

// DisplayTitle returns the title, falling back to the name
func (t TableDef) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}

// Key returns the response key holding the records.
// /api/general/department -> department
func (t TableDef) Key() string {
	if t.ResourceKey != "" {
		return t.ResourceKey
	}
	return filepath.Base(strings.TrimRight(t.Resource, "/"))
}

// Path returns the JMESPath expression used to extract records
func (t TableDef) Path() string {
	if t.RecordsPath != "" {
		return t.RecordsPath
	}
	return t.Key()
}

// InitialParams returns the query params the table starts with
func (t TableDef) InitialParams() types.QueryParams {
	p := types.DefaultQueryParams()
	if types.IsValidPageSize(t.PageSize) {
		p.PageSize = t.PageSize
	}
	return p
}

// Tables is the top-level structure of a table definitions file
type Tables struct {
	Tables []TableDef `yaml:"tables" json:"tables"`
}

// Find returns the table with the given name
func (t *Tables) Find(name string) (TableDef, bool) {
	for _, def := range t.Tables {
		if def.Name == name {
			return def, true
		}
	}
	return TableDef{}, false
}

// Names returns the table names in file order
func (t *Tables) Names() []string {
	names := make([]string, len(t.Tables))
	for i, def := range t.Tables {
		names[i] = def.Name
	}
	return names
}

// LoadTables reads table definitions from a YAML, JSON or JSONC file
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}

	var tables Tables
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &tables)
	case ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &tables)
	default:
		err = yaml.Unmarshal(data, &tables)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse tables file %s: %w", path, err)
	}

	if err := tables.validate(); err != nil {
		return nil, fmt.Errorf("invalid tables file %s: %w", path, err)
	}

	return &tables, nil
}

func (t *Tables) validate() error {
	seen := make(map[string]bool)
	for i, def := range t.Tables {
		if def.Name == "" {
			return fmt.Errorf("table %d has no name", i)
		}
		if def.Resource == "" {
			return fmt.Errorf("table %q has no resource", def.Name)
		}
		if seen[def.Name] {
			return fmt.Errorf("duplicate table %q", def.Name)
		}
		seen[def.Name] = true
	}
	return nil
}
