package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.tablesync)
	ConfigDir string

	// ConfigFile is the optional YAML settings file
	ConfigFile string

	// TablesFile holds the table definitions
	TablesFile string

	// SessionFile stores the authenticated session
	SessionFile string

	// DatabasePath is the SQLite database used by the mock backend
	DatabasePath string

	// LogFile receives logs while the terminal UI is running
	LogFile string
)

// Initialize sets up the configuration directories and files
// It creates ~/.tablesync/ if it doesn't exist
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	return InitializeAt(filepath.Join(homeDir, ".tablesync"))
}

// InitializeAt is Initialize with an explicit configuration directory
func InitializeAt(dir string) error {
	ConfigDir = dir
	ConfigFile = filepath.Join(ConfigDir, "config.yaml")
	TablesFile = filepath.Join(ConfigDir, "tables.yaml")
	SessionFile = filepath.Join(ConfigDir, "session.json")
	DatabasePath = filepath.Join(ConfigDir, "mock.db")
	LogFile = filepath.Join(ConfigDir, "tablesync.log")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	// Create default table definitions if they don't exist
	if _, err := os.Stat(TablesFile); os.IsNotExist(err) {
		if err := os.WriteFile(TablesFile, []byte(defaultTablesYAML), FilePermissions); err != nil {
			return fmt.Errorf("failed to create tables file: %w", err)
		}
	}

	return nil
}

// GetTablesFilePath returns the tables file path (local or global)
func GetTablesFilePath() string {
	for _, name := range []string{"tables.yaml", "tables.yml", "tables.json", "tables.jsonc"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return TablesFile
}

// ExpandHome expands a leading ~/ to the user's home directory
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}

const defaultTablesYAML = `# Table definitions used by tablesync.
tables:
  - name: department
    title: Departments
    resource: /api/general/department
    resourceKey: departments
    columns: [name]
    editable: [name]
    reorderable: true
    scope: 総務部
  - name: employee
    title: Employees
    resource: /api/general/employee
    resourceKey: employees
    columns: [employee_no, name, department]
    editable: [employee_no, name, department]
    scope: 総務部
  - name: line
    title: Lines
    resource: /api/manufacturing/line
    resourceKey: data
    columns: [name, active]
    editable: [name, active]
    reorderable: true
    scope: 製造部
`
