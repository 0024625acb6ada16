package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestInitializeAt_CreatesLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".tablesync")
	if err := InitializeAt(dir); err != nil {
		t.Fatalf("InitializeAt failed: %v", err)
	}

	if SessionFile != filepath.Join(dir, "session.json") {
		t.Errorf("Unexpected session file: %s", SessionFile)
	}
	if DatabasePath != filepath.Join(dir, "mock.db") {
		t.Errorf("Unexpected database path: %s", DatabasePath)
	}

	tables, err := LoadTables(TablesFile)
	if err != nil {
		t.Fatalf("Default tables file did not load: %v", err)
	}
	if _, ok := tables.Find("department"); !ok {
		t.Errorf("Expected default department table, got %v", tables.Names())
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	if err := InitializeAt(dir); err != nil {
		t.Fatalf("InitializeAt failed: %v", err)
	}

	cfgFile := filepath.Join(dir, "config.yaml")
	content := "base_url: http://file:9000\nlog_level: debug\nreconnect:\n  max_attempts: 3\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TABLESYNC_LOG_LEVEL", "warn")
	t.Setenv("TABLESYNC_MOCK__PORT", "9100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "", "")
	flags.String("output", "table", "")
	if err := flags.Parse([]string{"--base-url", "http://flag:7000"}); err != nil {
		t.Fatal(err)
	}

	s, err := Load(cfgFile, flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.BaseURL != "http://flag:7000" {
		t.Errorf("Flag should win: got %q", s.BaseURL)
	}
	if s.LogLevel != "warn" {
		t.Errorf("Env should beat file: got %q", s.LogLevel)
	}
	if s.Mock.Port != 9100 {
		t.Errorf("Expected nested env override, got %d", s.Mock.Port)
	}
	if s.Reconnect.MaxAttempts != 3 {
		t.Errorf("Expected file value, got %d", s.Reconnect.MaxAttempts)
	}
	if s.Output != "table" {
		t.Errorf("Unchanged flag must not override default, got %q", s.Output)
	}
	if s.Reconnect.Initial != 500*time.Millisecond {
		t.Errorf("Expected default initial backoff, got %v", s.Reconnect.Initial)
	}
	if s.SystemDepartment != "管理者" {
		t.Errorf("Unexpected system department default: %q", s.SystemDepartment)
	}
}

func TestLoadTables_Formats(t *testing.T) {
	dir := t.TempDir()

	jsoncPath := filepath.Join(dir, "tables.jsonc")
	jsoncData := `{
  // departments
  "tables": [
    {"name": "department", "resource": "/api/general/department", "pageSize": 20,},
  ],
}`
	if err := os.WriteFile(jsoncPath, []byte(jsoncData), 0644); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadTables(jsoncPath)
	if err != nil {
		t.Fatalf("LoadTables(jsonc) failed: %v", err)
	}
	def, ok := tables.Find("department")
	if !ok {
		t.Fatal("department not found")
	}
	if def.Key() != "department" || def.Path() != "department" {
		t.Errorf("Unexpected key/path: %q %q", def.Key(), def.Path())
	}
	if def.InitialParams().PageSize != 20 {
		t.Errorf("Expected page size 20, got %d", def.InitialParams().PageSize)
	}
	if def.DisplayTitle() != "department" {
		t.Errorf("Expected title fallback, got %q", def.DisplayTitle())
	}

	dupPath := filepath.Join(dir, "dup.yaml")
	dup := "tables:\n  - {name: a, resource: /a}\n  - {name: a, resource: /b}\n"
	if err := os.WriteFile(dupPath, []byte(dup), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTables(dupPath); err == nil {
		t.Error("Expected duplicate table error")
	}
}
