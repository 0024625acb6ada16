package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "TABLESYNC_"

// Settings is the merged runtime configuration
type Settings struct {
	BaseURL          string          `koanf:"base_url"`
	Token            string          `koanf:"token"`
	LogLevel         string          `koanf:"log_level"`
	Output           string          `koanf:"output"`
	Table            string          `koanf:"table"`
	TablesFile       string          `koanf:"tables_file"`
	SystemDepartment string          `koanf:"system_department"`
	RequestTimeout   time.Duration   `koanf:"request_timeout"`
	Reconnect        ReconnectConfig `koanf:"reconnect"`
	Mock             MockConfig      `koanf:"mock"`
}

// ReconnectConfig controls push-channel reconnection
type ReconnectConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Initial     time.Duration `koanf:"initial"`
	Max         time.Duration `koanf:"max"`
	MaxAttempts int           `koanf:"max_attempts"`
}

// MockConfig controls the local mock backend
type MockConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Seed     string `koanf:"seed"`
	Token    string `koanf:"token"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"base_url":               "http://localhost:8000",
		"log_level":              "info",
		"output":                 "table",
		"table":                  "department",
		"tables_file":            GetTablesFilePath(),
		"system_department":      "管理者",
		"request_timeout":        "30s",
		"reconnect.enabled":      true,
		"reconnect.initial":      "500ms",
		"reconnect.max":          "30s",
		"reconnect.max_attempts": 10,
		"mock.host":              "localhost",
		"mock.port":              8000,
		"mock.database":          DatabasePath,
	}
}

// Load merges configuration sources.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = ConfigFile
	}
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
			}
		}
	}

	// TABLESYNC_MOCK__PORT -> mock.port, TABLESYNC_BASE_URL -> base_url
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "log":
				key = "log_level"
			case "tables":
				key = "tables_file"
			case "port":
				key = "mock.port"
			case "host":
				key = "mock.host"
			case "seed":
				key = "mock.seed"
			case "db":
				key = "mock.database"
			case "require_token":
				key = "mock.token"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	expanded, err := ExpandHome(s.TablesFile)
	if err != nil {
		return nil, err
	}
	s.TablesFile = expanded

	return &s, nil
}
