package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads a mock configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns the built-in seed: departments, employees and
// production lines plus two accounts
func DefaultConfig() *Config {
	var config Config
	if err := yaml.Unmarshal([]byte(defaultSeedYAML), &config); err != nil {
		panic(fmt.Sprintf("mock: invalid built-in seed: %v", err))
	}
	return &config
}

// validateConfig validates the mock configuration
func validateConfig(config *Config) error {
	if len(config.Resources) == 0 {
		return fmt.Errorf("no resources defined")
	}

	names := make(map[string]bool, len(config.Resources))
	for i, res := range config.Resources {
		if res.Path == "" || !strings.HasPrefix(res.Path, "/") {
			return fmt.Errorf("resource %d: path must start with /", i)
		}
		if names[res.Name()] {
			return fmt.Errorf("resource %d: duplicate push endpoint /ws/%s", i, res.Name())
		}
		names[res.Name()] = true
	}

	for i, u := range config.Users {
		if u.EmployeeNo == "" || u.Password == "" {
			return fmt.Errorf("user %d: employeeNo and password are required", i)
		}
	}

	return nil
}

// SaveConfig saves a mock configuration to a file
func SaveConfig(config *Config, path string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// UnmarshalYAML reads "30m" style durations
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML writes the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON reads "30m" style durations
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

const defaultSeedYAML = `
port: 8000
host: localhost
logging: true
tokenTTL: 30m
users:
  - employeeNo: "0001"
    password: admin
    name: 管理 太郎
    departments:
      - name: 管理者
        admin: true
  - employeeNo: "1001"
    password: line
    name: 製造 花子
    departments:
      - name: 製造部
        admin: true
resources:
  - path: /api/general/department
    key: departments
    unique: name
    required: [name]
    searchFields: [name]
    records:
      - {id: 1, name: 総務部}
      - {id: 2, name: 製造部}
      - {id: 3, name: 品質保証部}
      - {id: 4, name: 管理者}
  - path: /api/general/employee
    key: employees
    unique: employee_no
    required: [employee_no, name]
    searchFields: [employee_no, name, department]
    records:
      - {id: 1, employee_no: "0001", name: 管理 太郎, department: 管理者}
      - {id: 2, employee_no: "1001", name: 製造 花子, department: 製造部}
      - {id: 3, employee_no: "1002", name: 品質 次郎, department: 品質保証部}
  - path: /api/manufacturing/line
    key: data
    unique: name
    required: [name]
    searchFields: [name]
    records:
      - {id: 1, name: Aライン, active: true}
      - {id: 2, name: Bライン, active: true}
      - {id: 3, name: Cライン, active: false}
`
