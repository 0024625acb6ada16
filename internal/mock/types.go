package mock

import (
	"path"
	"time"

	"github.com/studiowebux/tablesync/internal/types"
)

// Config represents the mock backend configuration
type Config struct {
	Port      int        `json:"port" yaml:"port"`                       // Server port (default: 8000)
	Host      string     `json:"host" yaml:"host"`                       // Server host (default: localhost)
	Token     string     `json:"token,omitempty" yaml:"token,omitempty"` // Static bearer token; empty and no users = open
	TokenTTL  Duration   `json:"tokenTTL,omitempty" yaml:"tokenTTL,omitempty"`
	Logging   bool       `json:"logging" yaml:"logging"`     // Keep a request log
	Resources []Resource `json:"resources" yaml:"resources"` // Served tables
	Users     []User     `json:"users,omitempty" yaml:"users,omitempty"`
}

// Resource is one REST collection with its push endpoint
type Resource struct {
	Path         string         `json:"path" yaml:"path"`                                     // e.g. /api/general/department
	Key          string         `json:"key,omitempty" yaml:"key,omitempty"`                   // response key, default: last path segment + "s"
	Unique       string         `json:"unique,omitempty" yaml:"unique,omitempty"`             // field that must be unique, e.g. name
	Required     []string       `json:"required,omitempty" yaml:"required,omitempty"`         // fields that must be non-empty
	SearchFields []string       `json:"searchFields,omitempty" yaml:"searchFields,omitempty"` // fields matched by searchQuery
	Records      []types.Record `json:"records,omitempty" yaml:"records,omitempty"`           // seed rows, in display order
}

// Name is the last path segment, used for the websocket route
func (r Resource) Name() string {
	return path.Base(r.Path)
}

// ResponseKey is the key the record list is returned under
func (r Resource) ResponseKey() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Name() + "s"
}

// User is a seeded login account
type User struct {
	EmployeeNo  string             `json:"employeeNo" yaml:"employeeNo"`
	Password    string             `json:"password" yaml:"password"`
	Name        string             `json:"name" yaml:"name"`
	Departments []types.Department `json:"departments,omitempty" yaml:"departments,omitempty"`
}

// Duration is a time.Duration read from strings like "30m"
type Duration time.Duration

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp   time.Time     `json:"timestamp"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	MatchedRule string        `json:"matchedRule"`
	Status      int           `json:"status"`
	Duration    time.Duration `json:"duration"`
}
