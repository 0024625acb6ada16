package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	// DefaultPageSize is used when no page size has been chosen yet
	DefaultPageSize = 10

	// SortSpacing is the gap between consecutive sort keys
	SortSpacing = 1000
)

// PageSizes lists the page sizes a table may use
var PageSizes = []int{5, 10, 20, 50}

// IsValidPageSize reports whether size is one of PageSizes
func IsValidPageSize(size int) bool {
	for _, s := range PageSizes {
		if s == size {
			return true
		}
	}
	return false
}

// QueryParams holds the search and pagination state of one table
type QueryParams struct {
	SearchText string `json:"searchQuery" yaml:"searchQuery"`
	Page       int    `json:"currentPage" yaml:"currentPage"`
	PageSize   int    `json:"itemsPerPage" yaml:"itemsPerPage"`
}

// DefaultQueryParams returns the params a freshly mounted table starts with
func DefaultQueryParams() QueryParams {
	return QueryParams{Page: 1, PageSize: DefaultPageSize}
}

// Normalize returns a copy with page clamped to 1 and an unknown page size
// replaced by DefaultPageSize
func (p QueryParams) Normalize() QueryParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if !IsValidPageSize(p.PageSize) {
		p.PageSize = DefaultPageSize
	}
	return p
}

// TotalPages returns ceil(totalCount / pageSize)
func TotalPages(totalCount, pageSize int) int {
	if pageSize <= 0 || totalCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(pageSize)))
}

// ID is the normalized string form of a record id
type ID string

// IDOf converts a decoded JSON id into an ID.
// Whole float64 values (the default JSON number decoding) render without a
// fractional part so 1 and "1" produce the same ID.
func IDOf(v any) ID {
	switch id := v.(type) {
	case nil:
		return ""
	case ID:
		return id
	case string:
		return ID(id)
	case float64:
		if id == math.Trunc(id) && !math.IsInf(id, 0) {
			return ID(strconv.FormatInt(int64(id), 10))
		}
		return ID(strconv.FormatFloat(id, 'f', -1, 64))
	case int:
		return ID(strconv.Itoa(id))
	case int64:
		return ID(strconv.FormatInt(id, 10))
	case json.Number:
		return ID(id.String())
	default:
		return ID(fmt.Sprint(id))
	}
}

// Record is one row of a table
type Record map[string]any

// ID returns the record id
func (r Record) ID() ID {
	return IDOf(r["id"])
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordSet is the ordered collection of rows displayed by one table
type RecordSet []Record

// Clone returns a copy of the set; records are shallow-copied
func (s RecordSet) Clone() RecordSet {
	if s == nil {
		return nil
	}
	out := make(RecordSet, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out
}

// IndexOf returns the position of the record with the given id, or -1
func (s RecordSet) IndexOf(id ID) int {
	for i, r := range s {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// Find returns the record with the given id
func (s RecordSet) Find(id ID) (Record, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s[i], true
	}
	return nil, false
}

// IDs returns the ids in order
func (s RecordSet) IDs() []ID {
	ids := make([]ID, len(s))
	for i, r := range s {
		ids[i] = r.ID()
	}
	return ids
}

// Validate checks that every record has a unique id
func (s RecordSet) Validate() error {
	seen := make(map[ID]struct{}, len(s))
	for i, r := range s {
		id := r.ID()
		if id == "" {
			return fmt.Errorf("record %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate record id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Page is the result of one paginated REST fetch
type Page struct {
	Rows       RecordSet `json:"rows"`
	TotalCount int       `json:"totalCount"`
}

// SortAssignment pairs a record id with its new sort key
type SortAssignment struct {
	ID      any `json:"id"`
	SortKey int `json:"sort"`
}

// Position is a point in screen coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MenuState describes the context menu of one table
type MenuState struct {
	Visible  bool     `json:"visible"`
	TargetID *ID      `json:"targetId"`
	Position Position `json:"position"`
}

// APIResult is the body returned by mutation endpoints
type APIResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Department is one department membership of the current user
type Department struct {
	Name  string `json:"name" yaml:"name"`
	Admin bool   `json:"admin" yaml:"admin"`
}

// User is the authenticated user as exposed by the auth collaborator
type User struct {
	ID          int          `json:"userId"`
	EmployeeNo  string       `json:"employeeNo"`
	Name        string       `json:"name"`
	Departments []Department `json:"departments,omitempty"`
	ExpiresAt   time.Time    `json:"expirationTime"`
}
