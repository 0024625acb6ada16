package mock

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/tablesync/internal/migrations"
	"github.com/studiowebux/tablesync/internal/types"
)

var (
	// ErrNotFound is returned for unknown record ids
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCredentials is returned by Authenticate
	ErrInvalidCredentials = errors.New("invalid employee number or password")
	// ErrInvalidToken is returned for unknown or expired tokens
	ErrInvalidToken = errors.New("invalid token")
)

// Store keeps resources and accounts in sqlite
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at dbPath. ":memory:" is allowed.
func OpenStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open mock database: %w", err)
	}
	// one connection so :memory: is shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mock database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Seed inserts the seed rows of every resource that has none yet, and the
// accounts that do not exist
func (s *Store) Seed(ctx context.Context, cfg *Config) error {
	for _, res := range cfg.Resources {
		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE resource = ?", res.Path).Scan(&count); err != nil {
			return fmt.Errorf("failed to count %s: %w", res.Path, err)
		}
		if count > 0 {
			continue
		}
		for _, rec := range res.Records {
			if _, err := s.Create(ctx, res.Path, rec); err != nil {
				return fmt.Errorf("failed to seed %s: %w", res.Path, err)
			}
		}
	}

	for _, u := range cfg.Users {
		deps, err := json.Marshal(u.Departments)
		if err != nil {
			return fmt.Errorf("failed to marshal departments: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO users (employee_no, password, name, departments) VALUES (?, ?, ?, ?)",
			u.EmployeeNo, u.Password, u.Name, string(deps))
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.EmployeeNo, err)
		}
	}

	return nil
}

// All returns every record of resource in sort order
func (s *Store) All(ctx context.Context, resource string) (types.RecordSet, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sort, data FROM records WHERE resource = ? ORDER BY sort, id", resource)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", resource, err)
	}
	defer rows.Close()

	out := types.RecordSet{}
	for rows.Next() {
		var id int64
		var sort int
		var data string
		if err := rows.Scan(&id, &sort, &data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		rec["id"] = float64(id)
		rec["sort"] = float64(sort)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// List returns one page of resource filtered by params.SearchText over
// searchFields, plus the filtered total
func (s *Store) List(ctx context.Context, resource string, searchFields []string, params types.QueryParams) (types.RecordSet, int, error) {
	all, err := s.All(ctx, resource)
	if err != nil {
		return nil, 0, err
	}
	params = params.Normalize()

	filtered := all
	if params.SearchText != "" {
		filtered = types.RecordSet{}
		for _, rec := range all {
			if matches(rec, searchFields, params.SearchText) {
				filtered = append(filtered, rec)
			}
		}
	}

	total := len(filtered)
	start := (params.Page - 1) * params.PageSize
	if start >= total {
		return types.RecordSet{}, total, nil
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

func matches(rec types.Record, fields []string, search string) bool {
	for _, f := range fields {
		if v, ok := rec[f]; ok && strings.Contains(fmt.Sprint(v), search) {
			return true
		}
	}
	return false
}

// Create inserts rec at the end of resource. An "id" in rec is used when set.
func (s *Store) Create(ctx context.Context, resource string, rec types.Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var maxID, maxSort int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0), COALESCE(MAX(sort), 0) FROM records WHERE resource = ?", resource).
		Scan(&maxID, &maxSort)
	if err != nil {
		return 0, fmt.Errorf("failed to read next id: %w", err)
	}

	id := maxID + 1
	if given := types.IDOf(rec["id"]); given != "" {
		var parsed int64
		if _, err := fmt.Sscan(string(given), &parsed); err == nil && parsed > 0 {
			id = parsed
		}
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO records (resource, id, sort, data) VALUES (?, ?, ?, ?)",
		resource, id, maxSort+types.SortSpacing, data)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	return id, tx.Commit()
}

// Update replaces the fields of record id
func (s *Store) Update(ctx context.Context, resource string, id int64, rec types.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE records SET data = ?, updated_at = ? WHERE resource = ? AND id = ?",
		data, time.Now().UTC(), resource, id)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return affected(res)
}

// Delete removes record id
func (s *Store) Delete(ctx context.Context, resource string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE resource = ? AND id = ?", resource, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return affected(res)
}

// Sort stores the sort keys of assignments in one transaction. Unknown ids
// fail the whole batch.
func (s *Store) Sort(ctx context.Context, resource string, assignments []types.SortAssignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range assignments {
		var id int64
		if _, err := fmt.Sscan(string(types.IDOf(a.ID)), &id); err != nil {
			return fmt.Errorf("invalid id %v: %w", a.ID, err)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE records SET sort = ? WHERE resource = ? AND id = ?", a.SortKey, resource, id)
		if err != nil {
			return fmt.Errorf("failed to update sort: %w", err)
		}
		if err := affected(res); err != nil {
			return fmt.Errorf("%w: %d", err, id)
		}
	}
	return tx.Commit()
}

// Exists reports whether another record of resource has field == value
func (s *Store) Exists(ctx context.Context, resource, field string, value any, exceptID int64) (bool, error) {
	all, err := s.All(ctx, resource)
	if err != nil {
		return false, err
	}
	want := fmt.Sprint(value)
	for _, rec := range all {
		if string(rec.ID()) == fmt.Sprint(exceptID) {
			continue
		}
		if v, ok := rec[field]; ok && fmt.Sprint(v) == want {
			return true, nil
		}
	}
	return false, nil
}

// Authenticate checks an account's password
func (s *Store) Authenticate(ctx context.Context, employeeNo, password string) (types.User, error) {
	var user types.User
	var stored, deps string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, employee_no, name, password, departments FROM users WHERE employee_no = ?", employeeNo).
		Scan(&user.ID, &user.EmployeeNo, &user.Name, &stored, &deps)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && stored != password) {
		return types.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return types.User{}, fmt.Errorf("failed to read user: %w", err)
	}
	if err := json.Unmarshal([]byte(deps), &user.Departments); err != nil {
		return types.User{}, fmt.Errorf("failed to parse departments: %w", err)
	}
	return user, nil
}

// IssueToken creates a bearer token for user valid for ttl
func (s *Store) IssueToken(ctx context.Context, userID int, ttl time.Duration) (string, time.Time, error) {
	token := uuid.NewString()
	expires := time.Now().UTC().Add(ttl)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tokens (token, user_id, expires_at) VALUES (?, ?, ?)", token, userID, expires)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store token: %w", err)
	}
	return token, expires, nil
}

// UserForToken resolves an unexpired token
func (s *Store) UserForToken(ctx context.Context, token string) (types.User, error) {
	var user types.User
	var deps string
	var expires time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.employee_no, u.name, u.departments, t.expires_at
		FROM tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token = ?`, token).
		Scan(&user.ID, &user.EmployeeNo, &user.Name, &deps, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, ErrInvalidToken
	}
	if err != nil {
		return types.User{}, fmt.Errorf("failed to read token: %w", err)
	}
	if time.Now().After(expires) {
		return types.User{}, ErrInvalidToken
	}
	if err := json.Unmarshal([]byte(deps), &user.Departments); err != nil {
		return types.User{}, fmt.Errorf("failed to parse departments: %w", err)
	}
	user.ExpiresAt = expires
	return user, nil
}

// RevokeToken deletes token
func (s *Store) RevokeToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE token = ?", token)
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// encodeRecord stores the payload without the columns the store owns
func encodeRecord(rec types.Record) (string, error) {
	payload := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == "id" || k == "sort" {
			continue
		}
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	return string(data), nil
}

func decodeRecord(data string) (types.Record, error) {
	rec := types.Record{}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	return rec, nil
}
