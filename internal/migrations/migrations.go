package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add sort ordering index on records",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_records_resource_sort ON records(resource, sort, id);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_records_resource_sort;
		`,
	},
	{
		Version: 2,
		Name:    "Add issued token expiry index",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens(expires_at);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_tokens_expires_at;
		`,
	},
}

// InitSchema creates the tables of the mock backend database.
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	-- Records of every resource, payload kept as JSON
	CREATE TABLE IF NOT EXISTS records (
		resource TEXT NOT NULL,
		id INTEGER NOT NULL,
		sort INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (resource, id)
	);

	-- Login accounts
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_no TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		name TEXT NOT NULL,
		departments TEXT NOT NULL DEFAULT '[]'
	);

	-- Issued bearer tokens
	CREATE TABLE IF NOT EXISTS tokens (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
