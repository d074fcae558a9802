package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/portal/*.sql migrations/api/*.sql
var migrationFS embed.FS

// Schema selects which set of migrations a database receives.
type Schema string

const (
	// PortalSchema holds browser state and the audit log of the web portal.
	PortalSchema Schema = "portal"
	// APISchema holds the principals of the loyalty auth API.
	APISchema Schema = "api"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Open opens a SQLite database with WAL mode, foreign keys, and busy timeout.
// PRE: path is a file path or MemoryPath
// POST: Returns a pinged connection pool
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryPath {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return db, nil
}

// Migrate applies all pending migrations of the schema and returns the resulting version.
// PRE: db is a valid database connection
// POST: Schema is at the latest version
func Migrate(db *sql.DB, schema Schema) (uint, error) {
	src, err := iofs.New(migrationFS, "migrations/"+string(schema))
	if err != nil {
		return 0, fmt.Errorf("migration source %s: %w", schema, err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return 0, fmt.Errorf("migration driver: %w", err)
	}
	// m is not closed: closing it would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate %s up: %w", schema, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema %s is dirty at version %d", schema, version)
	}
	return version, nil
}

// OpenAndMigrate opens the database at path and brings the schema up to date.
func OpenAndMigrate(path string, schema Schema) (*sql.DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(db, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
