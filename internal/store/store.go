package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// connPragmas are set on the single connection right after opening.
var connPragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations run in order on top of schema.sql. Entry i moves the database
// from user_version i to i+1.
var migrations = []struct {
	name string
	stmt string
}{
	{
		// Databases written by other tools may hold duplicates; the index
		// creation then fails and the database is left untouched.
		name: "unique group names and site urls",
		stmt: `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_name_unique ON groups(name);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_sites_url_unique ON sites(url);
		`,
	},
}

// Store is a SQLite navigation database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the navigation database at path and brings its
// schema up to date.
//
// Existing groups/sites/configs tables are reused, so a database created by
// the navigation site itself can be opened too.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open navigation database %s: %w", path, err)
	}

	// Pragmas are per connection and ApplyScript toggles foreign_keys,
	// so everything must run on the same one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open navigation database %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return err
	}
	for _, p := range connPragmas {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return s.migrate()
}

// migrate applies every migration past the stored user_version.
func (s *Store) migrate() error {
	version, err := s.pragma("user_version")
	if err != nil {
		return err
	}
	var from int
	if _, err := fmt.Sscan(version, &from); err != nil {
		return fmt.Errorf("user_version %q: %w", version, err)
	}

	for v := from; v < len(migrations); v++ {
		m := migrations[v]
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", v+1, m.name, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("migration %d: set user_version: %w", v+1, err)
		}
	}
	return nil
}

// pragma reads the current value of a pragma as text.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Count returns the number of rows in the groups, sites and configs tables.
func (s *Store) Count(ctx context.Context) (groups, sites, configs int, err error) {
	for _, c := range []struct {
		table string
		dst   *int
	}{
		{"groups", &groups},
		{"sites", &sites},
		{"configs", &configs},
	} {
		if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return 0, 0, 0, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return groups, sites, configs, nil
}
