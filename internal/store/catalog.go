package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/bookmerge/internal/catalog"
)

// ReplaceCatalog clears groups, sites and configs and inserts c in one
// transaction. Ids are written explicitly.
func (s *Store) ReplaceCatalog(ctx context.Context, c *catalog.Catalog) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace catalog: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		"DELETE FROM sites",
		"DELETE FROM groups",
		"DELETE FROM configs",
		"DELETE FROM sqlite_sequence WHERE name IN ('groups', 'sites')",
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("replace catalog: %s: %w", stmt, err)
		}
	}

	if err = insertGroups(ctx, tx, c.Groups); err != nil {
		return err
	}
	if err = insertSites(ctx, tx, c.Sites); err != nil {
		return err
	}
	if err = insertConfigs(ctx, tx, c.Configs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("replace catalog: commit: %w", err)
	}
	return nil
}

func insertGroups(ctx context.Context, tx *sql.Tx, groups []catalog.Group) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO groups (id, name, order_num, is_public)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare group insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range groups {
		if _, err := stmt.ExecContext(ctx, g.ID, g.Name, g.OrderNum, g.IsPublic); err != nil {
			return fmt.Errorf("insert group %q: %w", g.Name, err)
		}
	}
	return nil
}

func insertSites(ctx context.Context, tx *sql.Tx, sites []catalog.Site) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sites (id, group_id, name, url, icon, description, notes, order_num, is_public)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare site insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range sites {
		if _, err := stmt.ExecContext(ctx,
			st.ID, st.GroupID, st.Name, st.URL, st.Icon, st.Description, st.Notes, st.OrderNum, st.IsPublic,
		); err != nil {
			return fmt.Errorf("insert site %q: %w", st.URL, err)
		}
	}
	return nil
}

func insertConfigs(ctx context.Context, tx *sql.Tx, configs catalog.Configs) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO configs (key, value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare config insert: %w", err)
	}
	defer stmt.Close()

	for _, kv := range configs {
		if _, err := stmt.ExecContext(ctx, kv.Key, kv.Value); err != nil {
			return fmt.Errorf("insert config %q: %w", kv.Key, err)
		}
	}
	return nil
}

// ReadCatalog reads the database back. Groups and sites are ordered by id,
// configs by insertion order.
//
// Returns empty slices (not nil) for empty tables.
func (s *Store) ReadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	c := &catalog.Catalog{
		Groups:  []catalog.Group{},
		Sites:   []catalog.Site{},
		Configs: catalog.Configs{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, order_num, is_public FROM groups ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	for rows.Next() {
		var g catalog.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.OrderNum, &g.IsPublic); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		c.Groups = append(c.Groups, g)
	}
	if err := closeRows(rows, "groups"); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, group_id, name, url, icon, description, notes, order_num, is_public
		FROM sites ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	for rows.Next() {
		var st catalog.Site
		if err := rows.Scan(&st.ID, &st.GroupID, &st.Name, &st.URL, &st.Icon,
			&st.Description, &st.Notes, &st.OrderNum, &st.IsPublic); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan site: %w", err)
		}
		c.Sites = append(c.Sites, st)
	}
	if err := closeRows(rows, "sites"); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM configs ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query configs: %w", err)
	}
	for rows.Next() {
		var kv catalog.Config
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan config: %w", err)
		}
		c.Configs = append(c.Configs, kv)
	}
	if err := closeRows(rows, "configs"); err != nil {
		return nil, err
	}

	return c, nil
}

func closeRows(rows *sql.Rows, what string) error {
	err := rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("iterate %s: %w", what, err)
	}
	return nil
}

// ApplyScript executes a rendered SQL script in one transaction.
//
// Rendered scripts switch foreign keys off around their deletes. That pragma
// is a no-op inside a transaction, so ApplyScript switches them off itself on
// a pinned connection, checks integrity with foreign_key_check before
// committing and switches them back on for that same connection. A script
// that fails midway leaves the database as it was.
func (s *Store) ApplyScript(ctx context.Context, script string) (err error) {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("apply script: empty script")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("apply script: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("apply script: %w", err)
	}
	defer func() {
		// Use a fresh context so a cancelled run still restores the pragma.
		if _, perr := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); perr != nil && err == nil {
			err = fmt.Errorf("apply script: restore foreign keys: %w", perr)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply script: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("apply script: %w", err)
	}
	if err = foreignKeyCheck(ctx, tx); err != nil {
		return fmt.Errorf("apply script: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("apply script: commit: %w", err)
	}
	return nil
}

// foreignKeyCheck reports the first row PRAGMA foreign_key_check finds.
func foreignKeyCheck(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		var (
			table  string
			rowid  sql.NullInt64
			parent string
			fkid   int
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("foreign key check: %w", err)
		}
		return fmt.Errorf("foreign key violation: %s row %d references missing %s", table, rowid.Int64, parent)
	}
	return rows.Err()
}
