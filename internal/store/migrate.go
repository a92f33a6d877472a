package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded versioned migrations and then reconciles the
// turns table with the current column set: any column the running binary
// knows about that is absent from an existing table is added in place. The
// second step keeps databases created by older versions usable without a
// rebuild.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrations init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations up: %w", err)
	}
	return s.ensureColumns()
}

// turnColumnDefs lists every column of the turns table with its ALTER TABLE
// definition, in schema order.
var turnColumnDefs = []struct{ name, def string }{
	{"created_at", "TIMESTAMP"},
	{"interaction_id", "TEXT"},
	{"conversation_id", "TEXT"},
	{"turn_index", "INTEGER"},
	{"original_prompt", "TEXT"},
	{"mode", "TEXT"},
	{"intent", "TEXT"},
	{"topic", "TEXT"},
	{"rewritten_prompt", "TEXT"},
	{"chosen_version", "TEXT"},
	{"final_prompt", "TEXT"},
	{"final_answer", "TEXT"},
	{"persona_prompt", "TEXT"},
}

func (s *Store) ensureColumns() error {
	rows, err := s.DB.Query(`PRAGMA table_info(turns)`)
	if err != nil {
		return fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dfltValue  interface{}
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &primaryKey); err != nil {
			return fmt.Errorf("table info scan: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range turnColumnDefs {
		if existing[col.name] {
			continue
		}
		if _, err := s.DB.Exec(fmt.Sprintf(`ALTER TABLE turns ADD COLUMN %s %s`, col.name, col.def)); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
		s.logger.Printf("added missing column %s", col.name)
	}
	return nil
}
