package pagestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		root_component_id TEXT NOT NULL,
		locale TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS components (
		page_id TEXT NOT NULL,
		id TEXT NOT NULL,
		type_id TEXT NOT NULL,
		data TEXT,
		PRIMARY KEY (page_id, id),
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS regions (
		page_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		region_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		inclusions TEXT,
		exclusions TEXT,
		PRIMARY KEY (page_id, component_id, region_id),
		FOREIGN KEY (page_id, component_id) REFERENCES components(page_id, id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS region_children (
		page_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		region_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (page_id, child_id),
		FOREIGN KEY (page_id, component_id, region_id) REFERENCES regions(page_id, component_id, region_id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS component_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		grp TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS labels (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_region_children_region ON region_children(page_id, component_id, region_id, position)`,
}

func applyPragmas(ctx context.Context, db *sql.DB, readOnly bool) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", int(defaultBusyTimeout.Milliseconds())),
		"PRAGMA foreign_keys = ON",
	}

	if !readOnly {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA temp_store = MEMORY",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("pagestore: apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pagestore: begin schema transaction: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("pagestore: apply schema statement %q: %w", abbreviate(stmt), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pagestore: commit schema transaction: %w", err)
	}

	return nil
}

func abbreviate(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 60 {
		return stmt[:57] + "..."
	}
	return stmt
}
