package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// BulkLoader loads one dump file into an existing table. Implementations are
// interchangeable: the CLI loader shells out to the sqlite3 shell, the native
// loader parses rows in-process.
type BulkLoader interface {
	// Name returns a short name for logs and the import ledger ("cli", "native").
	Name() string

	// Load imports the rows of path into table and returns the number of rows added.
	Load(ctx context.Context, db *sql.DB, table *targetTable, path string) (int64, error)
}

// newBulkLoader returns the BulkLoader selected by import.loader.
func newBulkLoader(cfg *Config) (BulkLoader, error) {
	conv := newFieldConverter(cfg.Import)
	switch cfg.Import.Loader {
	case "cli":
		return &cliLoader{
			binary: cfg.Import.SQLiteBinary,
			dbPath: sqliteFilePath(cfg.databasePath()),
			conv:   conv,
			run:    runSQLiteShell,
		}, nil
	case "native":
		return &nativeLoader{conv: conv}, nil
	default:
		return nil, fmt.Errorf("unsupported loader %q (must be cli or native)", cfg.Import.Loader)
	}
}

// countRows returns the number of rows in a table.
func countRows(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+sqliteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// insertStatement builds the parameterized INSERT for a table.
func insertStatement(table *targetTable) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = c.Name
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", sqliteIdent(table.Name), quotedColumnList(cols), placeholders)
}
