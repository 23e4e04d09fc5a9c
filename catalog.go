package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// catalogDDL creates the tables kept alongside the translated schema.
var catalogDDL = []string{
	`CREATE TABLE IF NOT EXISTS mblite_columns (
    table_name  TEXT NOT NULL,
    column_name TEXT NOT NULL,
    position    INTEGER NOT NULL,
    target_type TEXT NOT NULL,
    source_type TEXT NOT NULL,
    epoch       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (table_name, column_name)
)`,
	`CREATE TABLE IF NOT EXISTS mblite_imports (
    table_name  TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL,
    row_count   INTEGER NOT NULL,
    loader      TEXT NOT NULL,
    imported_at INTEGER NOT NULL
)`,
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ensureCatalog creates the catalog tables if they do not exist.
func ensureCatalog(ctx context.Context, db execer) error {
	for _, ddl := range catalogDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create catalog: %w", err)
		}
	}
	return nil
}

// recordColumns stores the translated column metadata of every table,
// replacing what an earlier init recorded for the same tables.
func recordColumns(ctx context.Context, db execer, tables []TranslatedTable) error {
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, `DELETE FROM mblite_columns WHERE table_name = ?`, t.Name); err != nil {
			return fmt.Errorf("catalog %s: %w", t.Name, err)
		}
		for i, col := range t.Columns {
			_, err := db.ExecContext(ctx,
				`INSERT INTO mblite_columns (table_name, column_name, position, target_type, source_type, epoch) VALUES (?, ?, ?, ?, ?, ?)`,
				t.Name, col.Name, i, col.Type.String(), col.SourceType, boolToInt(col.Epoch))
			if err != nil {
				return fmt.Errorf("catalog %s.%s: %w", t.Name, col.Name, err)
			}
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// describeTable reads the column layout of an existing table from
// PRAGMA table_info, marking epoch-encoded columns from the catalog.
func describeTable(ctx context.Context, db *sql.DB, name string) (*targetTable, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqliteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", name, err)
	}
	defer rows.Close()

	t := &targetTable{Name: name}
	for rows.Next() {
		var cid, notnull, pk int
		var colName, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("describe %s: %w", name, err)
		}
		t.Columns = append(t.Columns, targetColumn{Name: colName, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", name, err)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("no such table: %s", name)
	}

	epochCols, err := collectStringRows(ctx, db,
		`SELECT column_name FROM mblite_columns WHERE table_name = ? AND epoch = 1`, name)
	if err != nil {
		// Databases created before the catalog existed have no epoch columns.
		if strings.Contains(err.Error(), "no such table") {
			return t, nil
		}
		return nil, fmt.Errorf("describe %s: %w", name, err)
	}
	for _, c := range epochCols {
		for i := range t.Columns {
			if t.Columns[i].Name == c {
				t.Columns[i].Epoch = true
			}
		}
	}
	return t, nil
}

// importRecord is one row of the import ledger.
type importRecord struct {
	Table      string
	RunID      string
	Rows       int64
	Loader     string
	ImportedAt time.Time
}

// lookupImport returns the ledger entry for a table, if any.
func lookupImport(ctx context.Context, db *sql.DB, table string) (*importRecord, error) {
	rec := &importRecord{Table: table}
	var ts int64
	err := db.QueryRowContext(ctx,
		`SELECT run_id, row_count, loader, imported_at FROM mblite_imports WHERE table_name = ?`, table,
	).Scan(&rec.RunID, &rec.Rows, &rec.Loader, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("import ledger %s: %w", table, err)
	}
	rec.ImportedAt = time.Unix(ts, 0).UTC()
	return rec, nil
}

// recordImport writes the ledger entry for a table. When accumulate is set
// the row count is added to an existing entry instead of replacing it.
func recordImport(ctx context.Context, db execer, rec importRecord, accumulate bool) error {
	rowsExpr := "excluded.row_count"
	if accumulate {
		rowsExpr = "mblite_imports.row_count + excluded.row_count"
	}
	q := `INSERT INTO mblite_imports (table_name, run_id, row_count, loader, imported_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (table_name) DO UPDATE SET run_id = excluded.run_id, row_count = ` + rowsExpr + `,
    loader = excluded.loader, imported_at = excluded.imported_at`
	if _, err := db.ExecContext(ctx, q, rec.Table, rec.RunID, rec.Rows, rec.Loader, rec.ImportedAt.Unix()); err != nil {
		return fmt.Errorf("import ledger %s: %w", rec.Table, err)
	}
	return nil
}

// clearTable deletes every row of a table and forgets its ledger entry.
func clearTable(ctx context.Context, db *sql.DB, table string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqliteIdent(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mblite_imports WHERE table_name = ?`, table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return tx.Commit()
}
