package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5"
)

// exportTables writes one COPY text-format dump file per base table of a
// live PostgreSQL schema into dir, in the layout the import command reads.
func exportTables(ctx context.Context, dsn, schema, dir string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)

	tables, err := listSourceTables(ctx, conn, schema)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("schema %q has no tables", schema)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	log.Printf("exporting %d tables from schema '%s'...", len(tables), schema)
	for _, t := range tables {
		n, err := exportTable(ctx, conn, schema, t, filepath.Join(dir, t))
		if err != nil {
			return err
		}
		log.Printf("  %s: %s rows", t, humanize.Comma(n))
	}
	return nil
}

func listSourceTables(ctx context.Context, conn *pgx.Conn, schema string) ([]string, error) {
	rows, err := conn.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		 ORDER BY table_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// exportTable streams COPY ... TO STDOUT into path. The text format uses
// tab separators, \N for NULL and t/f for booleans.
func exportTable(ctx context.Context, conn *pgx.Conn, schema, table, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	q := "COPY " + pgx.Identifier{schema, table}.Sanitize() + " TO STDOUT"
	tag, err := conn.PgConn().CopyTo(ctx, f, q)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}
