package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// nativeProgressRows is how often the native loader logs progress.
const nativeProgressRows = 1_000_000

// nativeLoader parses dump rows in-process and inserts them with a prepared
// statement inside a single transaction. No sqlite3 binary is needed.
type nativeLoader struct {
	conv fieldConverter
}

func (l *nativeLoader) Name() string { return "native" }

func (l *nativeLoader) Load(ctx context.Context, db *sql.DB, table *targetTable, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &LoaderError{Table: table.Name, Err: err}
	}
	defer f.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &LoaderError{Table: table.Name, Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertStatement(table))
	if err != nil {
		return 0, &LoaderError{Table: table.Name, Err: fmt.Errorf("prepare insert: %w", err)}
	}
	defer stmt.Close()

	n, err := l.copyRows(ctx, stmt, table, f)
	if err != nil {
		return 0, &LoaderError{Table: table.Name, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &LoaderError{Table: table.Name, Err: fmt.Errorf("commit: %w", err)}
	}
	return n, nil
}

// copyRows reads COPY text-format rows from r and inserts each one.
func (l *nativeLoader) copyRows(ctx context.Context, stmt *sql.Stmt, table *targetTable, r io.Reader) (int64, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	args := make([]any, len(table.Columns))
	var n int64
	lineNo := 0

	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("read: %w", err)
		}
		if line == "" && errors.Is(err, io.EOF) {
			return n, nil
		}
		lineNo++
		line = strings.TrimSuffix(line, "\n")
		if line == `\.` {
			return n, nil
		}

		fields := strings.Split(line, "\t")
		if len(fields) != len(table.Columns) {
			return n, fmt.Errorf("line %d: expected %d fields, found %d", lineNo, len(table.Columns), len(fields))
		}
		for i, raw := range fields {
			v, convErr := l.conv.transformValue(raw, table.Columns[i])
			if convErr != nil {
				return n, fmt.Errorf("line %d: column %s: %w", lineNo, table.Columns[i].Name, convErr)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}
		n++
		if n%nativeProgressRows == 0 {
			log.Printf("    %s: %s rows", table.Name, humanize.Comma(n))
		}

		if errors.Is(err, io.EOF) {
			return n, nil
		}
	}
}
