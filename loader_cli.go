package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"strings"
)

// shellRunner runs the sqlite3 shell on dbPath with script on stdin and
// returns what it wrote to stderr.
type shellRunner func(ctx context.Context, binary, dbPath, script string) (stderr string, err error)

// cliLoader imports dump files with the sqlite3 shell's .import command, then
// fixes NULL markers, booleans and timestamps with UPDATE statements.
type cliLoader struct {
	binary string
	dbPath string
	conv   fieldConverter
	run    shellRunner
}

func (l *cliLoader) Name() string { return "cli" }

func (l *cliLoader) Load(ctx context.Context, db *sql.DB, table *targetTable, path string) (int64, error) {
	before, err := countRows(ctx, db, table.Name)
	if err != nil {
		return 0, &LoaderError{Table: table.Name, Err: err}
	}

	stderr, err := l.run(ctx, l.binary, l.dbPath, importScript(table.Name, path))
	if err != nil {
		return 0, &LoaderError{Table: table.Name, Stderr: stderr, Err: err}
	}

	// Rows are in the table even when the shell complained; normalize them
	// before reporting the failure.
	if err := postProcess(ctx, db, table, l.conv); err != nil {
		return 0, &LoaderError{Table: table.Name, Stderr: stderr, Err: err}
	}

	after, err := countRows(ctx, db, table.Name)
	if err != nil {
		return 0, &LoaderError{Table: table.Name, Err: err}
	}
	if stderr != "" {
		return after - before, &LoaderError{Table: table.Name, Stderr: stderr, Err: fmt.Errorf("sqlite3 reported errors")}
	}
	return after - before, nil
}

// importScript returns the sqlite3 shell input importing path into table.
// ASCII mode keeps double quotes in the data literal.
func importScript(table, path string) string {
	lines := []string{
		fmt.Sprintf(".timeout %d", busyTimeoutMS),
		".mode ascii",
		`.separator "\t" "\n"`,
		"PRAGMA synchronous = OFF;",
		fmt.Sprintf(".import '%s' %s", strings.ReplaceAll(path, "'", "''"), table),
	}
	return strings.Join(lines, "\n") + "\n"
}

func runSQLiteShell(ctx context.Context, binary, dbPath, script string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, dbPath)
	cmd.Stdin = strings.NewReader(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(stderr.String()), fmt.Errorf("%s: %w", binary, err)
	}
	return strings.TrimSpace(stderr.String()), nil
}
