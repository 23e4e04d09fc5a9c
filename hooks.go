package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
)

// runHooks reads each SQL file and executes every statement against the target database.
func runHooks(ctx context.Context, db *sql.DB, cfg *Config, files []string, phase string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		path := cfg.resolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		stmts := splitStatements(string(data))
		log.Printf("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w\nSQL: %s", phase, f, i+1, err, stmt)
			}
		}
	}
	return nil
}

// splitStatements splits SQL text on semicolons, ignoring empty entries
// and semicolons inside quotes, comments and dollar-quoted blocks.
// A trailing statement without a semicolon is included.
func splitStatements(sql string) []string {
	stmts, tail := scanStatements(sql)
	if tail != "" {
		stmts = append(stmts, tail)
	}
	return stmts
}

// statementComplete reports whether sql contains a terminating semicolon
// outside quotes, comments and dollar-quoted blocks.
func statementComplete(sql string) bool {
	stmts, _ := scanStatements(sql)
	return len(stmts) > 0
}

// scanStatements returns the semicolon-terminated statements of sql and the
// trimmed text after the last terminator.
func scanStatements(sql string) ([]string, string) {
	var stmts []string
	start := 0
	for i := 0; i < len(sql); {
		if end, ok := spanEnd(sql, i); ok {
			i = end
			continue
		}
		if sql[i] == ';' {
			if s := strings.TrimSpace(sql[start:i]); s != "" {
				stmts = append(stmts, s)
			}
			start = i + 1
		}
		i++
	}
	return stmts, strings.TrimSpace(sql[start:])
}

// spanEnd returns the index just past the literal, quoted identifier,
// comment or dollar-quoted body opening at i. An unterminated span runs to
// the end of sql.
func spanEnd(sql string, i int) (int, bool) {
	rest := sql[i:]
	switch c := sql[i]; {
	case c == '\'' || c == '"':
		for j := i + 1; j < len(sql); j++ {
			if sql[j] != c {
				continue
			}
			if j+1 < len(sql) && sql[j+1] == c {
				j++
				continue
			}
			return j + 1, true
		}
		return len(sql), true
	case strings.HasPrefix(rest, "--"):
		if n := strings.IndexByte(rest, '\n'); n >= 0 {
			return i + n + 1, true
		}
		return len(sql), true
	case strings.HasPrefix(rest, "/*"):
		depth := 0
		for j := i; j < len(sql); j++ {
			switch {
			case strings.HasPrefix(sql[j:], "/*"):
				depth++
				j++
			case strings.HasPrefix(sql[j:], "*/"):
				depth--
				j++
				if depth == 0 {
					return j + 1, true
				}
			}
		}
		return len(sql), true
	case c == '$':
		tag, ok := parseDollarTag(sql, i)
		if !ok {
			return i, false
		}
		body := i + len(tag)
		if n := strings.Index(sql[body:], tag); n >= 0 {
			return body + n + len(tag), true
		}
		return len(sql), true
	}
	return i, false
}

// parseDollarTag returns the $$ or $tag$ delimiter opening at i.
func parseDollarTag(sql string, i int) (string, bool) {
	if i >= len(sql) || sql[i] != '$' {
		return "", false
	}
	j := i + 1
	for j < len(sql) && isTagChar(sql[j], j == i+1) {
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i : j+1], true
	}
	return "", false
}

func isTagChar(c byte, first bool) bool {
	if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
		return true
	}
	return !first && '0' <= c && c <= '9'
}
