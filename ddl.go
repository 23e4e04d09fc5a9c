package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
)

var sqlCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/|--[^\n]*`)

// executableStatements splits a script into statements, dropping
// transaction control and comment-only fragments.
func executableStatements(script string) []string {
	var out []string
	for _, stmt := range splitStatements(script) {
		body := strings.TrimSpace(sqlCommentRe.ReplaceAllString(stmt, ""))
		if body == "" {
			continue
		}
		switch strings.ToUpper(body) {
		case "BEGIN", "COMMIT", "BEGIN TRANSACTION", "END", "END TRANSACTION":
			continue
		}
		out = append(out, stmt)
	}
	return out
}

// createTables executes the translated table script and records the catalog
// in one transaction, so a failing statement leaves the database unchanged.
func createTables(ctx context.Context, db *sql.DB, tr *tableTranslation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range executableStatements(tr.Script) {
		if m := createTableRe.FindStringSubmatch(strings.TrimSpace(sqlCommentRe.ReplaceAllString(stmt, ""))); m != nil {
			log.Printf("  creating %s", strings.Trim(m[1], `"`))
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w\nDDL: %s", err, stmt)
		}
	}

	if err := ensureCatalog(ctx, tx); err != nil {
		return err
	}
	if err := recordColumns(ctx, tx, tr.Tables); err != nil {
		return err
	}
	return tx.Commit()
}

// createIndexes executes the translated index statements in order, reporting
// each index by name.
func createIndexes(ctx context.Context, db *sql.DB, plan *IndexPlan) error {
	for _, stmt := range plan.Statements {
		if name := indexName(stmt); name != "" {
			log.Printf("  indexing: %s", name)
		} else {
			log.Printf("  executing: %s", stmt)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
