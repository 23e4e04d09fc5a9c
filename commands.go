package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// translateSchema translates the configured table files. A non-nil
// translation may come with an error when some files failed to parse.
func translateSchema(cfg *Config) (*tableTranslation, error) {
	paths := cfg.tablesPaths()
	log.Printf("translating %d schema file(s)...", len(paths))
	tr, err := translateTableFiles(paths, NewTypeMapper(cfg.Translate))
	if tr != nil {
		cols := 0
		for _, t := range tr.Tables {
			cols += len(t.Columns)
		}
		log.Printf("  %d tables, %d columns, %d statements skipped", len(tr.Tables), cols, len(tr.Skipped))
	}
	return tr, err
}

// translateIndexFile translates the configured index file.
func translateIndexFile(cfg *Config) (*IndexPlan, error) {
	f, err := os.Open(cfg.indexesPath())
	if err != nil {
		return nil, fmt.Errorf("open index schema: %w", err)
	}
	defer f.Close()
	return translateIndexes(f, cfg.Translate)
}

func logWarnings(title string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	log.Printf("%s: %d warning(s)", title, len(warnings))
	for _, w := range warnings {
		log.Printf("  WARN: %s", w)
	}
}

// runSchema writes the translated table script followed by the index
// statements to w.
func runSchema(cfg *Config, w io.Writer) error {
	tr, err := translateSchema(cfg)
	if tr == nil {
		return err
	}
	plan, ierr := translateIndexFile(cfg)
	if ierr != nil {
		return errors.Join(err, ierr)
	}

	if _, werr := io.WriteString(w, tr.Script); werr != nil {
		return werr
	}
	for _, stmt := range plan.Statements {
		if _, werr := fmt.Fprintf(w, "%s;\n", stmt); werr != nil {
			return werr
		}
	}
	return err
}

// runInit creates the translated tables and the catalog.
func runInit(ctx context.Context, cfg *Config) error {
	start := time.Now()
	tr, err := translateSchema(cfg)
	if tr == nil {
		return err
	}
	logWarnings("compatibility report", compatWarnings(tr, nil))

	db, oerr := openTarget(ctx, cfg.databasePath())
	if oerr != nil {
		return oerr
	}
	defer db.Close()

	log.Printf("creating tables in %s (sqlite driver: %s)...", cfg.Database, driverType)
	if cerr := createTables(ctx, db, tr); cerr != nil {
		return cerr
	}
	if herr := runHooks(ctx, db, cfg, cfg.Hooks.AfterInit, "after_init"); herr != nil {
		return herr
	}
	if err != nil {
		return fmt.Errorf("some schema files were not translated: %w", err)
	}
	log.Printf("init completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// runImport loads a dump directory into the database.
func runImport(ctx context.Context, cfg *Config, dir string) error {
	db, err := openTarget(ctx, cfg.databasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	loader, err := newBulkLoader(cfg)
	if err != nil {
		return err
	}

	importErr := importDumps(ctx, db, loader, dir, cfg)
	if ctx.Err() != nil {
		return importErr
	}
	if err := runHooks(ctx, db, cfg, cfg.Hooks.AfterImport, "after_import"); err != nil {
		return errors.Join(importErr, err)
	}
	return importErr
}

// runIndex creates the translated indexes.
func runIndex(ctx context.Context, cfg *Config) error {
	start := time.Now()
	plan, err := translateIndexFile(cfg)
	if err != nil {
		return err
	}
	logWarnings("index compatibility report", collectIndexCompatibilityWarnings(plan))

	db, err := openTarget(ctx, cfg.databasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	log.Printf("creating %d indexes...", len(plan.Statements))
	if err := createIndexes(ctx, db, plan); err != nil {
		return err
	}
	if err := runHooks(ctx, db, cfg, cfg.Hooks.AfterIndex, "after_index"); err != nil {
		return err
	}
	log.Printf("indexing completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func runFetchSQL(ctx context.Context, cfg *Config) error {
	_, err := newFetcher(http.DefaultClient, cfg).FetchSchema(ctx)
	return err
}

func runFetchData(ctx context.Context, cfg *Config) error {
	dir, err := newFetcher(http.DefaultClient, cfg).FetchData(ctx)
	if err != nil {
		return err
	}
	log.Printf("data dump extracted into %s", dir)
	return nil
}

func runExport(ctx context.Context, cfg *Config, dir string) error {
	if cfg.Export.DSN == "" {
		return fmt.Errorf("export requires --dsn or export.dsn")
	}
	return exportTables(ctx, cfg.Export.DSN, cfg.Export.Schema, dir)
}
