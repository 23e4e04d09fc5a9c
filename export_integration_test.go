//go:build integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const exportTablesSQL = `CREATE TABLE artist (
    id              SERIAL,
    name            VARCHAR NOT NULL,
    ended           BOOLEAN NOT NULL DEFAULT FALSE,
    begin_date_year SMALLINT,
    last_updated    TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    comment         TEXT
);
`

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("musicbrainz_db"),
		postgres.WithUsername("musicbrainz"),
		postgres.WithPassword("musicbrainz"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable", "timezone=UTC")
	require.NoError(t, err)
	return dsn
}

func TestExportThenImport(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()
	dsn := startPostgres(t)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "CREATE SCHEMA musicbrainz; SET search_path = musicbrainz;\n"+exportTablesSQL+`
INSERT INTO artist (name, ended, begin_date_year, last_updated, comment) VALUES
    ('Björk', false, 1965, '2024-01-02 03:04:05+00', E'line\ttab'),
    ('Sigur Rós', true, NULL, NULL, NULL);`)
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	dumpDir := filepath.Join(t.TempDir(), "mbdump")
	require.NoError(t, exportTables(ctx, dsn, "musicbrainz", dumpDir))

	schemaPath := writeSchemaFile(t, t.TempDir(), "CreateTables.sql", exportTablesSQL)
	tr, err := translateTableFiles([]string{schemaPath}, NewTypeMapper(defaultTranslateConfig()))
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.Database = filepath.Join(t.TempDir(), "export.db")
	cfg.Import.Loader = "native"
	db, err := openTarget(ctx, cfg.databasePath())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, createTables(ctx, db, tr))

	loader, err := newBulkLoader(cfg)
	require.NoError(t, err)
	require.NoError(t, importDumps(ctx, db, loader, dumpDir, cfg))

	assert.Equal(t, [][]string{
		{"integer:1", "text:Björk", "integer:0", "integer:1965", "integer:1704164645", "text:line\ttab"},
		{"integer:2", "text:Sigur Rós", "integer:1", "null:", "null:", "null:"},
	}, cells(t, db, "artist", "id", "name", "ended", "begin_date_year", "last_updated", "comment"))
}

func TestExportTables_EmptySchema(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()
	dsn := startPostgres(t)

	err := exportTables(ctx, dsn, "public", t.TempDir())
	assert.ErrorContains(t, err, `schema "public" has no tables`)
}
