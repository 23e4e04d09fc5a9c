package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkConfig(t *testing.T, tables, indexes string) *Config {
	t.Helper()
	dir := t.TempDir()
	writeSchemaFile(t, dir, "CreateTables.sql", tables)
	writeSchemaFile(t, dir, "CreateIndexes.sql", indexes)
	cfg := defaultConfig()
	cfg.configDir = dir
	return cfg
}

func TestRunCheck_ReportsEverything(t *testing.T) {
	cfg := checkConfig(t, `CREATE TYPE fluency AS ENUM ('basic', 'native');

CREATE TABLE editor_language (
    editor   INTEGER NOT NULL,
    language INTEGER NOT NULL,
    fluency  FLUENCY NOT NULL,
    PRIMARY KEY (editor, language)
);

CREATE TABLE doc (
    id    SERIAL,
    body  TSVECTOR,
    shape GEOMETRY,
    name  VARCHAR COLLATE musicbrainz
);
`, "CREATE INDEX doc_idx_name ON doc (lower(name));\n")

	var out bytes.Buffer
	err := runCheck(cfg, &out, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 column(s) with unknown types")

	report := out.String()
	assert.Contains(t, report, "tables: 2, columns: 7 (0 epoch timestamps)\n")
	assert.Contains(t, report, "indexes: 0 kept, 1 dropped\n")
	assert.Contains(t, report, `ERROR: `)
	assert.Contains(t, report, `CreateTables.sql:12: unknown type "TSVECTOR"`)
	assert.Contains(t, report, `CreateTables.sql:13: unknown type "GEOMETRY"`)
	assert.Contains(t, report, "WARN: schema contains statements not translated to SQLite (1 CREATE TYPE)\n")
	assert.Contains(t, report, "WARN: 1 table constraint(s) not enforced: editor_language (1)\n")
	assert.Contains(t, report, "WARN: source collations found: musicbrainz\n")
	assert.Contains(t, report, `WARN: index doc_idx_name dropped: function "lower" in column list`)
	assert.NotContains(t, report, "editor_language\n  ")
}

func TestRunCheck_Columns(t *testing.T) {
	cfg := checkConfig(t, `CREATE TABLE edit (
    id        SERIAL,
    open_time TIMESTAMP WITH TIME ZONE,
    autoedit  SMALLINT NOT NULL DEFAULT 0
);
`, "CREATE INDEX edit_idx_open_time ON edit (open_time);\n")

	var out bytes.Buffer
	require.NoError(t, runCheck(cfg, &out, true))

	report := out.String()
	assert.Contains(t, report, "tables: 1, columns: 3 (1 epoch timestamps)\n")
	assert.Contains(t, report, "indexes: 1 kept, 0 dropped\n")
	assert.Contains(t, report, "\nedit\n")
	assert.Regexp(t, `(?m)^  open_time\s+TIMESTAMP WITH TIME ZONE\s+INTEGER \(epoch\)$`, report)
	assert.Regexp(t, `(?m)^  id\s+SERIAL\s+INTEGER PRIMARY KEY$`, report)
	assert.NotContains(t, report, "ERROR")
}

func TestRunCheck_EnumLabels(t *testing.T) {
	cfg := checkConfig(t, `CREATE TYPE fluency AS ENUM ('basic', 'intermediate', 'native');

CREATE TABLE editor_language (
    editor  INTEGER NOT NULL,
    fluency FLUENCY NOT NULL
);
`, "")

	var out bytes.Buffer
	require.NoError(t, runCheck(cfg, &out, true))
	assert.Regexp(t, `(?m)^  fluency\s+FLUENCY\s+TEXT enum\(basic, intermediate, native\)$`, out.String())
	assert.Regexp(t, `(?m)^  editor\s+INTEGER\s+INTEGER$`, out.String())
}
