package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfgFile := writeConfig(t, "test.toml", `
database = "music.db"
schema_dir = "sql"
tables_files = ["CreateTables.sql", "caa/CreateTables.sql"]
indexes_file = "CreateIndexes.sql"

[translate]
timestamp_encoding = "text"
unknown_as_text = true
drop_index_functions = ["lower("]
non_unique_indexes = ["artist_idx_name"]

[translate.type_overrides]
jsonb = "TEXT"
numeric = "real"

[import]
loader = "native"
skip_tables = ["replication_control"]
on_reimport = "replace"

[fetch]
dump_file = "mbdump-derived.tar.bz2"
verify_checksums = false

[export]
dsn = "postgres://u:p@h:5432/musicbrainz_db"

[hooks]
after_init = ["views.sql"]
after_import = []
after_index = ["analyze.sql"]
`)

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	dir := filepath.Dir(cfgFile)

	if cfg.Database != "music.db" {
		t.Errorf("Database = %q, want %q", cfg.Database, "music.db")
	}
	if got, want := cfg.databasePath(), filepath.Join(dir, "music.db"); got != want {
		t.Errorf("databasePath() = %q, want %q", got, want)
	}
	wantTables := []string{
		filepath.Join(dir, "sql", "CreateTables.sql"),
		filepath.Join(dir, "sql", "caa", "CreateTables.sql"),
	}
	gotTables := cfg.tablesPaths()
	if len(gotTables) != len(wantTables) {
		t.Fatalf("tablesPaths() = %v, want %v", gotTables, wantTables)
	}
	for i := range wantTables {
		if gotTables[i] != wantTables[i] {
			t.Errorf("tablesPaths()[%d] = %q, want %q", i, gotTables[i], wantTables[i])
		}
	}
	if got, want := cfg.indexesPath(), filepath.Join(dir, "sql", "CreateIndexes.sql"); got != want {
		t.Errorf("indexesPath() = %q, want %q", got, want)
	}
	if cfg.Translate.TimestampEncoding != "text" {
		t.Errorf("Translate.TimestampEncoding = %q, want text", cfg.Translate.TimestampEncoding)
	}
	if !cfg.Translate.UnknownAsText {
		t.Errorf("Translate.UnknownAsText = %t, want true", cfg.Translate.UnknownAsText)
	}
	if cfg.Translate.TypeOverrides["numeric"] != "real" {
		t.Errorf("Translate.TypeOverrides = %v", cfg.Translate.TypeOverrides)
	}
	if len(cfg.Translate.NonUniqueIndexes) != 1 || cfg.Translate.NonUniqueIndexes[0] != "artist_idx_name" {
		t.Errorf("Translate.NonUniqueIndexes = %v", cfg.Translate.NonUniqueIndexes)
	}
	if cfg.Import.Loader != "native" {
		t.Errorf("Import.Loader = %q, want native", cfg.Import.Loader)
	}
	if cfg.Import.OnReimport != "replace" {
		t.Errorf("Import.OnReimport = %q, want replace", cfg.Import.OnReimport)
	}
	if !cfg.skipTable("replication_control") || cfg.skipTable("client_version") {
		t.Errorf("Import.SkipTables = %v", cfg.Import.SkipTables)
	}
	if cfg.Import.NullMarker != `\N` || cfg.Import.TrueLiteral != "t" {
		t.Errorf("Import defaults not kept: null=%q true=%q", cfg.Import.NullMarker, cfg.Import.TrueLiteral)
	}
	if cfg.Fetch.DumpFile != "mbdump-derived.tar.bz2" || cfg.Fetch.VerifyChecksums {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
	if cfg.Fetch.LatestFile != "LATEST" {
		t.Errorf("Fetch.LatestFile = %q, want default LATEST", cfg.Fetch.LatestFile)
	}
	if cfg.Export.Schema != "musicbrainz" {
		t.Errorf("Export.Schema = %q, want default musicbrainz", cfg.Export.Schema)
	}
	if len(cfg.Hooks.AfterIndex) != 1 || cfg.Hooks.AfterIndex[0] != "analyze.sql" {
		t.Errorf("Hooks.AfterIndex = %v", cfg.Hooks.AfterIndex)
	}
	if cfg.configDir != dir {
		t.Errorf("configDir = %q, want %q", cfg.configDir, dir)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	cfgFile := writeConfig(t, "test.yaml", `
database: music.db
translate:
  type_overrides:
    jsonb: TEXT
import:
  loader: native
  on_reimport: append
hooks:
  after_import: [fixup.sql]
`)

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Import.Loader != "native" || cfg.Import.OnReimport != "append" {
		t.Errorf("Import = %+v", cfg.Import)
	}
	if cfg.Translate.TypeOverrides["jsonb"] != "TEXT" {
		t.Errorf("Translate.TypeOverrides = %v", cfg.Translate.TypeOverrides)
	}
	if cfg.Translate.TimestampEncoding != "epoch" {
		t.Errorf("Translate.TimestampEncoding = %q, want default epoch", cfg.Translate.TimestampEncoding)
	}
	if len(cfg.Hooks.AfterImport) != 1 || cfg.Hooks.AfterImport[0] != "fixup.sql" {
		t.Errorf("Hooks.AfterImport = %v", cfg.Hooks.AfterImport)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaultConfig().validate() error: %v", err)
	}
	if cfg.Import.Loader != "cli" || cfg.Import.SQLiteBinary != "sqlite3" {
		t.Errorf("Import = %+v", cfg.Import)
	}
	if cfg.Import.OnReimport != "error" {
		t.Errorf("Import.OnReimport = %q, want error", cfg.Import.OnReimport)
	}
	if len(cfg.Translate.DropIndexFunctions) == 0 || cfg.Translate.DropIndexFunctions[0] != "lower(" {
		t.Errorf("Translate.DropIndexFunctions = %v", cfg.Translate.DropIndexFunctions)
	}
	if !cfg.Fetch.VerifyChecksums {
		t.Errorf("Fetch.VerifyChecksums = false, want true")
	}
}

func TestLoadConfig_UnknownKeys(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml top level", "bad.toml", "databse = \"x.db\"\n"},
		{"toml nested", "bad.toml", "[import]\nloadr = \"cli\"\n"},
		{"yaml", "bad.yaml", "import:\n  loadr: cli\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error for unknown key")
			}
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"whitespace database", `database = "   "`, "database"},
		{"empty tables files", `tables_files = []`, "tables_files"},
		{"timestamp encoding", "[translate]\ntimestamp_encoding = \"iso\"", "timestamp_encoding"},
		{"override target", "[translate.type_overrides]\njsonb = \"BLOB\"", "type_overrides"},
		{"loader", "[import]\nloader = \"bulk\"", "import.loader"},
		{"on reimport", "[import]\non_reimport = \"merge\"", "on_reimport"},
		{"cli without binary", "[import]\nsqlite_binary = \"\"", "sqlite_binary"},
		{"native without binary is fine", "[import]\nloader = \"native\"\nsqlite_binary = \"\"", ""},
		{"empty null marker", "[import]\nnull_marker = \"\"", "null_marker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, "cfg.toml", tt.content))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("loadConfig() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{configDir: "/home/user/mblite"}

	got := cfg.resolvePath("views.sql")
	want := "/home/user/mblite/views.sql"
	if got != want {
		t.Errorf("resolvePath(relative) = %q, want %q", got, want)
	}

	got = cfg.resolvePath("/absolute/path.sql")
	want = "/absolute/path.sql"
	if got != want {
		t.Errorf("resolvePath(absolute) = %q, want %q", got, want)
	}
}

func TestDatabasePath_FileURI(t *testing.T) {
	cfg := &Config{Database: "file:music.db?cache=shared", configDir: "/srv"}
	if got := cfg.databasePath(); got != "file:music.db?cache=shared" {
		t.Errorf("databasePath() = %q", got)
	}
}
