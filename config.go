package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the TOML- or YAML-driven configuration. It is built once by
// loadConfig (or defaultConfig) and treated as read-only afterwards.
type Config struct {
	Database    string          `toml:"database" yaml:"database"`
	SchemaDir   string          `toml:"schema_dir" yaml:"schema_dir"`
	TablesFiles []string        `toml:"tables_files" yaml:"tables_files"`
	IndexesFile string          `toml:"indexes_file" yaml:"indexes_file"`
	Translate   TranslateConfig `toml:"translate" yaml:"translate"`
	Import      ImportConfig    `toml:"import" yaml:"import"`
	Fetch       FetchConfig     `toml:"fetch" yaml:"fetch"`
	Export      ExportConfig    `toml:"export" yaml:"export"`
	Hooks       HooksConfig     `toml:"hooks" yaml:"hooks"`

	// configDir is the directory containing the config file, used to resolve relative paths.
	configDir string
}

// TranslateConfig controls the schema dialect translation.
type TranslateConfig struct {
	TimestampEncoding  string            `toml:"timestamp_encoding" yaml:"timestamp_encoding"` // epoch|text
	UnknownAsText      bool              `toml:"unknown_as_text" yaml:"unknown_as_text"`
	TypeOverrides      map[string]string `toml:"type_overrides" yaml:"type_overrides"` // type substring → target keyword
	DropIndexFunctions []string          `toml:"drop_index_functions" yaml:"drop_index_functions"`
	NonUniqueIndexes   []string          `toml:"non_unique_indexes" yaml:"non_unique_indexes"`
}

// ImportConfig controls how dump files are loaded.
type ImportConfig struct {
	Loader       string   `toml:"loader" yaml:"loader"` // cli|native
	SQLiteBinary string   `toml:"sqlite_binary" yaml:"sqlite_binary"`
	SkipTables   []string `toml:"skip_tables" yaml:"skip_tables"`
	NullMarker   string   `toml:"null_marker" yaml:"null_marker"`
	TrueLiteral  string   `toml:"true_literal" yaml:"true_literal"`
	OnReimport   string   `toml:"on_reimport" yaml:"on_reimport"` // error|replace|append
}

// FetchConfig locates the upstream schema files and data dumps.
type FetchConfig struct {
	SchemaBaseURL   string   `toml:"schema_base_url" yaml:"schema_base_url"`
	SchemaPaths     []string `toml:"schema_paths" yaml:"schema_paths"`
	DumpBaseURL     string   `toml:"dump_base_url" yaml:"dump_base_url"`
	LatestFile      string   `toml:"latest_file" yaml:"latest_file"`
	DumpFile        string   `toml:"dump_file" yaml:"dump_file"`
	DataDir         string   `toml:"data_dir" yaml:"data_dir"`
	VerifyChecksums bool     `toml:"verify_checksums" yaml:"verify_checksums"`
}

// ExportConfig identifies a live PostgreSQL database to dump tables from.
type ExportConfig struct {
	DSN    string `toml:"dsn" yaml:"dsn"`
	Schema string `toml:"schema" yaml:"schema"`
}

// HooksConfig lists SQL files executed against the SQLite database after a step.
type HooksConfig struct {
	AfterInit   []string `toml:"after_init" yaml:"after_init"`
	AfterImport []string `toml:"after_import" yaml:"after_import"`
	AfterIndex  []string `toml:"after_index" yaml:"after_index"`
}

// defaultConfig returns the configuration used when no config file is given.
// Relative paths resolve against the working directory.
func defaultConfig() *Config {
	cfg := &Config{
		Database:    "mblite.db",
		SchemaDir:   ".",
		TablesFiles: []string{"CreateTables.sql"},
		IndexesFile: "CreateIndexes.sql",
		Translate:   defaultTranslateConfig(),
		Import: ImportConfig{
			Loader:       "cli",
			SQLiteBinary: "sqlite3",
			SkipTables:   []string{"client_version", "replication_control"},
			NullMarker:   `\N`,
			TrueLiteral:  "t",
			OnReimport:   "error",
		},
		Fetch: FetchConfig{
			SchemaBaseURL:   "https://github.com/metabrainz/musicbrainz-server/raw/master/",
			SchemaPaths:     []string{"admin/sql/CreateTables.sql", "admin/sql/CreateIndexes.sql"},
			DumpBaseURL:     "http://ftp.musicbrainz.org/pub/musicbrainz/data/fullexport/",
			LatestFile:      "LATEST",
			DumpFile:        "mbdump.tar.bz2",
			DataDir:         ".",
			VerifyChecksums: true,
		},
		Export: ExportConfig{
			Schema: "musicbrainz",
		},
	}
	if wd, err := os.Getwd(); err == nil {
		cfg.configDir = wd
	}
	return cfg
}

func defaultTranslateConfig() TranslateConfig {
	return TranslateConfig{
		TimestampEncoding:  "epoch",
		UnknownAsText:      false,
		DropIndexFunctions: []string{"lower(", "page_index(", "musicbrainz_collate("},
		NonUniqueIndexes:   []string{"artistalias_nameindex"},
	}
}

// loadConfig reads a TOML or YAML config file and returns a Config with defaults applied.
// The format is chosen by extension: .yaml/.yml decode as YAML, everything else as TOML.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if unknown := md.Undecoded(); len(unknown) > 0 {
			keys := make([]string, len(unknown))
			for i, k := range unknown {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks enumerated values and required fields.
func (c *Config) validate() error {
	c.Database = strings.TrimSpace(c.Database)
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if len(c.TablesFiles) == 0 {
		return fmt.Errorf("tables_files must list at least one file")
	}
	if c.IndexesFile == "" {
		return fmt.Errorf("indexes_file is required")
	}

	switch c.Translate.TimestampEncoding {
	case "epoch", "text":
	default:
		return fmt.Errorf("translate.timestamp_encoding must be one of: epoch, text")
	}
	for substr, keyword := range c.Translate.TypeOverrides {
		if strings.TrimSpace(substr) == "" {
			return fmt.Errorf("translate.type_overrides: empty type pattern")
		}
		if _, ok := parseTargetType(keyword); !ok {
			return fmt.Errorf("translate.type_overrides[%q]: %q is not one of INTEGER PRIMARY KEY, TEXT, INTEGER, BOOLEAN, REAL", substr, keyword)
		}
	}

	switch c.Import.Loader {
	case "cli", "native":
	default:
		return fmt.Errorf("import.loader must be one of: cli, native")
	}
	switch c.Import.OnReimport {
	case "error", "replace", "append":
	default:
		return fmt.Errorf("import.on_reimport must be one of: error, replace, append")
	}
	if c.Import.Loader == "cli" && c.Import.SQLiteBinary == "" {
		return fmt.Errorf("import.sqlite_binary is required for the cli loader")
	}
	if c.Import.NullMarker == "" {
		return fmt.Errorf("import.null_marker is required")
	}
	if c.Import.TrueLiteral == "" {
		return fmt.Errorf("import.true_literal is required")
	}

	if c.Fetch.LatestFile == "" || c.Fetch.DumpFile == "" {
		return fmt.Errorf("fetch.latest_file and fetch.dump_file are required")
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *Config) resolvePath(p string) string {
	if filepath.IsAbs(p) || c.configDir == "" {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// databasePath returns the resolved target database path.
func (c *Config) databasePath() string {
	if strings.HasPrefix(c.Database, "file:") {
		return c.Database
	}
	return c.resolvePath(c.Database)
}

// tablesPaths returns the resolved table schema files in translation order.
func (c *Config) tablesPaths() []string {
	paths := make([]string, len(c.TablesFiles))
	for i, f := range c.TablesFiles {
		paths[i] = c.resolvePath(filepath.Join(c.SchemaDir, f))
	}
	return paths
}

// indexesPath returns the resolved index schema file.
func (c *Config) indexesPath() string {
	return c.resolvePath(filepath.Join(c.SchemaDir, c.IndexesFile))
}

// skipTable reports whether a dump file is on the import skip-list.
func (c *Config) skipTable(name string) bool {
	return slices.Contains(c.Import.SkipTables, name)
}
