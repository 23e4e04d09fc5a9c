package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath         string
	dbOverride         string
	loaderOverride     string
	onReimportOverride string

	// Legacy first-argument modes: mblite --schema, mblite --import DIR, ...
	legacy struct {
		schema    bool
		initDB    bool
		importDir string
		index     bool
		fetchSQL  bool
		fetchData bool
	}

	exportDSN    string
	exportSchema string
	checkColumns bool
)

var rootCmd = &cobra.Command{
	Use:           "mblite",
	Short:         "Convert a PostgreSQL (MusicBrainz) schema and data dump into SQLite",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLegacyMode,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the translated table and index DDL",
	Args:  cobra.NoArgs,
	RunE: withConfig(func(ctx context.Context, cmd *cobra.Command, cfg *Config, _ []string) error {
		return runSchema(cfg, cmd.OutOrStdout())
	}),
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the translated tables in the database",
	Args:  cobra.NoArgs,
	RunE: withConfig(func(ctx context.Context, _ *cobra.Command, cfg *Config, _ []string) error {
		return runInit(ctx, cfg)
	}),
}

var importCmd = &cobra.Command{
	Use:   "import DIR",
	Short: "Load every dump file in DIR into its table",
	Args:  cobra.ExactArgs(1),
	RunE: withConfig(func(ctx context.Context, _ *cobra.Command, cfg *Config, args []string) error {
		return runImport(ctx, cfg, args[0])
	}),
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create the translated indexes in the database",
	Args:  cobra.NoArgs,
	RunE: withConfig(func(ctx context.Context, _ *cobra.Command, cfg *Config, _ []string) error {
		return runIndex(ctx, cfg)
	}),
}

var fetchSQLCmd = &cobra.Command{
	Use:   "fetch-sql",
	Short: "Download the upstream schema files",
	Args:  cobra.NoArgs,
	RunE: withConfig(func(ctx context.Context, _ *cobra.Command, cfg *Config, _ []string) error {
		return runFetchSQL(ctx, cfg)
	}),
}

var fetchDataCmd = &cobra.Command{
	Use:   "fetch-data",
	Short: "Download and extract the latest data dump",
	Args:  cobra.NoArgs,
	RunE: withConfig(func(ctx context.Context, _ *cobra.Command, cfg *Config, _ []string) error {
		return runFetchData(ctx, cfg)
	}),
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report what the translation drops or coerces, without writing anything",
	Args:  cobra.NoArgs,
	RunE: withConfig(func(_ context.Context, cmd *cobra.Command, cfg *Config, _ []string) error {
		return runCheck(cfg, cmd.OutOrStdout(), checkColumns)
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export DIR",
	Short: "Dump the tables of a live PostgreSQL schema into DIR",
	Args:  cobra.ExactArgs(1),
	RunE: withConfig(func(ctx context.Context, _ *cobra.Command, cfg *Config, args []string) error {
		if exportDSN != "" {
			cfg.Export.DSN = exportDSN
		}
		if exportSchema != "" {
			cfg.Export.Schema = exportSchema
		}
		return runExport(ctx, cfg, args[0])
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mblite %s (sqlite driver: %s)\n", versionString(), driverType)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to TOML or YAML config file")
	pf.StringVar(&dbOverride, "db", "", "SQLite database file (overrides config)")
	pf.StringVar(&loaderOverride, "loader", "", "dump loader: cli or native (overrides config)")
	pf.StringVar(&onReimportOverride, "on-reimport", "", "already imported tables: error, replace or append (overrides config)")

	f := rootCmd.Flags()
	f.BoolVar(&legacy.schema, "schema", false, "same as the schema command")
	f.BoolVar(&legacy.initDB, "init", false, "same as the init command")
	f.StringVar(&legacy.importDir, "import", "", "same as the import command")
	f.BoolVar(&legacy.index, "index", false, "same as the index command")
	f.BoolVar(&legacy.fetchSQL, "fetch-sql", false, "same as the fetch-sql command")
	f.BoolVar(&legacy.fetchData, "fetch-data", false, "same as the fetch-data command")
	rootCmd.MarkFlagsMutuallyExclusive("schema", "init", "import", "index", "fetch-sql", "fetch-data")

	exportCmd.Flags().StringVar(&exportDSN, "dsn", "", "PostgreSQL connection string (overrides export.dsn)")
	exportCmd.Flags().StringVar(&exportSchema, "schema", "", "PostgreSQL schema to export (overrides export.schema)")
	checkCmd.Flags().BoolVar(&checkColumns, "columns", false, "list every translated column")

	rootCmd.AddCommand(schemaCmd, initCmd, importCmd, indexCmd, fetchSQLCmd, fetchDataCmd, checkCmd, exportCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mblite:", err)
		os.Exit(1)
	}
}

// withConfig loads the configuration before running a command step.
func withConfig(fn func(context.Context, *cobra.Command, *Config, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig()
		if err != nil {
			return err
		}
		return fn(cmd.Context(), cmd, cfg, args)
	}
}

// runLegacyMode dispatches the single-flag invocation style.
func runLegacyMode(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	mode := ""
	for _, name := range []string{"schema", "init", "import", "index", "fetch-sql", "fetch-data"} {
		if flags.Changed(name) {
			mode = name
		}
	}
	if mode == "" {
		return cmd.Help()
	}

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	switch mode {
	case "schema":
		return runSchema(cfg, cmd.OutOrStdout())
	case "init":
		return runInit(ctx, cfg)
	case "import":
		if legacy.importDir == "" {
			return fmt.Errorf("--import requires a dump directory")
		}
		return runImport(ctx, cfg, legacy.importDir)
	case "index":
		return runIndex(ctx, cfg)
	case "fetch-sql":
		return runFetchSQL(ctx, cfg)
	default:
		return runFetchData(ctx, cfg)
	}
}

// loadRunConfig builds the configuration from --config (or defaults) and
// applies the command-line overrides.
func loadRunConfig() (*Config, error) {
	var cfg *Config
	if configPath == "" {
		cfg = defaultConfig()
	} else {
		var err error
		if cfg, err = loadConfig(configPath); err != nil {
			return nil, err
		}
	}

	if dbOverride != "" {
		cfg.Database = dbOverride
		if !strings.HasPrefix(dbOverride, "file:") {
			if abs, err := filepath.Abs(dbOverride); err == nil {
				cfg.Database = abs
			}
		}
	}
	if loaderOverride != "" {
		cfg.Import.Loader = loaderOverride
	}
	if onReimportOverride != "" {
		cfg.Import.OnReimport = onReimportOverride
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
