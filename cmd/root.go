package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tidewell/tablediff/cmd/dialects"
	"github.com/tidewell/tablediff/cmd/engines"
)

var (
	// Version information - set via ldflags during build
	// Example: go build -ldflags "-X github.com/tidewell/tablediff/cmd.Version=1.2.3"
	Version = "dev" // Default to "dev" if not set during build

	cfgFile          string
	debug            bool
	logFormat        string
	pkCols           string
	ignoreCols       string
	scalarCasts      string
	limit            int
	output           string
	compression      string
	compressionLevel int
	s3Endpoint       string
	s3Region         string
	s3AccessKey      string
	s3SecretKey      string
	duckdbPath       string
	duckdbInitSQL    string
	bigqueryProject  string
	dbHost           string
	dbPort           int
	dbUser           string
	dbPassword       string
	dbName           string
	dbSSLMode        string

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true)

	// logger writes to stderr because stdout is reserved for the diff report.
	// Initialized at declaration so code paths that run before initLogger
	// (config parsing, tests) can log; initLogger replaces it once the debug
	// and format flags are known.
	logger = slog.New(newTextOnlyHandler(os.Stderr, nil))
)

// textOnlyHandler is a custom slog handler that outputs human-readable text
// without key=value pairs, suitable for interactive terminal usage
type textOnlyHandler struct {
	opts   slog.HandlerOptions
	writer io.Writer
}

func newTextOnlyHandler(w io.Writer, opts *slog.HandlerOptions) *textOnlyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &textOnlyHandler{
		opts:   *opts,
		writer: w,
	}
}

func (h *textOnlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *textOnlyHandler) Handle(_ context.Context, r slog.Record) error {
	// Format: YYYY-MM-DD HH:MM:SS LEVEL message
	timestamp := r.Time.Format("2006-01-02 15:04:05")
	level := r.Level.String()

	// Write the log entry
	_, err := fmt.Fprintf(h.writer, "%s %s %s\n", timestamp, level, r.Message)
	return err
}

func (h *textOnlyHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	// For simplicity, we ignore attributes in text-only mode
	return h
}

func (h *textOnlyHandler) WithGroup(_ string) slog.Handler {
	// For simplicity, we ignore groups in text-only mode
	return h
}

// initLogger initializes the slog logger based on debug flag and log format.
// All handlers write to stderr so the NDJSON report on stdout stays clean.
func initLogger(isDebug bool, format string) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if isDebug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "logfmt":
		// logfmt uses slog.TextHandler which outputs key=value pairs
		handler = slog.NewTextHandler(os.Stderr, opts)
	default: // "text" or anything else
		// For human-readable text output, we'll use a custom handler
		// that formats messages more naturally without key=value pairs
		handler = newTextOnlyHandler(os.Stderr, opts)
	}

	logger = slog.New(handler)
}

var rootCmd = &cobra.Command{
	Use:     "tablediff",
	Version: Version,
	Short:   "🔍 Compare two SQL tables and report row-level differences",
	Long: titleStyle.Render("Table Diff") + `

A CLI tool for non-regression testing of data pipelines.
Compares two tables living in the same engine (DuckDB, BigQuery or PostgreSQL)
with a single FULL OUTER JOIN query and emits one NDJSON record per differing
row: changed values, rows only in table 1, rows only in table 2.
Columns can be cast before comparison or excluded entirely, and the report
goes to stdout, a local file or S3, optionally compressed with zstd/lz4/gzip.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// Show help when no subcommand is specified
		cmd.Help()
	},
}

var duckdbCmd = &cobra.Command{
	Use:   "duckdb TABLE1 TABLE2",
	Short: "Compare two tables in a DuckDB database",
	Long: `Compare two tables in a DuckDB database file or in-memory instance.
With --init-sql the comparison can run against CSV/Parquet files registered
as views before the diff query executes.`,
	Args: cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		runDiff("duckdb", args)
	},
}

var bigqueryCmd = &cobra.Command{
	Use:   "bigquery TABLE1 TABLE2",
	Short: "Compare two tables in BigQuery",
	Long: `Compare two BigQuery tables referenced as dataset.table or
project.dataset.table. Uses application default credentials; the billing
project is detected from the environment unless --project is given.`,
	Args: cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		runDiff("bigquery", args)
	},
}

var postgresCmd = &cobra.Command{
	Use:   "postgres TABLE1 TABLE2",
	Short: "Compare two tables in a PostgreSQL database",
	Long: `Compare two PostgreSQL tables referenced as table or schema.table.
Unqualified references resolve against the public schema.`,
	Args: cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		runDiff("postgres", args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Register engine subcommands
	rootCmd.AddCommand(duckdbCmd)
	rootCmd.AddCommand(bigqueryCmd)
	rootCmd.AddCommand(postgresCmd)

	// Persistent flags (available to all engines)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tablediff.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, logfmt, json)")
	rootCmd.PersistentFlags().StringVar(&pkCols, "pk-cols", "id", "comma-separated key columns used to join the two tables")
	rootCmd.PersistentFlags().StringVar(&ignoreCols, "ignore-cols", "", "comma-separated columns excluded from the comparison")
	rootCmd.PersistentFlags().StringVar(&scalarCasts, "scalar-casts", "", "comma-separated col=TYPE casts applied to both tables before comparing (e.g. amount=FLOAT64)")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 0, "maximum number of diff records to emit (0 = unlimited)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "", "report destination: local path or s3://bucket/path with {table1}, {table2}, {date}, {datetime} placeholders (default stdout)")
	rootCmd.PersistentFlags().StringVar(&compression, "compression", "none", "report compression: zstd, lz4, gzip, none")
	rootCmd.PersistentFlags().IntVar(&compressionLevel, "compression-level", 0, "compression level (zstd: 1-22, lz4/gzip: 1-9, 0 = compressor default)")
	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	rootCmd.PersistentFlags().StringVar(&s3Region, "s3-region", "auto", "S3 region")
	rootCmd.PersistentFlags().StringVar(&s3AccessKey, "s3-access-key", "", "S3 access key")
	rootCmd.PersistentFlags().StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key")

	// DuckDB-specific flags
	duckdbCmd.Flags().StringVar(&duckdbPath, "db", "", "DuckDB database file (empty = in-memory, pair with --init-sql)")
	duckdbCmd.Flags().StringVar(&duckdbInitSQL, "init-sql", "", "SQL script executed after connecting, before the comparison")

	// BigQuery-specific flags
	bigqueryCmd.Flags().StringVar(&bigqueryProject, "project", "", "GCP billing project ID (default: detect from credentials)")

	// PostgreSQL-specific flags
	postgresCmd.Flags().StringVar(&dbHost, "db-host", "localhost", "PostgreSQL host")
	postgresCmd.Flags().IntVar(&dbPort, "db-port", 5432, "PostgreSQL port")
	postgresCmd.Flags().StringVar(&dbUser, "db-user", "", "PostgreSQL user")
	postgresCmd.Flags().StringVar(&dbPassword, "db-password", "", "PostgreSQL password")
	postgresCmd.Flags().StringVar(&dbName, "db-name", "", "PostgreSQL database name")
	postgresCmd.Flags().StringVar(&dbSSLMode, "db-sslmode", "disable", "PostgreSQL SSL mode (disable, require, verify-ca, verify-full)")

	// Note: We don't use MarkFlagRequired because it checks before viper loads the config file.
	// Instead, validation happens in config.Validate() which runs after all config sources are loaded.

	// Bind persistent flags
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("pk_cols", rootCmd.PersistentFlags().Lookup("pk-cols"))
	_ = viper.BindPFlag("ignore_cols", rootCmd.PersistentFlags().Lookup("ignore-cols"))
	_ = viper.BindPFlag("scalar_casts", rootCmd.PersistentFlags().Lookup("scalar-casts"))
	_ = viper.BindPFlag("limit", rootCmd.PersistentFlags().Lookup("limit"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("compression", rootCmd.PersistentFlags().Lookup("compression"))
	_ = viper.BindPFlag("compression_level", rootCmd.PersistentFlags().Lookup("compression-level"))
	_ = viper.BindPFlag("s3.endpoint", rootCmd.PersistentFlags().Lookup("s3-endpoint"))
	_ = viper.BindPFlag("s3.region", rootCmd.PersistentFlags().Lookup("s3-region"))
	_ = viper.BindPFlag("s3.access_key", rootCmd.PersistentFlags().Lookup("s3-access-key"))
	_ = viper.BindPFlag("s3.secret_key", rootCmd.PersistentFlags().Lookup("s3-secret-key"))

	// Bind engine flags
	_ = viper.BindPFlag("duckdb.path", duckdbCmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("duckdb.init_sql", duckdbCmd.Flags().Lookup("init-sql"))
	_ = viper.BindPFlag("bigquery.project", bigqueryCmd.Flags().Lookup("project"))
	_ = viper.BindPFlag("db.host", postgresCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("db.port", postgresCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("db.user", postgresCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("db.password", postgresCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("db.name", postgresCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("db.sslmode", postgresCmd.Flags().Lookup("db-sslmode"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tablediff")
	}

	viper.SetEnvPrefix("TABLEDIFF")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && debug {
		// Re-initialize early so the config file location shows up in debug mode
		initLogger(debug, logFormat)
		logger.Debug(fmt.Sprintf("📄 Using config file: %s", viper.ConfigFileUsed()))
	}
}

func runDiff(engineName string, args []string) {
	// Add panic recovery to catch any unexpected crashes
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n❌ PANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	config := &Config{
		Engine:           engineName,
		Table1:           args[0],
		Table2:           args[1],
		PKCols:           parseColumnList(viper.GetString("pk_cols")),
		IgnoreCols:       parseColumnList(viper.GetString("ignore_cols")),
		Limit:            viper.GetInt("limit"),
		Output:           viper.GetString("output"),
		Compression:      viper.GetString("compression"),
		CompressionLevel: viper.GetInt("compression_level"),
		Debug:            viper.GetBool("debug"),
		LogFormat:        viper.GetString("log_format"),
		DuckDB: DuckDBConfig{
			Path:       viper.GetString("duckdb.path"),
			InitScript: viper.GetString("duckdb.init_sql"),
		},
		BigQuery: BigQueryConfig{
			Project: viper.GetString("bigquery.project"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetInt("db.port"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			Name:     viper.GetString("db.name"),
			SSLMode:  viper.GetString("db.sslmode"),
		},
		S3: S3Config{
			Endpoint:  viper.GetString("s3.endpoint"),
			Region:    viper.GetString("s3.region"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
		},
	}

	// Initialize logger
	initLogger(config.Debug, config.LogFormat)

	// Log startup banner
	logger.Info("")
	logger.Info(fmt.Sprintf("🔍 Table Diff v%s", Version))
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	casts, err := parseScalarCasts(viper.GetString("scalar_casts"))
	if err != nil {
		logger.Error(fmt.Sprintf("❌ Configuration error: %s", err.Error()))
		os.Exit(1)
	}
	config.ScalarCasts = casts

	printDiffConfig(config)

	logger.Debug("Validating configuration...")
	if err := config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("❌ Configuration error: %s", err.Error()))
		os.Exit(1)
	}
	logger.Debug("Configuration validated successfully")

	// Check for updates in background (non-blocking)
	updateCheckDone := make(chan struct{})
	go func() {
		defer close(updateCheckDone)
		result := checkForUpdates(context.Background(), Version)

		if result.UpdateAvailable {
			logger.Info("")
			logger.Info(fmt.Sprintf("💡 %s", formatUpdateMessage(result)))
		} else if result.Error != nil && config.Debug {
			logger.Debug(fmt.Sprintf("Version check failed: %v", result.Error))
		}
	}()

	// Give version check a short time to complete, but don't block startup
	select {
	case <-updateCheckDone:
		// Version check completed quickly
	case <-time.After(2 * time.Second):
		// Continue without waiting further
		logger.Debug("Version check taking longer than expected, continuing...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up a goroutine to force-exit if graceful shutdown takes too long
	exited := make(chan struct{})
	go func() {
		<-ctx.Done()
		select {
		case <-exited:
			// Normal completion, the deferred stop cancelled the context
			return
		default:
		}
		logger.Info("")
		logger.Info("⚠️  Interrupt signal received, shutting down...")

		// Wait for graceful shutdown, but force exit after 2 seconds
		select {
		case <-exited:
			return
		case <-time.After(2 * time.Second):
			logger.Error("⚠️  Graceful shutdown timed out, forcing exit...")
			os.Exit(130)
		}
	}()

	logger.Debug(fmt.Sprintf("Connecting to %s...", engineName))
	engine, err := openEngine(ctx, config)
	if err != nil {
		logger.Error(fmt.Sprintf("❌ Connection failed: %s", err.Error()))
		os.Exit(1)
	}
	defer engine.Close()

	logger.Debug("Starting comparison...")
	differ := NewDiffer(config, engine, logger)

	err = differ.Run(ctx)
	close(exited) // Signal that the comparison has exited

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("")
			logger.Info("⚠️  Comparison cancelled by user")
			os.Exit(130)
		}
		logger.Error(fmt.Sprintf("❌ Comparison failed: %s", err.Error()))
		os.Exit(1)
	}

	logger.Info("")
	logger.Info("✅ Comparison completed successfully!")
}

// openEngine connects to the engine named by the subcommand. The SQL dialect
// the comparison query is generated for is fixed by this choice.
func openEngine(ctx context.Context, config *Config) (engines.Engine, error) {
	switch config.Engine {
	case "duckdb":
		return engines.OpenDuckDB(ctx, engines.DuckDBOptions{
			Path:       config.DuckDB.Path,
			InitScript: config.DuckDB.InitScript,
		})
	case "bigquery":
		return engines.OpenBigQuery(ctx, config.BigQuery.Project)
	case "postgres":
		return engines.OpenPostgres(ctx, engines.PostgresOptions{
			Host:     config.Database.Host,
			Port:     config.Database.Port,
			User:     config.Database.User,
			Password: config.Database.Password,
			Name:     config.Database.Name,
			SSLMode:  config.Database.SSLMode,
		})
	default:
		return nil, fmt.Errorf("unknown engine: %s", config.Engine)
	}
}

// printDiffConfig prints a table of configuration information
func printDiffConfig(config *Config) {
	logger.Info("")
	logger.Info("📋 Configuration:")
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Info(fmt.Sprintf("  Engine:            %s", config.Engine))
	logger.Info(fmt.Sprintf("  Table 1:           %s", config.Table1))
	logger.Info(fmt.Sprintf("  Table 2:           %s", config.Table2))
	logger.Info(fmt.Sprintf("  Key Columns:       %s", strings.Join(config.PKCols, ", ")))
	if len(config.IgnoreCols) > 0 {
		logger.Info(fmt.Sprintf("  Ignored Columns:   %s", strings.Join(config.IgnoreCols, ", ")))
	}
	if len(config.ScalarCasts) > 0 {
		logger.Info(fmt.Sprintf("  Scalar Casts:      %s", formatCasts(config.ScalarCasts)))
	}
	if config.Limit > 0 {
		logger.Info(fmt.Sprintf("  Limit:             %d", config.Limit))
	}

	switch config.Engine {
	case "duckdb":
		dbFile := config.DuckDB.Path
		if dbFile == "" {
			dbFile = "(in-memory)"
		}
		logger.Info(fmt.Sprintf("  Database File:     %s", dbFile))
		if config.DuckDB.InitScript != "" {
			logger.Info(fmt.Sprintf("  Init Script:       %s", config.DuckDB.InitScript))
		}
	case "bigquery":
		project := config.BigQuery.Project
		if project == "" {
			project = "(auto-detect)"
		}
		logger.Info(fmt.Sprintf("  Project:           %s", project))
	case "postgres":
		logger.Info(fmt.Sprintf("  Host:              %s", config.Database.Host))
		logger.Info(fmt.Sprintf("  Port:              %d", config.Database.Port))
		logger.Info(fmt.Sprintf("  User:              %s", config.Database.User))
		logger.Info(fmt.Sprintf("  Password:          %s", maskString(config.Database.Password)))
		logger.Info(fmt.Sprintf("  Database:          %s", config.Database.Name))
		logger.Info(fmt.Sprintf("  SSL Mode:          %s", config.Database.SSLMode))
	}

	target := config.Output
	if target == "" {
		target = "stdout"
	}
	logger.Info(fmt.Sprintf("  Output:            %s", target))
	if config.Compression != "none" {
		logger.Info(fmt.Sprintf("  Compression:       %s (level %d)", config.Compression, config.CompressionLevel))
	}
	if strings.HasPrefix(config.Output, "s3://") {
		if config.S3.Endpoint != "" {
			logger.Info(fmt.Sprintf("  S3 Endpoint:       %s", config.S3.Endpoint))
		}
		logger.Info(fmt.Sprintf("  S3 Region:         %s", config.S3.Region))
		logger.Info(fmt.Sprintf("  S3 Access Key:     %s", maskString(config.S3.AccessKey)))
	}
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// formatCasts renders the cast map as col=TYPE pairs in column order.
func formatCasts(casts map[string]dialects.CastType) string {
	cols := make([]string, 0, len(casts))
	for col := range casts {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	pairs := make([]string, 0, len(cols))
	for _, col := range cols {
		pairs = append(pairs, fmt.Sprintf("%s=%s", col, casts[col]))
	}
	return strings.Join(pairs, ", ")
}

// maskString masks sensitive strings (shows first 4 chars, rest as *)
func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
