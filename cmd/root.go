package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"postgres-rehydrate/internal/application"
	"postgres-rehydrate/internal/archive"
)

var cfgFile string

// CLI flag variables
var (
	// Target database flags
	targetHost     string
	targetPort     int
	targetUsername string
	targetPassword string
	targetDatabase string
	targetSSLMode  string

	// Admin flags
	adminUsername string
	adminPassword string
	maintenanceDB string

	// Run flags
	backupDate      string
	backupDomain    string
	stagingDatabase string
	ledgerTable     string
	passphrase      string
	keepTemp        bool
	verify          bool
	disableTriggers bool
	loadTimeout     time.Duration
	extractTimeout  time.Duration
	applyTimeout    time.Duration

	// Archive flags
	archiveProvider string
	archiveRoot     string

	// Migrator flags
	migrateCommand string
	migrateDir     string
	migrateEnvVar  string
	migrateTimeout time.Duration

	// Operation flags
	autoApprove bool
	verbose     bool
	quiet       bool
	logFile     string

	// Display flags
	noColor      bool
	theme        string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postgres-rehydrate",
	Short: "Replace a Postgres database's contents from a dated backup archive",
	Long: `postgres-rehydrate rebuilds a live Postgres database from a dated backup
archive while conforming to the current schema version.

The target database is dropped and recreated, the schema migrations are run
against it, and the backup is replayed into a staging database. The staging
data is then extracted as plain INSERT statements and applied to the target
in a single transaction, so a failure never leaves partial data behind.

Examples:
  # Rehydrate the podcast database from the backup taken on 2026-08-20
  postgres-rehydrate --host=db.internal --user=app --db=podcast \
                     --admin-user=postgres --date=2026-08-20 \
                     --archive-root=/var/backups

  # Use a configuration file and keep the staging database for inspection
  postgres-rehydrate --config=rehydrate.yaml --date=2026-08-20 --keep-temp

  # Verify row counts after the apply and emit a JSON report
  postgres-rehydrate --config=rehydrate.yaml --date=2026-08-20 --verify --format=json`,
	RunE: runRehydration,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.postgres-rehydrate.yaml)")

	// Target database flags
	rootCmd.Flags().StringVar(&targetHost, "host", "", "database server host")
	rootCmd.Flags().IntVar(&targetPort, "port", 5432, "database server port")
	rootCmd.Flags().StringVar(&targetUsername, "user", "", "application database username")
	rootCmd.Flags().StringVar(&targetPassword, "password", "", "application database password")
	rootCmd.Flags().StringVar(&targetDatabase, "db", "", "target database name")
	rootCmd.Flags().StringVar(&targetSSLMode, "sslmode", "disable", "libpq sslmode for connections")

	// Admin flags
	rootCmd.Flags().StringVar(&adminUsername, "admin-user", "", "administrative username for drop/create/terminate")
	rootCmd.Flags().StringVar(&adminPassword, "admin-password", "", "administrative password")
	rootCmd.Flags().StringVar(&maintenanceDB, "maintenance-db", "postgres", "maintenance database for administrative connections")

	// Run flags
	rootCmd.Flags().StringVar(&backupDate, "date", "", "backup date to rehydrate from (as written in the archive name)")
	rootCmd.Flags().StringVar(&backupDomain, "domain", "", "backup domain (defaults to the target database name)")
	rootCmd.Flags().StringVar(&stagingDatabase, "staging-db", "", "staging database name (default <target>_tmp)")
	rootCmd.Flags().StringVar(&ledgerTable, "ledger-table", "migrations_history", "migration ledger table excluded from data extraction")
	rootCmd.Flags().StringVar(&passphrase, "passphrase", "", "passphrase for encrypted archives")
	rootCmd.Flags().BoolVar(&keepTemp, "keep-temp", false, "keep the staging database and work files after the run")
	rootCmd.Flags().BoolVar(&verify, "verify", false, "compare per-table row counts between staging and target after the apply")
	rootCmd.Flags().BoolVar(&disableTriggers, "disable-triggers", false, "apply data with session_replication_role=replica (requires superuser)")
	rootCmd.Flags().DurationVar(&loadTimeout, "load-timeout", 2*time.Hour, "timeout for replaying the backup into staging")
	rootCmd.Flags().DurationVar(&extractTimeout, "extract-timeout", 2*time.Hour, "timeout for extracting data from staging")
	rootCmd.Flags().DurationVar(&applyTimeout, "apply-timeout", 2*time.Hour, "timeout for applying data to the target")

	// Archive flags. The cloud providers need credentials and are configured
	// through the config file.
	rootCmd.Flags().StringVar(&archiveProvider, "archive-provider", "local", "backup store provider (local, s3, gcs, azure)")
	rootCmd.Flags().StringVar(&archiveRoot, "archive-root", "", "archive directory for the local provider")

	// Migrator flags
	rootCmd.Flags().StringVar(&migrateCommand, "migrate-cmd", "", "schema migration command (default \"alembic upgrade head\")")
	rootCmd.Flags().StringVar(&migrateDir, "migrate-dir", "", "directory to run the migration command in")
	rootCmd.Flags().StringVar(&migrateEnvVar, "migrate-env-var", "DB_NAME", "environment variable carrying the database name to the migration tool")
	rootCmd.Flags().DurationVar(&migrateTimeout, "migrate-timeout", 10*time.Minute, "timeout for the schema migration")

	// Operation flags
	rootCmd.Flags().BoolVarP(&autoApprove, "auto-approve", "y", false, "skip the destructive-operation confirmation prompt")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to file instead of stderr")

	// Display flags
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.Flags().StringVar(&theme, "theme", "dark", "color theme (dark, light, high-contrast, auto)")
	rootCmd.Flags().StringVar(&outputFormat, "format", "text", "report format (text, json, yaml)")

	// Bind flags to viper
	viper.BindPFlag("target.host", rootCmd.Flags().Lookup("host"))
	viper.BindPFlag("target.port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("target.username", rootCmd.Flags().Lookup("user"))
	viper.BindPFlag("target.password", rootCmd.Flags().Lookup("password"))
	viper.BindPFlag("target.database", rootCmd.Flags().Lookup("db"))
	viper.BindPFlag("target.sslmode", rootCmd.Flags().Lookup("sslmode"))

	viper.BindPFlag("admin.username", rootCmd.Flags().Lookup("admin-user"))
	viper.BindPFlag("admin.password", rootCmd.Flags().Lookup("admin-password"))
	viper.BindPFlag("admin.maintenance_db", rootCmd.Flags().Lookup("maintenance-db"))

	viper.BindPFlag("rehydration.date", rootCmd.Flags().Lookup("date"))
	viper.BindPFlag("rehydration.domain", rootCmd.Flags().Lookup("domain"))
	viper.BindPFlag("rehydration.staging_database", rootCmd.Flags().Lookup("staging-db"))
	viper.BindPFlag("rehydration.ledger_table", rootCmd.Flags().Lookup("ledger-table"))
	viper.BindPFlag("rehydration.passphrase", rootCmd.Flags().Lookup("passphrase"))
	viper.BindPFlag("rehydration.keep_temp", rootCmd.Flags().Lookup("keep-temp"))
	viper.BindPFlag("rehydration.verify", rootCmd.Flags().Lookup("verify"))
	viper.BindPFlag("rehydration.disable_triggers", rootCmd.Flags().Lookup("disable-triggers"))
	viper.BindPFlag("rehydration.load_timeout", rootCmd.Flags().Lookup("load-timeout"))
	viper.BindPFlag("rehydration.extract_timeout", rootCmd.Flags().Lookup("extract-timeout"))
	viper.BindPFlag("rehydration.apply_timeout", rootCmd.Flags().Lookup("apply-timeout"))

	viper.BindPFlag("archive.provider", rootCmd.Flags().Lookup("archive-provider"))
	viper.BindPFlag("archive.local.root", rootCmd.Flags().Lookup("archive-root"))

	viper.BindPFlag("migrator.work_dir", rootCmd.Flags().Lookup("migrate-dir"))
	viper.BindPFlag("migrator.env_var", rootCmd.Flags().Lookup("migrate-env-var"))
	viper.BindPFlag("migrator.timeout", rootCmd.Flags().Lookup("migrate-timeout"))

	viper.BindPFlag("auto_approve", rootCmd.Flags().Lookup("auto-approve"))
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.Flags().Lookup("quiet"))
	viper.BindPFlag("log_file", rootCmd.Flags().Lookup("log-file"))

	viper.BindPFlag("display.theme", rootCmd.Flags().Lookup("theme"))
	viper.BindPFlag("display.output_format", rootCmd.Flags().Lookup("format"))
}

// runRehydration is the main execution function for the CLI
func runRehydration(cmd *cobra.Command, args []string) error {
	if err := validateFlags(); err != nil {
		return err
	}

	config, err := buildConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	app, err := application.NewApplication(*config)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run()
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	// Without a config file the connection parameters must come from flags
	if cfgFile == "" {
		missingFlags := []string{}

		if targetHost == "" {
			missingFlags = append(missingFlags, "--host")
		}
		if targetUsername == "" {
			missingFlags = append(missingFlags, "--user")
		}
		if targetDatabase == "" {
			missingFlags = append(missingFlags, "--db")
		}
		if adminUsername == "" {
			missingFlags = append(missingFlags, "--admin-user")
		}

		if len(missingFlags) > 0 {
			return fmt.Errorf("required flags missing: %v\nUse --config to specify a configuration file, or provide all required connection parameters", missingFlags)
		}
	}

	return nil
}

// buildConfig builds the application configuration from CLI flags and config file
func buildConfig(cmd *cobra.Command) (*application.Config, error) {
	config := &application.Config{}

	// Load from viper (combines config file and CLI flags)
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Override with CLI flags if provided
	if targetHost != "" {
		config.Target.Host = targetHost
	}
	if cmd.Flags().Changed("port") {
		config.Target.Port = targetPort
	}
	if targetUsername != "" {
		config.Target.Username = targetUsername
	}
	if targetPassword != "" {
		config.Target.Password = targetPassword
	}
	if targetDatabase != "" {
		config.Target.Database = targetDatabase
	}
	if cmd.Flags().Changed("sslmode") {
		config.Target.SSLMode = targetSSLMode
	}

	if adminUsername != "" {
		config.Admin.Username = adminUsername
	}
	if adminPassword != "" {
		config.Admin.Password = adminPassword
	}
	if cmd.Flags().Changed("maintenance-db") {
		config.Admin.MaintenanceDB = maintenanceDB
	}

	if backupDate != "" {
		config.Rehydration.Date = backupDate
	}
	if backupDomain != "" {
		config.Rehydration.Domain = backupDomain
	}
	if stagingDatabase != "" {
		config.Rehydration.StagingDatabase = stagingDatabase
	}
	if cmd.Flags().Changed("ledger-table") {
		config.Rehydration.LedgerTable = ledgerTable
	}
	if passphrase != "" {
		config.Rehydration.Passphrase = passphrase
	}
	if cmd.Flags().Changed("keep-temp") {
		config.Rehydration.KeepTemp = keepTemp
	}
	if cmd.Flags().Changed("verify") {
		config.Rehydration.Verify = verify
	}
	if cmd.Flags().Changed("disable-triggers") {
		config.Rehydration.DisableTriggers = disableTriggers
	}
	if cmd.Flags().Changed("load-timeout") {
		config.Rehydration.LoadTimeout = loadTimeout
	}
	if cmd.Flags().Changed("extract-timeout") {
		config.Rehydration.ExtractTimeout = extractTimeout
	}
	if cmd.Flags().Changed("apply-timeout") {
		config.Rehydration.ApplyTimeout = applyTimeout
	}

	if cmd.Flags().Changed("archive-provider") || config.Archive.Provider == "" {
		config.Archive.Provider = archive.StoreProviderType(archiveProvider)
	}
	if archiveRoot != "" {
		config.Archive.Local = &archive.LocalConfig{Root: archiveRoot}
	}

	if migrateCommand != "" {
		config.Migrator.Argv = strings.Fields(migrateCommand)
	}
	if migrateDir != "" {
		config.Migrator.WorkDir = migrateDir
	}
	if cmd.Flags().Changed("migrate-env-var") {
		config.Migrator.EnvVar = migrateEnvVar
	}
	if cmd.Flags().Changed("migrate-timeout") {
		config.Migrator.Timeout = migrateTimeout
	}

	if cmd.Flags().Changed("auto-approve") {
		config.AutoApprove = autoApprove
	}
	if cmd.Flags().Changed("verbose") {
		config.Verbose = verbose
	}
	if cmd.Flags().Changed("quiet") {
		config.Quiet = quiet
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	if cmd.Flags().Changed("theme") || config.Display.Theme == "" {
		config.Display.Theme = theme
	}
	if cmd.Flags().Changed("format") || config.Display.OutputFormat == "" {
		config.Display.OutputFormat = outputFormat
	}
	if cmd.Flags().Changed("no-color") {
		config.Display.ColorEnabled = !noColor
	} else if !viper.IsSet("display.color_enabled") {
		config.Display.ColorEnabled = true
	}

	return config, nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".postgres-rehydrate" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".postgres-rehydrate")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("POSTGRES_REHYDRATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for postgres-rehydrate",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("postgres-rehydrate version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
	rootCmd.AddCommand(createArchivesCommand())
}
