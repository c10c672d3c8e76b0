package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"postgres-rehydrate/internal/archive"
	"postgres-rehydrate/internal/confirmation"
	"postgres-rehydrate/internal/database"
	"postgres-rehydrate/internal/display"
	appErrors "postgres-rehydrate/internal/errors"
	"postgres-rehydrate/internal/logging"
	"postgres-rehydrate/internal/rehydrate"
)

// RehydrationConfig holds the run-specific settings
type RehydrationConfig struct {
	Domain          string        `mapstructure:"domain" yaml:"domain"`
	Date            string        `mapstructure:"date" yaml:"date"`
	StagingDatabase string        `mapstructure:"staging_database" yaml:"staging_database"`
	LedgerTable     string        `mapstructure:"ledger_table" yaml:"ledger_table"`
	Passphrase      string        `mapstructure:"passphrase" yaml:"passphrase"`
	KeepTemp        bool          `mapstructure:"keep_temp" yaml:"keep_temp"`
	Verify          bool          `mapstructure:"verify" yaml:"verify"`
	DisableTriggers bool          `mapstructure:"disable_triggers" yaml:"disable_triggers"`
	LoadTimeout     time.Duration `mapstructure:"load_timeout" yaml:"load_timeout"`
	ExtractTimeout  time.Duration `mapstructure:"extract_timeout" yaml:"extract_timeout"`
	ApplyTimeout    time.Duration `mapstructure:"apply_timeout" yaml:"apply_timeout"`
}

// DisplayConfig holds the output settings
type DisplayConfig struct {
	Theme        string `mapstructure:"theme" yaml:"theme"`
	ColorEnabled bool   `mapstructure:"color_enabled" yaml:"color_enabled"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
}

// Config holds the application configuration
type Config struct {
	Target      database.DatabaseConfig         `mapstructure:"target" yaml:"target"`
	Admin       database.AdminConfig            `mapstructure:"admin" yaml:"admin"`
	Rehydration RehydrationConfig               `mapstructure:"rehydration" yaml:"rehydration"`
	Archive     archive.StoreConfig             `mapstructure:"archive" yaml:"archive"`
	Migrator    rehydrate.CommandMigratorConfig `mapstructure:"migrator" yaml:"migrator"`
	Display     DisplayConfig                   `mapstructure:"display" yaml:"display"`
	AutoApprove bool                            `mapstructure:"auto_approve" yaml:"auto_approve"`
	Verbose     bool                            `mapstructure:"verbose" yaml:"verbose"`
	Quiet       bool                            `mapstructure:"quiet" yaml:"quiet"`
	LogFile     string                          `mapstructure:"log_file" yaml:"log_file"`
}

// SetDefaults fills in default configuration values
func (c *Config) SetDefaults() {
	c.Target.SetDefaults()
	c.Migrator.SetDefaults()
	if c.Rehydration.StagingDatabase == "" && c.Target.Database != "" {
		c.Rehydration.StagingDatabase = c.Target.Database + "_tmp"
	}
	if c.Rehydration.LedgerTable == "" {
		c.Rehydration.LedgerTable = "migrations_history"
	}
	if c.Rehydration.Domain == "" {
		c.Rehydration.Domain = c.Target.Database
	}
	if c.Display.Theme == "" {
		c.Display.Theme = "dark"
	}
	if c.Display.OutputFormat == "" {
		c.Display.OutputFormat = "text"
	}
}

// Validate checks that the configuration is complete
func (c *Config) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return err
	}
	if err := c.Admin.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.Migrator.Validate(); err != nil {
		return err
	}
	if c.Rehydration.Date == "" {
		return fmt.Errorf("backup date is required")
	}
	switch c.Display.OutputFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q, must be text, json or yaml", c.Display.OutputFormat)
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("verbose and quiet are mutually exclusive")
	}
	return nil
}

// Application wires the rehydration components together and runs them
type Application struct {
	config          Config
	logger          *logging.Logger
	display         *display.Service
	dbService       *database.Service
	confirmer       confirmation.Service
	shutdownHandler *appErrors.GracefulShutdownHandler
	reportOut       io.Writer
}

// NewApplication creates a new application instance
func NewApplication(config Config) (*Application, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logLevel := logging.LogLevelNormal
	if config.Quiet {
		logLevel = logging.LogLevelQuiet
	} else if config.Verbose {
		logLevel = logging.LogLevelVerbose
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:   logLevel,
		Output:  os.Stderr,
		LogFile: config.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	displayService := display.NewService(display.Options{
		Theme:        config.Display.Theme,
		ColorEnabled: config.Display.ColorEnabled,
		Quiet:        config.Quiet || config.Display.OutputFormat != "text",
		Output:       os.Stdout,
	})

	return &Application{
		config:          config,
		logger:          logger,
		display:         displayService,
		dbService:       database.NewServiceWithLogger(logger),
		confirmer:       confirmation.NewService(config.Display.ColorEnabled),
		shutdownHandler: appErrors.NewGracefulShutdownHandler(),
		reportOut:       os.Stdout,
	}, nil
}

// Run executes a full rehydration
func (app *Application) Run() error {
	runID := uuid.NewString()
	ctx := logging.CreateContextWithRunID(context.Background(), runID)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The first signal cancels the run context so the orchestrator can fail
	// the current phase and clean up; a second signal exits immediately.
	app.shutdownHandler.RegisterShutdownFunc(func() error {
		app.logger.Warn("Received shutdown signal, canceling run")
		cancel()
		return nil
	})
	app.shutdownHandler.Start()
	defer app.shutdownHandler.Stop()

	approved, err := app.confirmer.Confirm(confirmation.Request{
		TargetDatabase:  app.config.Target.Database,
		StagingDatabase: app.config.Rehydration.StagingDatabase,
		Domain:          app.config.Rehydration.Domain,
		Date:            app.config.Rehydration.Date,
	}, app.config.AutoApprove)
	if err != nil {
		return err
	}
	if !approved {
		app.logger.Info("Rehydration declined by operator")
		return nil
	}

	app.logger.WithField("run_id", runID).Info("Rehydration starting")

	adminDB, err := app.dbService.Connect(app.config.Target.AsAdmin(app.config.Admin))
	if err != nil {
		app.handleError(err)
		return err
	}
	defer app.dbService.Close(adminDB)

	if version, err := app.dbService.GetVersion(adminDB); err == nil {
		app.logger.WithField("server_version", version).Info("Connected to Postgres")
	} else {
		app.logger.Warnf("Failed to read server version: %v", err)
	}

	store, err := archive.NewStore(ctx, app.config.Archive)
	if err != nil {
		app.handleError(err)
		return err
	}

	runner := rehydrate.NewExecRunner(app.logger)
	reaper := rehydrate.NewReaper(adminDB, app.logger)
	provisioner := rehydrate.NewProvisioner(adminDB, reaper, app.logger)
	migrator := rehydrate.NewCommandMigrator(app.config.Migrator, runner, app.logger)

	reh := app.config.Rehydration
	loader := rehydrate.NewLoader(app.config.Target, runner, reh.LoadTimeout, app.logger)
	extractor := rehydrate.NewExtractor(app.config.Target, runner, reh.LedgerTable, reh.ExtractTimeout, app.logger)
	applier := rehydrate.NewApplier(app.config.Target, runner, reh.DisableTriggers, reh.ApplyTimeout, app.logger)
	verifier := rehydrate.NewVerifier(app.config.Target, app.dbService, reh.LedgerTable, app.logger)

	orchestrator := rehydrate.NewOrchestrator(
		store, reaper, provisioner, migrator, loader, extractor, applier, verifier,
		app.display, app.logger)

	report, runErr := orchestrator.Run(ctx, rehydrate.Options{
		TargetDatabase:  app.config.Target.Database,
		StagingDatabase: reh.StagingDatabase,
		Domain:          reh.Domain,
		Date:            reh.Date,
		Passphrase:      reh.Passphrase,
		KeepTemp:        reh.KeepTemp,
		Verify:          reh.Verify,
	})

	if report != nil {
		if err := renderReport(app.reportOut, app.config.Display.OutputFormat, report); err != nil {
			app.logger.Warnf("Failed to render report: %v", err)
		}
	}

	if runErr != nil {
		app.handleError(runErr)
		return runErr
	}

	app.logger.WithField("run_id", runID).Info("Rehydration completed")
	return nil
}

// renderReport writes the run report in the requested format. The text
// format is already covered by the progress output, so it only emits the
// structured formats.
func renderReport(w io.Writer, format string, report *rehydrate.Report) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		return yaml.NewEncoder(w).Encode(report)
	default:
		return nil
	}
}

// handleError logs an error and prints a user-facing message with hints
func (app *Application) handleError(err error) {
	classified := appErrors.NewErrorClassifier().ClassifyError(err)

	fmt.Fprintf(os.Stderr, "Error: %s\n", appErrors.FormatUserError(classified))

	var appErr *appErrors.AppError
	if errors.As(classified, &appErr) {
		app.logger.WithFields(map[string]interface{}{
			"error_type":  string(appErr.Type),
			"recoverable": appErr.IsRecoverable(),
		}).Error("Rehydration failed")

		app.provideTroubleshootingHints(appErr)
	}
}

// provideTroubleshootingHints prints hints for the common failure classes
func (app *Application) provideTroubleshootingHints(appErr *appErrors.AppError) {
	switch appErr.Type {
	case appErrors.ErrorTypeConnection:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- Check that the Postgres server is running\n")
		fmt.Fprintf(os.Stderr, "- Verify the host and port are correct\n")
		fmt.Fprintf(os.Stderr, "- Ensure network connectivity to the database server\n")

	case appErrors.ErrorTypePermission:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- Verify the admin username and password are correct\n")
		fmt.Fprintf(os.Stderr, "- The admin role needs CREATEDB and the right to terminate backends\n")

	case appErrors.ErrorTypeProvisioning:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- Another client may be reconnecting to the database during the drop\n")
		fmt.Fprintf(os.Stderr, "- Stop application services pointing at the target before rehydrating\n")

	case appErrors.ErrorTypeTimeout:
		fmt.Fprintf(os.Stderr, "\nTroubleshooting hints:\n")
		fmt.Fprintf(os.Stderr, "- Large dumps can exceed the default timeouts\n")
		fmt.Fprintf(os.Stderr, "- Increase load_timeout, extract_timeout or apply_timeout\n")
	}
}

// GetLogger returns the application logger
func (app *Application) GetLogger() *logging.Logger {
	return app.logger
}
