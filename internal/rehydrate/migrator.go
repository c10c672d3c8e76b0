package rehydrate

import (
	"context"
	"fmt"
	"time"

	"postgres-rehydrate/internal/logging"
)

// SchemaMigrator brings a database schema to the current version. The
// migration tool itself is external, only its success or failure matters
// here.
type SchemaMigrator interface {
	Migrate(ctx context.Context, database string) error
}

// CommandMigratorConfig configures an external migration command
type CommandMigratorConfig struct {
	// Argv is the migration command and its arguments
	Argv []string `mapstructure:"argv" yaml:"argv"`
	// WorkDir is the directory the command runs in, usually the directory
	// holding the migration scripts
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
	// EnvVar names the environment variable carrying the database name to
	// the migration tool
	EnvVar string `mapstructure:"env_var" yaml:"env_var"`
	// Env holds extra KEY=VALUE pairs passed to the command, typically the
	// connection settings the tool reads
	Env []string `mapstructure:"env" yaml:"env"`
	// Timeout bounds a single migration run
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults fills in default configuration values
func (c *CommandMigratorConfig) SetDefaults() {
	if len(c.Argv) == 0 {
		c.Argv = []string{"alembic", "upgrade", "head"}
	}
	if c.EnvVar == "" {
		c.EnvVar = "DB_NAME"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Minute
	}
}

// Validate checks the migrator configuration
func (c *CommandMigratorConfig) Validate() error {
	if len(c.Argv) == 0 {
		return fmt.Errorf("migrator command is required")
	}
	return nil
}

// CommandMigrator runs an external migration command against a database.
// The database name is handed to the tool through an environment variable.
type CommandMigrator struct {
	config CommandMigratorConfig
	runner CommandRunner
	logger *logging.Logger
}

// NewCommandMigrator creates a new CommandMigrator instance
func NewCommandMigrator(config CommandMigratorConfig, runner CommandRunner, logger *logging.Logger) *CommandMigrator {
	config.SetDefaults()
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &CommandMigrator{config: config, runner: runner, logger: logger}
}

// Migrate runs the migration command with the database name in the
// configured environment variable
func (cm *CommandMigrator) Migrate(ctx context.Context, database string) error {
	runCtx, cancel := context.WithTimeout(ctx, cm.config.Timeout)
	defer cancel()

	env := append([]string{}, cm.config.Env...)
	env = append(env, fmt.Sprintf("%s=%s", cm.config.EnvVar, database))

	result, err := cm.runner.Run(runCtx, cm.config.Argv[0], cm.config.Argv[1:], RunOptions{
		Dir: cm.config.WorkDir,
		Env: env,
	})
	if err != nil {
		return &SchemaMigrationError{
			Database: database,
			Output:   result.CombinedOutput(),
			Cause:    err,
		}
	}

	cm.logger.Debugf("Schema migration completed for %s in %v", database, result.Duration)
	return nil
}
