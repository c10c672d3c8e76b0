package rehydrate

import (
	"context"
	"time"

	"postgres-rehydrate/internal/database"
	"postgres-rehydrate/internal/logging"
)

// Extractor produces a data-only dump from the staging database with
// pg_dump. Rows come out as plain INSERT statements so they replay against
// a schema that was created independently, and the migration ledger is
// excluded because the target's ledger already reflects the current schema.
type Extractor struct {
	config      database.DatabaseConfig
	runner      CommandRunner
	logger      *logging.Logger
	ledgerTable string
	timeout     time.Duration
}

// NewExtractor creates a new Extractor instance
func NewExtractor(config database.DatabaseConfig, runner CommandRunner, ledgerTable string, timeout time.Duration, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if ledgerTable == "" {
		ledgerTable = "migrations_history"
	}
	if timeout == 0 {
		timeout = 2 * time.Hour
	}
	return &Extractor{
		config:      config,
		runner:      runner,
		logger:      logger,
		ledgerTable: ledgerTable,
		timeout:     timeout,
	}
}

// Extract dumps the data of the named database into destPath
func (e *Extractor) Extract(ctx context.Context, dbName, destPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(connArgs(e.config, dbName),
		"--data-only",
		"--inserts",
		"--no-owner",
		"--no-privileges",
		"--exclude-table", e.ledgerTable,
		"--file", destPath,
	)

	result, err := e.runner.Run(runCtx, "pg_dump", args, RunOptions{Env: connEnv(e.config)})
	if err != nil {
		return &ExtractError{
			Database: dbName,
			Output:   result.CombinedOutput(),
			Cause:    err,
		}
	}

	e.logger.Debugf("Extracted data from %s to %s in %v", dbName, destPath, result.Duration)
	return nil
}
