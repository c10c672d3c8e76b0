package rehydrate

import (
	"context"
	"time"

	"postgres-rehydrate/internal/database"
	"postgres-rehydrate/internal/logging"
)

// Applier replays extracted data into the target database with psql. The
// whole apply runs in one transaction, so a failure leaves the target with
// its empty migrated schema instead of a partial data set.
type Applier struct {
	config database.DatabaseConfig
	runner CommandRunner
	logger *logging.Logger
	// disableTriggers replays with session_replication_role set to replica
	// so insert order does not have to honor foreign key dependencies.
	// Requires superuser on the target.
	disableTriggers bool
	timeout         time.Duration
}

// NewApplier creates a new Applier instance
func NewApplier(config database.DatabaseConfig, runner CommandRunner, disableTriggers bool, timeout time.Duration, logger *logging.Logger) *Applier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if timeout == 0 {
		timeout = 2 * time.Hour
	}
	return &Applier{
		config:          config,
		runner:          runner,
		logger:          logger,
		disableTriggers: disableTriggers,
		timeout:         timeout,
	}
}

// Apply replays the data dump at dataPath into the named database inside a
// single transaction
func (a *Applier) Apply(ctx context.Context, dbName, dataPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	args := append(connArgs(a.config, dbName),
		"--quiet",
		"--single-transaction",
		"--set", "ON_ERROR_STOP=1",
	)
	if a.disableTriggers {
		args = append(args, "--command", "SET session_replication_role = replica")
	}
	args = append(args, "--file", dataPath)

	result, err := a.runner.Run(runCtx, "psql", args, RunOptions{Env: connEnv(a.config)})
	if err != nil {
		return &ApplyError{
			Database: dbName,
			Output:   result.CombinedOutput(),
			Cause:    err,
		}
	}

	a.logger.Debugf("Applied %s to %s in %v", dataPath, dbName, result.Duration)
	return nil
}
