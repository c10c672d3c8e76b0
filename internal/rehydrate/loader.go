package rehydrate

import (
	"context"
	"time"

	"postgres-rehydrate/internal/database"
	"postgres-rehydrate/internal/logging"
)

// Loader replays a full backup dump into a database with psql. The dump is
// plain SQL carrying both schema and data, exactly as the backup job wrote
// it.
type Loader struct {
	config  database.DatabaseConfig
	runner  CommandRunner
	logger  *logging.Logger
	timeout time.Duration
}

// NewLoader creates a new Loader instance
func NewLoader(config database.DatabaseConfig, runner CommandRunner, timeout time.Duration, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if timeout == 0 {
		timeout = 2 * time.Hour
	}
	return &Loader{config: config, runner: runner, logger: logger, timeout: timeout}
}

// Load replays the dump at dumpPath into the named database. The replay
// stops at the first error so a truncated or corrupt dump never leaves a
// half-loaded staging database behind unnoticed.
func (l *Loader) Load(ctx context.Context, dbName, dumpPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	args := append(connArgs(l.config, dbName),
		"--quiet",
		"--set", "ON_ERROR_STOP=1",
		"--file", dumpPath,
	)

	result, err := l.runner.Run(runCtx, "psql", args, RunOptions{Env: connEnv(l.config)})
	if err != nil {
		return &LoadError{
			Database: dbName,
			Dump:     dumpPath,
			Output:   result.CombinedOutput(),
			Cause:    err,
		}
	}

	l.logger.Debugf("Loaded %s into %s in %v", dumpPath, dbName, result.Duration)
	return nil
}
