package rehydrate

import (
	"context"
	"database/sql"

	"postgres-rehydrate/internal/logging"
)

// Reaper terminates client sessions connected to a database. It operates
// over an administrative connection to the maintenance database, never to
// the database being drained.
type Reaper struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewReaper creates a new Reaper instance
func NewReaper(db *sql.DB, logger *logging.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Reaper{db: db, logger: logger}
}

// Terminate kills every backend connected to the named database except the
// calling one and returns the number of sessions terminated. A database with
// no sessions, or one that does not exist, yields zero without error.
func (r *Reaper) Terminate(ctx context.Context, database string) (int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1
		  AND pid <> pg_backend_pid()`, database)
	if err != nil {
		r.logger.LogSessionTermination(database, 0, err)
		return 0, &ConnectionDrainError{Database: database, Cause: err}
	}
	defer rows.Close()

	terminated := 0
	for rows.Next() {
		var ok bool
		if err := rows.Scan(&ok); err != nil {
			r.logger.LogSessionTermination(database, terminated, err)
			return terminated, &ConnectionDrainError{Database: database, Cause: err}
		}
		if ok {
			terminated++
		}
	}
	if err := rows.Err(); err != nil {
		r.logger.LogSessionTermination(database, terminated, err)
		return terminated, &ConnectionDrainError{Database: database, Cause: err}
	}

	r.logger.LogSessionTermination(database, terminated, nil)
	return terminated, nil
}
