package rehydrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "postgres-rehydrate/internal/errors"
	"postgres-rehydrate/internal/logging"
)

// Provisioner drops and creates databases over an administrative connection
// to the maintenance database. Drops contend with lingering sessions, so a
// refused drop drains the database again and retries with backoff.
type Provisioner struct {
	db           *sql.DB
	reaper       *Reaper
	retryHandler *apperrors.RetryHandler
	logger       *logging.Logger
}

// NewProvisioner creates a new Provisioner instance
func NewProvisioner(db *sql.DB, reaper *Reaper, logger *logging.Logger) *Provisioner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Provisioner{
		db:           db,
		reaper:       reaper,
		retryHandler: apperrors.NewDefaultRetryHandler(),
		logger:       logger,
	}
}

// SetRetryHandler overrides the backoff policy for contended drops
func (p *Provisioner) SetRetryHandler(handler *apperrors.RetryHandler) {
	p.retryHandler = handler
}

// Exists reports whether the named database exists
func (p *Provisioner) Exists(ctx context.Context, database string) (bool, error) {
	var one int
	err := p.db.QueryRowContext(ctx,
		"SELECT 1 FROM pg_database WHERE datname = $1", database).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &ProvisionError{Database: database, Op: "exists", Cause: err}
	}
	return true, nil
}

// Drop removes the named database if it exists. A drop refused because
// sessions reconnected is retried after draining them again.
func (p *Provisioner) Drop(ctx context.Context, database string) error {
	exists, err := p.Exists(ctx, database)
	if err != nil {
		return err
	}
	if !exists {
		p.logger.Debugf("Database %s does not exist, nothing to drop", database)
		return nil
	}

	err = p.retryHandler.Retry(ctx, func() error {
		if _, err := p.reaper.Terminate(ctx, database); err != nil {
			return err
		}
		_, err := p.db.ExecContext(ctx,
			fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdentifier(database)))
		return err
	})
	if err != nil {
		return &ProvisionError{Database: database, Op: "drop", Cause: err}
	}

	p.logger.Debugf("Dropped database %s", database)
	return nil
}

// Create creates the named database
func (p *Provisioner) Create(ctx context.Context, database string) error {
	_, err := p.db.ExecContext(ctx,
		fmt.Sprintf("CREATE DATABASE %s", quoteIdentifier(database)))
	if err != nil {
		return &ProvisionError{Database: database, Op: "create", Cause: err}
	}

	p.logger.Debugf("Created database %s", database)
	return nil
}

// Recreate drops the named database and creates it empty. The operation is
// idempotent, a missing database is simply created.
func (p *Provisioner) Recreate(ctx context.Context, database string) error {
	if err := p.Drop(ctx, database); err != nil {
		return err
	}
	return p.Create(ctx, database)
}

// quoteIdentifier quotes a Postgres identifier. Database names come from
// operator configuration, not from queries, but they still pass through
// DDL as identifiers and cannot be bound as parameters.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
