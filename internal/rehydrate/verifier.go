package rehydrate

import (
	"context"
	"database/sql"
	"fmt"

	"postgres-rehydrate/internal/database"
	"postgres-rehydrate/internal/logging"
)

// Connector opens database connections for verification
type Connector interface {
	Connect(config database.DatabaseConfig) (*sql.DB, error)
	Close(db *sql.DB) error
}

// Verifier compares per-table row counts between the staging and target
// databases after an apply. The migration ledger is excluded, its contents
// legitimately differ between the two.
type Verifier struct {
	config      database.DatabaseConfig
	connector   Connector
	logger      *logging.Logger
	ledgerTable string
}

// NewVerifier creates a new Verifier instance
func NewVerifier(config database.DatabaseConfig, connector Connector, ledgerTable string, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if ledgerTable == "" {
		ledgerTable = "migrations_history"
	}
	return &Verifier{
		config:      config,
		connector:   connector,
		logger:      logger,
		ledgerTable: ledgerTable,
	}
}

// Verify checks that every data table in staging has the same row count in
// target. Tables that exist only in staging were dropped by the schema
// migration and are skipped, their data had nowhere to go.
func (v *Verifier) Verify(ctx context.Context, stagingDB, targetDB string) error {
	staging, err := v.connector.Connect(v.config.WithDatabase(stagingDB))
	if err != nil {
		return fmt.Errorf("failed to connect to staging for verification: %w", err)
	}
	defer v.connector.Close(staging)

	target, err := v.connector.Connect(v.config.WithDatabase(targetDB))
	if err != nil {
		return fmt.Errorf("failed to connect to target for verification: %w", err)
	}
	defer v.connector.Close(target)

	stagingTables, err := listTables(ctx, staging, v.ledgerTable)
	if err != nil {
		return fmt.Errorf("failed to list staging tables: %w", err)
	}
	targetTables, err := listTables(ctx, target, v.ledgerTable)
	if err != nil {
		return fmt.Errorf("failed to list target tables: %w", err)
	}

	targetSet := make(map[string]bool, len(targetTables))
	for _, table := range targetTables {
		targetSet[table] = true
	}

	checked := 0
	for _, table := range stagingTables {
		if !targetSet[table] {
			v.logger.Debugf("Table %s exists only in staging, skipping", table)
			continue
		}

		stagingCount, err := countRows(ctx, staging, table)
		if err != nil {
			return fmt.Errorf("failed to count rows in staging table %s: %w", table, err)
		}
		targetCount, err := countRows(ctx, target, table)
		if err != nil {
			return fmt.Errorf("failed to count rows in target table %s: %w", table, err)
		}

		if stagingCount != targetCount {
			return &VerifyError{Table: table, Staging: stagingCount, Target: targetCount}
		}
		checked++
	}

	v.logger.Debugf("Verified row counts for %d tables", checked)
	return nil
}

// listTables returns the public data tables of a database, ledger excluded
func listTables(ctx context.Context, db *sql.DB, ledgerTable string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		  AND table_name <> $1
		ORDER BY table_name`, ledgerTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// countRows counts the rows of a table
func countRows(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(table))).Scan(&count)
	return count, err
}
