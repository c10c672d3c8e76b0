package rehydrate

import "fmt"

// ConnectionDrainError reports a failure to terminate sessions connected to
// a database
type ConnectionDrainError struct {
	Database string
	Cause    error
}

func (e *ConnectionDrainError) Error() string {
	return fmt.Sprintf("failed to drain connections to %s: %v", e.Database, e.Cause)
}

func (e *ConnectionDrainError) Unwrap() error { return e.Cause }

// ProvisionError reports a failure to drop or create a database
type ProvisionError struct {
	Database string
	Op       string // "drop", "create", "exists"
	Cause    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to %s database %s: %v", e.Op, e.Database, e.Cause)
}

func (e *ProvisionError) Unwrap() error { return e.Cause }

// SchemaMigrationError reports a failed schema migration run. Output holds
// the migration tool's combined output for diagnosis.
type SchemaMigrationError struct {
	Database string
	Output   string
	Cause    error
}

func (e *SchemaMigrationError) Error() string {
	return fmt.Sprintf("schema migration failed for %s: %v", e.Database, e.Cause)
}

func (e *SchemaMigrationError) Unwrap() error { return e.Cause }

// LoadError reports a failure to replay a backup dump into a database
type LoadError struct {
	Database string
	Dump     string
	Output   string
	Cause    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s into %s: %v", e.Dump, e.Database, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ExtractError reports a failure to produce a data-only dump from the
// staging database
type ExtractError struct {
	Database string
	Output   string
	Cause    error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract data from %s: %v", e.Database, e.Cause)
}

func (e *ExtractError) Unwrap() error { return e.Cause }

// ApplyError reports a failure to apply extracted data to the target
// database. The apply runs in a single transaction, so the target keeps its
// pre-apply contents when this error is returned.
type ApplyError struct {
	Database string
	Output   string
	Cause    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply data to %s: %v", e.Database, e.Cause)
}

func (e *ApplyError) Unwrap() error { return e.Cause }

// VerifyError reports a row count mismatch between staging and target after
// the apply phase
type VerifyError struct {
	Table   string
	Staging int64
	Target  int64
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("row count mismatch for table %s: staging has %d rows, target has %d",
		e.Table, e.Staging, e.Target)
}
