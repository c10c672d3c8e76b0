package rehydrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"postgres-rehydrate/internal/database"
)

// mockConnector hands out pre-built sqlmock connections by database name
type mockConnector struct {
	dbs map[string]*sql.DB
}

func (mc *mockConnector) Connect(config database.DatabaseConfig) (*sql.DB, error) {
	db, ok := mc.dbs[config.Database]
	if !ok {
		return nil, fmt.Errorf("no mock for database %s", config.Database)
	}
	return db, nil
}

func (mc *mockConnector) Close(db *sql.DB) error { return nil }

func expectTables(mock sqlmock.Sqlmock, tables ...string) {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, table := range tables {
		rows.AddRow(table)
	}
	mock.ExpectQuery("SELECT table_name").WillReturnRows(rows)
}

func expectCount(mock sqlmock.Sqlmock, table string, count int64) {
	mock.ExpectQuery(fmt.Sprintf(`SELECT COUNT\(\*\) FROM "%s"`, table)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func newVerifierFixture(t *testing.T) (*Verifier, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	stagingDB, stagingMock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stagingDB.Close() })

	targetDB, targetMock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { targetDB.Close() })

	connector := &mockConnector{dbs: map[string]*sql.DB{
		"podcast_tmp": stagingDB,
		"podcast":     targetDB,
	}}
	verifier := NewVerifier(database.DatabaseConfig{Host: "localhost", Port: 5432, Username: "admin"},
		connector, "migrations_history", nil)
	return verifier, stagingMock, targetMock
}

func TestVerifier_MatchingCounts(t *testing.T) {
	verifier, stagingMock, targetMock := newVerifierFixture(t)

	expectTables(stagingMock, "episodes", "shows")
	expectTables(targetMock, "episodes", "shows")
	expectCount(stagingMock, "episodes", 10)
	expectCount(targetMock, "episodes", 10)
	expectCount(stagingMock, "shows", 3)
	expectCount(targetMock, "shows", 3)

	if err := verifier.Verify(context.Background(), "podcast_tmp", "podcast"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestVerifier_Mismatch(t *testing.T) {
	verifier, stagingMock, targetMock := newVerifierFixture(t)

	expectTables(stagingMock, "episodes")
	expectTables(targetMock, "episodes")
	expectCount(stagingMock, "episodes", 10)
	expectCount(targetMock, "episodes", 7)

	err := verifier.Verify(context.Background(), "podcast_tmp", "podcast")
	var verifyErr *VerifyError
	if !errors.As(err, &verifyErr) {
		t.Fatalf("Expected VerifyError, got %v", err)
	}
	if verifyErr.Table != "episodes" || verifyErr.Staging != 10 || verifyErr.Target != 7 {
		t.Errorf("Unexpected mismatch details: %+v", verifyErr)
	}
}

func TestVerifier_SkipsDroppedTables(t *testing.T) {
	verifier, stagingMock, targetMock := newVerifierFixture(t)

	// legacy_table was dropped by the schema migration and only exists in
	// staging, so it is not compared
	expectTables(stagingMock, "episodes", "legacy_table")
	expectTables(targetMock, "episodes")
	expectCount(stagingMock, "episodes", 5)
	expectCount(targetMock, "episodes", 5)

	if err := verifier.Verify(context.Background(), "podcast_tmp", "podcast"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := stagingMock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet staging expectations: %v", err)
	}
}
