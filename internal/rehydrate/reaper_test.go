package rehydrate

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestReaper_Terminate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"pg_terminate_backend"}).
		AddRow(true).
		AddRow(true).
		AddRow(false)
	mock.ExpectQuery("SELECT pg_terminate_backend").
		WithArgs("podcast").
		WillReturnRows(rows)

	reaper := NewReaper(db, nil)
	terminated, err := reaper.Terminate(context.Background(), "podcast")
	if err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if terminated != 2 {
		t.Errorf("Expected 2 terminated sessions, got %d", terminated)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestReaper_TerminateNoSessions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// A database with no sessions, or one that does not exist, returns no rows
	mock.ExpectQuery("SELECT pg_terminate_backend").
		WithArgs("missing_db").
		WillReturnRows(sqlmock.NewRows([]string{"pg_terminate_backend"}))

	reaper := NewReaper(db, nil)
	terminated, err := reaper.Terminate(context.Background(), "missing_db")
	if err != nil {
		t.Fatalf("Expected no error for missing database, got %v", err)
	}
	if terminated != 0 {
		t.Errorf("Expected 0 terminated sessions, got %d", terminated)
	}
}

func TestReaper_TerminateQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT pg_terminate_backend").
		WithArgs("podcast").
		WillReturnError(errors.New("permission denied"))

	reaper := NewReaper(db, nil)
	_, err = reaper.Terminate(context.Background(), "podcast")
	if err == nil {
		t.Fatal("Expected error")
	}

	var drainErr *ConnectionDrainError
	if !errors.As(err, &drainErr) {
		t.Fatalf("Expected ConnectionDrainError, got %T", err)
	}
	if drainErr.Database != "podcast" {
		t.Errorf("Expected database podcast, got %s", drainErr.Database)
	}
}
