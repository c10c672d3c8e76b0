package database

import (
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestService_GetVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT version\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).
			AddRow("PostgreSQL 16.3 on x86_64-pc-linux-gnu"))

	service := NewService()
	version, err := service.GetVersion(db)
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if !strings.HasPrefix(version, "PostgreSQL") {
		t.Errorf("Unexpected version string: %s", version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestService_GetVersionNilConnection(t *testing.T) {
	service := NewService()
	if _, err := service.GetVersion(nil); err == nil {
		t.Error("Expected error for nil connection")
	}
}

func TestService_CloseNilConnection(t *testing.T) {
	service := NewService()
	if err := service.Close(nil); err != nil {
		t.Errorf("Expected nil close to succeed, got %v", err)
	}
}
