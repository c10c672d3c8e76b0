package database

import (
	"errors"
	"fmt"
	"time"
)

// DatabaseConfig holds the configuration parameters for a Postgres connection
type DatabaseConfig struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Database string        `mapstructure:"database" yaml:"database"`
	SSLMode  string        `mapstructure:"sslmode" yaml:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AdminConfig holds the elevated credentials used for database-level
// operations (drop/create/terminate). These are deliberately separate from
// the application role: provisioning manipulates database objects, not rows.
type AdminConfig struct {
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	MaintenanceDB string `mapstructure:"maintenance_db" yaml:"maintenance_db"`
}

// Validate checks if the database configuration has all required parameters
func (dc *DatabaseConfig) Validate() error {
	var errs []error

	if dc.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}

	if dc.Port <= 0 || dc.Port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}

	if dc.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}

	if dc.Database == "" {
		errs = append(errs, errors.New("database name is required"))
	}

	if dc.Timeout <= 0 {
		dc.Timeout = 30 * time.Second // Set default timeout
	}

	if len(errs) > 0 {
		return fmt.Errorf("database configuration validation failed: %v", errs)
	}

	return nil
}

// Validate checks if the administrative configuration is usable
func (ac *AdminConfig) Validate() error {
	if ac.Username == "" {
		return errors.New("admin configuration validation failed: username is required")
	}
	if ac.MaintenanceDB == "" {
		ac.MaintenanceDB = "postgres"
	}
	return nil
}

// DSN returns the libpq-style connection string for pgx
func (dc *DatabaseConfig) DSN() string {
	sslMode := dc.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		dc.Host, dc.Port, dc.Username, dc.Password, dc.Database, sslMode, int(dc.Timeout.Seconds()))
}

// WithDatabase returns a copy of the configuration pointing at another database
// on the same server
func (dc DatabaseConfig) WithDatabase(name string) DatabaseConfig {
	dc.Database = name
	return dc
}

// AsAdmin returns a copy of the configuration using the administrative role and
// the maintenance database. Database-level commands (DROP/CREATE DATABASE,
// pg_terminate_backend) must never run on a connection to the database they
// manipulate.
func (dc DatabaseConfig) AsAdmin(admin AdminConfig) DatabaseConfig {
	dc.Username = admin.Username
	dc.Password = admin.Password
	if admin.MaintenanceDB != "" {
		dc.Database = admin.MaintenanceDB
	} else {
		dc.Database = "postgres"
	}
	return dc
}

// SetDefaults sets default values for the configuration
func (dc *DatabaseConfig) SetDefaults() {
	if dc.Port == 0 {
		dc.Port = 5432
	}
	if dc.SSLMode == "" {
		dc.SSLMode = "disable"
	}
	if dc.Timeout == 0 {
		dc.Timeout = 30 * time.Second
	}
}
