package rehydrate

import (
	"fmt"
	"strconv"

	"postgres-rehydrate/internal/database"
)

// connArgs builds the connection arguments shared by the Postgres client
// tools for the given database
func connArgs(config database.DatabaseConfig, dbName string) []string {
	return []string{
		"--host", config.Host,
		"--port", strconv.Itoa(config.Port),
		"--username", config.Username,
		"--no-password",
		"--dbname", dbName,
	}
}

// connEnv builds the environment the client tools read credentials from
func connEnv(config database.DatabaseConfig) []string {
	env := []string{fmt.Sprintf("PGPASSWORD=%s", config.Password)}
	if config.SSLMode != "" {
		env = append(env, fmt.Sprintf("PGSSLMODE=%s", config.SSLMode))
	}
	return env
}
