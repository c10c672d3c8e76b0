package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

This command outputs a complete configuration template with all available
options. Redirect the output to a file and customize it for your environment.

Examples:
  postgres-rehydrate config > rehydrate.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(sampleConfig)
		},
	}
}

const sampleConfig = `# postgres-rehydrate configuration file
# Complete configuration template with all available options

# Target database connection (the database being rehydrated)
target:
  host: localhost          # Database server hostname or IP
  port: 5432               # Database server port
  username: app            # Application database username
  password: ""             # Application password (use env var for security)
  database: podcast        # Target database name
  sslmode: disable         # libpq sslmode (disable, require, verify-full, ...)
  timeout: 30s             # Connection timeout

# Administrative credentials for drop/create/terminate. The admin role needs
# CREATEDB and the right to terminate backends.
admin:
  username: postgres
  password: ""
  maintenance_db: postgres # Database administrative connections attach to

# Run settings
rehydration:
  date: ""                 # Backup date, as written in the archive name
  domain: ""               # Backup domain (defaults to the target database name)
  staging_database: ""     # Staging database name (default <target>_tmp)
  ledger_table: migrations_history  # Migration ledger excluded from extraction
  passphrase: ""           # Passphrase for .enc archives
  keep_temp: false         # Keep the staging database and work files
  verify: false            # Compare row counts between staging and target
  disable_triggers: false  # Apply with session_replication_role=replica
  load_timeout: 2h
  extract_timeout: 2h
  apply_timeout: 2h

# Backup store. Exactly one provider block is used.
archive:
  provider: local          # local, s3, gcs or azure
  local:
    root: /var/backups
  # s3:
  #   bucket: my-backups
  #   region: us-east-1
  #   prefix: ""
  #   access_key: ""       # Empty uses the default AWS credential chain
  #   secret_key: ""
  # gcs:
  #   bucket: my-backups
  #   prefix: ""
  #   credentials_path: "" # Empty uses application default credentials
  # azure:
  #   account_name: myaccount
  #   account_key: ""
  #   container_name: backups
  #   prefix: ""

# Schema migration command, run with the database name in env_var
migrator:
  argv: ["alembic", "upgrade", "head"]
  work_dir: ""             # Directory holding the migration scripts
  env_var: DB_NAME
  env: []                  # Extra KEY=VALUE pairs for the migration tool
  timeout: 10m

# Operation settings
auto_approve: false        # Skip the destructive-operation confirmation prompt
verbose: false
quiet: false
log_file: ""               # Empty logs to stderr

# Output settings
display:
  color_enabled: true
  theme: dark              # dark, light, high-contrast, auto
  output_format: text      # text, json, yaml

# Security recommendations:
# 1. Store passwords in environment variables:
#    export POSTGRES_REHYDRATE_TARGET_PASSWORD=your_password
#    export POSTGRES_REHYDRATE_ADMIN_PASSWORD=your_password
# 2. Set restrictive file permissions: chmod 600 rehydrate.yaml
`
