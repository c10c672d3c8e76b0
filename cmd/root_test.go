package cmd

import (
	"strings"
	"testing"
)

func resetFlags(t *testing.T) {
	t.Helper()
	prevCfg, prevVerbose, prevQuiet := cfgFile, verbose, quiet
	prevHost, prevUser, prevDB, prevAdmin := targetHost, targetUsername, targetDatabase, adminUsername
	t.Cleanup(func() {
		cfgFile, verbose, quiet = prevCfg, prevVerbose, prevQuiet
		targetHost, targetUsername, targetDatabase, adminUsername = prevHost, prevUser, prevDB, prevAdmin
	})
}

func TestValidateFlags_MutuallyExclusive(t *testing.T) {
	resetFlags(t)
	verbose = true
	quiet = true

	err := validateFlags()
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("Expected mutual exclusion error, got %v", err)
	}
}

func TestValidateFlags_RequiresConnectionWithoutConfig(t *testing.T) {
	resetFlags(t)
	cfgFile = ""
	verbose, quiet = false, false
	targetHost, targetUsername, targetDatabase, adminUsername = "", "", "", ""

	err := validateFlags()
	if err == nil {
		t.Fatal("Expected error for missing connection flags")
	}
	for _, flag := range []string{"--host", "--user", "--db", "--admin-user"} {
		if !strings.Contains(err.Error(), flag) {
			t.Errorf("Expected %s named in error: %v", flag, err)
		}
	}
}

func TestValidateFlags_ConfigFileSkipsFlagCheck(t *testing.T) {
	resetFlags(t)
	cfgFile = "rehydrate.yaml"
	verbose, quiet = false, false
	targetHost, targetUsername, targetDatabase, adminUsername = "", "", "", ""

	if err := validateFlags(); err != nil {
		t.Errorf("Expected config file to satisfy validation, got %v", err)
	}
}

func TestBuildConfig_FlagOverrides(t *testing.T) {
	resetFlags(t)
	cmd := rootCmd

	for flag, value := range map[string]string{
		"host":        "db.internal",
		"user":        "app",
		"db":          "podcast",
		"admin-user":  "postgres",
		"date":        "2026-08-20",
		"staging-db":  "podcast_scratch",
		"migrate-cmd": "alembic -c prod.ini upgrade head",
		"verify":      "true",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("Failed to set flag %s: %v", flag, err)
		}
	}
	t.Cleanup(func() {
		targetHost, targetUsername, targetDatabase, adminUsername = "", "", "", ""
		backupDate, stagingDatabase, migrateCommand = "", "", ""
		verify = false
	})

	config, err := buildConfig(cmd)
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	if config.Target.Host != "db.internal" || config.Target.Database != "podcast" {
		t.Errorf("Unexpected target config: %+v", config.Target)
	}
	if config.Admin.Username != "postgres" {
		t.Errorf("Unexpected admin config: %+v", config.Admin)
	}
	if config.Rehydration.Date != "2026-08-20" {
		t.Errorf("Unexpected date: %s", config.Rehydration.Date)
	}
	if config.Rehydration.StagingDatabase != "podcast_scratch" {
		t.Errorf("Unexpected staging database: %s", config.Rehydration.StagingDatabase)
	}
	if !config.Rehydration.Verify {
		t.Error("Expected verify enabled")
	}

	wantArgv := []string{"alembic", "-c", "prod.ini", "upgrade", "head"}
	if len(config.Migrator.Argv) != len(wantArgv) {
		t.Fatalf("Unexpected migrator argv: %v", config.Migrator.Argv)
	}
	for i, arg := range wantArgv {
		if config.Migrator.Argv[i] != arg {
			t.Errorf("Argv[%d]: expected %s, got %s", i, arg, config.Migrator.Argv[i])
		}
	}
}

func TestSampleConfigMentionsAllSections(t *testing.T) {
	for _, section := range []string{"target:", "admin:", "rehydration:", "archive:", "migrator:", "display:"} {
		if !strings.Contains(sampleConfig, section) {
			t.Errorf("Expected %s section in sample config", section)
		}
	}
}
