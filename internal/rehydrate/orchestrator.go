package rehydrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"postgres-rehydrate/internal/archive"
	"postgres-rehydrate/internal/display"
	"postgres-rehydrate/internal/logging"
)

// SessionReaper terminates sessions connected to a database
type SessionReaper interface {
	Terminate(ctx context.Context, database string) (int, error)
}

// DatabaseProvisioner drops and creates databases
type DatabaseProvisioner interface {
	Recreate(ctx context.Context, database string) error
	Drop(ctx context.Context, database string) error
}

// BackupLoader replays a full dump into a database
type BackupLoader interface {
	Load(ctx context.Context, database, dumpPath string) error
}

// DataExtractor produces a data-only dump from a database
type DataExtractor interface {
	Extract(ctx context.Context, database, destPath string) error
}

// DataApplier replays a data dump into a database
type DataApplier interface {
	Apply(ctx context.Context, database, dataPath string) error
}

// RowCountVerifier compares table row counts between two databases
type RowCountVerifier interface {
	Verify(ctx context.Context, stagingDB, targetDB string) error
}

// Options configures a rehydration run
type Options struct {
	TargetDatabase  string
	StagingDatabase string // defaults to <target>_tmp
	Domain          string
	Date            string
	Passphrase      string
	WorkDir         string // defaults to a fresh temp directory
	KeepTemp        bool   // keep the staging database and work files
	Verify          bool
}

// SetDefaults fills in default option values
func (o *Options) SetDefaults() {
	if o.StagingDatabase == "" {
		o.StagingDatabase = o.TargetDatabase + "_tmp"
	}
}

// Validate checks that the run options are complete
func (o *Options) Validate() error {
	if o.TargetDatabase == "" {
		return fmt.Errorf("target database is required")
	}
	if o.Domain == "" {
		return fmt.Errorf("backup domain is required")
	}
	if o.Date == "" {
		return fmt.Errorf("backup date is required")
	}
	if o.StagingDatabase == o.TargetDatabase {
		return fmt.Errorf("staging database must differ from target database")
	}
	return nil
}

// PhaseResult records the outcome of one phase
type PhaseResult struct {
	Phase    Phase         `json:"phase" yaml:"phase"`
	Status   string        `json:"status" yaml:"status"` // "ok", "failed", "skipped"
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report summarizes a rehydration run
type Report struct {
	RunID           string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	TargetDatabase  string        `json:"target_database" yaml:"target_database"`
	StagingDatabase string        `json:"staging_database" yaml:"staging_database"`
	Domain          string        `json:"domain" yaml:"domain"`
	Date            string        `json:"date" yaml:"date"`
	StartedAt       time.Time     `json:"started_at" yaml:"started_at"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
	State           Phase         `json:"state" yaml:"state"`
	FailedPhase     Phase         `json:"failed_phase,omitempty" yaml:"failed_phase,omitempty"`
	Error           string        `json:"error,omitempty" yaml:"error,omitempty"`
	Terminated      int           `json:"terminated_sessions" yaml:"terminated_sessions"`
	Phases          []PhaseResult `json:"phases" yaml:"phases"`
}

// Orchestrator drives a rehydration run through its phases. Each phase
// either completes or moves the run to the Failed state with the phase and
// cause recorded. Cleanup is attempted on both outcomes.
type Orchestrator struct {
	store       archive.Store
	reaper      SessionReaper
	provisioner DatabaseProvisioner
	migrator    SchemaMigrator
	loader      BackupLoader
	extractor   DataExtractor
	applier     DataApplier
	verifier    RowCountVerifier
	display     *display.Service
	logger      *logging.Logger
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(
	store archive.Store,
	reaper SessionReaper,
	provisioner DatabaseProvisioner,
	migrator SchemaMigrator,
	loader BackupLoader,
	extractor DataExtractor,
	applier DataApplier,
	verifier RowCountVerifier,
	displayService *display.Service,
	logger *logging.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Orchestrator{
		store:       store,
		reaper:      reaper,
		provisioner: provisioner,
		migrator:    migrator,
		loader:      loader,
		extractor:   extractor,
		applier:     applier,
		verifier:    verifier,
		display:     displayService,
		logger:      logger,
	}
}

// Run executes a full rehydration and returns its report. The returned
// error, when non-nil, is the cause recorded in the report's Failed state.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:           logging.GetRunIDFromContext(ctx),
		TargetDatabase:  opts.TargetDatabase,
		StagingDatabase: opts.StagingDatabase,
		Domain:          opts.Domain,
		Date:            opts.Date,
		StartedAt:       time.Now(),
		State:           PhaseDraining,
	}

	workDir := opts.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "rehydrate-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		workDir = dir
	}

	dumpPath := ""
	dataPath := ""
	phases := Phases()

	step := func(index int, phase Phase, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		report.State = phase
		o.display.PhaseStarted(index+1, len(phases), string(phase))
		o.logger.LogPhaseTransition(string(phase), "started", 0, nil)

		start := time.Now()
		err := fn()
		duration := time.Since(start)

		if err != nil {
			report.Phases = append(report.Phases, PhaseResult{Phase: phase, Status: "failed", Duration: duration})
			o.logger.LogPhaseTransition(string(phase), "failed", duration, err)
			o.display.PhaseFailed(string(phase), err)
			return err
		}

		report.Phases = append(report.Phases, PhaseResult{Phase: phase, Status: "ok", Duration: duration})
		o.logger.LogPhaseTransition(string(phase), "completed", duration, nil)
		o.display.PhaseCompleted(index+1, len(phases), string(phase), duration)
		return nil
	}

	fail := func(phase Phase, err error) (*Report, error) {
		report.State = PhaseFailed
		report.FailedPhase = phase
		report.Error = err.Error()
		report.Duration = time.Since(report.StartedAt)
		o.cleanup(opts, workDir)
		o.display.Summary(false, report.Duration)
		return report, err
	}

	// Draining. Both databases are drained up front; the reaper treats a
	// missing staging database as zero sessions.
	if err := step(0, PhaseDraining, func() error {
		for _, name := range []string{opts.TargetDatabase, opts.StagingDatabase} {
			terminated, err := o.reaper.Terminate(ctx, name)
			if err != nil {
				return err
			}
			report.Terminated += terminated
		}
		if report.Terminated > 0 {
			o.display.Info(fmt.Sprintf("terminated %d sessions", report.Terminated))
		}
		return nil
	}); err != nil {
		return fail(PhaseDraining, err)
	}

	// ProvisioningTarget
	if err := step(1, PhaseProvisioningTarget, func() error {
		return o.provisioner.Recreate(ctx, opts.TargetDatabase)
	}); err != nil {
		return fail(PhaseProvisioningTarget, err)
	}

	// MigratingSchema
	if err := step(2, PhaseMigratingSchema, func() error {
		return o.migrator.Migrate(ctx, opts.TargetDatabase)
	}); err != nil {
		return fail(PhaseMigratingSchema, err)
	}

	// ProvisioningStaging
	if err := step(3, PhaseProvisioningStaging, func() error {
		return o.provisioner.Recreate(ctx, opts.StagingDatabase)
	}); err != nil {
		return fail(PhaseProvisioningStaging, err)
	}

	// LoadingBackup
	if err := step(4, PhaseLoadingBackup, func() error {
		archivePath, err := o.store.Fetch(ctx, opts.Date, opts.Domain, workDir)
		if err != nil {
			return &LoadError{Database: opts.StagingDatabase, Cause: err}
		}
		dumpPath, err = archive.Prepare(archivePath, opts.Domain, opts.Passphrase, workDir)
		if err != nil {
			return &LoadError{Database: opts.StagingDatabase, Cause: err}
		}
		return o.loader.Load(ctx, opts.StagingDatabase, dumpPath)
	}); err != nil {
		return fail(PhaseLoadingBackup, err)
	}

	// Extracting
	if err := step(5, PhaseExtracting, func() error {
		dataPath = workDir + "/" + opts.Domain + ".data.sql"
		return o.extractor.Extract(ctx, opts.StagingDatabase, dataPath)
	}); err != nil {
		return fail(PhaseExtracting, err)
	}

	// Applying
	if err := step(6, PhaseApplying, func() error {
		return o.applier.Apply(ctx, opts.TargetDatabase, dataPath)
	}); err != nil {
		return fail(PhaseApplying, err)
	}

	// Verifying
	if opts.Verify {
		if err := step(7, PhaseVerifying, func() error {
			return o.verifier.Verify(ctx, opts.StagingDatabase, opts.TargetDatabase)
		}); err != nil {
			return fail(PhaseVerifying, err)
		}
	} else {
		report.Phases = append(report.Phases, PhaseResult{Phase: PhaseVerifying, Status: "skipped"})
	}

	// CleaningUp
	if err := step(8, PhaseCleaningUp, func() error {
		return o.cleanup(opts, workDir)
	}); err != nil {
		return fail(PhaseCleaningUp, err)
	}

	report.State = PhaseDone
	report.Duration = time.Since(report.StartedAt)
	o.display.Summary(true, report.Duration)
	return report, nil
}

// cleanup removes the staging database and work files. Errors are reported
// only when cleanup runs as its own phase; on failure paths it is best
// effort.
func (o *Orchestrator) cleanup(opts Options, workDir string) error {
	if opts.KeepTemp {
		o.logger.Debugf("Keeping staging database %s and work directory %s", opts.StagingDatabase, workDir)
		return nil
	}

	// Dropping must not inherit a canceled run context
	dropCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var firstErr error
	if err := o.provisioner.Drop(dropCtx, opts.StagingDatabase); err != nil {
		o.logger.Warnf("Failed to drop staging database %s: %v", opts.StagingDatabase, err)
		firstErr = err
	}
	if err := os.RemoveAll(workDir); err != nil {
		o.logger.Warnf("Failed to remove work directory %s: %v", workDir, err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
