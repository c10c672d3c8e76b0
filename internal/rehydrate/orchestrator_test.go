package rehydrate

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"postgres-rehydrate/internal/archive"
	"postgres-rehydrate/internal/display"
)

type stubReaper struct {
	terminated int
	err        error
	drained    []string
}

func (s *stubReaper) Terminate(ctx context.Context, database string) (int, error) {
	s.drained = append(s.drained, database)
	return s.terminated, s.err
}

type stubProvisioner struct {
	recreated   []string
	dropped     []string
	recreateErr error
	dropErr     error
}

func (s *stubProvisioner) Recreate(ctx context.Context, database string) error {
	s.recreated = append(s.recreated, database)
	return s.recreateErr
}

func (s *stubProvisioner) Drop(ctx context.Context, database string) error {
	s.dropped = append(s.dropped, database)
	return s.dropErr
}

type stubMigrator struct {
	migrated []string
	err      error
}

func (s *stubMigrator) Migrate(ctx context.Context, database string) error {
	s.migrated = append(s.migrated, database)
	return s.err
}

type stubLoader struct {
	gotDB   string
	gotDump string
	err     error
}

func (s *stubLoader) Load(ctx context.Context, database, dumpPath string) error {
	s.gotDB = database
	s.gotDump = dumpPath
	return s.err
}

type stubExtractor struct {
	gotDB   string
	gotDest string
	err     error
}

func (s *stubExtractor) Extract(ctx context.Context, database, destPath string) error {
	s.gotDB = database
	s.gotDest = destPath
	if s.err == nil {
		if err := os.WriteFile(destPath, []byte("INSERT INTO episodes VALUES (1);\n"), 0644); err != nil {
			return err
		}
	}
	return s.err
}

type stubApplier struct {
	gotDB   string
	gotData string
	err     error
}

func (s *stubApplier) Apply(ctx context.Context, database, dataPath string) error {
	s.gotDB = database
	s.gotData = dataPath
	return s.err
}

type stubVerifier struct {
	called bool
	err    error
}

func (s *stubVerifier) Verify(ctx context.Context, stagingDB, targetDB string) error {
	s.called = true
	return s.err
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	reaper       *stubReaper
	provisioner  *stubProvisioner
	migrator     *stubMigrator
	loader       *stubLoader
	extractor    *stubExtractor
	applier      *stubApplier
	verifier     *stubVerifier
}

// seedArchive writes a valid gzip backup archive into dir
func seedArchive(t *testing.T, dir, date, domain string) {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := "CREATE TABLE episodes (id int);\nINSERT INTO episodes VALUES (1);\n"
	if err := tw.WriteHeader(&tar.Header{
		Name:     domain + ".sql",
		Mode:     0644,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	name := archive.BaseName(date, domain) + ".tar.gz"
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func newFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	root := t.TempDir()
	seedArchive(t, root, "2026-08-20", "podcast")
	store, err := archive.NewLocalStore(&archive.LocalConfig{Root: root})
	if err != nil {
		t.Fatal(err)
	}

	fixture := &orchestratorFixture{
		reaper:      &stubReaper{terminated: 2},
		provisioner: &stubProvisioner{},
		migrator:    &stubMigrator{},
		loader:      &stubLoader{},
		extractor:   &stubExtractor{},
		applier:     &stubApplier{},
		verifier:    &stubVerifier{},
	}

	var out bytes.Buffer
	fixture.orchestrator = NewOrchestrator(
		store,
		fixture.reaper,
		fixture.provisioner,
		fixture.migrator,
		fixture.loader,
		fixture.extractor,
		fixture.applier,
		fixture.verifier,
		display.NewService(display.Options{ColorEnabled: false, Output: &out}),
		nil,
	)
	return fixture
}

func defaultOptions(t *testing.T) Options {
	return Options{
		TargetDatabase: "podcast",
		Domain:         "podcast",
		Date:           "2026-08-20",
		WorkDir:        t.TempDir(),
		Verify:         true,
	}
}

func TestOrchestrator_SuccessfulRun(t *testing.T) {
	fixture := newFixture(t)
	opts := defaultOptions(t)

	report, err := fixture.orchestrator.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.State != PhaseDone {
		t.Errorf("Expected Done state, got %s", report.State)
	}
	if report.Terminated != 4 {
		t.Errorf("Expected 4 terminated sessions in report, got %d", report.Terminated)
	}
	if report.StagingDatabase != "podcast_tmp" {
		t.Errorf("Expected default staging name, got %s", report.StagingDatabase)
	}
	if len(report.Phases) != 9 {
		t.Fatalf("Expected 9 phase results, got %d", len(report.Phases))
	}
	for _, pr := range report.Phases {
		if pr.Status != "ok" {
			t.Errorf("Phase %s: expected ok, got %s", pr.Phase, pr.Status)
		}
	}

	// Both databases drained up front
	if len(fixture.reaper.drained) != 2 ||
		fixture.reaper.drained[0] != "podcast" ||
		fixture.reaper.drained[1] != "podcast_tmp" {
		t.Errorf("Unexpected drain sequence: %v", fixture.reaper.drained)
	}

	// Both databases recreated, in order
	if len(fixture.provisioner.recreated) != 2 ||
		fixture.provisioner.recreated[0] != "podcast" ||
		fixture.provisioner.recreated[1] != "podcast_tmp" {
		t.Errorf("Unexpected recreate sequence: %v", fixture.provisioner.recreated)
	}

	// Migration ran against the target, load against staging
	if len(fixture.migrator.migrated) != 1 || fixture.migrator.migrated[0] != "podcast" {
		t.Errorf("Unexpected migration targets: %v", fixture.migrator.migrated)
	}
	if fixture.loader.gotDB != "podcast_tmp" {
		t.Errorf("Expected load into staging, got %s", fixture.loader.gotDB)
	}
	if filepath.Base(fixture.loader.gotDump) != "podcast.sql" {
		t.Errorf("Expected unpacked dump, got %s", fixture.loader.gotDump)
	}

	// Extract from staging, apply to target
	if fixture.extractor.gotDB != "podcast_tmp" {
		t.Errorf("Expected extract from staging, got %s", fixture.extractor.gotDB)
	}
	if fixture.applier.gotDB != "podcast" {
		t.Errorf("Expected apply to target, got %s", fixture.applier.gotDB)
	}
	if fixture.applier.gotData != fixture.extractor.gotDest {
		t.Errorf("Applier and extractor disagree on data path: %s vs %s",
			fixture.applier.gotData, fixture.extractor.gotDest)
	}

	if !fixture.verifier.called {
		t.Error("Expected verification to run")
	}

	// Cleanup dropped the staging database and removed the work files
	if len(fixture.provisioner.dropped) != 1 || fixture.provisioner.dropped[0] != "podcast_tmp" {
		t.Errorf("Expected staging dropped, got %v", fixture.provisioner.dropped)
	}
	assertWorkDirRemoved(t, opts.WorkDir)
}

// assertWorkDirRemoved fails unless cleanup removed the work directory and
// the dump files inside it
func assertWorkDirRemoved(t *testing.T, workDir string) {
	t.Helper()
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("Expected work directory %s removed, stat error: %v", workDir, err)
	}
}

func TestOrchestrator_VerifySkipped(t *testing.T) {
	fixture := newFixture(t)
	opts := defaultOptions(t)
	opts.Verify = false

	report, err := fixture.orchestrator.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if fixture.verifier.called {
		t.Error("Expected verification to be skipped")
	}
	found := false
	for _, pr := range report.Phases {
		if pr.Phase == PhaseVerifying {
			found = true
			if pr.Status != "skipped" {
				t.Errorf("Expected Verifying skipped, got %s", pr.Status)
			}
		}
	}
	if !found {
		t.Error("Expected Verifying phase in report")
	}
}

func TestOrchestrator_FailureAtEachPhase(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		inject func(*orchestratorFixture)
		phase  Phase
	}{
		{"drain", func(f *orchestratorFixture) { f.reaper.err = cause }, PhaseDraining},
		{"provision", func(f *orchestratorFixture) { f.provisioner.recreateErr = cause }, PhaseProvisioningTarget},
		{"migrate", func(f *orchestratorFixture) { f.migrator.err = cause }, PhaseMigratingSchema},
		{"load", func(f *orchestratorFixture) { f.loader.err = cause }, PhaseLoadingBackup},
		{"extract", func(f *orchestratorFixture) { f.extractor.err = cause }, PhaseExtracting},
		{"apply", func(f *orchestratorFixture) { f.applier.err = cause }, PhaseApplying},
		{"verify", func(f *orchestratorFixture) { f.verifier.err = cause }, PhaseVerifying},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newFixture(t)
			tt.inject(fixture)
			opts := defaultOptions(t)

			report, err := fixture.orchestrator.Run(context.Background(), opts)
			if err == nil {
				t.Fatal("Expected run to fail")
			}
			if report.State != PhaseFailed {
				t.Errorf("Expected Failed state, got %s", report.State)
			}
			if report.FailedPhase != tt.phase {
				t.Errorf("Expected failure at %s, got %s", tt.phase, report.FailedPhase)
			}
			if report.Error == "" {
				t.Error("Expected cause recorded in report")
			}

			// Cleanup still drops staging and removes the work files
			if len(fixture.provisioner.dropped) == 0 {
				t.Error("Expected cleanup to drop staging on failure")
			}
			assertWorkDirRemoved(t, opts.WorkDir)
		})
	}
}

func TestOrchestrator_MissingArchiveFailsLoadPhase(t *testing.T) {
	fixture := newFixture(t)
	opts := defaultOptions(t)
	opts.Date = "2001-01-01"

	report, err := fixture.orchestrator.Run(context.Background(), opts)
	if err == nil {
		t.Fatal("Expected run to fail")
	}
	if report.FailedPhase != PhaseLoadingBackup {
		t.Errorf("Expected failure at LoadingBackup, got %s", report.FailedPhase)
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("Expected LoadError, got %T", err)
	}
}

func TestOrchestrator_KeepTemp(t *testing.T) {
	fixture := newFixture(t)
	opts := defaultOptions(t)
	opts.KeepTemp = true

	if _, err := fixture.orchestrator.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(fixture.provisioner.dropped) != 0 {
		t.Errorf("Expected staging kept, got drops: %v", fixture.provisioner.dropped)
	}
	if _, err := os.Stat(opts.WorkDir); err != nil {
		t.Errorf("Expected work directory kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(opts.WorkDir, "podcast.sql")); err != nil {
		t.Errorf("Expected unpacked dump kept: %v", err)
	}
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	fixture := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := fixture.orchestrator.Run(ctx, defaultOptions(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if report.State != PhaseFailed {
		t.Errorf("Expected Failed state, got %s", report.State)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"missing target", Options{Domain: "d", Date: "2026-01-01"}, "target database"},
		{"missing domain", Options{TargetDatabase: "t", Date: "2026-01-01"}, "domain"},
		{"missing date", Options{TargetDatabase: "t", Domain: "d"}, "date"},
		{"staging equals target", Options{TargetDatabase: "t", StagingDatabase: "t", Domain: "d", Date: "2026-01-01"}, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
