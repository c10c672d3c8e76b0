package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(quiet bool) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	svc := NewService(Options{Theme: "dark", ColorEnabled: false, Quiet: quiet, Output: &buf})
	return svc, &buf
}

func TestPhaseStarted(t *testing.T) {
	svc, buf := newTestService(false)
	svc.PhaseStarted(1, 9, "Draining")

	if !strings.Contains(buf.String(), "[1/9] Draining") {
		t.Errorf("Expected phase line, got: %s", buf.String())
	}
}

func TestPhaseCompleted(t *testing.T) {
	svc, buf := newTestService(false)
	svc.PhaseCompleted(3, 9, "MigratingSchema", 1500*time.Millisecond)

	out := buf.String()
	if !strings.Contains(out, "MigratingSchema ok") {
		t.Errorf("Expected success marker, got: %s", out)
	}
	if !strings.Contains(out, "1.5s") {
		t.Errorf("Expected duration, got: %s", out)
	}
}

func TestPhaseFailed(t *testing.T) {
	svc, buf := newTestService(false)
	svc.PhaseFailed("LoadingBackup", errors.New("archive truncated"))

	out := buf.String()
	if !strings.Contains(out, "FAILED at phase LoadingBackup") {
		t.Errorf("Expected failure label, got: %s", out)
	}
	if !strings.Contains(out, "archive truncated") {
		t.Errorf("Expected underlying error, got: %s", out)
	}
}

func TestQuietSuppressesProgress(t *testing.T) {
	svc, buf := newTestService(true)
	svc.PhaseStarted(1, 9, "Draining")
	svc.PhaseCompleted(1, 9, "Draining", time.Second)
	svc.Info("terminated 3 sessions")

	if buf.Len() != 0 {
		t.Errorf("Expected no output in quiet mode, got: %s", buf.String())
	}

	// Failures are never suppressed
	svc.PhaseFailed("Applying", errors.New("constraint violation"))
	if buf.Len() == 0 {
		t.Error("Expected failure output even in quiet mode")
	}
}

func TestSummary(t *testing.T) {
	svc, buf := newTestService(false)
	svc.Summary(true, 90*time.Second)
	if !strings.Contains(buf.String(), "Rehydration completed in 1m30s") {
		t.Errorf("Expected success summary, got: %s", buf.String())
	}

	buf.Reset()
	svc.Summary(false, 2*time.Second)
	if !strings.Contains(buf.String(), "Rehydration failed after 2s") {
		t.Errorf("Expected failure summary, got: %s", buf.String())
	}
}

func TestThemeByName(t *testing.T) {
	if got := ThemeByName("light"); got.Name != "light" {
		t.Errorf("Expected light theme, got %s", got.Name)
	}
	if got := ThemeByName("high-contrast"); got.Name != "high-contrast" {
		t.Errorf("Expected high-contrast theme, got %s", got.Name)
	}
	if got := ThemeByName("unknown"); got.Name != "dark" {
		t.Errorf("Expected fallback to dark theme, got %s", got.Name)
	}
}

func TestColorSystem_DisabledPassthrough(t *testing.T) {
	cs := NewColorSystem(ThemeDark, false)
	if cs.IsColorSupported() {
		t.Error("Expected color support to be off when disabled")
	}
	if got := cs.Colorize("plain", ColorRed); got != "plain" {
		t.Errorf("Expected passthrough, got %q", got)
	}
	if got := cs.Sprintf(ColorGreen, "%d rows", 10); got != "10 rows" {
		t.Errorf("Expected plain formatted text, got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(1234567 * time.Microsecond); got != "1.235s" {
		t.Errorf("Unexpected formatting: %s", got)
	}
	if got := formatDuration(61 * time.Second); got != "1m1s" {
		t.Errorf("Unexpected formatting: %s", got)
	}
}
