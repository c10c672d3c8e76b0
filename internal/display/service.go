package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Options configures the phase trace output
type Options struct {
	Theme        string
	ColorEnabled bool
	Quiet        bool
	Output       io.Writer
}

// Service renders the phase-by-phase progress trace of a rehydration run.
// It degrades to plain text when the output is not a terminal.
type Service struct {
	colors ColorSystem
	out    io.Writer
	quiet  bool
}

// NewService creates a display service from options
func NewService(opts Options) *Service {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return &Service{
		colors: NewColorSystem(ThemeByName(opts.Theme), opts.ColorEnabled),
		out:    out,
		quiet:  opts.Quiet,
	}
}

// PhaseStarted prints the beginning of a phase
func (s *Service) PhaseStarted(index, total int, phase string) {
	if s.quiet {
		return
	}
	label := s.colors.Sprintf(s.colors.GetTheme().Phase, "[%d/%d] %s", index, total, phase)
	fmt.Fprintf(s.out, "%s ...\n", label)
}

// PhaseCompleted prints the successful end of a phase
func (s *Service) PhaseCompleted(index, total int, phase string, duration time.Duration) {
	if s.quiet {
		return
	}
	check := s.colors.Colorize("ok", s.colors.GetTheme().Success)
	fmt.Fprintf(s.out, "[%d/%d] %s %s (%s)\n", index, total, phase, check, formatDuration(duration))
}

// PhaseFailed prints the failing phase and its underlying error
func (s *Service) PhaseFailed(phase string, err error) {
	label := s.colors.Sprintf(s.colors.GetTheme().Failure, "FAILED at phase %s", phase)
	fmt.Fprintf(s.out, "%s: %v\n", label, err)
}

// Info prints an informational detail line
func (s *Service) Info(message string) {
	if s.quiet {
		return
	}
	fmt.Fprintf(s.out, "  %s\n", s.colors.Colorize(message, s.colors.GetTheme().Detail))
}

// Warn prints a warning line
func (s *Service) Warn(message string) {
	fmt.Fprintf(s.out, "  %s\n", s.colors.Sprintf(s.colors.GetTheme().Warning, "warning: %s", message))
}

// Error prints an error line
func (s *Service) Error(message string) {
	fmt.Fprintf(s.out, "%s\n", s.colors.Colorize(message, s.colors.GetTheme().Failure))
}

// Rule prints a horizontal separator sized to the terminal
func (s *Service) Rule() {
	if s.quiet {
		return
	}
	fmt.Fprintln(s.out, strings.Repeat("-", s.terminalWidth()))
}

// Summary prints the closing line of a run
func (s *Service) Summary(success bool, duration time.Duration) {
	if success {
		msg := s.colors.Sprintf(s.colors.GetTheme().Success, "Rehydration completed in %s", formatDuration(duration))
		fmt.Fprintln(s.out, msg)
		return
	}
	msg := s.colors.Sprintf(s.colors.GetTheme().Failure, "Rehydration failed after %s", formatDuration(duration))
	fmt.Fprintln(s.out, msg)
}

// terminalWidth returns the current terminal width with a sane fallback
func (s *Service) terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 || width > 200 {
		return 72
	}
	return width
}

// formatDuration trims sub-millisecond noise from durations for display
func formatDuration(d time.Duration) string {
	if d >= time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}
