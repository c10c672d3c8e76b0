// Package confirmation guards the destructive entry point of a rehydration.
// The run drops a live database, so the operator has to type its name back
// before anything happens.
package confirmation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"postgres-rehydrate/internal/display"
)

// Request describes the destructive operation awaiting approval
type Request struct {
	TargetDatabase  string
	StagingDatabase string
	Domain          string
	Date            string
}

// Service prompts the operator before a rehydration run
type Service interface {
	Confirm(request Request, autoApprove bool) (bool, error)
}

// service implements the Service interface
type service struct {
	colors display.ColorSystem
	input  io.Reader
	output io.Writer
}

// NewService creates a new confirmation Service instance
func NewService(useColors bool) Service {
	return &service{
		colors: display.NewColorSystem(display.ThemeDark, useColors),
		input:  os.Stdin,
		output: os.Stdout,
	}
}

// NewServiceWithStreams creates a Service reading and writing on the given
// streams
func NewServiceWithStreams(useColors bool, input io.Reader, output io.Writer) Service {
	return &service{
		colors: display.NewColorSystem(display.ThemeDark, useColors),
		input:  input,
		output: output,
	}
}

// Confirm displays what the run will destroy and prompts for approval. The
// operator must type the target database name exactly; anything else
// declines.
func (s *service) Confirm(request Request, autoApprove bool) (bool, error) {
	s.displaySummary(request)

	if autoApprove {
		fmt.Fprintln(s.output, s.colors.Colorize("Auto-approving rehydration", display.ColorGreen))
		return true, nil
	}

	fmt.Fprint(s.output, s.colors.Sprintf(display.ColorYellow,
		"Type the target database name (%s) to continue: ", request.TargetDatabase))

	reader := bufio.NewReader(s.input)
	input, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			fmt.Fprintln(s.output, "Aborted")
			return false, nil
		}
		return false, fmt.Errorf("failed to read input: %w", err)
	}

	if strings.TrimSpace(input) != request.TargetDatabase {
		fmt.Fprintln(s.output, "Aborted")
		return false, nil
	}
	return true, nil
}

// displaySummary prints what the run is about to do
func (s *service) displaySummary(request Request) {
	fmt.Fprintln(s.output, s.colors.Colorize("DESTRUCTIVE OPERATION", display.ColorRed))
	fmt.Fprintf(s.output, "Database %s will be dropped and rebuilt from the %s backup of %s.\n",
		request.TargetDatabase, request.Domain, request.Date)
	fmt.Fprintf(s.output, "All current contents of %s will be lost. Staging database %s will be replaced.\n",
		request.TargetDatabase, request.StagingDatabase)
}
