// Package progress provides progress reporting functionality
package progress

import (
	"github.com/pterm/pterm"

	"github.com/eden-toolkit/coding-nexus-migrator/internal/style"
)

// Reporter defines the interface for reporting progress.
// It provides methods to report different stages of an operation
// and its status.
type Reporter interface {
	// Start begins progress reporting with an initial message
	Start(message string)

	// Step reports a new step in the operation
	Step(message string)

	// Error reports an error condition
	Error(message string)

	// Success reports successful completion
	Success(message string)

	// End finalizes progress reporting
	End()
}

// ConsoleReporter implements Reporter by printing messages with pterm
type ConsoleReporter struct{}

// NewConsoleReporter creates a new ConsoleReporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

func (r *ConsoleReporter) Start(message string) {
	pterm.DefaultSection.Println(message)
}

func (r *ConsoleReporter) Step(message string) {
	pterm.Info.Println(message)
}

func (r *ConsoleReporter) Error(message string) {
	pterm.Error.Println(style.ErrorIcon() + " " + message)
}

func (r *ConsoleReporter) Success(message string) {
	pterm.Success.Println(style.SuccessIcon() + " " + message)
}

func (r *ConsoleReporter) End() {}
