package progress

import "io"

// Outcome is how a tracked operation ended.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

// Renderer draws live progress for operations identified by task ID.
// CLIProgress handles one operation, MultiUI any number at once.
type Renderer interface {
	// Track starts displaying an operation.
	Track(id, title string)

	// Update moves the operation to percent (0-100) with an optional speed and status label.
	Update(id string, percent int, speed, label string)

	// Finish ends the display of an operation and prints a one-line summary.
	Finish(id string, outcome Outcome, message string)

	// Wait blocks until every tracked operation has finished rendering.
	Wait()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	Writer() io.Writer

	// IsTerminal returns true if output is to a terminal (progress bars are active)
	IsTerminal() bool
}

// NewRenderer picks a renderer for the expected number of concurrent operations.
func NewRenderer(concurrent int) Renderer {
	if concurrent <= 1 {
		return NewCLIProgress()
	}
	return NewMultiUI(concurrent)
}
