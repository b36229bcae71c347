// Package progress parses adb progress output and renders it in the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// CLIProgress renders a single operation with a progress bar.
type CLIProgress struct {
	mu         sync.Mutex
	bar        *progressbar.ProgressBar
	id         string
	title      string
	out        io.Writer
	isTerminal bool
}

// NewCLIProgress creates a new single-bar renderer on stderr.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{
		out:        os.Stderr,
		isTerminal: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Track starts the progress bar for id.
func (p *CLIProgress) Track(id, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.id = id
	p.title = title
	if !p.isTerminal {
		fmt.Fprintf(p.out, "Started: %s\n", title)
		return
	}
	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update sets the bar to percent and shows the label and speed in its description.
func (p *CLIProgress) Update(id string, percent int, speed, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id != p.id || p.bar == nil {
		return
	}
	p.bar.Describe(describe(p.title, label, speed))
	_ = p.bar.Set(percent)
}

// Finish completes or abandons the bar and prints the outcome.
func (p *CLIProgress) Finish(id string, outcome Outcome, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id != p.id {
		return
	}
	if p.bar != nil {
		if outcome == OutcomeSucceeded {
			_ = p.bar.Finish()
		} else {
			_ = p.bar.Exit()
			fmt.Fprint(p.out, "\n")
		}
		p.bar = nil
	}
	fmt.Fprint(p.out, summary(p.title, outcome, message))
}

// Wait returns immediately; the single bar renders synchronously.
func (p *CLIProgress) Wait() {}

// Writer returns stderr.
func (p *CLIProgress) Writer() io.Writer {
	return p.out
}

// IsTerminal returns true if output is to a terminal.
func (p *CLIProgress) IsTerminal() bool {
	return p.isTerminal
}

// NoOpProgress is a renderer that does nothing (for --output json/yaml and quiet runs).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op renderer.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Track(id, title string)                             {}
func (p *NoOpProgress) Update(id string, percent int, speed, label string) {}
func (p *NoOpProgress) Finish(id string, outcome Outcome, message string)  {}
func (p *NoOpProgress) Wait()                                              {}
func (p *NoOpProgress) Writer() io.Writer                                  { return io.Discard }
func (p *NoOpProgress) IsTerminal() bool                                   { return false }

func describe(title, label, speed string) string {
	s := title
	if label != "" && label != title {
		s += " · " + label
	}
	if speed != "" {
		s += " (" + speed + ")"
	}
	return s
}

func summary(title string, outcome Outcome, message string) string {
	switch outcome {
	case OutcomeSucceeded:
		return fmt.Sprintf("✓ %s\n", title)
	case OutcomeCancelled:
		return fmt.Sprintf("⊘ %s: cancelled\n", title)
	default:
		return fmt.Sprintf("✗ %s: %s\n", title, message)
	}
}
