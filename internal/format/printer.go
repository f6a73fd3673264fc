package format

import (
	"fmt"
	"io"
	"sync"

	"pkt.systems/sandpit/internal/eventbus"
	"pkt.systems/sandpit/schema"
)

// Printer is an event sink that writes rendered lines to two writers. It
// remembers whether the session reported a failure.
type Printer struct {
	mu       sync.Mutex
	renderer *PlainRenderer
	stdout   io.Writer
	stderr   io.Writer
	failed   bool
	quiet    bool
}

// NewPrinter returns a printer writing to stdout and stderr.
func NewPrinter(stdout, stderr io.Writer) *Printer {
	return &Printer{renderer: NewPlainRenderer(), stdout: stdout, stderr: stderr}
}

// SetQuiet suppresses notifications and status lines.
func (p *Printer) SetQuiet(quiet bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quiet = quiet
}

// Failed reports whether an error status or diagnostics were seen.
func (p *Printer) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Reset clears the failure flag, between runs of a watch loop.
func (p *Printer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = false
}

func (p *Printer) OnOutput(event schema.OutputEvent) {
	p.write(eventbus.Event{Type: eventbus.EventOutput, Output: event})
}

func (p *Printer) OnState(schema.StateEvent) {}

func (p *Printer) OnDiagnostics(event schema.DiagnosticsEvent) {
	p.mu.Lock()
	if len(event.Diagnostics) > 0 {
		p.failed = true
	}
	p.mu.Unlock()
	p.write(eventbus.Event{Type: eventbus.EventDiagnostics, Diagnostics: event})
}

func (p *Printer) OnStatus(event schema.StatusEvent) {
	p.mu.Lock()
	if event.Level == schema.StatusError {
		p.failed = true
	}
	quiet := p.quiet
	p.mu.Unlock()
	if quiet {
		return
	}
	p.write(eventbus.Event{Type: eventbus.EventStatus, Status: event})
}

func (p *Printer) OnNotify(event schema.Notification) {
	p.mu.Lock()
	if event.Level == schema.NotifyError {
		p.failed = true
	}
	quiet := p.quiet
	p.mu.Unlock()
	if quiet && event.Level != schema.NotifyError {
		return
	}
	p.write(eventbus.Event{Type: eventbus.EventNotify, Notification: event})
}

func (p *Printer) OnCode(schema.CodeEvent) {}

func (p *Printer) OnSettings(schema.SettingsEvent) {}

func (p *Printer) write(event eventbus.Event) {
	lines := p.renderer.FormatEvent(event)
	if len(lines) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range lines {
		w := p.stdout
		if line.Stream == Stderr {
			w = p.stderr
		}
		_, _ = fmt.Fprintln(w, line.Text)
	}
}
