package format

import (
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/sandpit/internal/eventbus"
	"pkt.systems/sandpit/schema"
)

// Stream selects the writer a rendered line goes to.
type Stream int

const (
	// Stdout carries program output.
	Stdout Stream = iota
	// Stderr carries program errors, status lines and notifications.
	Stderr
)

// Line is one rendered line.
type Line struct {
	Stream Stream
	Text   string
}

// Marker prefixes for lines that are not program output.
const (
	StatusMarker      = "-- "
	DiagnosticsMarker = "!! "
)

// PlainRenderer formats events as plain text lines.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatEvent converts a UI event into user-facing lines.
func (p *PlainRenderer) FormatEvent(event eventbus.Event) []Line {
	switch event.Type {
	case eventbus.EventOutput:
		return p.formatOutput(event.Output)
	case eventbus.EventStatus:
		if event.Status.Message == "" {
			return nil
		}
		return []Line{{Stream: Stderr, Text: StatusMarker + event.Status.Message}}
	case eventbus.EventDiagnostics:
		return formatDiagnostics(event.Diagnostics.Diagnostics)
	case eventbus.EventNotify:
		return []Line{{Stream: Stderr, Text: formatNotification(event.Notification)}}
	default:
		return nil
	}
}

func (p *PlainRenderer) formatOutput(event schema.OutputEvent) []Line {
	switch event.Type {
	case schema.OutputAppended:
		return entryLines(event.Entry)
	case schema.OutputReplaced:
		var lines []Line
		for _, entry := range event.Entries {
			lines = append(lines, entryLines(entry)...)
		}
		return lines
	default:
		return nil
	}
}

func entryLines(entry schema.OutputEntry) []Line {
	stream := Stdout
	if entry.Kind == schema.OutputStderr {
		stream = Stderr
	}
	text := strings.TrimRight(entry.Text, "\n")
	if text == "" {
		return []Line{{Stream: stream}}
	}
	parts := strings.Split(text, "\n")
	lines := make([]Line, 0, len(parts))
	for _, part := range parts {
		lines = append(lines, Line{Stream: stream, Text: part})
	}
	return lines
}

func formatDiagnostics(diags []schema.Diagnostic) []Line {
	if len(diags) == 0 {
		return nil
	}
	numbers := make([]string, 0, len(diags))
	for _, diag := range diags {
		numbers = append(numbers, strconv.Itoa(diag.Line))
	}
	label := "line"
	if len(diags) > 1 {
		label = "lines"
	}
	return []Line{{Stream: Stderr, Text: fmt.Sprintf("%serrors on %s %s", DiagnosticsMarker, label, strings.Join(numbers, ", "))}}
}

func formatNotification(n schema.Notification) string {
	text := fmt.Sprintf("[%s] %s", n.Level, n.Message)
	if n.URL != "" {
		text += ": " + n.URL
	}
	return text
}
