package core

import (
	"fmt"
	"strings"

	"pkt.systems/sandpit/schema"
)

// Stats is the resource summary the sandbox reports on stderr.
type Stats struct {
	Time   string
	Memory string
}

// String renders the status line shown after a run.
func (s Stats) String() string {
	return fmt.Sprintf("Time: %s | Memory: %skb", s.Time, s.Memory)
}

// splitStats separates a statistics line from the rest of a stderr payload.
// The remainder is returned without the stats line; ok is false when no line
// carries the prefix.
func splitStats(payload string) (Stats, string, bool) {
	if !strings.Contains(payload, schema.StatsPrefix) {
		return Stats{}, payload, false
	}
	lines := strings.Split(payload, "\n")
	var (
		stats Stats
		found bool
		rest  []string
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !found && strings.HasPrefix(trimmed, schema.StatsPrefix) {
			if parsed, ok := ParseStats(trimmed); ok {
				stats = parsed
				found = true
				continue
			}
		}
		rest = append(rest, line)
	}
	if !found {
		return Stats{}, payload, false
	}
	return stats, strings.Join(rest, "\n"), true
}

// ParseStats parses "STATS:<time>;<memory>".
func ParseStats(line string) (Stats, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, schema.StatsPrefix) {
		return Stats{}, false
	}
	body := strings.TrimPrefix(line, schema.StatsPrefix)
	timePart, memPart, ok := strings.Cut(body, ";")
	if !ok {
		return Stats{}, false
	}
	return Stats{Time: strings.TrimSpace(timePart), Memory: strings.TrimSpace(memPart)}, true
}
