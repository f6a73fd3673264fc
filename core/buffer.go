package core

import "pkt.systems/sandpit/schema"

// outputBuffer holds the entries of the current run in arrival order.
// When maxEntries is exceeded the oldest entries are dropped.
type outputBuffer struct {
	entries    []schema.OutputEntry
	maxEntries int
	trimmed    int
}

func newOutputBuffer(maxEntries int) *outputBuffer {
	if maxEntries <= 0 {
		maxEntries = schema.DefaultOutputMaxEntries
	}
	return &outputBuffer{maxEntries: maxEntries}
}

// Append adds an entry, trimming the oldest entries past the limit.
func (b *outputBuffer) Append(entry schema.OutputEntry) {
	b.entries = append(b.entries, entry)
	if len(b.entries) > b.maxEntries {
		trim := len(b.entries) - b.maxEntries
		b.entries = append(b.entries[:0:0], b.entries[trim:]...)
		b.trimmed += trim
	}
}

// Replace swaps the buffer contents for entries.
func (b *outputBuffer) Replace(entries ...schema.OutputEntry) {
	b.entries = nil
	b.trimmed = 0
	for _, entry := range entries {
		b.Append(entry)
	}
}

// Clear empties the buffer.
func (b *outputBuffer) Clear() {
	b.entries = nil
	b.trimmed = 0
}

// Len returns the number of entries held.
func (b *outputBuffer) Len() int {
	return len(b.entries)
}

// Trimmed returns how many entries were dropped since the last clear.
func (b *outputBuffer) Trimmed() int {
	return b.trimmed
}

// Snapshot returns a copy of the entries.
func (b *outputBuffer) Snapshot() []schema.OutputEntry {
	if len(b.entries) == 0 {
		return nil
	}
	return append([]schema.OutputEntry(nil), b.entries...)
}
