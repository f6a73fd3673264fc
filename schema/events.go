package schema

// StreamEventKind is the named event emitted by the execute stream.
type StreamEventKind string

const (
	// StreamStdout carries program standard output.
	StreamStdout StreamEventKind = "stdout"
	// StreamStderr carries program standard error (and the stats line).
	StreamStderr StreamEventKind = "stderr"
	// StreamError carries a top-level failure message and ends the run.
	StreamError StreamEventKind = "error"
	// StreamClear asks the client to discard its output buffer.
	StreamClear StreamEventKind = "clear"
	// StreamDone ends the run normally.
	StreamDone StreamEventKind = "done"
	// StreamTimeout reports that the execution hit its deadline.
	StreamTimeout StreamEventKind = "timeout"
)

// Known reports whether the kind is one the client understands.
func (k StreamEventKind) Known() bool {
	switch k {
	case StreamStdout, StreamStderr, StreamError, StreamClear, StreamDone, StreamTimeout:
		return true
	default:
		return false
	}
}

// StreamEvent is one discrete message from the execute stream.
type StreamEvent struct {
	Kind    StreamEventKind
	Payload string
}

// StatsPrefix marks a stderr payload carrying "time;memory" statistics.
const StatsPrefix = "STATS:"
