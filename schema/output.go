package schema

// OutputKind tags an output buffer entry.
type OutputKind string

const (
	// OutputStdout tags standard output.
	OutputStdout OutputKind = "stdout"
	// OutputStderr tags error output.
	OutputStderr OutputKind = "stderr"
)

// OutputEntry is one element of the run output buffer.
type OutputEntry struct {
	Kind OutputKind
	Text string
}

// DefaultOutputMaxEntries bounds the output buffer of a single run.
const DefaultOutputMaxEntries = 5000
