package schema

// OutputEventType describes how the output buffer changed.
type OutputEventType string

const (
	// OutputAppended indicates one entry was appended.
	OutputAppended OutputEventType = "appended"
	// OutputCleared indicates the buffer was emptied.
	OutputCleared OutputEventType = "cleared"
	// OutputReplaced indicates the buffer was replaced wholesale.
	OutputReplaced OutputEventType = "replaced"
)

// OutputEvent reports a change to the output buffer.
type OutputEvent struct {
	Type    OutputEventType
	Entry   OutputEntry
	Entries []OutputEntry
}

// StateEvent reports a RunState transition.
type StateEvent struct {
	State RunState
	Busy  bool
}

// DiagnosticsEvent reports the full diagnostic set after a change.
type DiagnosticsEvent struct {
	Diagnostics []Diagnostic
	Markers     []Marker
}

// StatusLevel separates informational status lines from error summaries.
type StatusLevel string

const (
	// StatusInfo carries run statistics and neutral messages.
	StatusInfo StatusLevel = "info"
	// StatusError carries short error summaries.
	StatusError StatusLevel = "error"
)

// StatusEvent updates the inline status line. An empty Message clears it.
type StatusEvent struct {
	Level   StatusLevel
	Message string
}

// NotificationLevel is the toast severity.
type NotificationLevel string

const (
	// NotifyInfo is a confirmation toast.
	NotifyInfo NotificationLevel = "info"
	// NotifyError is a failure toast.
	NotifyError NotificationLevel = "error"
)

// Notification is a transient user-facing message.
type Notification struct {
	Level   NotificationLevel
	Message string
	URL     string
}

// CodeEventSource records why the code changed underneath the editor.
type CodeEventSource string

const (
	// CodeFromFormat is a successful format result.
	CodeFromFormat CodeEventSource = "format"
	// CodeFromSnippet is a fetched shared snippet.
	CodeFromSnippet CodeEventSource = "snippet"
	// CodeFromTemplate is a fetched template.
	CodeFromTemplate CodeEventSource = "template"
	// CodeFromStorage is a reload from the settings store (tab or language switch).
	CodeFromStorage CodeEventSource = "storage"
)

// CodeEvent tells the editor widget its value was replaced.
type CodeEvent struct {
	Source CodeEventSource
	Code   string
}

// SettingsEvent carries the settings snapshot after a change.
type SettingsEvent struct {
	Settings Settings
}
