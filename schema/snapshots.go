package schema

// Settings is the snapshot of user preferences.
type Settings struct {
	FontSize       FontSize
	KeyBindings    KeyBindings
	AutoRun        bool
	LintOn         bool
	ShowInvisible  bool
	Layout         Layout
	SandboxVersion SandboxVersion
	Language       Language
}

// Session is the snapshot of the editing session.
type Session struct {
	Code           string
	Language       Language
	SandboxVersion SandboxVersion
	Tab            TabID
	Cursor         Cursor
	Layout         Layout
	PaneSize       float64
}

// PipelineSnapshot is a read-only view of the pipeline for renderers.
type PipelineSnapshot struct {
	State       RunState
	Busy        bool
	Output      []OutputEntry
	Diagnostics []Diagnostic
	Status      StatusEvent
}
