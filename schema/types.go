package schema

// Language identifies the source language edited in a session.
type Language string

// LanguageGo is the default (and canonical) source language.
const LanguageGo Language = "go"

// SandboxVersion identifies the toolchain the remote sandbox runs the code with.
type SandboxVersion string

// DefaultSandboxVersion is used when no version has been selected.
const DefaultSandboxVersion SandboxVersion = "1"

// TabID identifies one of the locally persisted code tabs.
type TabID int

// DefaultTab is the tab selected when nothing was persisted.
const DefaultTab TabID = 1

// SnippetID identifies a shared snippet on the remote service.
type SnippetID string

// TemplateID identifies a code template on the remote service.
type TemplateID string

// Layout is the editor/output pane orientation.
type Layout string

const (
	// LayoutHorizontal places editor and output side by side.
	LayoutHorizontal Layout = "horizontal"
	// LayoutVertical stacks editor above output.
	LayoutVertical Layout = "vertical"
)

// KeyBindings selects the editor key binding mode.
type KeyBindings string

const (
	// KeyBindingsNone uses the editor's default bindings.
	KeyBindingsNone KeyBindings = ""
	// KeyBindingsVim enables vim emulation.
	KeyBindingsVim KeyBindings = "vim"
	// KeyBindingsEmacs enables emacs emulation.
	KeyBindingsEmacs KeyBindings = "emacs"
)

// FontSize is an editor font size in points. Only the tier sizes are valid.
type FontSize int

const (
	// FontSizeSmall is the small font tier.
	FontSizeSmall FontSize = 12
	// FontSizeMedium is the default font tier.
	FontSizeMedium FontSize = 14
	// FontSizeLarge is the large font tier.
	FontSizeLarge FontSize = 16
)

// Pane size bounds, in percent of the viewport.
const (
	PaneSizeMin     = 20.0
	PaneSizeMax     = 80.0
	DefaultPaneSize = 50.0
)

// MobileWidth is the viewport width under which the layout is forced vertical.
const MobileWidth = 768

// Cursor is a 0-based editor cursor position.
type Cursor struct {
	Row    int
	Column int
}

// RunState is the execution pipeline state.
type RunState string

const (
	// RunStateIdle means no format or run is in progress.
	RunStateIdle RunState = "idle"
	// RunStateFormatting means a format request is in flight.
	RunStateFormatting RunState = "formatting"
	// RunStateFormatFailed is entered when the formatter reported a diagnostic.
	RunStateFormatFailed RunState = "format_failed"
	// RunStateStreaming means the execute stream is open and being consumed.
	RunStateStreaming RunState = "streaming"
	// RunStateDone is entered when the stream delivered its done event.
	RunStateDone RunState = "done"
)

// Severity classifies a diagnostic.
type Severity string

// SeverityError marks compile, format and runtime errors.
const SeverityError Severity = "error"

// Diagnostic is a line-anchored annotation derived from error text.
type Diagnostic struct {
	Line     int
	Severity Severity
}

// MarkerClass is the visual class hosts use to style diagnostic markers.
const MarkerClass = "error-marker"

// MarkerTypeFullLine marks the whole line.
const MarkerTypeFullLine = "fullLine"

// Marker is an editor highlight range. Rows are 0-based.
type Marker struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
	Class    string
	Type     string
}
