package schema

// KeyPress is a raw key event from the host. Key is lower-case ("enter", "b", "escape").
type KeyPress struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Alt   bool
	Shift bool
}

// Action is what a shortcut resolved to.
type Action string

const (
	// ActionNone means the key is not a shortcut and should reach the editor.
	ActionNone Action = ""
	// ActionRun requests the debounced run.
	ActionRun Action = "run"
	// ActionFormat requests the debounced format.
	ActionFormat Action = "format"
	// ActionShare requests the debounced share.
	ActionShare Action = "share"
	// ActionFocusEditor asks the host to move focus back to the editor.
	ActionFocusEditor Action = "focus_editor"
)
