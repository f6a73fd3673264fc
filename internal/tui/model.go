// Package tui is the terminal front-end of a sandpit session: a code editor
// pane, an output pane, and a status line driven by the event bus.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pkt.systems/sandpit/core"
	"pkt.systems/sandpit/internal/eventbus"
	"pkt.systems/sandpit/schema"
)

// Controller is the part of the session controller the terminal UI drives.
type Controller interface {
	Session() schema.Session
	Settings() schema.Settings
	Modifier() schema.Modifier
	OnChange(text string)
	OnCursorChange(row, column int)
	OnResize(size, viewport float64) float64
	OnViewport(width int) schema.Settings
	HandleKey(key schema.KeyPress) schema.Action
	ToggleAutoRun() bool
	ToggleLint() bool
	ToggleLayout() schema.Layout
}

const (
	maxEntries   = schema.DefaultOutputMaxEntries
	resizeStep   = 5.0
	chromeHeight = 2
	borderSize   = 2
)

type focus int

const (
	focusEditor focus = iota
	focusOutput
)

type eventMsg eventbus.Event

type eventsClosedMsg struct{}

// Model is the bubbletea model of an editing session.
type Model struct {
	ctrl   Controller
	events <-chan eventbus.Event
	th     theme

	editor textarea.Model
	output viewport.Model
	focus  focus

	width    int
	height   int
	paneSize float64
	settings schema.Settings

	entries     []schema.OutputEntry
	state       schema.StateEvent
	status      schema.StatusEvent
	diagnostics []schema.Diagnostic
	notice      schema.Notification

	lastCode   string
	lastCursor schema.Cursor
}

// New returns a model for ctrl. events is a bus subscription; the model
// keeps reading it until it is closed.
func New(ctrl Controller, events <-chan eventbus.Event) Model {
	session := ctrl.Session()
	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.Prompt = ""
	editor.CharLimit = 0
	editor.MaxHeight = 0
	editor.SetValue(session.Code)
	editor.Focus()
	restoreCursor(&editor, session.Cursor)

	return Model{
		ctrl:       ctrl,
		events:     events,
		th:         defaultTheme(),
		editor:     editor,
		output:     viewport.New(0, 0),
		paneSize:   session.PaneSize,
		settings:   ctrl.Settings(),
		lastCode:   session.Code,
		lastCursor: session.Cursor,
	}
}

func restoreCursor(editor *textarea.Model, cursor schema.Cursor) {
	for i := editor.LineCount(); i > 0 && editor.Line() > cursor.Row; i-- {
		editor.CursorUp()
	}
	for i := editor.LineCount(); i > 0 && editor.Line() < cursor.Row; i-- {
		editor.CursorDown()
	}
	editor.SetCursor(cursor.Column)
}

func waitForEvent(ch <-chan eventbus.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(event)
	}
}

// Init starts the cursor blink and the event reader.
func (m Model) Init() tea.Cmd {
	if m.events == nil {
		return textarea.Blink
	}
	return tea.Batch(textarea.Blink, waitForEvent(m.events))
}

// Update handles terminal input and session events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.settings = m.ctrl.OnViewport(msg.Width)
		m.layout()
		return m, nil

	case eventMsg:
		m.apply(eventbus.Event(msg))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		return m, tea.Quit
	case "f2":
		m.ctrl.ToggleAutoRun()
		m.refreshSettings()
		return m, nil
	case "f3":
		m.ctrl.ToggleLayout()
		m.refreshSettings()
		return m, nil
	case "f4":
		m.ctrl.ToggleLint()
		m.refreshSettings()
		return m, nil
	case "f6":
		m.toggleFocus()
		return m, nil
	case "alt+left", "alt+up":
		m.resize(-resizeStep)
		return m, nil
	case "alt+right", "alt+down":
		m.resize(resizeStep)
		return m, nil
	}

	switch m.ctrl.HandleKey(keyPress(msg)) {
	case schema.ActionNone:
	case schema.ActionFocusEditor:
		m.focusEditor()
		return m, nil
	default:
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusOutput {
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}
	m.editor, cmd = m.editor.Update(msg)
	m.syncEditor()
	return m, cmd
}

func (m *Model) syncEditor() {
	if value := m.editor.Value(); value != m.lastCode {
		m.lastCode = value
		m.ctrl.OnChange(value)
	}
	info := m.editor.LineInfo()
	cursor := schema.Cursor{Row: m.editor.Line(), Column: info.StartColumn + info.ColumnOffset}
	if cursor != m.lastCursor {
		m.lastCursor = cursor
		m.ctrl.OnCursorChange(cursor.Row, cursor.Column)
	}
}

func (m *Model) toggleFocus() {
	if m.focus == focusEditor {
		m.focus = focusOutput
		m.editor.Blur()
		return
	}
	m.focusEditor()
}

func (m *Model) focusEditor() {
	m.focus = focusEditor
	m.editor.Focus()
}

func (m *Model) resize(delta float64) {
	m.paneSize = m.ctrl.OnResize(m.paneSize+delta, 100)
	m.layout()
}

func (m *Model) refreshSettings() {
	m.settings = m.ctrl.Settings()
	m.layout()
}

func (m *Model) apply(event eventbus.Event) {
	switch event.Type {
	case eventbus.EventOutput:
		m.applyOutput(event.Output)
	case eventbus.EventState:
		m.state = event.State
	case eventbus.EventDiagnostics:
		m.diagnostics = event.Diagnostics.Diagnostics
	case eventbus.EventStatus:
		m.status = event.Status
	case eventbus.EventNotify:
		m.notice = event.Notification
	case eventbus.EventCode:
		m.editor.SetValue(event.Code.Code)
		m.lastCode = event.Code.Code
	case eventbus.EventSettings:
		m.settings = event.Settings.Settings
		m.layout()
	}
}

func (m *Model) applyOutput(event schema.OutputEvent) {
	switch event.Type {
	case schema.OutputCleared:
		m.entries = nil
	case schema.OutputReplaced:
		m.entries = append([]schema.OutputEntry(nil), event.Entries...)
	case schema.OutputAppended:
		m.entries = append(m.entries, event.Entry)
		if len(m.entries) > maxEntries {
			m.entries = m.entries[len(m.entries)-maxEntries:]
		}
	}
	m.output.SetContent(m.renderOutput())
	m.output.GotoBottom()
}

func (m Model) renderOutput() string {
	var b strings.Builder
	for _, entry := range m.entries {
		text := strings.TrimSuffix(entry.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			if entry.Kind == schema.OutputStderr {
				line = m.th.Danger.Render(line)
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// layout sizes both panes from the window, the layout setting and the
// stored pane size.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	body := max(m.height-chromeHeight, borderSize+1)
	size := schema.ClampPaneSize(m.paneSize)
	if m.settings.Layout == schema.LayoutVertical {
		editorHeight := max(int(float64(body)*size/100), borderSize+1)
		outputHeight := max(body-editorHeight, borderSize+1)
		m.setPaneSizes(m.width, editorHeight, m.width, outputHeight)
		return
	}
	editorWidth := max(int(float64(m.width)*size/100), borderSize+1)
	outputWidth := max(m.width-editorWidth, borderSize+1)
	m.setPaneSizes(editorWidth, body, outputWidth, body)
}

func (m *Model) setPaneSizes(editorWidth, editorHeight, outputWidth, outputHeight int) {
	m.editor.SetWidth(editorWidth - borderSize)
	m.editor.SetHeight(editorHeight - borderSize)
	m.output.Width = outputWidth - borderSize
	m.output.Height = outputHeight - borderSize
}

// View renders the header, both panes and the status line.
func (m Model) View() string {
	if m.width <= 0 {
		return ""
	}
	editorStyle, outputStyle := m.th.Focused, m.th.Panel
	if m.focus == focusOutput {
		editorStyle, outputStyle = m.th.Panel, m.th.Focused
	}
	editor := editorStyle.Render(m.editor.View())
	output := outputStyle.
		Width(m.output.Width).
		Height(m.output.Height).
		Render(m.output.View())

	var body string
	if m.settings.Layout == schema.LayoutVertical {
		body = lipgloss.JoinVertical(lipgloss.Left, editor, output)
	} else {
		body = lipgloss.JoinHorizontal(lipgloss.Top, editor, output)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.header(), body, m.footer())
}

func (m Model) header() string {
	title := m.th.Header.Render("sandpit")
	state := string(m.state.State)
	if state == "" {
		state = string(schema.RunStateIdle)
	}
	switch m.state.State {
	case schema.RunStateFormatFailed:
		state = m.th.Danger.Render(state)
	case schema.RunStateDone:
		state = m.th.Success.Render(state)
	case schema.RunStateFormatting, schema.RunStateStreaming:
		state = m.th.Alert.Render(state)
	default:
		state = m.th.Muted.Render(state)
	}
	parts := []string{title, state}
	if m.settings.LintOn && len(m.diagnostics) > 0 {
		parts = append(parts, m.th.Danger.Render(diagnosticsLabel(m.diagnostics)))
	}
	parts = append(parts, m.th.Muted.Render(m.flags()))
	return strings.Join(parts, "  ")
}

func (m Model) flags() string {
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}
	return fmt.Sprintf("go %s | auto-run %s | lint %s", m.settings.SandboxVersion, onOff(m.settings.AutoRun), onOff(m.settings.LintOn))
}

func (m Model) footer() string {
	switch {
	case m.notice.Message != "":
		text := m.notice.Message
		if m.notice.URL != "" {
			text += ": " + m.notice.URL
		}
		if m.notice.Level == schema.NotifyError {
			return m.th.Danger.Render(text)
		}
		return m.th.Accent.Render(text)
	case m.status.Message != "":
		if m.status.Level == schema.StatusError {
			return m.th.Danger.Render(m.status.Message)
		}
		return m.th.Muted.Render(m.status.Message)
	}
	mod := strings.ToLower(core.ModifierLabel(m.ctrl.Modifier()))
	return m.th.Muted.Render(fmt.Sprintf("%[1]s+enter run  %[1]s+b format  %[1]s+e share  f2 auto-run  f3 layout  f4 lint  f6 focus  ctrl+c quit", mod))
}

func diagnosticsLabel(diags []schema.Diagnostic) string {
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, strconv.Itoa(d.Line))
	}
	noun := "line"
	if len(lines) > 1 {
		noun = "lines"
	}
	return fmt.Sprintf("errors on %s %s", noun, strings.Join(lines, ", "))
}
