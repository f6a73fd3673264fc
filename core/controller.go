package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/internal/debounce"
	"pkt.systems/sandpit/internal/logx"
	"pkt.systems/sandpit/internal/settings"
	"pkt.systems/sandpit/schema"
)

var snippetPathPattern = regexp.MustCompile(`^/snippets/([^/?#]+)`)

// Controller turns editor and shortcut input into pipeline operations and
// settings writes.
type Controller struct {
	pipeline *Pipeline
	settings *settings.Store
	cfg      schema.ClientConfig
	log      pslog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	language *Cell[schema.Language]
	tab      *Cell[schema.TabID]
	cursor   *Cell[schema.Cursor]
	modifier schema.Modifier

	run        *debounce.Func
	autoRun    *debounce.Func
	format     *debounce.Func
	share      *debounce.Func
	template   *debounce.Value[schema.TemplateID]
	cursorSave *debounce.Value[schema.Cursor]

	closeOnce sync.Once
}

// NewController loads the persisted session into the pipeline cells and wires
// the debounced actions. Debounced actions run with ctx; Close cancels it.
func NewController(ctx context.Context, pipeline *Pipeline, store *settings.Store, logger pslog.Logger) *Controller {
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	cfg := pipeline.Config()
	baseCtx, cancel := context.WithCancel(ctx)
	session := store.Session()
	c := &Controller{
		pipeline: pipeline,
		settings: store,
		cfg:      cfg,
		log:      logger,
		ctx:      baseCtx,
		cancel:   cancel,
		language: NewCell(session.Language),
		tab:      NewCell(session.Tab),
		cursor:   NewCell(session.Cursor),
		modifier: cfg.Modifier,
	}
	if c.modifier == "" {
		c.modifier = PlatformModifier()
	}
	pipeline.Code().Store(session.Code)
	pipeline.Version().Store(session.SandboxVersion)
	pipeline.Code().Watch(c.persistCode)

	named := func(name string) []debounce.Option {
		return []debounce.Option{debounce.WithName(name), debounce.WithLogger(logger)}
	}
	c.run = debounce.New(cfg.RunDebounce, func() { _ = c.pipeline.Run(c.ctx) }, named("run")...)
	c.autoRun = debounce.New(cfg.AutoRunDebounce, c.autoRunNow, named("auto_run")...)
	c.format = debounce.New(cfg.FormatDebounce, func() { _ = c.pipeline.Format(c.ctx) }, named("format")...)
	c.share = debounce.New(cfg.ShareDebounce, func() { _, _ = c.pipeline.Share(c.ctx) }, named("share")...)
	c.template = debounce.NewValue(cfg.TemplateDebounce, c.loadTemplate, named("template")...)
	c.cursorSave = debounce.NewValue(cfg.CursorDebounce, c.saveCursor, named("cursor")...)
	return c
}

// Pipeline returns the underlying pipeline.
func (c *Controller) Pipeline() *Pipeline {
	return c.pipeline
}

// Modifier returns the shortcut modifier in effect.
func (c *Controller) Modifier() schema.Modifier {
	return c.modifier
}

// Start checks the sandbox connection and, when location names a shared
// snippet, loads it. Both failures only notify.
func (c *Controller) Start(ctx context.Context, location string) {
	c.pipeline.emit(c.settingsEvent(c.settings.Snapshot()))
	if err := c.pipeline.sandbox.HealthCheck(ctx); err != nil {
		c.log.Warn("controller health check failed", "err", err)
		c.pipeline.Notify(schema.Notification{Level: schema.NotifyError, Message: fmt.Sprintf("No backend connection: %v", err)})
	}
	match := snippetPathPattern.FindStringSubmatch(location)
	if match == nil {
		return
	}
	id, err := schema.NormalizeSnippetID(match[1])
	if err != nil {
		c.pipeline.Notify(schema.Notification{Level: schema.NotifyError, Message: fmt.Sprintf("%v; loading local cache instead", err)})
		return
	}
	_ = c.pipeline.LoadSnippet(ctx, id)
}

// Close stops the debounced actions, writes a pending cursor update and
// cancels any open stream.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cursorSave.Flush()
		c.cursorSave.Stop()
		c.run.Stop()
		c.autoRun.Stop()
		c.format.Stop()
		c.share.Stop()
		c.template.Stop()
		c.pipeline.Cancel()
		c.cancel()
	})
}

// Session returns the live session.
func (c *Controller) Session() schema.Session {
	snapshot := c.settings.Snapshot()
	return schema.Session{
		Code:           c.pipeline.Code().Load(),
		Language:       c.language.Load(),
		SandboxVersion: c.pipeline.Version().Load(),
		Tab:            c.tab.Load(),
		Cursor:         c.cursor.Load(),
		Layout:         snapshot.Layout,
		PaneSize:       c.settings.PaneSize(),
	}
}

// Settings returns the settings snapshot.
func (c *Controller) Settings() schema.Settings {
	return c.settings.Snapshot()
}

// OnChange records an edit. The code is persisted immediately; only the
// auto-run it may trigger is debounced.
func (c *Controller) OnChange(text string) {
	c.pipeline.Code().Store(text)
	if c.settings.Snapshot().AutoRun {
		c.autoRun.Call()
	}
}

// OnCursorChange records the cursor; persisting it is debounced.
func (c *Controller) OnCursorChange(row, column int) {
	cursor := schema.Cursor{Row: row, Column: column}
	c.cursor.Store(cursor)
	c.cursorSave.Call(cursor)
}

// OnResize stores the editor pane size as a percentage of viewport and
// returns the stored value.
func (c *Controller) OnResize(size, viewport float64) float64 {
	if viewport <= 0 {
		return c.settings.PaneSize()
	}
	stored, err := c.settings.SetPaneSize(size * 100 / viewport)
	if err != nil {
		c.log.Debug("controller pane size not persisted", "err", err)
	}
	return stored
}

// OnViewport records the host viewport width, which drives the forced
// vertical layout on narrow screens.
func (c *Controller) OnViewport(width int) schema.Settings {
	before := c.settings.Snapshot()
	after := c.settings.SetViewportWidth(width)
	if after != before {
		c.pipeline.emit(c.settingsEvent(after))
	}
	return after
}

// SetFontSize stores the font tier.
func (c *Controller) SetFontSize(size schema.FontSize) error {
	return c.applySettings(c.settings.SetFontSize(size))
}

// SetKeyBindings stores the key binding mode.
func (c *Controller) SetKeyBindings(mode schema.KeyBindings) error {
	return c.applySettings(c.settings.SetKeyBindings(mode))
}

// ToggleAutoRun flips auto-run and returns the new value.
func (c *Controller) ToggleAutoRun() bool {
	snapshot, err := c.settings.SetAutoRun(!c.settings.Snapshot().AutoRun)
	_ = c.applySettings(snapshot, err)
	return snapshot.AutoRun
}

// ToggleLint flips lint and returns the new value.
func (c *Controller) ToggleLint() bool {
	snapshot, err := c.settings.SetLintOn(!c.settings.Snapshot().LintOn)
	_ = c.applySettings(snapshot, err)
	return snapshot.LintOn
}

// ToggleShowInvisible flips invisible-character rendering and returns the new value.
func (c *Controller) ToggleShowInvisible() bool {
	snapshot, err := c.settings.SetShowInvisible(!c.settings.Snapshot().ShowInvisible)
	_ = c.applySettings(snapshot, err)
	return snapshot.ShowInvisible
}

// ToggleLayout flips the preferred layout and returns the effective one.
func (c *Controller) ToggleLayout() schema.Layout {
	next := schema.LayoutVertical
	if c.settings.PreferredLayout() == schema.LayoutVertical {
		next = schema.LayoutHorizontal
	}
	snapshot, err := c.settings.SetLayout(next)
	_ = c.applySettings(snapshot, err)
	return snapshot.Layout
}

// SetSandboxVersion selects the sandbox toolchain for later runs.
func (c *Controller) SetSandboxVersion(version schema.SandboxVersion) error {
	snapshot, err := c.settings.SetSandboxVersion(version)
	if err := c.applySettings(snapshot, err); err != nil {
		return err
	}
	c.pipeline.Version().Store(snapshot.SandboxVersion)
	return nil
}

// SetLanguage selects the source language and reloads its code.
func (c *Controller) SetLanguage(language schema.Language) error {
	normalized, err := schema.NormalizeLanguage(string(language))
	if err != nil {
		return err
	}
	if !slices.Contains(c.cfg.Languages, normalized) {
		return fmt.Errorf("%w: language %q is not enabled", schema.ErrInvalidSetting, normalized)
	}
	snapshot, err := c.settings.SetLanguage(normalized)
	if err := c.applySettings(snapshot, err); err != nil {
		return err
	}
	c.language.Store(normalized)
	c.reloadCode()
	return nil
}

// SetTab selects a code tab and reloads its code.
func (c *Controller) SetTab(tab schema.TabID) error {
	if err := c.settings.SetTab(tab); err != nil {
		if isInvalid(err) {
			return err
		}
		c.log.Debug("controller tab not persisted", "err", err)
	}
	c.tab.Store(tab)
	c.reloadCode()
	return nil
}

// RequestRun schedules the debounced run.
func (c *Controller) RequestRun() {
	c.run.Call()
}

// RequestFormat schedules the debounced format.
func (c *Controller) RequestFormat() {
	c.format.Call()
}

// RequestShare schedules the debounced share.
func (c *Controller) RequestShare() {
	c.share.Call()
}

// RequestTemplate schedules loading a template, followed by a run.
func (c *Controller) RequestTemplate(id schema.TemplateID) {
	c.template.Call(id)
}

// HandleKey resolves a key press to a shortcut and invokes the same
// debounced entry point the on-screen controls use.
func (c *Controller) HandleKey(key schema.KeyPress) schema.Action {
	action := ResolveShortcut(c.modifier, key)
	switch action {
	case schema.ActionRun:
		c.RequestRun()
	case schema.ActionFormat:
		c.RequestFormat()
	case schema.ActionShare:
		c.RequestShare()
	}
	return action
}

func (c *Controller) loadTemplate(id schema.TemplateID) {
	normalized, err := schema.NormalizeTemplateID(string(id))
	if err != nil {
		c.pipeline.Notify(schema.Notification{Level: schema.NotifyError, Message: fmt.Sprintf("load template %s: %v", id, err)})
		return
	}
	if err := c.pipeline.LoadTemplate(c.ctx, normalized); err != nil {
		return
	}
	c.run.Call()
}

// autoRunNow re-reads the toggle so a run scheduled before auto-run was
// switched off does not fire.
func (c *Controller) autoRunNow() {
	if !c.settings.Snapshot().AutoRun {
		return
	}
	_ = c.pipeline.Run(c.ctx)
}

func (c *Controller) saveCursor(cursor schema.Cursor) {
	if err := c.settings.SetCursor(cursor); err != nil {
		c.log.Debug("controller cursor not persisted", "err", err)
	}
}

func (c *Controller) persistCode(code string) {
	language, tab := c.language.Load(), c.tab.Load()
	if err := c.settings.SetCode(language, tab, code); err != nil {
		logx.WithTab(c.log, language, tab).Debug("controller code not persisted", "err", err)
	}
}

func (c *Controller) reloadCode() {
	language, tab := c.language.Load(), c.tab.Load()
	code := c.settings.Code(language, tab)
	logx.WithTab(c.log, language, tab).Debug("controller code reloaded", "code_len", len(code))
	c.pipeline.emit(func() {
		c.pipeline.Code().Store(code)
		c.pipeline.sink.OnCode(schema.CodeEvent{Source: schema.CodeFromStorage, Code: code})
	})
}

// applySettings emits the settings snapshot unless the value was rejected.
// Write failures still emit, since the in-memory value changed.
func (c *Controller) applySettings(snapshot schema.Settings, err error) error {
	if err != nil && isInvalid(err) {
		return err
	}
	c.pipeline.emit(c.settingsEvent(snapshot))
	return err
}

func isInvalid(err error) bool {
	return errors.Is(err, schema.ErrInvalidSetting)
}

func (c *Controller) settingsEvent(snapshot schema.Settings) func() {
	return func() { c.pipeline.sink.OnSettings(schema.SettingsEvent{Settings: snapshot}) }
}
