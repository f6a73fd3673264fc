package settings

import (
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/schema"
)

// Store is the typed settings layer over a KV. Every setter writes through
// immediately and updates the in-memory snapshot; a failed write is logged and
// returned but the in-memory value still changes.
type Store struct {
	kv  persist.KV
	log pslog.Logger

	mu       sync.RWMutex
	current  schema.Settings
	vertical bool
	narrow   bool
	tab      schema.TabID
	cursor   schema.Cursor
	paneSize float64
}

// New loads every setting from kv, falling back to defaults.
func New(kv persist.KV, logger pslog.Logger) *Store {
	s := &Store{kv: kv, log: logger}
	s.Reload()
	return s
}

// Reload re-reads every setting from the KV.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vertical = VerticalLayout.Get(s.kv)
	s.current = schema.Settings{
		FontSize:       FontSize.Get(s.kv),
		KeyBindings:    KeyBindings.Get(s.kv),
		AutoRun:        AutoRun.Get(s.kv),
		LintOn:         LintOn.Get(s.kv),
		ShowInvisible:  ShowInvisible.Get(s.kv),
		SandboxVersion: SandboxVersion.Get(s.kv),
		Language:       Language.Get(s.kv),
	}
	s.current.Layout = s.layoutLocked()
	s.tab = ActiveTab.Get(s.kv)
	s.cursor = schema.Cursor{Row: CursorRow.Get(s.kv), Column: CursorColumn.Get(s.kv)}
	s.paneSize = PaneSize.Get(s.kv)
}

// Snapshot returns the current settings.
func (s *Store) Snapshot() schema.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) layoutLocked() schema.Layout {
	if s.vertical || s.narrow {
		return schema.LayoutVertical
	}
	return schema.LayoutHorizontal
}

func (s *Store) update(apply func(*Store) error) (schema.Settings, error) {
	s.mu.Lock()
	err := apply(s)
	s.current.Layout = s.layoutLocked()
	snapshot := s.current
	s.mu.Unlock()
	if err != nil && s.log != nil {
		s.log.Warn("settings write failed", "err", err)
	}
	return snapshot, err
}

// SetFontSize stores the font tier.
func (s *Store) SetFontSize(size schema.FontSize) (schema.Settings, error) {
	if !schema.ValidFontSize(size) {
		return s.Snapshot(), FontSize.Set(nil, size)
	}
	return s.update(func(s *Store) error {
		s.current.FontSize = size
		return FontSize.Set(s.kv, size)
	})
}

// SetKeyBindings stores the key binding mode.
func (s *Store) SetKeyBindings(mode schema.KeyBindings) (schema.Settings, error) {
	normalized, err := schema.NormalizeKeyBindings(string(mode))
	if err != nil {
		return s.Snapshot(), err
	}
	return s.update(func(s *Store) error {
		s.current.KeyBindings = normalized
		return KeyBindings.Set(s.kv, normalized)
	})
}

// SetAutoRun stores the auto-run flag.
func (s *Store) SetAutoRun(on bool) (schema.Settings, error) {
	return s.update(func(s *Store) error {
		s.current.AutoRun = on
		return AutoRun.Set(s.kv, on)
	})
}

// SetLintOn stores the lint flag.
func (s *Store) SetLintOn(on bool) (schema.Settings, error) {
	return s.update(func(s *Store) error {
		s.current.LintOn = on
		return LintOn.Set(s.kv, on)
	})
}

// SetShowInvisible stores the show-invisible flag.
func (s *Store) SetShowInvisible(on bool) (schema.Settings, error) {
	return s.update(func(s *Store) error {
		s.current.ShowInvisible = on
		return ShowInvisible.Set(s.kv, on)
	})
}

// SetLayout stores the layout preference. On narrow viewports the effective
// layout stays vertical regardless.
func (s *Store) SetLayout(layout schema.Layout) (schema.Settings, error) {
	normalized, err := schema.NormalizeLayout(string(layout))
	if err != nil {
		return s.Snapshot(), err
	}
	return s.update(func(s *Store) error {
		s.vertical = normalized == schema.LayoutVertical
		return VerticalLayout.Set(s.kv, s.vertical)
	})
}

// PreferredLayout returns the persisted layout, ignoring the viewport.
func (s *Store) PreferredLayout() schema.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.vertical {
		return schema.LayoutVertical
	}
	return schema.LayoutHorizontal
}

// SetViewportWidth records the host viewport width. Widths under
// schema.MobileWidth force the vertical layout without persisting it.
func (s *Store) SetViewportWidth(width int) schema.Settings {
	snapshot, _ := s.update(func(s *Store) error {
		s.narrow = width > 0 && width < schema.MobileWidth
		return nil
	})
	return snapshot
}

// SetSandboxVersion stores the sandbox version.
func (s *Store) SetSandboxVersion(version schema.SandboxVersion) (schema.Settings, error) {
	normalized, err := schema.NormalizeSandboxVersion(string(version))
	if err != nil {
		return s.Snapshot(), err
	}
	return s.update(func(s *Store) error {
		s.current.SandboxVersion = normalized
		return SandboxVersion.Set(s.kv, normalized)
	})
}

// SetLanguage stores the selected language.
func (s *Store) SetLanguage(language schema.Language) (schema.Settings, error) {
	normalized, err := schema.NormalizeLanguage(string(language))
	if err != nil {
		return s.Snapshot(), err
	}
	return s.update(func(s *Store) error {
		s.current.Language = normalized
		return Language.Set(s.kv, normalized)
	})
}

// Tab returns the active tab.
func (s *Store) Tab() schema.TabID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tab
}

// SetTab stores the active tab.
func (s *Store) SetTab(tab schema.TabID) error {
	if tab <= 0 {
		return ActiveTab.Set(nil, tab)
	}
	_, err := s.update(func(s *Store) error {
		s.tab = tab
		return ActiveTab.Set(s.kv, tab)
	})
	return err
}

// Cursor returns the last stored cursor.
func (s *Store) Cursor() schema.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// SetCursor stores the cursor position.
func (s *Store) SetCursor(cursor schema.Cursor) error {
	if cursor.Row < 0 {
		cursor.Row = 0
	}
	if cursor.Column < 0 {
		cursor.Column = 0
	}
	_, err := s.update(func(s *Store) error {
		s.cursor = cursor
		if err := CursorRow.Set(s.kv, cursor.Row); err != nil {
			return err
		}
		return CursorColumn.Set(s.kv, cursor.Column)
	})
	return err
}

// PaneSize returns the editor pane size in percent.
func (s *Store) PaneSize() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paneSize
}

// SetPaneSize clamps and stores the editor pane size, returning the stored value.
func (s *Store) SetPaneSize(size float64) (float64, error) {
	clamped := schema.ClampPaneSize(size)
	_, err := s.update(func(s *Store) error {
		s.paneSize = clamped
		return PaneSize.Set(s.kv, clamped)
	})
	return clamped, err
}

// Code returns the stored code for a language and tab, or DefaultCode.
func (s *Store) Code(language schema.Language, tab schema.TabID) string {
	return Code(language, tab).Get(s.kv)
}

// SetCode stores the code for a language and tab.
func (s *Store) SetCode(language schema.Language, tab schema.TabID, code string) error {
	err := Code(language, tab).Set(s.kv, code)
	if err != nil && s.log != nil {
		s.log.Warn("settings write failed", "key", CodeKey(language, tab), "err", err)
	}
	return err
}

// Session assembles the persisted session for the active language and tab.
func (s *Store) Session() schema.Session {
	s.mu.RLock()
	language := s.current.Language
	session := schema.Session{
		Language:       language,
		SandboxVersion: s.current.SandboxVersion,
		Tab:            s.tab,
		Cursor:         s.cursor,
		Layout:         s.current.Layout,
		PaneSize:       s.paneSize,
	}
	s.mu.RUnlock()
	session.Code = s.Code(language, session.Tab)
	return session
}
