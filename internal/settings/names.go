package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pkt.systems/sandpit/schema"
)

type namedSetting struct {
	get func(*Store) string
	set func(*Store, string) error
}

var named = map[string]namedSetting{
	"font-size": {
		get: func(s *Store) string { return strconv.Itoa(int(s.Snapshot().FontSize)) },
		set: func(s *Store, raw string) error {
			size, err := schema.NormalizeFontSize(raw)
			if err != nil {
				return err
			}
			_, err = s.SetFontSize(size)
			return err
		},
	},
	"key-bindings": {
		get: func(s *Store) string {
			if mode := s.Snapshot().KeyBindings; mode != schema.KeyBindingsNone {
				return string(mode)
			}
			return "none"
		},
		set: func(s *Store, raw string) error {
			_, err := s.SetKeyBindings(schema.KeyBindings(raw))
			return err
		},
	},
	"auto-run": boolSetting(
		func(s *Store) bool { return s.Snapshot().AutoRun },
		(*Store).SetAutoRun,
	),
	"lint": boolSetting(
		func(s *Store) bool { return s.Snapshot().LintOn },
		(*Store).SetLintOn,
	),
	"show-invisible": boolSetting(
		func(s *Store) bool { return s.Snapshot().ShowInvisible },
		(*Store).SetShowInvisible,
	),
	"layout": {
		get: func(s *Store) string { return string(s.PreferredLayout()) },
		set: func(s *Store, raw string) error {
			_, err := s.SetLayout(schema.Layout(raw))
			return err
		},
	},
	"sandbox-version": {
		get: func(s *Store) string { return string(s.Snapshot().SandboxVersion) },
		set: func(s *Store, raw string) error {
			_, err := s.SetSandboxVersion(schema.SandboxVersion(raw))
			return err
		},
	},
	"language": {
		get: func(s *Store) string { return string(s.Snapshot().Language) },
		set: func(s *Store, raw string) error {
			_, err := s.SetLanguage(schema.Language(raw))
			return err
		},
	},
	"tab": {
		get: func(s *Store) string { return strconv.Itoa(int(s.Tab())) },
		set: func(s *Store, raw string) error {
			tab, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: tab %q", schema.ErrInvalidSetting, raw)
			}
			return s.SetTab(schema.TabID(tab))
		},
	},
	"pane-size": {
		get: func(s *Store) string { return strconv.FormatFloat(s.PaneSize(), 'f', -1, 64) },
		set: func(s *Store, raw string) error {
			size, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("%w: pane size %q", schema.ErrInvalidSetting, raw)
			}
			_, err = s.SetPaneSize(size)
			return err
		},
	},
}

func boolSetting(get func(*Store) bool, set func(*Store, bool) (schema.Settings, error)) namedSetting {
	return namedSetting{
		get: func(s *Store) string { return strconv.FormatBool(get(s)) },
		set: func(s *Store, raw string) error {
			on, err := parseBool(raw)
			if err != nil {
				return err
			}
			_, err = set(s, on)
			return err
		},
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: boolean %q", schema.ErrInvalidSetting, raw)
	}
}

// Names lists the settings addressable by name, sorted.
func Names() []string {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetByName returns the textual value of a named setting.
func (s *Store) GetByName(name string) (string, error) {
	setting, ok := named[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", name)
	}
	return setting.get(s), nil
}

// SetByName parses value and stores it under a named setting.
func (s *Store) SetByName(name, value string) error {
	setting, ok := named[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("unknown setting %q", name)
	}
	return setting.set(s, value)
}
