package core

import (
	"runtime"
	"strings"

	"pkt.systems/sandpit/schema"
)

// DefaultModifier returns the shortcut modifier for goos: meta on macOS, ctrl elsewhere.
func DefaultModifier(goos string) schema.Modifier {
	if goos == "darwin" {
		return schema.ModifierMeta
	}
	return schema.ModifierCtrl
}

// PlatformModifier returns the shortcut modifier of the running platform.
func PlatformModifier() schema.Modifier {
	return DefaultModifier(runtime.GOOS)
}

// ModifierLabel is the key name shown in help text.
func ModifierLabel(mod schema.Modifier) string {
	switch mod {
	case schema.ModifierMeta:
		return "Cmd"
	case schema.ModifierAlt:
		return "Alt"
	default:
		return "Ctrl"
	}
}

// ResolveShortcut maps a key press to an action. Escape needs no modifier.
func ResolveShortcut(mod schema.Modifier, key schema.KeyPress) schema.Action {
	name := strings.ToLower(key.Key)
	if name == "escape" || name == "esc" {
		return schema.ActionFocusEditor
	}
	if !modifierHeld(mod, key) {
		return schema.ActionNone
	}
	switch name {
	case "enter", "return":
		return schema.ActionRun
	case "b":
		return schema.ActionFormat
	case "e":
		return schema.ActionShare
	default:
		return schema.ActionNone
	}
}

func modifierHeld(mod schema.Modifier, key schema.KeyPress) bool {
	switch mod {
	case schema.ModifierMeta:
		return key.Meta
	case schema.ModifierAlt:
		return key.Alt
	default:
		return key.Ctrl
	}
}
