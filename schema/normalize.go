package schema

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// NormalizeKeyBindings validates a key binding mode. "none" and "default" map to KeyBindingsNone.
func NormalizeKeyBindings(value string) (KeyBindings, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "default":
		return KeyBindingsNone, nil
	case "vim":
		return KeyBindingsVim, nil
	case "emacs":
		return KeyBindingsEmacs, nil
	default:
		return "", fmt.Errorf("%w: key bindings %q", ErrInvalidSetting, value)
	}
}

// ValidFontSize reports whether size is one of the font tiers.
func ValidFontSize(size FontSize) bool {
	switch size {
	case FontSizeSmall, FontSizeMedium, FontSizeLarge:
		return true
	default:
		return false
	}
}

// NormalizeFontSize accepts a tier name (small/medium/large, s/m/l) or a tier size.
func NormalizeFontSize(value string) (FontSize, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "s", "small", "12":
		return FontSizeSmall, nil
	case "m", "medium", "14":
		return FontSizeMedium, nil
	case "l", "large", "16":
		return FontSizeLarge, nil
	default:
		return 0, fmt.Errorf("%w: font size %q", ErrInvalidSetting, value)
	}
}

// NormalizeLayout validates a layout orientation.
func NormalizeLayout(value string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(value))) {
	case LayoutHorizontal:
		return LayoutHorizontal, nil
	case LayoutVertical:
		return LayoutVertical, nil
	default:
		return "", fmt.Errorf("%w: layout %q", ErrInvalidSetting, value)
	}
}

// ClampPaneSize bounds a pane size percentage to [PaneSizeMin, PaneSizeMax].
func ClampPaneSize(size float64) float64 {
	if math.IsNaN(size) {
		return DefaultPaneSize
	}
	if size < PaneSizeMin {
		return PaneSizeMin
	}
	if size > PaneSizeMax {
		return PaneSizeMax
	}
	return size
}

// NormalizeLanguage validates a language tag. Allowed characters: a-z, 0-9, '-', '_'.
func NormalizeLanguage(value string) (Language, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if !isIdentifier(trimmed) {
		return "", fmt.Errorf("%w: language %q", ErrInvalidSetting, value)
	}
	return Language(trimmed), nil
}

// NormalizeSandboxVersion validates a sandbox version tag.
// Allowed characters: A-Z, a-z, 0-9, '.', '_', '-'.
func NormalizeSandboxVersion(value string) (SandboxVersion, error) {
	trimmed := strings.TrimSpace(value)
	if !isIdentifier(trimmed) {
		return "", fmt.Errorf("%w: sandbox version %q", ErrInvalidSetting, value)
	}
	return SandboxVersion(trimmed), nil
}

// NormalizeSnippetID validates a snippet identifier taken from a URL path.
func NormalizeSnippetID(value string) (SnippetID, error) {
	trimmed := strings.TrimSpace(value)
	if !isIdentifier(trimmed) {
		return "", ErrSnippetNotFound
	}
	return SnippetID(trimmed), nil
}

// NormalizeTemplateID validates a template identifier.
func NormalizeTemplateID(value string) (TemplateID, error) {
	trimmed := strings.TrimSpace(value)
	if !isIdentifier(trimmed) {
		return "", ErrTemplateNotFound
	}
	return TemplateID(trimmed), nil
}

func isIdentifier(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
