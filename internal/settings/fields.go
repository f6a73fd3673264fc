package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/schema"
)

// Field binds one setting to its storage key, default and codec.
// Get never fails: absent, unparsable or invalid values yield Default.
type Field[T any] struct {
	Key     string
	Default T
	Decode  func(string) (T, error)
	Encode  func(T) string
	Valid   func(T) bool
}

// Get reads the field from kv.
func (f Field[T]) Get(kv persist.KV) T {
	value, _ := f.Lookup(kv)
	return value
}

// Lookup reads the field from kv and reports whether a stored value was used.
func (f Field[T]) Lookup(kv persist.KV) (T, bool) {
	if kv == nil {
		return f.Default, false
	}
	raw, ok, err := kv.Get(f.Key)
	if err != nil || !ok {
		return f.Default, false
	}
	value, err := f.Decode(raw)
	if err != nil {
		return f.Default, false
	}
	if f.Valid != nil && !f.Valid(value) {
		return f.Default, false
	}
	return value, true
}

// Set validates value and writes it to kv.
func (f Field[T]) Set(kv persist.KV, value T) error {
	if f.Valid != nil && !f.Valid(value) {
		return fmt.Errorf("%w: %s=%v", schema.ErrInvalidSetting, f.Key, value)
	}
	if kv == nil {
		return nil
	}
	if err := kv.Set(f.Key, f.Encode(value)); err != nil {
		return fmt.Errorf("store %s: %w", f.Key, err)
	}
	return nil
}

func decodeBool(raw string) (bool, error) {
	var value bool
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return false, err
	}
	return value, nil
}

func encodeBool(value bool) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func boolField(key string, def bool) Field[bool] {
	return Field[bool]{Key: key, Default: def, Decode: decodeBool, Encode: encodeBool}
}

func decodeInt[T ~int](raw string) (T, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return T(value), nil
}

func encodeInt[T ~int](value T) string {
	return strconv.Itoa(int(value))
}

func decodeString[T ~string](raw string) (T, error) {
	return T(raw), nil
}

func encodeString[T ~string](value T) string {
	return string(value)
}

func nonNegative(value int) bool {
	return value >= 0
}

// DefaultCode seeds empty code tabs.
const DefaultCode = `package main

import "fmt"

func main() {
	fmt.Println("Hello, 世界")
}
`

var (
	// FontSize is the editor font tier.
	FontSize = Field[schema.FontSize]{
		Key:     "fontSize",
		Default: schema.FontSizeMedium,
		Decode:  decodeInt[schema.FontSize],
		Encode:  encodeInt[schema.FontSize],
		Valid:   schema.ValidFontSize,
	}
	// KeyBindings is the editor key binding mode.
	KeyBindings = Field[schema.KeyBindings]{
		Key:     "keyBindings",
		Default: schema.KeyBindingsNone,
		Decode:  decodeString[schema.KeyBindings],
		Encode:  encodeString[schema.KeyBindings],
		Valid: func(value schema.KeyBindings) bool {
			normalized, err := schema.NormalizeKeyBindings(string(value))
			return err == nil && normalized == value
		},
	}
	// VerticalLayout is the persisted layout choice for wide viewports.
	VerticalLayout = boolField("isVerticalLayout", false)
	// AutoRun toggles running on every edit.
	AutoRun = boolField("isAutoRun", true)
	// LintOn toggles lint/autocomplete in the editor.
	LintOn = boolField("isLintOn", true)
	// ShowInvisible toggles rendering of invisible characters.
	ShowInvisible = boolField("isShowInvisible", false)
	// SandboxVersion is the selected sandbox toolchain.
	SandboxVersion = Field[schema.SandboxVersion]{
		Key:     "sandboxVersion",
		Default: schema.DefaultSandboxVersion,
		Decode:  schema.NormalizeSandboxVersion,
		Encode:  encodeString[schema.SandboxVersion],
	}
	// Language is the selected source language.
	Language = Field[schema.Language]{
		Key:     "language",
		Default: schema.LanguageGo,
		Decode:  schema.NormalizeLanguage,
		Encode:  encodeString[schema.Language],
	}
	// ActiveTab is the selected code tab.
	ActiveTab = Field[schema.TabID]{
		Key:     "activeSandbox",
		Default: schema.DefaultTab,
		Decode:  decodeInt[schema.TabID],
		Encode:  encodeInt[schema.TabID],
		Valid:   func(value schema.TabID) bool { return value > 0 },
	}
	// CursorRow is the last cursor row.
	CursorRow = Field[int]{Key: "cursorRow", Default: 0, Decode: decodeInt[int], Encode: encodeInt[int], Valid: nonNegative}
	// CursorColumn is the last cursor column.
	CursorColumn = Field[int]{Key: "cursorColumn", Default: 0, Decode: decodeInt[int], Encode: encodeInt[int], Valid: nonNegative}
	// PaneSize is the editor pane size in percent. Stored values outside the bounds are clamped.
	PaneSize = Field[float64]{
		Key:     "editorSize",
		Default: schema.DefaultPaneSize,
		Decode: func(raw string) (float64, error) {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return 0, err
			}
			return schema.ClampPaneSize(value), nil
		},
		Encode: func(value float64) string {
			return strconv.FormatFloat(value, 'f', -1, 64)
		},
		Valid: func(value float64) bool {
			return !math.IsNaN(value) && !math.IsInf(value, 0)
		},
	}
)

// CodeKey returns the storage key of the code for a language and tab.
func CodeKey(language schema.Language, tab schema.TabID) string {
	return fmt.Sprintf("codeContent.%s.%d", language, tab)
}

// Code returns the code field for a language and tab.
func Code(language schema.Language, tab schema.TabID) Field[string] {
	return Field[string]{
		Key:     CodeKey(language, tab),
		Default: DefaultCode,
		Decode:  decodeString[string],
		Encode:  encodeString[string],
	}
}
