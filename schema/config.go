package schema

import (
	"fmt"
	"strings"
	"time"
)

// StreamPolicy decides what happens to an execute stream that outlives its run.
type StreamPolicy string

const (
	// StreamPolicyCancel cancels and closes the previous stream when a run ends or a new run starts.
	StreamPolicyCancel StreamPolicy = "cancel"
	// StreamPolicyIgnoreStale tags runs with a generation and drops events from stale generations.
	StreamPolicyIgnoreStale StreamPolicy = "ignore-stale"
)

// Modifier is the shortcut modifier key.
type Modifier string

const (
	// ModifierCtrl is the control key (Linux, Windows).
	ModifierCtrl Modifier = "ctrl"
	// ModifierMeta is the command key (macOS).
	ModifierMeta Modifier = "meta"
	// ModifierAlt is the alt/option key (terminals, where ctrl+enter is not reported).
	ModifierAlt Modifier = "alt"
)

// ClientConfig defines debounce delays and limits for the pipeline and controller.
type ClientConfig struct {
	RunDebounce      time.Duration
	AutoRunDebounce  time.Duration
	FormatDebounce   time.Duration
	ShareDebounce    time.Duration
	TemplateDebounce time.Duration
	CursorDebounce   time.Duration
	StreamPolicy     StreamPolicy
	OutputMaxEntries int
	// MaxRunDuration bounds a single execute stream. Zero leaves it to the remote service.
	MaxRunDuration time.Duration
	ShareBaseURL   string
	Modifier       Modifier
	Languages      []Language
}

// Default debounce delays.
const (
	DefaultRunDebounce      = 300 * time.Millisecond
	DefaultAutoRunDebounce  = 1000 * time.Millisecond
	DefaultFormatDebounce   = 300 * time.Millisecond
	DefaultShareDebounce    = 300 * time.Millisecond
	DefaultTemplateDebounce = 300 * time.Millisecond
	DefaultCursorDebounce   = 500 * time.Millisecond
)

// NormalizeClientConfig applies defaults and validates the config.
func NormalizeClientConfig(cfg ClientConfig) (ClientConfig, error) {
	if cfg.RunDebounce <= 0 {
		cfg.RunDebounce = DefaultRunDebounce
	}
	if cfg.AutoRunDebounce <= 0 {
		cfg.AutoRunDebounce = DefaultAutoRunDebounce
	}
	if cfg.FormatDebounce <= 0 {
		cfg.FormatDebounce = DefaultFormatDebounce
	}
	if cfg.ShareDebounce <= 0 {
		cfg.ShareDebounce = DefaultShareDebounce
	}
	if cfg.TemplateDebounce <= 0 {
		cfg.TemplateDebounce = DefaultTemplateDebounce
	}
	if cfg.CursorDebounce <= 0 {
		cfg.CursorDebounce = DefaultCursorDebounce
	}
	switch cfg.StreamPolicy {
	case "":
		cfg.StreamPolicy = StreamPolicyCancel
	case StreamPolicyCancel, StreamPolicyIgnoreStale:
	default:
		return ClientConfig{}, fmt.Errorf("unsupported stream policy %q", cfg.StreamPolicy)
	}
	if cfg.OutputMaxEntries <= 0 {
		cfg.OutputMaxEntries = DefaultOutputMaxEntries
	}
	if cfg.MaxRunDuration < 0 {
		cfg.MaxRunDuration = 0
	}
	cfg.ShareBaseURL = strings.TrimRight(strings.TrimSpace(cfg.ShareBaseURL), "/")
	switch cfg.Modifier {
	case "", ModifierCtrl, ModifierMeta, ModifierAlt:
	default:
		return ClientConfig{}, fmt.Errorf("unsupported shortcut modifier %q", cfg.Modifier)
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []Language{LanguageGo}
	}
	return cfg, nil
}
