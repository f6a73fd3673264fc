package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Sandbox       SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
	Store         StoreConfig   `mapstructure:"store" yaml:"store"`
	Client        ClientConfig  `mapstructure:"client" yaml:"client"`
	UI            UIConfig      `mapstructure:"ui" yaml:"ui"`
	Server        ServerConfig  `mapstructure:"server" yaml:"server"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// SandboxConfig points the client at a sandbox service.
type SandboxConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// ShareBaseURL prefixes share links. Empty falls back to BaseURL.
	ShareBaseURL          string `mapstructure:"share_base_url" yaml:"share_base_url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// StoreConfig selects the settings backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ClientConfig tunes the pipeline and controller.
type ClientConfig struct {
	RunDebounceMS      int      `mapstructure:"run_debounce_ms" yaml:"run_debounce_ms"`
	AutoRunDebounceMS  int      `mapstructure:"auto_run_debounce_ms" yaml:"auto_run_debounce_ms"`
	FormatDebounceMS   int      `mapstructure:"format_debounce_ms" yaml:"format_debounce_ms"`
	ShareDebounceMS    int      `mapstructure:"share_debounce_ms" yaml:"share_debounce_ms"`
	TemplateDebounceMS int      `mapstructure:"template_debounce_ms" yaml:"template_debounce_ms"`
	CursorDebounceMS   int      `mapstructure:"cursor_debounce_ms" yaml:"cursor_debounce_ms"`
	StreamPolicy       string   `mapstructure:"stream_policy" yaml:"stream_policy"`
	MaxRunSeconds      int      `mapstructure:"max_run_seconds" yaml:"max_run_seconds"`
	OutputMaxEntries   int      `mapstructure:"output_max_entries" yaml:"output_max_entries"`
	Languages          []string `mapstructure:"languages" yaml:"languages"`
}

// UIConfig controls the terminal front-end.
type UIConfig struct {
	// Modifier is the shortcut modifier; empty picks the platform default.
	Modifier string `mapstructure:"modifier" yaml:"modifier"`
}

// ServerConfig configures the local sandbox backend.
type ServerConfig struct {
	Addr                  string `mapstructure:"addr" yaml:"addr"`
	GoBinary              string `mapstructure:"go_binary" yaml:"go_binary"`
	WorkDir               string `mapstructure:"work_dir" yaml:"work_dir"`
	ExecTimeoutSeconds    int    `mapstructure:"exec_timeout_seconds" yaml:"exec_timeout_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	SnippetBackend        string `mapstructure:"snippet_backend" yaml:"snippet_backend"`
	SnippetPath           string `mapstructure:"snippet_path" yaml:"snippet_path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".sandpit", "state")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      stateDir,
		Sandbox: SandboxConfig{
			BaseURL:               "http://127.0.0.1:27480",
			ShareBaseURL:          "",
			RequestTimeoutSeconds: 15,
		},
		Store: StoreConfig{
			Backend: persist.BackendFile,
			Path:    filepath.Join(stateDir, "settings.json"),
		},
		Client: ClientConfig{
			RunDebounceMS:      int(schema.DefaultRunDebounce / time.Millisecond),
			AutoRunDebounceMS:  int(schema.DefaultAutoRunDebounce / time.Millisecond),
			FormatDebounceMS:   int(schema.DefaultFormatDebounce / time.Millisecond),
			ShareDebounceMS:    int(schema.DefaultShareDebounce / time.Millisecond),
			TemplateDebounceMS: int(schema.DefaultTemplateDebounce / time.Millisecond),
			CursorDebounceMS:   int(schema.DefaultCursorDebounce / time.Millisecond),
			StreamPolicy:       string(schema.StreamPolicyCancel),
			MaxRunSeconds:      0,
			OutputMaxEntries:   schema.DefaultOutputMaxEntries,
			Languages:          []string{string(schema.LanguageGo)},
		},
		UI: UIConfig{
			Modifier: "",
		},
		Server: ServerConfig{
			Addr:                  "127.0.0.1:27480",
			GoBinary:              "go",
			WorkDir:               filepath.Join(stateDir, "runs"),
			ExecTimeoutSeconds:    10,
			RequestTimeoutSeconds: 30,
			SnippetBackend:        persist.BackendSQLite,
			SnippetPath:           filepath.Join(stateDir, "snippets.db"),
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sandpit", "config.yaml"), nil
}

// ClientOptions converts the client, sandbox and ui sections into the
// pipeline configuration. The result still goes through
// schema.NormalizeClientConfig.
func (c Config) ClientOptions() schema.ClientConfig {
	languages := make([]schema.Language, 0, len(c.Client.Languages))
	for _, lang := range c.Client.Languages {
		languages = append(languages, schema.Language(lang))
	}
	share := c.Sandbox.ShareBaseURL
	if share == "" {
		share = c.Sandbox.BaseURL
	}
	return schema.ClientConfig{
		RunDebounce:      millis(c.Client.RunDebounceMS),
		AutoRunDebounce:  millis(c.Client.AutoRunDebounceMS),
		FormatDebounce:   millis(c.Client.FormatDebounceMS),
		ShareDebounce:    millis(c.Client.ShareDebounceMS),
		TemplateDebounce: millis(c.Client.TemplateDebounceMS),
		CursorDebounce:   millis(c.Client.CursorDebounceMS),
		StreamPolicy:     schema.StreamPolicy(c.Client.StreamPolicy),
		OutputMaxEntries: c.Client.OutputMaxEntries,
		MaxRunDuration:   time.Duration(c.Client.MaxRunSeconds) * time.Second,
		ShareBaseURL:     share,
		Modifier:         schema.Modifier(c.UI.Modifier),
		Languages:        languages,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
