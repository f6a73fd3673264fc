package appconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("sandbox.base_url", cfg.Sandbox.BaseURL)
	v.SetDefault("sandbox.share_base_url", cfg.Sandbox.ShareBaseURL)
	v.SetDefault("sandbox.request_timeout_seconds", cfg.Sandbox.RequestTimeoutSeconds)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("client.run_debounce_ms", cfg.Client.RunDebounceMS)
	v.SetDefault("client.auto_run_debounce_ms", cfg.Client.AutoRunDebounceMS)
	v.SetDefault("client.format_debounce_ms", cfg.Client.FormatDebounceMS)
	v.SetDefault("client.share_debounce_ms", cfg.Client.ShareDebounceMS)
	v.SetDefault("client.template_debounce_ms", cfg.Client.TemplateDebounceMS)
	v.SetDefault("client.cursor_debounce_ms", cfg.Client.CursorDebounceMS)
	v.SetDefault("client.stream_policy", cfg.Client.StreamPolicy)
	v.SetDefault("client.max_run_seconds", cfg.Client.MaxRunSeconds)
	v.SetDefault("client.output_max_entries", cfg.Client.OutputMaxEntries)
	v.SetDefault("client.languages", cfg.Client.Languages)
	v.SetDefault("ui.modifier", cfg.UI.Modifier)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.go_binary", cfg.Server.GoBinary)
	v.SetDefault("server.work_dir", cfg.Server.WorkDir)
	v.SetDefault("server.exec_timeout_seconds", cfg.Server.ExecTimeoutSeconds)
	v.SetDefault("server.request_timeout_seconds", cfg.Server.RequestTimeoutSeconds)
	v.SetDefault("server.snippet_backend", cfg.Server.SnippetBackend)
	v.SetDefault("server.snippet_path", cfg.Server.SnippetPath)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"sandbox.base_url", cfg.Sandbox.BaseURL},
		{"sandbox.share_base_url", cfg.Sandbox.ShareBaseURL},
	} {
		value := strings.TrimSpace(field.value)
		if value == "" {
			continue
		}
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must include scheme and host (e.g. https://play.example.com)", field.name)
		}
	}
	switch cfg.Store.Backend {
	case persist.BackendFile, persist.BackendSQLite, persist.BackendMemory:
	default:
		return fmt.Errorf("unsupported store.backend %q", cfg.Store.Backend)
	}
	switch cfg.Server.SnippetBackend {
	case persist.BackendFile, persist.BackendSQLite, persist.BackendMemory:
	default:
		return fmt.Errorf("unsupported server.snippet_backend %q", cfg.Server.SnippetBackend)
	}
	if _, err := schema.NormalizeClientConfig(cfg.ClientOptions()); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Sandbox.BaseURL = expandEnv(cfg.Sandbox.BaseURL)
	cfg.Sandbox.ShareBaseURL = expandEnv(cfg.Sandbox.ShareBaseURL)
	cfg.Store.Path = expandEnv(cfg.Store.Path)
	cfg.Server.GoBinary = expandEnv(cfg.Server.GoBinary)
	cfg.Server.WorkDir = expandEnv(cfg.Server.WorkDir)
	cfg.Server.SnippetPath = expandEnv(cfg.Server.SnippetPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
