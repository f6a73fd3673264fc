package httpapi

import "time"

// Config defines the local sandbox backend settings.
type Config struct {
	Addr     string
	GoBinary string
	// WorkDir holds one temporary directory per execution. Empty uses os.TempDir.
	WorkDir        string
	ExecTimeout    time.Duration
	RequestTimeout time.Duration
}

const (
	defaultExecTimeout    = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
	shutdownTimeout       = 5 * time.Second
	maxRequestBytes       = 1 << 20
)

func (c Config) withDefaults() Config {
	if c.GoBinary == "" {
		c.GoBinary = "go"
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = defaultExecTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	return c
}
