package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pkt.systems/sandpit"
	"pkt.systems/sandpit/core"
	"pkt.systems/sandpit/internal/appconfig"
	"pkt.systems/sandpit/internal/persist"
)

// errFailed reports a run or format that produced errors. Its details were
// already printed, so it is not logged again.
var errFailed = errors.New("sandpit: program failed")

func isSilent(err error) bool {
	return errors.Is(err, errFailed)
}

func loadConfig(opts *rootOptions) (appconfig.Config, error) {
	return appconfig.Load(opts.configPath)
}

func clientConfig(cfg appconfig.Config) sandpit.ClientConfig {
	return sandpit.ClientConfig{
		Options:        cfg.ClientOptions(),
		SandboxURL:     cfg.Sandbox.BaseURL,
		RequestTimeout: time.Duration(cfg.Sandbox.RequestTimeoutSeconds) * time.Second,
		StoreBackend:   cfg.Store.Backend,
		StorePath:      cfg.Store.Path,
	}
}

// newOneShotClient builds a client over an in-memory store so one-shot
// commands never touch the editor's persisted code.
func newOneShotClient(ctx context.Context, cfg appconfig.Config, sink core.EventSink) (*sandpit.Client, error) {
	return sandpit.New(ctx, clientConfig(cfg), sandpit.ClientDeps{
		KV:        persist.NewMemoryStore(),
		EventSink: sink,
	})
}

// readSource reads a program from path, or from stdin when path is "-" or empty.
func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no code in %s", sourceName(path))
	}
	return string(data), nil
}

func sourceName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
