package persist

import (
	"fmt"
	"io"
	"strings"

	"pkt.systems/pslog"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open constructs the KV for backend at path. The returned closer must be
// closed when the store is no longer used.
func Open(backend, path string, logger pslog.Logger) (KV, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		store, err := NewFileStoreWithLogger(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil
	case BackendSQLite:
		store, err := NewSQLiteStore(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case BackendMemory:
		return NewMemoryStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", backend)
	}
}
