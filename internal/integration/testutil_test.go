package integration_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os/exec"
	"sync"
	"testing"
	"time"

	"pkt.systems/sandpit"
	"pkt.systems/sandpit/httpapi"
	"pkt.systems/sandpit/internal/format"
	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/schema"
)

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func ensureGoAvailable(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}
	return path
}

// lockedBuffer lets the printer write while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type session struct {
	client  *sandpit.Client
	printer *format.Printer
	stdout  *lockedBuffer
	stderr  *lockedBuffer
}

// newSession starts a backend running the real toolchain and a client
// wired to it through the compositor.
func newSession(t *testing.T, execTimeout time.Duration) *session {
	t.Helper()
	requireLong(t)
	goBin := ensureGoAvailable(t)

	backend := httpapi.NewServer(httpapi.Config{
		GoBinary:    goBin,
		WorkDir:     t.TempDir(),
		ExecTimeout: execTimeout,
	}, httpapi.Deps{})
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	s := &session{stdout: &lockedBuffer{}, stderr: &lockedBuffer{}}
	s.printer = format.NewPrinter(s.stdout, s.stderr)
	opts, err := schema.NormalizeClientConfig(schema.ClientConfig{ShareBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("client config: %v", err)
	}
	client, err := sandpit.New(context.Background(), sandpit.ClientConfig{
		Options:        opts,
		SandboxURL:     srv.URL,
		RequestTimeout: time.Minute,
	}, sandpit.ClientDeps{
		KV:        persist.NewMemoryStore(),
		EventSink: s.printer,
		Clipboard: discardClipboard{},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	s.client = client
	return s
}

func (s *session) run(t *testing.T, code string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pipeline := s.client.Pipeline()
	if code != "" {
		pipeline.Code().Store(code)
	}
	if err := pipeline.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := pipeline.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

type discardClipboard struct{}

func (discardClipboard) WriteAll(string) error { return nil }
