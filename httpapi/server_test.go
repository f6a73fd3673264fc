package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/sandpit/internal/sandbox"
	"pkt.systems/sandpit/schema"
)

type scriptedExecutor struct {
	events []schema.StreamEvent
	err    error
}

func (e scriptedExecutor) Execute(ctx context.Context, req schema.ExecuteRequest, emit EmitFunc) error {
	for _, event := range e.events {
		if err := emit(event); err != nil {
			return err
		}
	}
	return e.err
}

func newTestBackend(t *testing.T, exec Executor) *sandbox.Client {
	t.Helper()
	srv := httptest.NewServer(NewServer(Config{}, Deps{Executor: exec}).Handler())
	t.Cleanup(srv.Close)
	client, err := sandbox.New(srv.URL, sandbox.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func collect(t *testing.T, client *sandbox.Client, code string) []schema.StreamEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := client.Execute(ctx, schema.ExecuteRequest{Code: code, Version: "1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	defer func() { _ = stream.Close() }()
	var events []schema.StreamEvent
	for {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		events = append(events, event)
	}
}

func TestStatus(t *testing.T) {
	client := newTestBackend(t, scriptedExecutor{})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
}

func TestFormatSource(t *testing.T) {
	client := newTestBackend(t, scriptedExecutor{})
	result, err := client.Format(context.Background(), "package main\nfunc main(){}\n")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if result.Stdout != "package main\n\nfunc main() {}\n" {
		t.Fatalf("unexpected formatted code %q", result.Stdout)
	}

	result, err = client.Format(context.Background(), "package main\nfunc main() {\n")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !result.HasDiagnostic() || result.Stdout != "" {
		t.Fatalf("expected a diagnostic, got %+v", result)
	}
	if strings.Contains(result.Message, "\n") || result.Message == "" {
		t.Fatalf("expected a one-line message, got %q", result.Message)
	}
}

func TestExecuteStreamsEventsThenDone(t *testing.T) {
	client := newTestBackend(t, scriptedExecutor{events: []schema.StreamEvent{
		{Kind: schema.StreamStdout, Payload: "  indented"},
		{Kind: schema.StreamStderr, Payload: "prog.go:3:1: boom\nsecond line"},
		{Kind: schema.StreamStderr, Payload: "STATS:5ms;900"},
	}})
	got := collect(t, client, "package main")
	want := []schema.StreamEvent{
		{Kind: schema.StreamStdout, Payload: "  indented"},
		{Kind: schema.StreamStderr, Payload: "prog.go:3:1: boom\nsecond line"},
		{Kind: schema.StreamStderr, Payload: "STATS:5ms;900"},
		{Kind: schema.StreamDone, Payload: ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteFailureBecomesErrorEvent(t *testing.T) {
	client := newTestBackend(t, scriptedExecutor{err: errors.New("go: not found")})
	got := collect(t, client, "package main")
	want := []schema.StreamEvent{{Kind: schema.StreamError, Payload: "go: not found"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteRejectsEmptyCode(t *testing.T) {
	client := newTestBackend(t, scriptedExecutor{})
	_, err := client.Execute(context.Background(), schema.ExecuteRequest{Code: "  "})
	var statusErr *sandbox.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSnippetsAndTemplates(t *testing.T) {
	client := newTestBackend(t, scriptedExecutor{})
	ctx := context.Background()
	id, err := client.ShareSnippet(ctx, "package main // shared")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	code, err := client.FetchSnippet(ctx, id)
	if err != nil || code != "package main // shared" {
		t.Fatalf("fetch: %q %v", code, err)
	}
	if _, err := client.FetchSnippet(ctx, "no-such-snippet"); !errors.Is(err, schema.ErrSnippetNotFound) {
		t.Fatalf("expected ErrSnippetNotFound, got %v", err)
	}
	for _, id := range Templates() {
		code, err := client.Template(ctx, id)
		if err != nil {
			t.Fatalf("template %s: %v", id, err)
		}
		if !strings.HasPrefix(code, "package main") {
			t.Fatalf("template %s is not a program", id)
		}
	}
	if _, err := client.Template(ctx, "missing"); !errors.Is(err, schema.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestTemplatesAreListed(t *testing.T) {
	want := []schema.TemplateID{"goroutines", "hello", "http-server"}
	if diff := cmp.Diff(want, Templates()); diff != "" {
		t.Fatalf("templates mismatch (-want +got):\n%s", diff)
	}
	srv := httptest.NewServer(NewServer(Config{}, Deps{Executor: scriptedExecutor{}}).Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/templates")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body struct {
		Templates []schema.TemplateID `json:"templates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(want, body.Templates); diff != "" {
		t.Fatalf("listed templates mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteSSEventSplitsLines(t *testing.T) {
	var b strings.Builder
	if err := writeSSEvent(&b, schema.StreamEvent{Kind: schema.StreamStderr, Payload: "a\r\nb"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := b.String(), "event: stderr\ndata: a\ndata: b\n\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
