package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/internal/settings"
	"pkt.systems/sandpit/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStream struct {
	events    chan schema.StreamEvent
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	ctxErr error
}

func newFakeStream(buffer int) *fakeStream {
	return &fakeStream{
		events: make(chan schema.StreamEvent, buffer),
		closed: make(chan struct{}),
	}
}

// scriptedStream returns a stream that yields events and then io.EOF.
func scriptedStream(events ...schema.StreamEvent) *fakeStream {
	s := newFakeStream(len(events))
	for _, event := range events {
		s.events <- event
	}
	close(s.events)
	return s
}

func (s *fakeStream) Next(ctx context.Context) (schema.StreamEvent, error) {
	select {
	case <-ctx.Done():
		s.mu.Lock()
		s.ctxErr = ctx.Err()
		s.mu.Unlock()
		return schema.StreamEvent{}, ctx.Err()
	case <-s.closed:
		return schema.StreamEvent{}, io.ErrClosedPipe
	case event, ok := <-s.events:
		if !ok {
			return schema.StreamEvent{}, io.EOF
		}
		return event, nil
	}
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeStream) canceled() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctxErr
}

type fakeSandbox struct {
	mu         sync.Mutex
	formatFn   func(code string) (schema.FormatResult, error)
	streams    []*fakeStream
	executeErr error
	executed   []schema.ExecuteRequest
	formats    int
	shareID    schema.SnippetID
	shareErr   error
	shared     []string
	snippets   map[schema.SnippetID]string
	templates  map[schema.TemplateID]string
	healthErr  error
	// templateGate, when set, holds Template until it is closed.
	templateGate    chan struct{}
	templateStarted chan struct{}
}

func newFakeSandbox(streams ...*fakeStream) *fakeSandbox {
	return &fakeSandbox{
		streams:   streams,
		snippets:  map[schema.SnippetID]string{},
		templates: map[schema.TemplateID]string{},
	}
}

func (f *fakeSandbox) Format(_ context.Context, code string) (schema.FormatResult, error) {
	f.mu.Lock()
	f.formats++
	fn := f.formatFn
	f.mu.Unlock()
	if fn != nil {
		return fn(code)
	}
	return schema.FormatResult{Stdout: code}, nil
}

func (f *fakeSandbox) Execute(_ context.Context, req schema.ExecuteRequest) (EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, req)
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	if len(f.streams) == 0 {
		return nil, errors.New("no stream scripted")
	}
	stream := f.streams[0]
	f.streams = f.streams[1:]
	return stream, nil
}

func (f *fakeSandbox) ShareSnippet(_ context.Context, code string) (schema.SnippetID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shareErr != nil {
		return "", f.shareErr
	}
	f.shared = append(f.shared, code)
	return f.shareID, nil
}

func (f *fakeSandbox) FetchSnippet(_ context.Context, id schema.SnippetID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.snippets[id]
	if !ok {
		return "", schema.ErrSnippetNotFound
	}
	return code, nil
}

func (f *fakeSandbox) Template(ctx context.Context, id schema.TemplateID) (string, error) {
	f.mu.Lock()
	gate, started := f.templateGate, f.templateStarted
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.templates[id]
	if !ok {
		return "", schema.ErrTemplateNotFound
	}
	return code, nil
}

func (f *fakeSandbox) HealthCheck(context.Context) error {
	return f.healthErr
}

func (f *fakeSandbox) executeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func (f *fakeSandbox) formatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.formats
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type recordingSink struct {
	mu            sync.Mutex
	states        []schema.StateEvent
	outputs       []schema.OutputEvent
	diagnostics   []schema.DiagnosticsEvent
	statuses      []schema.StatusEvent
	notifications []schema.Notification
	codes         []schema.CodeEvent
	settings      []schema.SettingsEvent
}

func (s *recordingSink) OnOutput(event schema.OutputEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, event)
}

func (s *recordingSink) OnState(event schema.StateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, event)
}

func (s *recordingSink) OnDiagnostics(event schema.DiagnosticsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, event)
}

func (s *recordingSink) OnStatus(event schema.StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, event)
}

func (s *recordingSink) OnNotify(event schema.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, event)
}

func (s *recordingSink) OnCode(event schema.CodeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, event)
}

func (s *recordingSink) OnSettings(event schema.SettingsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(s.settings, event)
}

func (s *recordingSink) stateSequence() []schema.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.RunState, 0, len(s.states))
	for _, event := range s.states {
		out = append(out, event.State)
	}
	return out
}

func (s *recordingSink) notificationList() []schema.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.Notification(nil), s.notifications...)
}

func (s *recordingSink) codeList() []schema.CodeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.CodeEvent(nil), s.codes...)
}

func (s *recordingSink) lastStatus() schema.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return schema.StatusEvent{}
	}
	return s.statuses[len(s.statuses)-1]
}

func (s *recordingSink) settingsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.settings)
}

func testConfig() schema.ClientConfig {
	return schema.ClientConfig{
		RunDebounce:      10 * time.Millisecond,
		AutoRunDebounce:  20 * time.Millisecond,
		FormatDebounce:   10 * time.Millisecond,
		ShareDebounce:    10 * time.Millisecond,
		TemplateDebounce: 10 * time.Millisecond,
		CursorDebounce:   10 * time.Millisecond,
		ShareBaseURL:     "https://play.example.com/",
		Modifier:         schema.ModifierCtrl,
	}
}

func newTestPipeline(t *testing.T, cfg schema.ClientConfig, sandbox *fakeSandbox) (*Pipeline, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	p, err := NewPipeline(cfg, PipelineDeps{Sandbox: sandbox, Clipboard: &fakeClipboard{}, EventSink: sink})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, sink
}

func newTestController(t *testing.T, cfg schema.ClientConfig, sandbox *fakeSandbox, kv persist.KV) (*Controller, *settings.Store, *recordingSink) {
	t.Helper()
	p, sink := newTestPipeline(t, cfg, sandbox)
	store := settings.New(kv, nil)
	c := NewController(context.Background(), p, store, nil)
	t.Cleanup(c.Close)
	return c, store, sink
}

func waitIdle(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
