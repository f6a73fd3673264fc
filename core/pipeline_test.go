package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/sandpit/schema"
)

func stdout(text string) schema.StreamEvent {
	return schema.StreamEvent{Kind: schema.StreamStdout, Payload: text}
}

func stderr(text string) schema.StreamEvent {
	return schema.StreamEvent{Kind: schema.StreamStderr, Payload: text}
}

func kind(k schema.StreamEventKind, payload string) schema.StreamEvent {
	return schema.StreamEvent{Kind: k, Payload: payload}
}

var done = schema.StreamEvent{Kind: schema.StreamDone}

func TestRunStreamsOutputToIdle(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(stdout("hello"), done))
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	snapshot := p.Snapshot()
	want := []schema.OutputEntry{{Kind: schema.OutputStdout, Text: "hello"}}
	if diff := cmp.Diff(want, snapshot.Output); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
	if snapshot.State != schema.RunStateIdle || snapshot.Busy {
		t.Fatalf("expected idle, got %+v", snapshot)
	}
	if len(snapshot.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics, got %+v", snapshot.Diagnostics)
	}
	wantStates := []schema.RunState{
		schema.RunStateFormatting,
		schema.RunStateStreaming,
		schema.RunStateDone,
		schema.RunStateIdle,
	}
	if diff := cmp.Diff(wantStates, sink.stateSequence()); diff != "" {
		t.Fatalf("unexpected transitions (-want +got):\n%s", diff)
	}
	if sandbox.executed[0].Version != schema.DefaultSandboxVersion {
		t.Fatalf("expected default version, got %q", sandbox.executed[0].Version)
	}
}

func TestRunKeepsArrivalOrder(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(stdout("a"), stderr("b"), done))
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	snapshot := p.Snapshot()
	want := []schema.OutputEntry{
		{Kind: schema.OutputStdout, Text: "a"},
		{Kind: schema.OutputStderr, Text: "b"},
	}
	if diff := cmp.Diff(want, snapshot.Output); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
	if len(snapshot.Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics from %q, got %+v", "b", snapshot.Diagnostics)
	}
}

func TestRunAccumulatesStderrDiagnostics(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(
		stderr("prog.go:12:5: undefined: x"),
		stderr("prog.go:4:2: declared and not used: y\nprog.go:12:9: undefined: z"),
		done,
	))
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	want := []schema.Diagnostic{
		{Line: 12, Severity: schema.SeverityError},
		{Line: 4, Severity: schema.SeverityError},
	}
	if diff := cmp.Diff(want, p.Snapshot().Diagnostics); diff != "" {
		t.Fatalf("unexpected diagnostics (-want +got):\n%s", diff)
	}
}

func TestRunStatsLineUpdatesStatusOnly(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(stdout("x"), stderr("STATS:12ms;4096"), done))
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	snapshot := p.Snapshot()
	if len(snapshot.Output) != 1 || snapshot.Output[0].Text != "x" {
		t.Fatalf("stats line must not reach output, got %+v", snapshot.Output)
	}
	want := schema.StatusEvent{Level: schema.StatusInfo, Message: "Time: 12ms | Memory: 4096kb"}
	if snapshot.Status != want {
		t.Fatalf("unexpected status %+v", snapshot.Status)
	}
	if sink.lastStatus() != want {
		t.Fatalf("expected status event, got %+v", sink.lastStatus())
	}
}

func TestRunClearEventEmptiesOutput(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(stdout("frame 1"), kind(schema.StreamClear, ""), stdout("frame 2"), done))
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	want := []schema.OutputEntry{{Kind: schema.OutputStdout, Text: "frame 2"}}
	if diff := cmp.Diff(want, p.Snapshot().Output); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestRunErrorEventEndsRun(t *testing.T) {
	stream := newFakeStream(4)
	stream.events <- stdout("before")
	stream.events <- kind(schema.StreamError, "sandbox unavailable")
	stream.events <- stdout("after")
	p, sink := newTestPipeline(t, testConfig(), newFakeSandbox(stream))
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	snapshot := p.Snapshot()
	if len(snapshot.Output) != 1 || snapshot.Output[0].Text != "before" {
		t.Fatalf("expected events after error to be ignored, got %+v", snapshot.Output)
	}
	if snapshot.Status.Level != schema.StatusError || snapshot.Status.Message != "sandbox unavailable" {
		t.Fatalf("unexpected status %+v", snapshot.Status)
	}
	states := sink.stateSequence()
	if states[len(states)-1] != schema.RunStateIdle {
		t.Fatalf("expected idle, got %v", states)
	}
	for _, state := range states {
		if state == schema.RunStateDone {
			t.Fatalf("error must not pass through done: %v", states)
		}
	}
	eventually(t, "stream close", stream.isClosed)
}

func TestRunTimeoutEventSetsStatus(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(kind(schema.StreamTimeout, ""), done))
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	if status := p.Snapshot().Status; status.Message != TimedOutMessage {
		t.Fatalf("expected timeout status, got %+v", status)
	}
}

func TestRunFormatDiagnosticStopsBeforeExecute(t *testing.T) {
	sandbox := newFakeSandbox()
	sandbox.formatFn = func(string) (schema.FormatResult, error) {
		return schema.FormatResult{Error: "line 3: syntax error", Message: "format failed"}, nil
	}
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\nfunc main() {\n\tx :=\n}\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	snapshot := p.Snapshot()
	if diff := cmp.Diff([]schema.Diagnostic{{Line: 3, Severity: schema.SeverityError}}, snapshot.Diagnostics); diff != "" {
		t.Fatalf("unexpected diagnostics (-want +got):\n%s", diff)
	}
	if snapshot.Status.Message != "format failed" {
		t.Fatalf("unexpected status %+v", snapshot.Status)
	}
	if sandbox.executeCount() != 0 {
		t.Fatalf("expected no stream to be opened")
	}
	want := []schema.RunState{schema.RunStateFormatting, schema.RunStateFormatFailed, schema.RunStateIdle}
	if diff := cmp.Diff(want, sink.stateSequence()); diff != "" {
		t.Fatalf("unexpected transitions (-want +got):\n%s", diff)
	}
}

func TestRunFormatTransportFailureKeepsCode(t *testing.T) {
	sandbox := newFakeSandbox()
	sandbox.formatFn = func(string) (schema.FormatResult, error) {
		return schema.FormatResult{}, errors.New("connection refused")
	}
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	if p.Code().Load() != "package main\n" {
		t.Fatalf("code must be left unchanged")
	}
	notifications := sink.notificationList()
	if len(notifications) != 1 || notifications[0].Level != schema.NotifyError {
		t.Fatalf("expected one error notification, got %+v", notifications)
	}
	if !strings.Contains(notifications[0].Message, "connection refused") {
		t.Fatalf("unexpected message %q", notifications[0].Message)
	}
	if sandbox.executeCount() != 0 {
		t.Fatalf("expected no execute")
	}
}

func TestRunReplacesCodeWithFormattedText(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(done))
	sandbox.formatFn = func(code string) (schema.FormatResult, error) {
		return schema.FormatResult{Stdout: strings.ReplaceAll(code, "  ", "\t")}, nil
	}
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n\nfunc main() {\n  println(1)\n}\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	formatted := "package main\n\nfunc main() {\n\tprintln(1)\n}\n"
	if p.Code().Load() != formatted {
		t.Fatalf("expected formatted code, got %q", p.Code().Load())
	}
	if sandbox.executed[0].Code != formatted {
		t.Fatalf("expected formatted code to be executed, got %q", sandbox.executed[0].Code)
	}
	codes := sink.codeList()
	if len(codes) != 1 || codes[0].Source != schema.CodeFromFormat {
		t.Fatalf("expected one format code event, got %+v", codes)
	}
}

func TestFormatCanonicalCodeIsUnchanged(t *testing.T) {
	sandbox := newFakeSandbox()
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Format(context.Background()); err != nil {
		t.Fatalf("format: %v", err)
	}
	waitIdle(t, p)

	if p.Code().Load() != "package main\n" {
		t.Fatalf("canonical code must not change")
	}
	if len(sink.codeList()) != 0 {
		t.Fatalf("expected no code event for canonical code")
	}
	if len(p.Snapshot().Diagnostics) != 0 {
		t.Fatalf("expected no diagnostics")
	}
	if sandbox.executeCount() != 0 {
		t.Fatalf("format must not execute")
	}
	want := []schema.RunState{schema.RunStateFormatting, schema.RunStateIdle}
	if diff := cmp.Diff(want, sink.stateSequence()); diff != "" {
		t.Fatalf("unexpected transitions (-want +got):\n%s", diff)
	}
}

func TestRunRejectsEmptyCode(t *testing.T) {
	sandbox := newFakeSandbox()
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("  \n\t")

	if err := p.Run(context.Background()); !errors.Is(err, schema.ErrEmptyCode) {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}
	if err := p.Format(context.Background()); !errors.Is(err, schema.ErrEmptyCode) {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}
	if sandbox.formatCount() != 0 || len(sink.stateSequence()) != 0 {
		t.Fatalf("rejected requests must not reach the sandbox or the sink")
	}
}

func TestRunWhileBusyIsRejected(t *testing.T) {
	stream := newFakeStream(4)
	sandbox := newFakeSandbox(stream)
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	stream.events <- stdout("first")
	eventually(t, "first output", func() bool { return len(p.Snapshot().Output) == 1 })

	if err := p.Run(context.Background()); !errors.Is(err, schema.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := p.Format(context.Background()); !errors.Is(err, schema.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := p.LoadTemplate(context.Background(), "hello"); !errors.Is(err, schema.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if sandbox.executeCount() != 1 {
		t.Fatalf("expected a single stream, got %d", sandbox.executeCount())
	}
	if output := p.Snapshot().Output; len(output) != 1 || output[0].Text != "first" {
		t.Fatalf("rejected run must not touch output, got %+v", output)
	}

	stream.events <- done
	waitIdle(t, p)
}

func TestRunExecuteFailureBecomesErrorEntry(t *testing.T) {
	sandbox := newFakeSandbox()
	sandbox.executeErr = errors.New("dial tcp: prog.go:7: connection reset")
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	snapshot := p.Snapshot()
	if len(snapshot.Output) != 1 || snapshot.Output[0].Kind != schema.OutputStderr {
		t.Fatalf("expected one synthetic error entry, got %+v", snapshot.Output)
	}
	if diff := cmp.Diff([]schema.Diagnostic{{Line: 7, Severity: schema.SeverityError}}, snapshot.Diagnostics); diff != "" {
		t.Fatalf("unexpected diagnostics (-want +got):\n%s", diff)
	}
	if snapshot.State != schema.RunStateIdle {
		t.Fatalf("expected idle, got %s", snapshot.State)
	}
}

func TestRunStreamEndingWithoutDoneIsAnError(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(stdout("partial")))
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	want := []schema.OutputEntry{{Kind: schema.OutputStderr, Text: schema.ErrStreamClosed.Error()}}
	if diff := cmp.Diff(want, p.Snapshot().Output); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestCancelPolicyReleasesStreamOnDone(t *testing.T) {
	stream := newFakeStream(4)
	stream.events <- stdout("hi")
	stream.events <- done
	p, _ := newTestPipeline(t, testConfig(), newFakeSandbox(stream))
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)
	eventually(t, "stream close", stream.isClosed)
}

func TestCancelPolicyCancelStopsOpenStream(t *testing.T) {
	stream := newFakeStream(1)
	p, sink := newTestPipeline(t, testConfig(), newFakeSandbox(stream))
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	eventually(t, "streaming", func() bool { return p.State() == schema.RunStateStreaming })
	p.Cancel()
	waitIdle(t, p)

	eventually(t, "stream cancel", func() bool { return errors.Is(stream.canceled(), context.Canceled) })
	eventually(t, "stream close", stream.isClosed)
	if len(p.Snapshot().Output) != 0 {
		t.Fatalf("cancel must not add output")
	}
	states := sink.stateSequence()
	if states[len(states)-1] != schema.RunStateIdle {
		t.Fatalf("expected idle after cancel, got %v", states)
	}
}

func TestIgnoreStalePolicyDropsLateEvents(t *testing.T) {
	cfg := testConfig()
	cfg.StreamPolicy = schema.StreamPolicyIgnoreStale
	first := newFakeStream(8)
	second := newFakeStream(8)
	p, _ := newTestPipeline(t, cfg, newFakeSandbox(first, second))
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	first.events <- stdout("one")
	first.events <- done
	waitIdle(t, p)
	if first.isClosed() {
		t.Fatalf("ignore-stale must leave the stream to the service")
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	eventually(t, "second streaming", func() bool { return p.State() == schema.RunStateStreaming })
	first.events <- stdout("stale")
	second.events <- stdout("two")
	eventually(t, "second output", func() bool { return len(p.Snapshot().Output) == 1 })
	second.events <- done
	waitIdle(t, p)

	want := []schema.OutputEntry{{Kind: schema.OutputStdout, Text: "two"}}
	if diff := cmp.Diff(want, p.Snapshot().Output); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
	close(first.events)
	close(second.events)
	eventually(t, "first stream drained", first.isClosed)
	eventually(t, "second stream drained", second.isClosed)
}

func TestMaxRunDurationBoundsStream(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRunDuration = 30 * time.Millisecond
	stream := newFakeStream(1)
	p, _ := newTestPipeline(t, cfg, newFakeSandbox(stream))
	p.Code().Store("package main\n")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)

	output := p.Snapshot().Output
	if len(output) != 1 || !strings.Contains(output[0].Text, "execution exceeded") {
		t.Fatalf("expected deadline entry, got %+v", output)
	}
}

func TestRunUsesSelectedVersion(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(done))
	p, _ := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")
	p.Version().Store("2")

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	waitIdle(t, p)
	if sandbox.executed[0].Version != "2" {
		t.Fatalf("expected version 2, got %q", sandbox.executed[0].Version)
	}
}

func TestShareCopiesURLAndNotifies(t *testing.T) {
	sandbox := newFakeSandbox()
	sandbox.shareID = "abc123"
	clipboard := &fakeClipboard{}
	sink := &recordingSink{}
	p, err := NewPipeline(testConfig(), PipelineDeps{Sandbox: sandbox, Clipboard: clipboard, EventSink: sink})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Code().Store("package main\n")

	link, err := p.Share(context.Background())
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if link != "https://play.example.com/snippets/abc123" {
		t.Fatalf("unexpected link %q", link)
	}
	if clipboard.text != link {
		t.Fatalf("expected clipboard to hold the link, got %q", clipboard.text)
	}
	notifications := sink.notificationList()
	if len(notifications) != 1 || notifications[0].Level != schema.NotifyInfo || notifications[0].URL != link {
		t.Fatalf("unexpected notifications %+v", notifications)
	}
	if len(sink.stateSequence()) != 0 {
		t.Fatalf("share must not change the run state")
	}
}

func TestShareFailureNotifiesRawError(t *testing.T) {
	sandbox := newFakeSandbox()
	sandbox.shareErr = errors.New("quota exceeded")
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main\n")

	if _, err := p.Share(context.Background()); err == nil {
		t.Fatalf("expected share error")
	}
	notifications := sink.notificationList()
	if len(notifications) != 1 || notifications[0].Message != "quota exceeded" {
		t.Fatalf("unexpected notifications %+v", notifications)
	}
}

func TestLoadTemplateReplacesCode(t *testing.T) {
	sandbox := newFakeSandbox()
	sandbox.templates["hello"] = "package main // hello\n"
	p, sink := newTestPipeline(t, testConfig(), sandbox)

	if err := p.LoadTemplate(context.Background(), "hello"); err != nil {
		t.Fatalf("load template: %v", err)
	}
	if p.Code().Load() != "package main // hello\n" {
		t.Fatalf("expected template code")
	}
	codes := sink.codeList()
	if len(codes) != 1 || codes[0].Source != schema.CodeFromTemplate {
		t.Fatalf("unexpected code events %+v", codes)
	}
	if err := p.LoadTemplate(context.Background(), "missing"); !errors.Is(err, schema.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestLoadTemplateHoldsBusyDuringFetch(t *testing.T) {
	sandbox := newFakeSandbox(scriptedStream(done))
	sandbox.templates["hello"] = "package main // template\n"
	sandbox.templateGate = make(chan struct{})
	sandbox.templateStarted = make(chan struct{})
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("package main // old\n")

	loaded := make(chan error, 1)
	go func() { loaded <- p.LoadTemplate(context.Background(), "hello") }()
	<-sandbox.templateStarted

	if !p.Busy() {
		t.Fatalf("expected busy while the template is fetched")
	}
	if err := p.Run(context.Background()); !errors.Is(err, schema.ErrBusy) {
		t.Fatalf("expected run during template fetch to be rejected, got %v", err)
	}
	if err := p.Format(context.Background()); !errors.Is(err, schema.ErrBusy) {
		t.Fatalf("expected format during template fetch to be rejected, got %v", err)
	}

	close(sandbox.templateGate)
	if err := <-loaded; err != nil {
		t.Fatalf("load template: %v", err)
	}
	waitIdle(t, p)
	if p.Busy() {
		t.Fatalf("expected busy to clear after the fetch")
	}
	if sandbox.executeCount() != 0 {
		t.Fatalf("expected no execution during the fetch, got %d", sandbox.executeCount())
	}
	if got := p.Code().Load(); got != "package main // template\n" {
		t.Fatalf("expected template code, got %q", got)
	}
	states := sink.stateSequence()
	if len(states) != 2 || states[1] != schema.RunStateIdle {
		t.Fatalf("unexpected transitions %v", states)
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run after template: %v", err)
	}
	waitIdle(t, p)
	if sandbox.executed[0].Code != "package main // template\n" {
		t.Fatalf("expected the template to run, got %q", sandbox.executed[0].Code)
	}
}

func TestLoadTemplateFailureReleasesBusy(t *testing.T) {
	sandbox := newFakeSandbox()
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("local\n")

	if err := p.LoadTemplate(context.Background(), "missing"); !errors.Is(err, schema.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	waitIdle(t, p)
	if p.Busy() || p.Code().Load() != "local\n" {
		t.Fatalf("expected idle pipeline with local code, busy=%v code=%q", p.Busy(), p.Code().Load())
	}
	if notifications := sink.notificationList(); len(notifications) != 1 || notifications[0].Level != schema.NotifyError {
		t.Fatalf("unexpected notifications %+v", notifications)
	}
}

func TestLoadSnippetFailureKeepsLocalCode(t *testing.T) {
	sandbox := newFakeSandbox()
	p, sink := newTestPipeline(t, testConfig(), sandbox)
	p.Code().Store("local\n")

	if err := p.LoadSnippet(context.Background(), "gone"); err == nil {
		t.Fatalf("expected snippet error")
	}
	if p.Code().Load() != "local\n" {
		t.Fatalf("local code must be untouched")
	}
	notifications := sink.notificationList()
	if len(notifications) != 1 || !strings.HasSuffix(notifications[0].Message, "; loading local cache instead") {
		t.Fatalf("unexpected notifications %+v", notifications)
	}
}

func TestNewPipelineRequiresSandbox(t *testing.T) {
	if _, err := NewPipeline(testConfig(), PipelineDeps{}); !errors.Is(err, schema.ErrSandboxUnavailable) {
		t.Fatalf("expected ErrSandboxUnavailable, got %v", err)
	}
	cfg := testConfig()
	cfg.StreamPolicy = "drop"
	if _, err := NewPipeline(cfg, PipelineDeps{Sandbox: newFakeSandbox()}); err == nil {
		t.Fatalf("expected invalid stream policy error")
	}
}
