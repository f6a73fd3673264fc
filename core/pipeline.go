package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/internal/diagnostics"
	"pkt.systems/sandpit/internal/logx"
	"pkt.systems/sandpit/schema"
)

// TimedOutMessage is the status shown when the sandbox reports a timeout.
const TimedOutMessage = "execution timed out"

// Pipeline is the format → execute state machine of one session.
//
// State is guarded by mu. Sink calls are made after mu is released, in the
// order the state changed; sinks must not call Run, Format or Cancel
// synchronously from a callback.
type Pipeline struct {
	cfg       schema.ClientConfig
	sandbox   Sandbox
	clipboard Clipboard
	sink      EventSink
	log       pslog.Logger

	code    *Cell[string]
	version *Cell[schema.SandboxVersion]

	mu          sync.Mutex
	state       schema.RunState
	busy        bool
	output      *outputBuffer
	diags       []schema.Diagnostic
	status      schema.StatusEvent
	generation  uint64
	runID       string
	stop        context.CancelFunc
	streamOwned bool
	idle        chan struct{}
	ticket      uint64

	emitMu   sync.Mutex
	emitCond *sync.Cond
	served   uint64
}

// NewPipeline constructs a pipeline. The sandbox is required.
func NewPipeline(cfg schema.ClientConfig, deps PipelineDeps) (*Pipeline, error) {
	normalized, err := schema.NormalizeClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Sandbox == nil {
		return nil, schema.ErrSandboxUnavailable
	}
	sink := deps.EventSink
	if sink == nil {
		sink = NopSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	idle := make(chan struct{})
	close(idle)
	p := &Pipeline{
		cfg:       normalized,
		sandbox:   deps.Sandbox,
		clipboard: deps.Clipboard,
		sink:      sink,
		log:       logger,
		code:      NewCell(""),
		version:   NewCell(schema.DefaultSandboxVersion),
		state:     schema.RunStateIdle,
		output:    newOutputBuffer(normalized.OutputMaxEntries),
		idle:      idle,
	}
	p.emitCond = sync.NewCond(&p.emitMu)
	return p, nil
}

// Code is the canonical holder of the session code.
func (p *Pipeline) Code() *Cell[string] {
	return p.code
}

// Version is the canonical holder of the selected sandbox version.
func (p *Pipeline) Version() *Cell[schema.SandboxVersion] {
	return p.version
}

// Config returns the normalized client config.
func (p *Pipeline) Config() schema.ClientConfig {
	return p.cfg
}

// State returns the current RunState.
func (p *Pipeline) State() schema.RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Busy reports whether a format or run is in progress.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Snapshot returns a copy of the pipeline state.
func (p *Pipeline) Snapshot() schema.PipelineSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return schema.PipelineSnapshot{
		State:       p.state,
		Busy:        p.busy,
		Output:      p.output.Snapshot(),
		Diagnostics: append([]schema.Diagnostic(nil), p.diags...),
		Status:      p.status,
	}
}

// Wait blocks until the pipeline is idle and every event of the last
// operation has been delivered to the sink.
func (p *Pipeline) Wait(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run formats the current code and, when the formatter accepts it, executes
// it and consumes the event stream in the background. A nil error means the
// request was accepted; outcomes are reported through the sink.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.start(ctx, true)
}

// Format formats the current code without executing it.
func (p *Pipeline) Format(ctx context.Context) error {
	return p.start(ctx, false)
}

// Cancel ends the current operation, canceling its requests and stream.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	if !p.busy {
		p.mu.Unlock()
		return
	}
	if p.stop != nil {
		p.stop()
	}
	logx.WithRun(p.log, p.runID, p.generation).Info("pipeline run canceled")
	p.unlockAndEmit(p.finishLocked(true))
}

func (p *Pipeline) start(ctx context.Context, execute bool) error {
	op := "format"
	if execute {
		op = "run"
	}
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		p.log.Debug("pipeline request rejected", "op", op, "reason", "busy")
		return schema.ErrBusy
	}
	code := p.code.Load()
	if strings.TrimSpace(code) == "" {
		p.mu.Unlock()
		p.log.Debug("pipeline request rejected", "op", op, "reason", "empty code")
		return schema.ErrEmptyCode
	}
	if p.stop != nil {
		p.stop()
	}
	opCtx, cancel := context.WithCancel(ctx)
	p.busy = true
	p.state = schema.RunStateFormatting
	p.generation++
	p.runID = newRunID()
	p.stop = cancel
	p.streamOwned = false
	p.idle = make(chan struct{})
	gen := p.generation
	log := logx.WithRun(p.log, p.runID, gen)
	p.unlockAndEmit([]func(){p.stateEventLocked()})

	log.Info("pipeline "+op+" start", "code_len", len(code))
	formatted, ok := p.formatPhase(opCtx, gen, code, execute, log)
	if !ok || !execute {
		return nil
	}
	p.executePhase(opCtx, gen, formatted, log)
	return nil
}

// formatPhase reports whether execution may proceed with the formatted code.
func (p *Pipeline) formatPhase(ctx context.Context, gen uint64, code string, execute bool, log pslog.Logger) (string, bool) {
	result, err := p.sandbox.Format(ctx, code)
	if err == nil && !result.HasDiagnostic() && result.Stdout == "" {
		err = errors.New("formatter returned no output")
	}

	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		log.Debug("pipeline format result dropped", "reason", "stale")
		return "", false
	}
	if err != nil {
		log.Warn("pipeline format failed", "err", err)
		events := p.finishLocked(true)
		if !errors.Is(err, context.Canceled) {
			notification := schema.Notification{Level: schema.NotifyError, Message: fmt.Sprintf("format failed: %v", err)}
			events = append([]func(){func() { p.sink.OnNotify(notification) }}, events...)
		}
		p.unlockAndEmit(events)
		return "", false
	}
	if result.HasDiagnostic() {
		message := result.Message
		if message == "" {
			message = firstLine(result.Error)
		}
		log.Info("pipeline format rejected", "message", message)
		p.state = schema.RunStateFormatFailed
		p.diags = diagnostics.Extract(result.Error)
		p.output.Replace(schema.OutputEntry{Kind: schema.OutputStderr, Text: result.Error})
		p.status = schema.StatusEvent{Level: schema.StatusError, Message: message}
		events := []func(){
			p.stateEventLocked(),
			p.outputReplacedLocked(),
			p.diagnosticsEventLocked(),
			p.statusEventLocked(),
		}
		events = append(events, p.finishLocked(true)...)
		p.unlockAndEmit(events)
		return "", false
	}

	formatted := result.Stdout
	var events []func()
	if formatted != code {
		// Stored before busy clears.
		p.code.Store(formatted)
		events = append(events, func() {
			p.sink.OnCode(schema.CodeEvent{Source: schema.CodeFromFormat, Code: formatted})
		})
	}
	if !execute {
		p.diags = nil
		events = append(events, p.diagnosticsEventLocked())
		events = append(events, p.finishLocked(true)...)
		p.unlockAndEmit(events)
		log.Info("pipeline format done", "changed", formatted != code)
		return formatted, true
	}
	p.output.Clear()
	p.diags = nil
	p.status = schema.StatusEvent{}
	p.state = schema.RunStateStreaming
	events = append(events,
		p.outputClearedLocked(),
		p.diagnosticsEventLocked(),
		p.statusEventLocked(),
		p.stateEventLocked(),
	)
	p.unlockAndEmit(events)
	return formatted, true
}

func (p *Pipeline) executePhase(ctx context.Context, gen uint64, code string, log pslog.Logger) {
	streamCtx := ctx
	release := func() {}
	if p.cfg.MaxRunDuration > 0 {
		streamCtx, release = context.WithTimeout(ctx, p.cfg.MaxRunDuration)
	}
	req := schema.ExecuteRequest{Code: code, Version: p.version.Load()}
	stream, err := p.sandbox.Execute(streamCtx, req)
	if err != nil {
		release()
		log.Warn("pipeline execute failed", "err", err)
		p.fail(gen, err)
		return
	}

	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		release()
		_ = stream.Close()
		return
	}
	p.streamOwned = true
	stop := p.stop
	p.mu.Unlock()
	log.Debug("pipeline stream open", "version", req.Version)
	go p.consume(streamCtx, gen, stream, func() {
		release()
		stop()
	}, log)
}

// consume reads the stream on a single goroutine and dispatches events in
// arrival order.
func (p *Pipeline) consume(ctx context.Context, gen uint64, stream EventStream, release func(), log pslog.Logger) {
	defer release()
	defer func() { _ = stream.Close() }()
	count := 0
	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = schema.ErrStreamClosed
			} else if errors.Is(err, context.DeadlineExceeded) && p.cfg.MaxRunDuration > 0 {
				err = fmt.Errorf("execution exceeded %s", p.cfg.MaxRunDuration)
			}
			if p.fail(gen, err) {
				log.Warn("pipeline stream failed", "events", count, "err", err)
			} else {
				log.Debug("pipeline stream closed", "events", count)
			}
			return
		}
		count++
		if !p.dispatch(gen, event, log) && p.cfg.StreamPolicy == schema.StreamPolicyCancel {
			log.Debug("pipeline stream released", "events", count)
			return
		}
	}
}

// dispatch applies one event and reports whether the run is still active.
func (p *Pipeline) dispatch(gen uint64, event schema.StreamEvent, log pslog.Logger) bool {
	p.mu.Lock()
	if !p.streamingLocked(gen) {
		p.mu.Unlock()
		log.Trace("pipeline stale event dropped", "kind", event.Kind)
		return false
	}
	var events []func()
	active := true
	switch event.Kind {
	case schema.StreamStdout:
		entry := schema.OutputEntry{Kind: schema.OutputStdout, Text: event.Payload}
		p.output.Append(entry)
		events = append(events, p.outputAppended(entry))
	case schema.StreamStderr:
		payload := event.Payload
		if stats, rest, ok := splitStats(payload); ok {
			p.status = schema.StatusEvent{Level: schema.StatusInfo, Message: stats.String()}
			events = append(events, p.statusEventLocked())
			payload = rest
			if strings.TrimSpace(payload) == "" {
				break
			}
		}
		if found := diagnostics.Extract(payload); len(found) > 0 {
			merged := diagnostics.Merge(p.diags, found)
			if len(merged) != len(p.diags) {
				p.diags = merged
				events = append(events, p.diagnosticsEventLocked())
			}
		}
		entry := schema.OutputEntry{Kind: schema.OutputStderr, Text: payload}
		p.output.Append(entry)
		events = append(events, p.outputAppended(entry))
	case schema.StreamClear:
		p.output.Clear()
		events = append(events, p.outputClearedLocked())
	case schema.StreamTimeout:
		p.status = schema.StatusEvent{Level: schema.StatusError, Message: TimedOutMessage}
		events = append(events, p.statusEventLocked())
	case schema.StreamError:
		log.Info("pipeline run failed", "message", event.Payload)
		p.status = schema.StatusEvent{Level: schema.StatusError, Message: event.Payload}
		events = append(events, p.statusEventLocked())
		events = append(events, p.finishLocked(false)...)
		active = false
	case schema.StreamDone:
		log.Info("pipeline run done", "entries", p.output.Len(), "diagnostics", len(p.diags))
		p.state = schema.RunStateDone
		events = append(events, p.stateEventLocked())
		events = append(events, p.finishLocked(false)...)
		active = false
	default:
		log.Debug("pipeline unknown event ignored", "kind", event.Kind)
	}
	p.unlockAndEmit(events)
	return active
}

// fail ends the run with a synthetic error entry. It reports whether the run
// was still current.
func (p *Pipeline) fail(gen uint64, err error) bool {
	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		return false
	}
	if errors.Is(err, context.Canceled) {
		p.unlockAndEmit(p.finishLocked(true))
		return false
	}
	text := err.Error()
	p.output.Replace(schema.OutputEntry{Kind: schema.OutputStderr, Text: text})
	p.diags = diagnostics.Extract(text)
	events := []func(){p.outputReplacedLocked(), p.diagnosticsEventLocked()}
	events = append(events, p.finishLocked(true)...)
	p.unlockAndEmit(events)
	return true
}

// finishLocked returns the pipeline to idle. The stream context is canceled
// under the cancel policy, or when no stream was handed to a consumer.
func (p *Pipeline) finishLocked(release bool) []func() {
	if p.stop != nil && (release || !p.streamOwned || p.cfg.StreamPolicy == schema.StreamPolicyCancel) {
		p.stop()
	}
	p.stop = nil
	p.busy = false
	p.state = schema.RunStateIdle
	idle := p.idle
	return []func(){
		p.stateEventLocked(),
		func() { close(idle) },
	}
}

func (p *Pipeline) currentLocked(gen uint64) bool {
	return p.busy && p.generation == gen
}

func (p *Pipeline) streamingLocked(gen uint64) bool {
	return p.currentLocked(gen) && p.state == schema.RunStateStreaming
}

func (p *Pipeline) stateEventLocked() func() {
	event := schema.StateEvent{State: p.state, Busy: p.busy}
	return func() { p.sink.OnState(event) }
}

func (p *Pipeline) statusEventLocked() func() {
	event := p.status
	return func() { p.sink.OnStatus(event) }
}

func (p *Pipeline) diagnosticsEventLocked() func() {
	diags := append([]schema.Diagnostic(nil), p.diags...)
	event := schema.DiagnosticsEvent{Diagnostics: diags, Markers: diagnostics.Markers(diags)}
	return func() { p.sink.OnDiagnostics(event) }
}

func (p *Pipeline) outputAppended(entry schema.OutputEntry) func() {
	event := schema.OutputEvent{Type: schema.OutputAppended, Entry: entry}
	return func() { p.sink.OnOutput(event) }
}

func (p *Pipeline) outputClearedLocked() func() {
	event := schema.OutputEvent{Type: schema.OutputCleared}
	return func() { p.sink.OnOutput(event) }
}

func (p *Pipeline) outputReplacedLocked() func() {
	event := schema.OutputEvent{Type: schema.OutputReplaced, Entries: p.output.Snapshot()}
	return func() { p.sink.OnOutput(event) }
}

// unlockAndEmit releases mu and runs events after every batch queued before it.
func (p *Pipeline) unlockAndEmit(events []func()) {
	ticket := p.ticket
	p.ticket++
	p.mu.Unlock()

	p.emitMu.Lock()
	for p.served != ticket {
		p.emitCond.Wait()
	}
	p.emitMu.Unlock()
	defer func() {
		p.emitMu.Lock()
		p.served++
		p.emitCond.Broadcast()
		p.emitMu.Unlock()
	}()
	for _, fn := range events {
		fn()
	}
}

func (p *Pipeline) emit(events ...func()) {
	p.mu.Lock()
	p.unlockAndEmit(events)
}

// Share stores the current code as a snippet, copies its URL to the
// clipboard and returns the URL. Share does not touch the RunState.
func (p *Pipeline) Share(ctx context.Context) (string, error) {
	code := p.code.Load()
	if strings.TrimSpace(code) == "" {
		p.log.Debug("pipeline request rejected", "op", "share", "reason", "empty code")
		return "", schema.ErrEmptyCode
	}
	id, err := p.sandbox.ShareSnippet(ctx, code)
	if err != nil {
		p.log.Warn("pipeline share failed", "err", err)
		notification := schema.Notification{Level: schema.NotifyError, Message: err.Error()}
		p.emit(func() { p.sink.OnNotify(notification) })
		return "", err
	}
	link := p.ShareURL(id)
	message := "share link copied to clipboard"
	if p.clipboard == nil {
		message = "share link created"
	} else if err := p.clipboard.WriteAll(link); err != nil {
		p.log.Debug("pipeline clipboard write failed", "err", err)
		message = "share link created"
	}
	p.log.Info("pipeline share done", "snippet", string(id))
	notification := schema.Notification{Level: schema.NotifyInfo, Message: message, URL: link}
	p.emit(func() { p.sink.OnNotify(notification) })
	return link, nil
}

// ShareURL builds the shareable URL of a snippet.
func (p *Pipeline) ShareURL(id schema.SnippetID) string {
	return p.cfg.ShareBaseURL + "/snippets/" + url.PathEscape(string(id))
}

// LoadTemplate replaces the code with a template. It is rejected while busy
// and holds the busy flag for the duration of the fetch.
func (p *Pipeline) LoadTemplate(ctx context.Context, id schema.TemplateID) error {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		p.log.Debug("pipeline request rejected", "op", "template", "reason", "busy")
		return schema.ErrBusy
	}
	if p.stop != nil {
		p.stop()
	}
	opCtx, cancel := context.WithCancel(ctx)
	p.busy = true
	p.generation++
	p.runID = newRunID()
	p.stop = cancel
	p.streamOwned = false
	p.idle = make(chan struct{})
	gen := p.generation
	log := logx.WithRun(p.log, p.runID, gen)
	p.unlockAndEmit([]func(){p.stateEventLocked()})

	code, err := p.sandbox.Template(opCtx, id)

	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		log.Debug("pipeline template result dropped", "template", string(id), "reason", "stale")
		if err != nil {
			return err
		}
		return context.Canceled
	}
	if err != nil {
		log.Warn("pipeline template load failed", "template", string(id), "err", err)
		events := p.finishLocked(true)
		if !errors.Is(err, context.Canceled) {
			notification := schema.Notification{Level: schema.NotifyError, Message: fmt.Sprintf("load template %s: %v", id, err)}
			events = append([]func(){func() { p.sink.OnNotify(notification) }}, events...)
		}
		p.unlockAndEmit(events)
		return err
	}
	log.Info("pipeline template loaded", "template", string(id), "code_len", len(code))
	p.code.Store(code)
	events := []func(){func() {
		p.sink.OnCode(schema.CodeEvent{Source: schema.CodeFromTemplate, Code: code})
	}}
	events = append(events, p.finishLocked(true)...)
	p.unlockAndEmit(events)
	return nil
}

// LoadSnippet replaces the code with a shared snippet. On failure the local
// code is left untouched.
func (p *Pipeline) LoadSnippet(ctx context.Context, id schema.SnippetID) error {
	code, err := p.sandbox.FetchSnippet(ctx, id)
	if err != nil {
		p.log.Warn("pipeline snippet load failed", "snippet", string(id), "err", err)
		notification := schema.Notification{Level: schema.NotifyError, Message: fmt.Sprintf("%v; loading local cache instead", err)}
		p.emit(func() { p.sink.OnNotify(notification) })
		return err
	}
	p.replaceCode(code, schema.CodeFromSnippet)
	return nil
}

func (p *Pipeline) replaceCode(code string, source schema.CodeEventSource) {
	p.emit(func() {
		p.code.Store(code)
		p.sink.OnCode(schema.CodeEvent{Source: source, Code: code})
	})
}

// Notify forwards a notification through the ordered sink.
func (p *Pipeline) Notify(notification schema.Notification) {
	p.emit(func() { p.sink.OnNotify(notification) })
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}
