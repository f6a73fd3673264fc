package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventOutput carries an output buffer change.
	EventOutput EventType = "output"
	// EventState carries a run state transition.
	EventState EventType = "state"
	// EventDiagnostics carries the current diagnostic set.
	EventDiagnostics EventType = "diagnostics"
	// EventStatus carries the inline status line.
	EventStatus EventType = "status"
	// EventNotify carries a toast.
	EventNotify EventType = "notify"
	// EventCode carries a code replacement.
	EventCode EventType = "code"
	// EventSettings carries a settings snapshot.
	EventSettings EventType = "settings"
)

// Event is a UI-facing event emitted by the pipeline or controller.
type Event struct {
	Type         EventType
	Output       schema.OutputEvent
	State        schema.StateEvent
	Diagnostics  schema.DiagnosticsEvent
	Status       schema.StatusEvent
	Notification schema.Notification
	Code         schema.CodeEvent
	Settings     schema.SettingsEvent
}

// DefaultDepth is the number of output events a subscriber may have queued
// before they are collapsed into a single replacement.
const DefaultDepth = 256

// Bus fans events out to subscribers. Publishing never blocks. Each
// subscriber has its own queue: non-output events are always delivered in
// order, while a backlog of output events is replaced by one OutputReplaced
// event carrying the current output.
type Bus struct {
	mu        sync.Mutex
	subs      map[*subscriber]struct{}
	log       pslog.Logger
	depth     int
	maxOutput int
	output    []schema.OutputEntry
}

type subscriber struct {
	out  chan Event
	wake chan struct{}
	done chan struct{}

	mu      sync.Mutex
	queue   []Event
	outputs int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:      make(map[*subscriber]struct{}),
		log:       logger,
		depth:     DefaultDepth,
		maxOutput: schema.DefaultOutputMaxEntries,
	}
}

// Subscribe registers a subscriber and returns its channel and cancel func.
// The channel is closed after cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	sub := &subscriber{
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	go sub.pump()
	b.log.Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.done)
			b.log.Debug("eventbus unsubscribe")
		})
	}
}

// SetOutputLimit bounds the mirrored output used to resync lagging
// subscribers. It should match the pipeline's output limit.
func (b *Bus) SetOutputLimit(n int) {
	if b == nil || n <= 0 {
		return
	}
	b.mu.Lock()
	b.maxOutput = n
	b.mu.Unlock()
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(Event{Type: EventOutput, Output: event})
}

// OnState publishes a state event.
func (b *Bus) OnState(event schema.StateEvent) {
	b.publish(Event{Type: EventState, State: event})
}

// OnDiagnostics publishes a diagnostics event.
func (b *Bus) OnDiagnostics(event schema.DiagnosticsEvent) {
	b.publish(Event{Type: EventDiagnostics, Diagnostics: event})
}

// OnStatus publishes a status event.
func (b *Bus) OnStatus(event schema.StatusEvent) {
	b.publish(Event{Type: EventStatus, Status: event})
}

// OnNotify publishes a notification.
func (b *Bus) OnNotify(event schema.Notification) {
	b.publish(Event{Type: EventNotify, Notification: event})
}

// OnCode publishes a code replacement.
func (b *Bus) OnCode(event schema.CodeEvent) {
	b.publish(Event{Type: EventCode, Code: event})
}

// OnSettings publishes a settings snapshot.
func (b *Bus) OnSettings(event schema.SettingsEvent) {
	b.publish(Event{Type: EventSettings, Settings: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	if event.Type == EventOutput {
		b.applyOutputLocked(event.Output)
	}
	compacted := 0
	for sub := range b.subs {
		if sub.push(event, b.depth, b.outputSnapshotLocked) {
			compacted++
		}
	}
	b.mu.Unlock()
	if compacted > 0 {
		b.log.Trace("eventbus output compacted", "subs", compacted)
	}
}

// applyOutputLocked mirrors the output buffer so a lagging subscriber can be
// resynced with one replacement.
func (b *Bus) applyOutputLocked(event schema.OutputEvent) {
	switch event.Type {
	case schema.OutputCleared:
		b.output = nil
	case schema.OutputReplaced:
		b.output = append([]schema.OutputEntry(nil), event.Entries...)
	case schema.OutputAppended:
		b.output = append(b.output, event.Entry)
		if over := len(b.output) - b.maxOutput; over > 0 {
			b.output = append([]schema.OutputEntry(nil), b.output[over:]...)
		}
	}
}

func (b *Bus) outputSnapshotLocked() []schema.OutputEntry {
	return append([]schema.OutputEntry(nil), b.output...)
}

// push queues event and reports whether queued output was collapsed.
func (s *subscriber) push(event Event, depth int, current func() []schema.OutputEntry) bool {
	s.mu.Lock()
	compacted := false
	if event.Type == EventOutput && s.outputs >= depth {
		kept := s.queue[:0]
		for _, queued := range s.queue {
			if queued.Type != EventOutput {
				kept = append(kept, queued)
			}
		}
		for i := len(kept); i < len(s.queue); i++ {
			s.queue[i] = Event{}
		}
		s.queue = kept
		event = Event{Type: EventOutput, Output: schema.OutputEvent{Type: schema.OutputReplaced, Entries: current()}}
		s.outputs = 0
		compacted = true
	}
	s.queue = append(s.queue, event)
	if event.Type == EventOutput {
		s.outputs++
	}
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return compacted
}

func (s *subscriber) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	event := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	if event.Type == EventOutput {
		s.outputs--
	}
	return event, true
}

// pump forwards queued events to out until the subscriber is canceled.
func (s *subscriber) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			event, ok := s.pop()
			if !ok {
				break
			}
			select {
			case s.out <- event:
			case <-s.done:
				return
			}
		}
	}
}
