package sandpit

import (
	"pkt.systems/sandpit/core"
	"pkt.systems/sandpit/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnOutput(event schema.OutputEvent) {
	for _, sink := range f.sinks {
		sink.OnOutput(event)
	}
}

func (f eventFanout) OnState(event schema.StateEvent) {
	for _, sink := range f.sinks {
		sink.OnState(event)
	}
}

func (f eventFanout) OnDiagnostics(event schema.DiagnosticsEvent) {
	for _, sink := range f.sinks {
		sink.OnDiagnostics(event)
	}
}

func (f eventFanout) OnStatus(event schema.StatusEvent) {
	for _, sink := range f.sinks {
		sink.OnStatus(event)
	}
}

func (f eventFanout) OnNotify(event schema.Notification) {
	for _, sink := range f.sinks {
		sink.OnNotify(event)
	}
}

func (f eventFanout) OnCode(event schema.CodeEvent) {
	for _, sink := range f.sinks {
		sink.OnCode(event)
	}
}

func (f eventFanout) OnSettings(event schema.SettingsEvent) {
	for _, sink := range f.sinks {
		sink.OnSettings(event)
	}
}

// fanout drops nil sinks and avoids wrapping a single sink.
func fanout(sinks ...core.EventSink) core.EventSink {
	live := make([]core.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			live = append(live, sink)
		}
	}
	switch len(live) {
	case 0:
		return core.NopSink{}
	case 1:
		return live[0]
	default:
		return eventFanout{sinks: live}
	}
}
