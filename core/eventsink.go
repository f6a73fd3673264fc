package core

import "pkt.systems/sandpit/schema"

// EventSink receives pipeline and controller updates. Calls for one session
// arrive in the order the state changed.
type EventSink interface {
	OnOutput(event schema.OutputEvent)
	OnState(event schema.StateEvent)
	OnDiagnostics(event schema.DiagnosticsEvent)
	OnStatus(event schema.StatusEvent)
	OnNotify(event schema.Notification)
	OnCode(event schema.CodeEvent)
	OnSettings(event schema.SettingsEvent)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) OnOutput(schema.OutputEvent)           {}
func (NopSink) OnState(schema.StateEvent)             {}
func (NopSink) OnDiagnostics(schema.DiagnosticsEvent) {}
func (NopSink) OnStatus(schema.StatusEvent)           {}
func (NopSink) OnNotify(schema.Notification)          {}
func (NopSink) OnCode(schema.CodeEvent)               {}
func (NopSink) OnSettings(schema.SettingsEvent)       {}
