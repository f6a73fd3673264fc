package core

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/schema"
)

// Sandbox is the remote code-execution service.
type Sandbox interface {
	Format(ctx context.Context, code string) (schema.FormatResult, error)
	Execute(ctx context.Context, req schema.ExecuteRequest) (EventStream, error)
	ShareSnippet(ctx context.Context, code string) (schema.SnippetID, error)
	FetchSnippet(ctx context.Context, id schema.SnippetID) (string, error)
	Template(ctx context.Context, id schema.TemplateID) (string, error)
	HealthCheck(ctx context.Context) error
}

// EventStream yields execute events in arrival order. Next returns io.EOF
// when the service closed the stream.
type EventStream interface {
	Next(ctx context.Context) (schema.StreamEvent, error)
	Close() error
}

// Clipboard receives share URLs.
type Clipboard interface {
	WriteAll(text string) error
}

// PipelineDeps captures the collaborators of a Pipeline.
type PipelineDeps struct {
	Sandbox   Sandbox
	Clipboard Clipboard
	EventSink EventSink
	Logger    pslog.Logger
}
