package sandpit

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/core"
	"pkt.systems/sandpit/internal/eventbus"
	"pkt.systems/sandpit/internal/logx"
	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/internal/sandbox"
	"pkt.systems/sandpit/internal/settings"
	"pkt.systems/sandpit/internal/version"
	"pkt.systems/sandpit/schema"
)

// ClientConfig configures the client compositor.
type ClientConfig struct {
	Options        schema.ClientConfig
	SandboxURL     string
	RequestTimeout time.Duration
	StoreBackend   string
	StorePath      string
}

// ClientDeps overrides the collaborators New would otherwise build.
type ClientDeps struct {
	Sandbox   core.Sandbox
	Clipboard core.Clipboard
	KV        persist.KV
	// EventSink receives every event alongside the bus.
	EventSink core.EventSink
	Logger    pslog.Logger
}

// Client wires the settings store, sandbox client, pipeline and controller
// for one editing session.
type Client struct {
	controller *Controller
	pipeline   *core.Pipeline
	settings   *settings.Store
	bus        *eventbus.Bus
	closers    []io.Closer
	id         string
	log        pslog.Logger
}

// Controller is the session controller driven by front-ends.
type Controller = core.Controller

// New builds a client. The returned client owns the store it opened; call
// Close when done.
func New(ctx context.Context, cfg ClientConfig, deps ClientDeps) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Logger != nil {
		ctx = pslog.ContextWithLogger(ctx, deps.Logger)
	}
	sessionID := uuid.NewString()
	ctx = logx.ContextWithSession(ctx, sessionID)
	logger := pslog.Ctx(ctx)
	client := &Client{id: sessionID, log: logger}

	kv := deps.KV
	if kv == nil {
		opened, closer, err := persist.Open(cfg.StoreBackend, cfg.StorePath, logger)
		if err != nil {
			return nil, err
		}
		kv = opened
		client.closers = append(client.closers, closer)
	}

	remote := deps.Sandbox
	if remote == nil {
		opts := []sandbox.Option{sandbox.WithUserAgent(version.UserAgent())}
		if cfg.RequestTimeout > 0 {
			opts = append(opts, sandbox.WithRequestTimeout(cfg.RequestTimeout))
		}
		httpClient, err := sandbox.New(cfg.SandboxURL, opts...)
		if err != nil {
			client.closeStores()
			return nil, err
		}
		remote = httpClient
	}

	clip := deps.Clipboard
	if clip == nil {
		clip = sandbox.SystemClipboard{}
	}

	client.bus = eventbus.New(logger)
	pipeline, err := core.NewPipeline(cfg.Options, core.PipelineDeps{
		Sandbox:   remote,
		Clipboard: clip,
		EventSink: fanout(deps.EventSink, client.bus),
		Logger:    logger,
	})
	if err != nil {
		client.closeStores()
		return nil, err
	}
	client.pipeline = pipeline
	client.bus.SetOutputLimit(pipeline.Config().OutputMaxEntries)
	client.settings = settings.New(kv, logger)
	client.controller = core.NewController(ctx, pipeline, client.settings, logger)
	logger.Debug("client ready", "sandbox", cfg.SandboxURL, "store", cfg.StoreBackend)
	return client, nil
}

// SessionID identifies this client in logs.
func (c *Client) SessionID() string {
	return c.id
}

// Controller returns the session controller.
func (c *Client) Controller() *Controller {
	return c.controller
}

// Pipeline returns the execution pipeline.
func (c *Client) Pipeline() *core.Pipeline {
	return c.pipeline
}

// Settings returns the settings store.
func (c *Client) Settings() *settings.Store {
	return c.settings
}

// Subscribe returns a channel of UI events and its cancel func.
func (c *Client) Subscribe() (<-chan eventbus.Event, func()) {
	return c.bus.Subscribe()
}

// Close stops the controller and releases the store.
func (c *Client) Close() error {
	c.controller.Close()
	return c.closeStores()
}

func (c *Client) closeStores() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if err := errors.Join(errs...); err != nil {
		c.log.Warn("client store close failed", "err", err)
		return err
	}
	return nil
}
