package sandpit

import (
	"context"
	"errors"
	"io"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/httpapi"
	"pkt.systems/sandpit/internal/persist"
)

// Server runs the local sandbox backend.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the backend compositor.
type ServerConfig struct {
	HTTP           httpapi.Config
	SnippetBackend string
	SnippetPath    string
}

// ServerDeps overrides collaborators NewServer would otherwise build.
type ServerDeps struct {
	Snippets persist.KV
	Executor httpapi.Executor
	Logger   pslog.Logger
}

// NewServer constructs the local backend. It owns the snippet store it opens.
func NewServer(cfg ServerConfig, deps ServerDeps) (Server, error) {
	if cfg.HTTP.Addr == "" {
		return nil, errors.New("server address is required")
	}
	snippets := deps.Snippets
	var closer io.Closer
	if snippets == nil {
		kv, c, err := persist.Open(cfg.SnippetBackend, cfg.SnippetPath, deps.Logger)
		if err != nil {
			return nil, err
		}
		snippets, closer = kv, c
	}
	return &backendServer{
		cfg:    cfg,
		http:   httpapi.NewServer(cfg.HTTP, httpapi.Deps{Snippets: snippets, Executor: deps.Executor}),
		closer: closer,
	}, nil
}

type backendServer struct {
	cfg    ServerConfig
	http   *httpapi.Server
	closer io.Closer
	logger pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	stopped bool
}

func (s *backendServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"addr", s.cfg.HTTP.Addr,
		"go", s.cfg.HTTP.GoBinary,
		"exec_timeout", s.cfg.HTTP.ExecTimeout.String(),
		"snippets", s.cfg.SnippetBackend,
	)
	go func() {
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.http.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *backendServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		pslog.Ctx(ctx).Error("server stopped", "err", err)
		_ = s.Stop(context.Background())
		return err
	}
}

func (s *backendServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	log := s.logger
	closer := s.closer
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.closer = nil
	s.mu.Unlock()
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			log.Warn("server snippet store close failed", "err", err)
			return err
		}
	}
	log.Info("server stop completed")
	return nil
}
