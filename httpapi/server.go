package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/format"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/internal/persist"
	"pkt.systems/sandpit/internal/version"
	"pkt.systems/sandpit/schema"
)

const snippetKeyPrefix = "snippet."

// Deps are the collaborators of the local backend.
type Deps struct {
	// Snippets stores shared code. Nil keeps snippets in memory.
	Snippets persist.KV
	// Executor runs programs. Nil builds a GoExecutor from Config.
	Executor Executor
}

// Server is a local sandbox backend speaking the same protocol as the
// remote service.
type Server struct {
	cfg      Config
	snippets persist.KV
	exec     Executor
}

// NewServer constructs a backend.
func NewServer(cfg Config, deps Deps) *Server {
	cfg = cfg.withDefaults()
	snippets := deps.Snippets
	if snippets == nil {
		snippets = persist.NewMemoryStore()
	}
	exec := deps.Executor
	if exec == nil {
		exec = GoExecutor{Binary: cfg.GoBinary, WorkDir: cfg.WorkDir, Timeout: cfg.ExecTimeout}
	}
	return &Server{cfg: cfg, snippets: snippets, exec: exec}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	unary := http.NewServeMux()
	unary.HandleFunc("GET /status", s.handleStatus)
	unary.HandleFunc("POST /format", s.handleFormat)
	unary.HandleFunc("POST /snippets", s.handleShare)
	unary.HandleFunc("GET /snippets/{id}", s.handleSnippet)
	unary.HandleFunc("GET /templates", s.handleTemplates)
	unary.HandleFunc("GET /templates/{id}", s.handleTemplate)

	mux := http.NewServeMux()
	// Executions carry their own deadline and emit a timeout event instead of
	// failing the request.
	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.Handle("/", withRequestTimeout(unary, s.cfg.RequestTimeout))
	return withRequestLogging(mux)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Current()})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req schema.FormatRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, formatSource(req.Code))
}

// formatSource runs gofmt. Syntax errors are reported in the result, not as
// a failed request.
func formatSource(code string) schema.FormatResult {
	formatted, err := format.Source([]byte(code))
	if err != nil {
		text := err.Error()
		message := text
		if first, _, ok := strings.Cut(text, "\n"); ok {
			message = first
		}
		return schema.FormatResult{Error: text, Message: message}
	}
	return schema.FormatResult{Stdout: string(formatted)}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	var req schema.ExecuteRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, schema.ErrEmptyCode)
		return
	}
	ctx := r.Context()
	log := pslog.Ctx(ctx).With("run", uuid.NewString())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(event schema.StreamEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeSSEvent(w, event); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	log.Info("sandbox execute start", "code_len", len(req.Code), "version", string(req.Version))
	err := s.exec.Execute(pslog.ContextWithLogger(ctx, log), req, emit)
	switch {
	case err == nil:
		_ = emit(schema.StreamEvent{Kind: schema.StreamDone})
	case ctx.Err() != nil:
		log.Info("sandbox execute client gone", "err", ctx.Err())
	default:
		log.Warn("sandbox execute failed", "err", err)
		_ = emit(schema.StreamEvent{Kind: schema.StreamError, Payload: err.Error()})
	}
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req schema.SnippetRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, schema.ErrEmptyCode)
		return
	}
	id := schema.SnippetID(uuid.NewString())
	if err := s.snippets.Set(snippetKeyPrefix+string(id), req.Code); err != nil {
		pslog.Ctx(r.Context()).Warn("snippet store failed", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("snippet store failed"))
		return
	}
	pslog.Ctx(r.Context()).Info("snippet stored", "id", string(id), "code_len", len(req.Code))
	writeJSON(w, http.StatusOK, schema.SnippetResponse{ID: id})
}

func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	id, err := schema.NormalizeSnippetID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	code, ok, err := s.snippets.Get(snippetKeyPrefix + string(id))
	if err != nil {
		if isTimeout(r.Context(), err) {
			writeError(w, http.StatusGatewayTimeout, errors.New("request timed out"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", schema.ErrSnippetNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, schema.CodeResponse{Code: code})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": Templates()})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	code, err := loadTemplate(schema.TemplateID(r.PathValue("id")))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, schema.CodeResponse{Code: code})
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, schema.ErrorResponse{Error: err.Error()})
}

// writeSSEvent writes one named event. Multi-line payloads become several
// data lines.
func writeSSEvent(w io.Writer, event schema.StreamEvent) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(string(event.Kind))
	b.WriteByte('\n')
	for _, line := range strings.Split(event.Payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
