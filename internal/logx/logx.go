package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/schema"
)

type contextKey int

const (
	sessionKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSession annotates the context logger with the session id unless the
// context already carries it.
func WithSession(ctx context.Context, sessionID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(string); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// ContextWithSession binds an annotated logger and the session marker to ctx.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	log := WithSession(ctx, sessionID)
	ctx = context.WithValue(ctx, sessionKey, sessionID)
	return pslog.ContextWithLogger(ctx, log)
}

// WithRun annotates the logger with a run id and generation.
func WithRun(log pslog.Logger, runID string, generation uint64) pslog.Logger {
	if runID != "" {
		log = log.With("run", runID)
	}
	if generation > 0 {
		log = log.With("generation", generation)
	}
	return log
}

// WithTab annotates the logger with the code tab and language.
func WithTab(log pslog.Logger, language schema.Language, tab schema.TabID) pslog.Logger {
	if language != "" {
		log = log.With("language", string(language))
	}
	if tab > 0 {
		log = log.With("tab", int(tab))
	}
	return log
}
