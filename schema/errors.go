package schema

import "errors"

var (
	// ErrBusy indicates a run or format is already in progress.
	ErrBusy = errors.New("pipeline is busy")
	// ErrEmptyCode indicates there is no code to format or run.
	ErrEmptyCode = errors.New("empty code")
	// ErrSnippetNotFound indicates the requested snippet does not exist.
	ErrSnippetNotFound = errors.New("snippet not found")
	// ErrTemplateNotFound indicates the requested template does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrInvalidSetting indicates an unknown setting name or an invalid value.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrStreamClosed indicates the execute stream ended without a done or error event.
	ErrStreamClosed = errors.New("stream closed unexpectedly")
	// ErrSandboxUnavailable indicates no sandbox service is configured.
	ErrSandboxUnavailable = errors.New("sandbox not configured")
)
