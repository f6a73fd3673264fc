package sandbox

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/schema"
)

const maxEventLine = 1024 * 1024

// eventStream decodes a text/event-stream body on a reader goroutine.
type eventStream struct {
	body      io.ReadCloser
	events    chan schema.StreamEvent
	done      chan struct{}
	closeOnce sync.Once
	log       pslog.Logger

	errMu sync.Mutex
	err   error
}

func newEventStream(ctx context.Context, body io.ReadCloser) *eventStream {
	s := &eventStream{
		body:   body,
		events: make(chan schema.StreamEvent, 64),
		done:   make(chan struct{}),
		log:    pslog.Ctx(ctx),
	}
	go s.read()
	return s
}

func (s *eventStream) read() {
	defer close(s.events)
	var (
		name string
		data []string
	)
	dispatch := func() bool {
		defer func() {
			name = ""
			data = data[:0]
		}()
		if len(data) == 0 && name == "" {
			return true
		}
		kind := schema.StreamEventKind(name)
		if name == "" {
			kind = schema.StreamStdout
		}
		if !kind.Known() {
			s.log.Debug("sandbox stream skipped unknown event", "event", name)
			return true
		}
		event := schema.StreamEvent{Kind: kind, Payload: strings.Join(data, "\n")}
		select {
		case s.events <- event:
			return true
		case <-s.done:
			return false
		}
	}
	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if !dispatch() {
				return
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		case "id", "retry":
		default:
			s.log.Trace("sandbox stream skipped field", "field", field)
		}
	}
	if err := scanner.Err(); err != nil {
		s.setErr(err)
		return
	}
	// A trailing event without its blank line still counts.
	dispatch()
}

func (s *eventStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Next returns the next decoded event, io.EOF once the body is exhausted.
func (s *eventStream) Next(ctx context.Context) (schema.StreamEvent, error) {
	select {
	case <-ctx.Done():
		return schema.StreamEvent{}, ctx.Err()
	case event, ok := <-s.events:
		if ok {
			return event, nil
		}
		s.errMu.Lock()
		err := s.err
		s.errMu.Unlock()
		select {
		case <-s.done:
			return schema.StreamEvent{}, io.ErrClosedPipe
		default:
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return schema.StreamEvent{}, err
		}
		return schema.StreamEvent{}, io.EOF
	}
}

// Close releases the response body and stops the reader.
func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.body.Close()
	})
	return err
}
