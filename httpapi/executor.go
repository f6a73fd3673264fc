package httpapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/internal/diagnostics"
	"pkt.systems/sandpit/schema"
)

// EmitFunc delivers one stream event to the client. An error means the
// client is gone and the execution should stop.
type EmitFunc func(schema.StreamEvent) error

// Executor compiles and runs a program. It reports program output, the
// stats line and timeouts through emit; the caller ends the stream.
type Executor interface {
	Execute(ctx context.Context, req schema.ExecuteRequest, emit EmitFunc) error
}

// GoExecutor builds the program with the go toolchain and runs the binary in
// its own process group.
type GoExecutor struct {
	Binary  string
	WorkDir string
	Timeout time.Duration
}

type outputLine struct {
	kind schema.StreamEventKind
	text string
}

// Execute implements Executor.
func (e GoExecutor) Execute(ctx context.Context, req schema.ExecuteRequest, emit EmitFunc) error {
	log := pslog.Ctx(ctx)
	if e.WorkDir != "" {
		if err := os.MkdirAll(e.WorkDir, 0o755); err != nil {
			return err
		}
	}
	dir, err := os.MkdirTemp(e.WorkDir, "run-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()
	if err := os.WriteFile(filepath.Join(dir, "prog.go"), []byte(req.Code), 0o600); err != nil {
		return err
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := e.Binary
	if binary == "" {
		binary = "go"
	}
	exe := "prog"
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}
	build := exec.CommandContext(runCtx, binary, "build", "-o", exe, "prog.go")
	build.Dir = dir
	started := time.Now()
	output, err := build.CombinedOutput()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Info("sandbox build timed out", "duration_ms", time.Since(started).Milliseconds())
			return emit(schema.StreamEvent{Kind: schema.StreamTimeout})
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("build: %w", err)
		}
		log.Info("sandbox build failed", "exit_code", exitErr.ExitCode(), "duration_ms", time.Since(started).Milliseconds())
		text := strings.TrimSpace(cleanOutput(string(output), dir))
		if text == "" {
			text = exitErr.Error()
		}
		return emit(schema.StreamEvent{Kind: schema.StreamStderr, Payload: text})
	}
	log.Debug("sandbox build ok", "duration_ms", time.Since(started).Milliseconds(), "version", string(req.Version))
	return e.run(runCtx, filepath.Join(dir, exe), dir, emit, log)
}

// cleanOutput strips toolchain noise and the per-run directory so locations
// read as prog.go:<line>.
func cleanOutput(text, dir string) string {
	text = diagnostics.Sanitize(text)
	text = strings.ReplaceAll(text, dir+string(filepath.Separator), "")
	return strings.ReplaceAll(text, "./prog.go:", "prog.go:")
}

func (e GoExecutor) run(ctx context.Context, path, dir string, emit EmitFunc, log pslog.Logger) error {
	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	lines := make(chan outputLine, 128)
	var wg sync.WaitGroup
	wg.Add(2)
	go readOutput(&wg, stdout, schema.StreamStdout, "", lines)
	go readOutput(&wg, stderr, schema.StreamStderr, dir, lines)
	go func() {
		wg.Wait()
		close(lines)
	}()

	var emitErr error
	stdoutLines, stderrLines := 0, 0
	for line := range lines {
		if emitErr != nil {
			continue
		}
		if line.kind == schema.StreamStdout {
			stdoutLines++
		} else {
			stderrLines++
		}
		if err := emit(schema.StreamEvent{Kind: line.kind, Payload: line.text}); err != nil {
			emitErr = err
			_ = cmd.Cancel()
		}
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(started)
	if emitErr != nil {
		log.Info("sandbox run abandoned", "err", emitErr)
		return emitErr
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Info("sandbox run timed out", "duration_ms", elapsed.Milliseconds())
		return emit(schema.StreamEvent{Kind: schema.StreamTimeout})
	}
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return waitErr
		}
		exitCode = exitErr.ExitCode()
		if err := emit(schema.StreamEvent{Kind: schema.StreamStderr, Payload: fmt.Sprintf("exit status %d", exitCode)}); err != nil {
			return err
		}
	}
	log.Info(
		"sandbox run finished",
		"exit_code", exitCode,
		"stdout_lines", stdoutLines,
		"stderr_lines", stderrLines,
		"duration_ms", elapsed.Milliseconds(),
	)
	return emit(schema.StreamEvent{Kind: schema.StreamStderr, Payload: statsLine(elapsed, maxRSSKB(cmd.ProcessState))})
}

func statsLine(elapsed time.Duration, maxRSS int64) string {
	return fmt.Sprintf("%s%dms;%d", schema.StatsPrefix, elapsed.Milliseconds(), maxRSS)
}

func readOutput(wg *sync.WaitGroup, reader io.Reader, kind schema.StreamEventKind, dir string, out chan<- outputLine) {
	defer wg.Done()
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		text := scanner.Text()
		if kind == schema.StreamStderr {
			text = cleanOutput(text, dir)
		}
		out <- outputLine{kind: kind, text: text}
	}
}
