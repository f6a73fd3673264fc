package httpapi

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/sandpit/schema"
)

func TestCleanOutput(t *testing.T) {
	dir := filepath.Join("/home/user/.sandpit/state/runs", "run-123")
	input := "# command-line-arguments\n./prog.go:4:2: undefined: x\n" + dir + "/prog.go:9 +0x1d"
	got := cleanOutput(input, dir)
	want := "prog.go:4:2: undefined: x\nprog.go:9 +0x1d"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestStatsLine(t *testing.T) {
	if got := statsLine(1500*time.Millisecond, 2048); got != "STATS:1500ms;2048" {
		t.Fatalf("unexpected stats line %q", got)
	}
}

func TestGoExecutorRunsProgram(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a program with the go toolchain")
	}
	binary, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}
	executor := GoExecutor{Binary: binary, WorkDir: t.TempDir(), Timeout: 2 * time.Minute}
	var events []schema.StreamEvent
	emit := func(event schema.StreamEvent) error {
		events = append(events, event)
		return nil
	}
	code := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"
	if err := executor.Execute(context.Background(), schema.ExecuteRequest{Code: code}, emit); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected stdout and stats, got %+v", events)
	}
	if events[0] != (schema.StreamEvent{Kind: schema.StreamStdout, Payload: "hi"}) {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Kind != schema.StreamStderr || !strings.HasPrefix(events[1].Payload, schema.StatsPrefix) {
		t.Fatalf("expected stats line, got %+v", events[1])
	}
}

func TestGoExecutorReportsBuildErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a program with the go toolchain")
	}
	binary, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}
	executor := GoExecutor{Binary: binary, WorkDir: t.TempDir(), Timeout: 2 * time.Minute}
	var events []schema.StreamEvent
	emit := func(event schema.StreamEvent) error {
		events = append(events, event)
		return nil
	}
	code := "package main\n\nfunc main() {\n\tundefinedName()\n}\n"
	if err := executor.Execute(context.Background(), schema.ExecuteRequest{Code: code}, emit); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(events) != 1 || events[0].Kind != schema.StreamStderr {
		t.Fatalf("expected one stderr event, got %+v", events)
	}
	if !strings.Contains(events[0].Payload, "prog.go:4") || strings.Contains(events[0].Payload, "command-line-arguments") {
		t.Fatalf("unexpected build output %q", events[0].Payload)
	}
}
