// Package diagnostics turns free-text compiler, formatter and runtime error
// output into line-anchored diagnostics and editor markers.
package diagnostics

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"pkt.systems/sandpit/schema"
)

var (
	// sourceRefPattern matches build and runtime references such as
	// "prog.go:12:5: undefined: x" or "\t/tmp/x/main.go:12 +0x1d". The
	// first group is the path, the second the line.
	sourceRefPattern = regexp.MustCompile(`([^\s:"'()]*\.go):(\d+)(?::\d+)?`)
	// lineFirstPattern matches formatter output where the first field is the
	// line, such as "3:1: expected 'package'" or "line 3: syntax error".
	lineFirstPattern = regexp.MustCompile(`(?m)(?:^|\bline\s+)(\d+):`)

	tempPathPattern = regexp.MustCompile(`(?:/var|/tmp)[^\s:]*\.go:`)
)

const commandLineArguments = "# command-line-arguments"

// Lines returns the 1-based line numbers referenced by text, ordered by first
// appearance with duplicates collapsed. Text without a recognizable locator
// yields an empty result.
func Lines(text string) []int {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seen := make(map[int]struct{})
	var lines []int
	add := func(value string) {
		line, err := strconv.Atoi(value)
		if err != nil || line < 1 {
			return
		}
		if _, ok := seen[line]; ok {
			return
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	for _, match := range sourceRefPattern.FindAllStringSubmatch(text, -1) {
		if userSource(match[1]) {
			add(match[2])
		}
	}
	for _, match := range lineFirstPattern.FindAllStringSubmatch(text, -1) {
		add(match[1])
	}
	return lines
}

// userSource reports whether path can refer to the submitted program. Bare
// and relative names qualify, as do absolute paths under a temp directory
// where the program is built. Other absolute paths are toolchain or module
// sources, such as frames of a panic inside the standard library.
func userSource(path string) bool {
	if !isAbsolute(path) {
		return true
	}
	path = filepath.ToSlash(path)
	for _, dir := range tempDirs() {
		if strings.HasPrefix(path, dir) {
			return true
		}
	}
	return false
}

func isAbsolute(path string) bool {
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) {
		return true
	}
	return len(path) > 2 && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
}

func tempDirs() []string {
	dirs := []string{"/tmp/", "/var/folders/", "/private/var/folders/"}
	if tmp := filepath.ToSlash(os.TempDir()); tmp != "" {
		dirs = append(dirs, strings.TrimSuffix(tmp, "/")+"/")
	}
	return dirs
}

// Extract returns one error diagnostic per referenced line.
func Extract(text string) []schema.Diagnostic {
	lines := Lines(text)
	if len(lines) == 0 {
		return nil
	}
	out := make([]schema.Diagnostic, 0, len(lines))
	for _, line := range lines {
		out = append(out, schema.Diagnostic{Line: line, Severity: schema.SeverityError})
	}
	return out
}

// Merge appends the diagnostics in next that are not already present in
// current, keeping one diagnostic per line.
func Merge(current, next []schema.Diagnostic) []schema.Diagnostic {
	if len(next) == 0 {
		return current
	}
	seen := make(map[int]struct{}, len(current))
	for _, diag := range current {
		seen[diag.Line] = struct{}{}
	}
	out := append([]schema.Diagnostic(nil), current...)
	for _, diag := range next {
		if _, ok := seen[diag.Line]; ok {
			continue
		}
		seen[diag.Line] = struct{}{}
		out = append(out, diag)
	}
	return out
}

// Markers converts diagnostics into full-line editor markers with 0-based rows.
func Markers(diags []schema.Diagnostic) []schema.Marker {
	if len(diags) == 0 {
		return nil
	}
	out := make([]schema.Marker, 0, len(diags))
	for _, diag := range diags {
		if diag.Line < 1 {
			continue
		}
		row := diag.Line - 1
		out = append(out, schema.Marker{
			StartRow: row,
			EndRow:   row,
			StartCol: 0,
			EndCol:   1,
			Class:    schema.MarkerClass,
			Type:     schema.MarkerTypeFullLine,
		})
	}
	return out
}

// Sanitize removes toolchain noise from stderr before it reaches the client:
// the "# command-line-arguments" header and absolute temp paths of the
// compiled program, which are rewritten to "prog.go:".
func Sanitize(stderr string) string {
	stderr = strings.ReplaceAll(stderr, commandLineArguments+"\n", "")
	stderr = strings.ReplaceAll(stderr, commandLineArguments, "")
	return tempPathPattern.ReplaceAllString(stderr, "prog.go:")
}
