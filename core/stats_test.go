package core

import "testing"

func TestParseStats(t *testing.T) {
	cases := []struct {
		line string
		want Stats
		ok   bool
	}{
		{line: "STATS:12ms;4096", want: Stats{Time: "12ms", Memory: "4096"}, ok: true},
		{line: "  STATS:1.5s;128\n", want: Stats{Time: "1.5s", Memory: "128"}, ok: true},
		{line: "STATS:12ms", ok: false},
		{line: "stats:12ms;4096", ok: false},
		{line: "panic: boom", ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseStats(tc.line)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%q: expected %+v ok=%t, got %+v ok=%t", tc.line, tc.want, tc.ok, got, ok)
		}
	}
}

func TestStatsString(t *testing.T) {
	got := Stats{Time: "12ms", Memory: "4096"}.String()
	if got != "Time: 12ms | Memory: 4096kb" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestSplitStatsKeepsOtherLines(t *testing.T) {
	stats, rest, ok := splitStats("exit status 2\nSTATS:3ms;900")
	if !ok {
		t.Fatalf("expected stats line")
	}
	if stats.Time != "3ms" || stats.Memory != "900" {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if rest != "exit status 2" {
		t.Fatalf("unexpected remainder %q", rest)
	}
	if _, rest, ok := splitStats("no stats here"); ok || rest != "no stats here" {
		t.Fatalf("expected payload untouched, got %q ok=%t", rest, ok)
	}
}
