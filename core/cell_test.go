package core

import "testing"

func TestCellWatchersSeeStoredValue(t *testing.T) {
	cell := NewCell("old")
	var seen []string
	cell.Watch(func(value string) {
		if cell.Load() != value {
			t.Fatalf("watcher observed %q while cell holds %q", value, cell.Load())
		}
		seen = append(seen, value)
	})
	cell.Store("new")
	if prev := cell.Swap("newer"); prev != "new" {
		t.Fatalf("expected previous value, got %q", prev)
	}
	if cell.Load() != "newer" {
		t.Fatalf("unexpected value %q", cell.Load())
	}
	if len(seen) != 2 || seen[0] != "new" || seen[1] != "newer" {
		t.Fatalf("unexpected watcher calls %v", seen)
	}
}

func TestCellIgnoresNilWatcher(t *testing.T) {
	cell := NewCell(1)
	cell.Watch(nil)
	cell.Store(2)
	if cell.Load() != 2 {
		t.Fatalf("expected 2, got %d", cell.Load())
	}
}
