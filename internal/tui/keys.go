package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"pkt.systems/sandpit/schema"
)

// keyPress converts a terminal key into the host-neutral form the
// controller resolves shortcuts from.
func keyPress(msg tea.KeyMsg) schema.KeyPress {
	press := schema.KeyPress{Alt: msg.Alt}
	name := strings.TrimPrefix(msg.String(), "alt+")
	for {
		if rest, ok := strings.CutPrefix(name, "ctrl+"); ok {
			press.Ctrl = true
			name = rest
			continue
		}
		if rest, ok := strings.CutPrefix(name, "shift+"); ok {
			press.Shift = true
			name = rest
			continue
		}
		break
	}
	press.Key = strings.ToLower(name)
	return press
}
