package background

import (
	"fmt"

	"github.com/entrhq/autoact/pkg/types"
)

// PanelMachine holds the authoritative panel state: Closed, or Open with
// a content type. The zero value is Closed showing the contexts list.
type PanelMachine struct {
	state types.PanelState
}

// State returns the current state. A closed panel still reports the
// content type it last showed.
func (m *PanelMachine) State() types.PanelState {
	if m.state.ContentType == "" {
		return types.PanelState{IsOpen: m.state.IsOpen, ContentType: types.ContentContexts}
	}
	return m.state
}

// Open opens the panel on ct, or switches an open panel to ct. It
// reports whether the state changed.
func (m *PanelMachine) Open(ct types.ContentType) (bool, error) {
	if !ct.Valid() {
		return false, fmt.Errorf("unknown content type %q", ct)
	}
	changed := !m.state.IsOpen || m.state.ContentType != ct
	m.state = types.PanelState{IsOpen: true, ContentType: ct}
	return changed, nil
}

// Close closes the panel and reports whether it was open.
func (m *PanelMachine) Close() bool {
	wasOpen := m.state.IsOpen
	m.state.IsOpen = false
	return wasOpen
}
