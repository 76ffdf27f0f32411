package content

import (
	"fmt"

	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// ContextMirror is the content script's read-only copy of the knowledge
// base. The list is only ever replaced wholesale by a getContexts
// response. It must only be used on the content loop.
type ContextMirror struct {
	endpoint     *bus.Endpoint
	logger       *logging.Logger
	discardStale bool
	onChange     func()

	items    []types.ContextItem
	selected string
	latest   uint64
}

func newContextMirror(endpoint *bus.Endpoint, discardStale bool, onChange func(), logger *logging.Logger) *ContextMirror {
	return &ContextMirror{
		endpoint:     endpoint,
		logger:       logger,
		discardStale: discardStale,
		onChange:     onChange,
	}
}

// Refresh requests the current list from the background. The reply is
// applied on the content loop when it arrives.
func (m *ContextMirror) Refresh() {
	var seq uint64
	seq = m.endpoint.Send(bus.Background, types.NewGetContextsMessage(), func(resp *types.Response, err error) {
		m.resolve(seq, resp, err)
	})
	m.latest = seq
}

func (m *ContextMirror) resolve(seq uint64, resp *types.Response, err error) {
	if err != nil {
		m.logger.Warnf("getContexts (seq %d) failed: %v", seq, err)
		return
	}
	if m.discardStale && seq < m.latest {
		m.logger.Debugf("discarding stale getContexts response (seq %d, latest %d)", seq, m.latest)
		return
	}

	var items []types.ContextItem
	if err := resp.Decode(&items); err != nil {
		m.logger.Warnf("getContexts (seq %d) returned no update: %v", seq, err)
		return
	}

	m.replace(items, seq)
}

func (m *ContextMirror) replace(items []types.ContextItem, seq uint64) {
	m.items = append([]types.ContextItem{}, items...)
	if _, ok := m.find(m.selected); !ok {
		m.selected = ""
		if len(m.items) > 0 {
			m.selected = m.items[0].ID
		}
	}
	m.logger.Debugf("mirror replaced with %d contexts (seq %d)", len(m.items), seq)

	if m.onChange != nil {
		m.onChange()
	}
}

// Items returns a copy of the mirrored list.
func (m *ContextMirror) Items() []types.ContextItem {
	return append([]types.ContextItem{}, m.items...)
}

// Len returns the number of mirrored items.
func (m *ContextMirror) Len() int {
	return len(m.items)
}

// Selected returns the selected item.
func (m *ContextMirror) Selected() (types.ContextItem, bool) {
	return m.find(m.selected)
}

// Select makes the item with the given id the selected one.
func (m *ContextMirror) Select(id string) error {
	if _, ok := m.find(id); !ok {
		return fmt.Errorf("no context with id %q", id)
	}
	m.selected = id
	return nil
}

func (m *ContextMirror) find(id string) (types.ContextItem, bool) {
	if id == "" {
		return types.ContextItem{}, false
	}
	for _, item := range m.items {
		if item.ID == id {
			return item, true
		}
	}
	return types.ContextItem{}, false
}
