package content

import (
	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// PanelCommand is the message the negotiator sends after learning the
// panel state.
type PanelCommand int

const (
	CommandOpenContexts PanelCommand = iota
	CommandClosePanel
)

func (c PanelCommand) String() string {
	if c == CommandClosePanel {
		return "closeSidePanel"
	}
	return "openSidePanel(contexts)"
}

// DecideKnowledgebase maps the panel state to the knowledge-base button's
// effect: a closed panel opens on contexts, a panel showing the add form
// switches to contexts, and a panel showing contexts closes.
func DecideKnowledgebase(state types.SidebarState) PanelCommand {
	if state.IsSidePanelOpen && state.ContentType != types.ContentAddNewContext {
		return CommandClosePanel
	}
	return CommandOpenContexts
}

// PanelNegotiator drives the shared panel from a content script. The
// background holds the real state; the negotiator only sees snapshots.
type PanelNegotiator struct {
	endpoint *bus.Endpoint
	logger   *logging.Logger
}

func newPanelNegotiator(endpoint *bus.Endpoint, logger *logging.Logger) *PanelNegotiator {
	return &PanelNegotiator{endpoint: endpoint, logger: logger}
}

// OpenKnowledgebase toggles the contexts view of the panel. A failed
// state query leaves the panel untouched.
func (n *PanelNegotiator) OpenKnowledgebase() {
	n.endpoint.Send(bus.Background, types.NewGetSidebarStateMessage(), func(resp *types.Response, err error) {
		if err != nil {
			n.logger.Warnf("getSidebarState failed: %v", err)
			return
		}

		var state types.SidebarState
		if err := resp.Decode(&state); err != nil {
			n.logger.Warnf("getSidebarState returned no state: %v", err)
			return
		}

		cmd := DecideKnowledgebase(state)
		n.logger.Debugf("panel %+v: %s", state, cmd)
		switch cmd {
		case CommandClosePanel:
			n.endpoint.Notify(bus.Background, types.NewCloseSidePanelMessage())
		default:
			n.open(types.ContentContexts)
		}
	})
}

// OpenAddNewContext opens the panel on the add form, or switches to it.
func (n *PanelNegotiator) OpenAddNewContext() {
	n.open(types.ContentAddNewContext)
}

func (n *PanelNegotiator) open(ct types.ContentType) {
	n.endpoint.Notify(bus.Background, types.NewOpenSidePanelMessage(ct, true))
}
