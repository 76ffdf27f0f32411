package content

import (
	"errors"

	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// ErrNoContexts is returned when running while the mirror is empty.
var ErrNoContexts = errors.New("no contexts available")

// ToolbarState is the floating add button. While Visible, Anchor and
// Selection describe the most recent non-empty capture.
type ToolbarState struct {
	Visible   bool                `json:"visible"`
	Anchor    types.Point         `json:"anchor"`
	Selection types.PageSelection `json:"selection"`
}

// Toolbar owns the floating add button and the side buttons. It must
// only be used on the content loop.
type Toolbar struct {
	endpoint   *bus.Endpoint
	page       Page
	mirror     *ContextMirror
	negotiator *PanelNegotiator
	modal      *RunModal
	logger     *logging.Logger

	state ToolbarState
}

func newToolbar(endpoint *bus.Endpoint, page Page, mirror *ContextMirror, negotiator *PanelNegotiator, modal *RunModal, logger *logging.Logger) *Toolbar {
	return &Toolbar{
		endpoint:   endpoint,
		page:       page,
		mirror:     mirror,
		negotiator: negotiator,
		modal:      modal,
		logger:     logger,
	}
}

// State returns the toolbar state.
func (t *Toolbar) State() ToolbarState {
	return t.state
}

// Apply updates the toolbar from a capture signal.
func (t *Toolbar) Apply(ev CaptureEvent) {
	switch ev.Signal {
	case SignalSelectionAvailable:
		t.state = ToolbarState{
			Visible:   true,
			Anchor:    ev.Selection.Anchor,
			Selection: ev.Selection,
		}
	case SignalNoSelection, SignalDismiss:
		t.hide()
	}
}

// RunEnabled reports whether the run button is usable.
func (t *Toolbar) RunEnabled() bool {
	return t.mirror.Len() > 0
}

// ConfirmAdd hands the captured selection to the background and opens
// the panel's add form. It does nothing while the toolbar is hidden.
func (t *Toolbar) ConfirmAdd() {
	if !t.state.Visible {
		t.logger.Debugf("add ignored: no capture")
		return
	}

	sel := t.state.Selection
	t.endpoint.Notify(bus.Background, types.NewScrappedPageDataMessage(sel))
	t.negotiator.OpenAddNewContext()
	t.clearSelection()
}

// OpenRun opens the run modal.
func (t *Toolbar) OpenRun() error {
	if !t.RunEnabled() {
		return ErrNoContexts
	}
	t.modal.open()
	t.clearSelection()
	return nil
}

// OpenKnowledgebase toggles the panel's contexts view.
func (t *Toolbar) OpenKnowledgebase() {
	t.negotiator.OpenKnowledgebase()
	t.clearSelection()
}

func (t *Toolbar) clearSelection() {
	t.page.ClearSelection()
	t.hide()
}

func (t *Toolbar) hide() {
	t.state = ToolbarState{}
}
