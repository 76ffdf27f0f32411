package content

import (
	"strings"

	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// Signal is what SelectionCapture reports to the toolbar.
type Signal int

const (
	SignalSelectionAvailable Signal = iota
	SignalNoSelection
	SignalDismiss
)

func (s Signal) String() string {
	switch s {
	case SignalSelectionAvailable:
		return "SelectionAvailable"
	case SignalNoSelection:
		return "NoSelection"
	case SignalDismiss:
		return "Dismiss"
	default:
		return "Unknown"
	}
}

// CaptureEvent is one output of SelectionCapture. Selection is only set
// for SignalSelectionAvailable.
type CaptureEvent struct {
	Signal    Signal
	Selection types.PageSelection
}

// SelectionCapture turns page pointer events into capture signals. All
// of its handlers run on the content loop.
type SelectionCapture struct {
	page      Page
	controlID string
	offset    float64
	later     func(func()) bool
	emit      func(CaptureEvent)
	logger    *logging.Logger
}

func newSelectionCapture(page Page, controlID string, offset float64, later func(func()) bool, emit func(CaptureEvent), logger *logging.Logger) *SelectionCapture {
	return &SelectionCapture{
		page:      page,
		controlID: controlID,
		offset:    offset,
		later:     later,
		emit:      emit,
		logger:    logger,
	}
}

// Handle dispatches ev to the matching handler.
func (c *SelectionCapture) Handle(ev PointerEvent) {
	switch ev.Kind {
	case EventMouseUp:
		c.onMouseUp(ev)
	case EventMouseDown:
		c.onMouseDown(ev)
	case EventClick:
		c.onClick()
	}
}

func (c *SelectionCapture) onMouseUp(ev PointerEvent) {
	sel := c.page.Selection()
	if ev.Selection != nil {
		sel = *ev.Selection
	}

	text := strings.TrimSpace(sel.Text)
	if text == "" {
		c.emit(CaptureEvent{Signal: SignalNoSelection})
		return
	}
	if sel.RangeCount == 0 {
		return
	}

	c.emit(CaptureEvent{
		Signal: SignalSelectionAvailable,
		Selection: types.PageSelection{
			Title:       c.page.Title(),
			Description: text,
			Anchor: types.Point{
				X: sel.FirstRange.Left + sel.Scroll.X,
				Y: sel.FirstRange.Bottom + sel.Scroll.Y + c.offset,
			},
		},
	})
}

func (c *SelectionCapture) onMouseDown(ev PointerEvent) {
	if ev.Within(c.controlID) {
		return
	}
	c.emit(CaptureEvent{Signal: SignalDismiss})
}

// onClick re-checks the selection after the current task so that the
// host has already collapsed it.
func (c *SelectionCapture) onClick() {
	ok := c.later(func() {
		if strings.TrimSpace(c.page.Selection().Text) == "" {
			c.emit(CaptureEvent{Signal: SignalDismiss})
		}
	})
	if !ok {
		c.logger.Debugf("click check dropped: loop closed")
	}
}
