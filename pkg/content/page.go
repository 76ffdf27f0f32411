package content

import (
	"github.com/entrhq/autoact/pkg/types"
)

// EventKind names a page-level pointer event.
type EventKind string

const (
	EventMouseUp   EventKind = "mouseup"
	EventMouseDown EventKind = "mousedown"
	EventClick     EventKind = "click"
)

// Selection is a snapshot of the page's text selection.
type Selection struct {
	// Text is the selection's string value, untrimmed.
	Text string `json:"text"`

	// RangeCount is the number of ranges in the selection.
	RangeCount int `json:"rangeCount"`

	// FirstRange is the viewport-relative bounding rect of range 0.
	FirstRange types.Rect `json:"firstRange"`

	// Scroll is the window scroll offset when the snapshot was taken.
	Scroll types.Point `json:"scroll"`
}

// PointerEvent is a page event as seen by the content script.
type PointerEvent struct {
	Kind EventKind `json:"kind"`

	// Path holds the ids of the event's composed path, target first.
	// Elements without an id contribute an empty string.
	Path []string `json:"path"`

	// Selection is the selection at dispatch time, when the host could
	// capture it. Nil means the live selection must be queried.
	Selection *Selection `json:"selection,omitempty"`
}

// Within reports whether the event originated at the element with the
// given id or inside it.
func (e PointerEvent) Within(id string) bool {
	if id == "" {
		return false
	}
	for _, p := range e.Path {
		if p == id {
			return true
		}
	}
	return false
}

// Page is the host document a content script is mounted on. Listener
// callbacks may run on any goroutine.
type Page interface {
	// Title returns the document title.
	Title() string

	// Selection returns the live selection.
	Selection() Selection

	// ClearSelection removes all selection ranges.
	ClearSelection()

	// AddEventListener subscribes fn to page-level events of kind and
	// returns a function that removes the subscription.
	AddEventListener(kind EventKind, fn func(PointerEvent)) (remove func())
}
