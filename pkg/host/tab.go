package host

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/autoact/pkg/content"
	"github.com/entrhq/autoact/pkg/logging"
)

// driver is the part of playwright.Page a tab uses.
type driver interface {
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
	Title() (string, error)
	Content() (string, error)
	URL() string
}

// tab adapts one browser document to content.Page. Listeners are fed by
// the exposed event binding.
type tab struct {
	driver driver
	logger *logging.Logger

	mu        sync.Mutex
	listeners map[content.EventKind]map[int]func(content.PointerEvent)
	nextID    int

	script  *content.Script
	overlay *overlay
}

func newTab(d driver, logger *logging.Logger) *tab {
	return &tab{
		driver:    d,
		logger:    logger,
		listeners: make(map[content.EventKind]map[int]func(content.PointerEvent)),
	}
}

// Title returns the document title, falling back to the page HTML.
func (t *tab) Title() string {
	title, err := t.driver.Title()
	if err == nil && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}

	raw, err := t.driver.Content()
	if err != nil {
		t.logger.Debugf("failed to read page content: %v", err)
		return ""
	}
	return pageTitle(raw)
}

// Selection queries the live selection in the page.
func (t *tab) Selection() content.Selection {
	var sel content.Selection

	result, err := t.driver.Evaluate("() => window.__autoact ? window.__autoact.selection() : ''")
	if err != nil {
		t.logger.Debugf("selection query failed: %v", err)
		return sel
	}
	raw, ok := result.(string)
	if !ok || raw == "" {
		return sel
	}
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		t.logger.Debugf("malformed selection: %v", err)
	}
	return sel
}

// ClearSelection removes all ranges from the page selection.
func (t *tab) ClearSelection() {
	if _, err := t.driver.Evaluate("() => window.__autoact && window.__autoact.clearSelection()"); err != nil {
		t.logger.Debugf("clear selection failed: %v", err)
	}
}

// AddEventListener registers fn for events of kind.
func (t *tab) AddEventListener(kind content.EventKind, fn func(content.PointerEvent)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	if t.listeners[kind] == nil {
		t.listeners[kind] = make(map[int]func(content.PointerEvent))
	}
	t.listeners[kind][id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners[kind], id)
	}
}

// dispatch decodes an event forwarded by the init script and hands it to
// the listeners for its kind.
func (t *tab) dispatch(raw string) error {
	var ev content.PointerEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return fmt.Errorf("failed to decode page event: %w", err)
	}

	t.mu.Lock()
	fns := make([]func(content.PointerEvent), 0, len(t.listeners[ev.Kind]))
	for _, fn := range t.listeners[ev.Kind] {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

func (t *tab) listenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.listeners {
		n += len(m)
	}
	return n
}
