package content

import (
	"sync"
)

// MemoryPage is an in-process Page for tests and headless use. Events
// are dispatched synchronously on the caller's goroutine.
type MemoryPage struct {
	mu        sync.Mutex
	title     string
	selection Selection
	cleared   int
	nextID    int
	listeners map[EventKind]map[int]func(PointerEvent)
}

// NewMemoryPage creates a page with the given title and no selection.
func NewMemoryPage(title string) *MemoryPage {
	return &MemoryPage{
		title:     title,
		listeners: make(map[EventKind]map[int]func(PointerEvent)),
	}
}

// Title returns the document title.
func (p *MemoryPage) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title
}

// SetTitle changes the document title.
func (p *MemoryPage) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// Selection returns the live selection.
func (p *MemoryPage) Selection() Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selection
}

// Select replaces the live selection.
func (p *MemoryPage) Select(sel Selection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = sel
}

// ClearSelection collapses the selection, keeping the scroll offset.
func (p *MemoryPage) ClearSelection() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = Selection{Scroll: p.selection.Scroll}
	p.cleared++
}

// ClearCount returns how many times ClearSelection was called.
func (p *MemoryPage) ClearCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cleared
}

// AddEventListener subscribes fn to events of kind.
func (p *MemoryPage) AddEventListener(kind EventKind, fn func(PointerEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listeners[kind] == nil {
		p.listeners[kind] = make(map[int]func(PointerEvent))
	}
	id := p.nextID
	p.nextID++
	p.listeners[kind][id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners[kind], id)
	}
}

// ListenerCount returns the number of active subscriptions.
func (p *MemoryPage) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, byID := range p.listeners {
		n += len(byID)
	}
	return n
}

// Dispatch delivers ev to the subscribers of its kind.
func (p *MemoryPage) Dispatch(ev PointerEvent) {
	p.mu.Lock()
	fns := make([]func(PointerEvent), 0, len(p.listeners[ev.Kind]))
	for _, fn := range p.listeners[ev.Kind] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
