// Package content is the script mounted on every matched page. It owns
// selection capture, the floating toolbar, the run modal and a mirror of
// the knowledge base, and talks to the background only over the bus.
//
// Every component runs on the script's bus endpoint loop. The exported
// Script methods may be called from any goroutine; they hand their work
// to the loop.
package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// DefaultControlID is the element id of the floating add button.
const DefaultControlID = "btnAddToKnowledgebase"

// DefaultAnchorOffset is the vertical gap between a selection and the button.
const DefaultAnchorOffset = 4

// Config tunes a content script.
type Config struct {
	// ControlID is the id of the floating add button; mousedown inside it
	// does not dismiss the toolbar.
	ControlID string

	// AnchorOffset is added to the anchor's Y coordinate.
	AnchorOffset float64

	// DiscardStale drops getContexts responses older than the latest refresh.
	DiscardStale bool
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		ControlID:    DefaultControlID,
		AnchorOffset: DefaultAnchorOffset,
		DiscardStale: true,
	}
}

// View is everything a renderer needs to draw the script's UI.
type View struct {
	Toolbar    ToolbarState        `json:"toolbar"`
	RunEnabled bool                `json:"runEnabled"`
	Contexts   []types.ContextItem `json:"contexts"`
	Selected   string              `json:"selected"`
	Modal      ModalState          `json:"modal"`
}

// Renderer draws a View. It is called on the content loop after state
// changes and must not block. Changes made by tasks that are already
// queued are folded into a single call.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

// Render calls f(v).
func (f RendererFunc) Render(v View) { f(v) }

// Option configures a Script.
type Option func(*Script)

// WithLogger sets the script's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Script) {
		s.logger = logger
	}
}

// WithRenderer sets the script's renderer.
func WithRenderer(r Renderer) Option {
	return func(s *Script) {
		s.renderer = r
	}
}

// Script is one mounted content script.
type Script struct {
	endpoint *bus.Endpoint
	page     Page
	cfg      Config
	logger   *logging.Logger
	renderer Renderer

	capture    *SelectionCapture
	toolbar    *Toolbar
	mirror     *ContextMirror
	negotiator *PanelNegotiator
	modal      *RunModal

	renderPending bool

	mu       sync.Mutex
	mounted  bool
	removers []func()
	unlisten func()
}

// New connects a new content endpoint to b for page. The script does
// nothing until Mount.
func New(b *bus.Bus, page Page, cfg Config, opts ...Option) (*Script, error) {
	if cfg.ControlID == "" {
		cfg.ControlID = DefaultControlID
	}

	s := &Script{
		page:     page,
		cfg:      cfg,
		logger:   logging.Nop(),
		renderer: RendererFunc(func(View) {}),
	}
	for _, opt := range opts {
		opt(s)
	}

	endpoint, err := b.Connect(bus.NewContentName())
	if err != nil {
		return nil, fmt.Errorf("failed to connect content script: %w", err)
	}
	s.endpoint = endpoint
	s.logger = s.logger.With(endpoint.Name())

	s.mirror = newContextMirror(endpoint, cfg.DiscardStale, s.render, s.logger)
	s.negotiator = newPanelNegotiator(endpoint, s.logger)
	s.modal = newRunModal(endpoint, s.mirror)
	s.toolbar = newToolbar(endpoint, page, s.mirror, s.negotiator, s.modal, s.logger)
	s.capture = newSelectionCapture(page, cfg.ControlID, cfg.AnchorOffset, endpoint.Post, s.onCapture, s.logger)

	return s, nil
}

// Name returns the script's bus endpoint name.
func (s *Script) Name() string {
	return s.endpoint.Name()
}

// Mount subscribes to page events and bus pushes and performs the
// initial mirror refresh.
func (s *Script) Mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mounted {
		return nil
	}

	unlisten, err := s.endpoint.Listen(s.handle)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", s.endpoint.Name(), err)
	}
	s.unlisten = unlisten

	for _, kind := range []EventKind{EventMouseUp, EventMouseDown, EventClick} {
		s.removers = append(s.removers, s.page.AddEventListener(kind, s.dispatch))
	}

	s.endpoint.Post(func() {
		s.mirror.Refresh()
		s.render()
	})
	s.mounted = true
	s.logger.Infof("mounted")
	return nil
}

// Unmount removes every subscription and disconnects from the bus.
func (s *Script) Unmount() {
	s.mu.Lock()
	removers := s.removers
	s.removers = nil
	unlisten := s.unlisten
	s.unlisten = nil
	wasMounted := s.mounted
	s.mounted = false
	s.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	if unlisten != nil {
		unlisten()
	}
	s.endpoint.Close()
	<-s.endpoint.Done()
	if wasMounted {
		s.logger.Infof("unmounted")
	}
}

// Dispatch feeds a page event to the script. Hosts that do not go
// through Page.AddEventListener may call it directly.
func (s *Script) Dispatch(ev PointerEvent) {
	s.dispatch(ev)
}

// ConfirmAdd is the floating add button.
func (s *Script) ConfirmAdd(ctx context.Context) error {
	return s.exec(ctx, func() error {
		s.toolbar.ConfirmAdd()
		s.render()
		return nil
	})
}

// OpenRun is the run side button.
func (s *Script) OpenRun(ctx context.Context) error {
	return s.exec(ctx, func() error {
		defer s.render()
		return s.toolbar.OpenRun()
	})
}

// OpenKnowledgebase is the knowledge-base side button.
func (s *Script) OpenKnowledgebase(ctx context.Context) error {
	return s.exec(ctx, func() error {
		s.toolbar.OpenKnowledgebase()
		s.render()
		return nil
	})
}

// Refresh re-fetches the mirrored context list.
func (s *Script) Refresh(ctx context.Context) error {
	return s.exec(ctx, func() error {
		s.mirror.Refresh()
		return nil
	})
}

// Modal runs fn against the run modal on the content loop.
func (s *Script) Modal(ctx context.Context, fn func(*RunModal) error) error {
	return s.exec(ctx, func() error {
		defer s.render()
		return fn(s.modal)
	})
}

// Snapshot returns the current View.
func (s *Script) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := s.exec(ctx, func() error {
		v = s.view()
		return nil
	})
	return v, err
}

// exec runs fn on the content loop and waits for it.
func (s *Script) exec(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	ok := s.endpoint.Post(func() {
		done <- fn()
	})
	if !ok {
		return bus.ErrClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Script) dispatch(ev PointerEvent) {
	s.endpoint.Post(func() {
		s.capture.Handle(ev)
	})
}

func (s *Script) onCapture(ev CaptureEvent) {
	s.logger.Debugf("capture %s", ev.Signal)
	s.toolbar.Apply(ev)
	s.render()
}

// handle is the durable listener for background pushes.
func (s *Script) handle(req *bus.Request) {
	switch req.Message.Action {
	case types.ActionRefetchContexts:
		s.mirror.Refresh()
	default:
		s.logger.Debugf("ignoring %s from %s", req.Message.Action, req.Sender)
	}
}

func (s *Script) view() View {
	v := View{
		Toolbar:    s.toolbar.State(),
		RunEnabled: s.toolbar.RunEnabled(),
		Contexts:   s.mirror.Items(),
		Modal:      s.modal.State(),
	}
	if item, ok := s.mirror.Selected(); ok {
		v.Selected = item.ID
	}
	return v
}

// render schedules a redraw behind the tasks already queued, so that a
// selection dismissed by the very next event is never drawn.
func (s *Script) render() {
	if s.renderPending {
		return
	}
	s.renderPending = s.endpoint.Post(func() {
		s.renderPending = false
		s.renderer.Render(s.view())
	})
}
