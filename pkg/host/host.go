// Package host runs content scripts inside a real browser. It launches
// Chromium through Playwright, forwards page events into the scripts, and
// draws their UI as an in-page overlay.
package host

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/config"
	"github.com/entrhq/autoact/pkg/content"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

//go:embed inject.js
var injectJS string

const (
	eventBinding   = "autoactEvent"
	overlayBinding = "autoactOverlay"

	// workQueueSize bounds navigation work waiting for the host loop.
	workQueueSize = 64
)

// Options configures the browser.
type Options struct {
	Headless bool
	StartURL string
	Viewport config.Viewport
	Script   content.Config
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// Host owns the browser and one content script per matching document.
type Host struct {
	bus     *bus.Bus
	matcher *config.URLMatcher
	opts    Options
	logger  *logging.Logger

	work         chan func()
	disconnected chan struct{}
	disconnect   sync.Once

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	tabs    map[driver]*tab
	watched map[playwright.Page]bool
	closed  bool
}

// New creates a host. Nothing is launched until Run.
func New(b *bus.Bus, matcher *config.URLMatcher, opts Options, hostOpts ...Option) *Host {
	h := &Host{
		bus:          b,
		matcher:      matcher,
		opts:         opts,
		logger:       logging.Nop(),
		work:         make(chan func(), workQueueSize),
		disconnected: make(chan struct{}),
		tabs:         make(map[driver]*tab),
		watched:      make(map[playwright.Page]bool),
	}
	for _, opt := range hostOpts {
		opt(h)
	}
	return h
}

// Run launches the browser, opens the start page and serves navigation
// work until ctx is done or the browser goes away.
func (h *Host) Run(ctx context.Context) error {
	if err := h.start(); err != nil {
		return err
	}
	defer h.Close()

	for {
		select {
		case fn := <-h.work:
			fn()
		case <-h.disconnected:
			h.logger.Infof("browser closed")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Host) start() error {
	// Install and run Playwright with output discarded so it does not
	// interfere with the panel TUI.
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(h.opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	browser.OnDisconnected(func(playwright.Browser) {
		h.disconnect.Do(func() { close(h.disconnected) })
	})

	contextOpts := playwright.BrowserNewContextOptions{}
	if h.opts.Viewport.Width > 0 && h.opts.Viewport.Height > 0 {
		contextOpts.Viewport = &playwright.Size{
			Width:  h.opts.Viewport.Width,
			Height: h.opts.Viewport.Height,
		}
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	h.mu.Lock()
	h.pw, h.browser, h.context = pw, browser, bctx
	h.mu.Unlock()

	if err := h.install(bctx); err != nil {
		h.Close()
		return err
	}

	page, err := bctx.NewPage()
	if err != nil {
		h.Close()
		return fmt.Errorf("failed to create page: %w", err)
	}
	h.watch(page)

	if h.opts.StartURL != "" {
		if _, err := page.Goto(h.opts.StartURL); err != nil {
			h.logger.Warnf("failed to open %s: %v", h.opts.StartURL, err)
		}
	}

	h.logger.Infof("browser started (headless=%t)", h.opts.Headless)
	return nil
}

// install wires the init script and bindings into every page of bctx.
func (h *Host) install(bctx playwright.BrowserContext) error {
	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(injectJS)}); err != nil {
		return fmt.Errorf("failed to add init script: %w", err)
	}

	err := bctx.ExposeBinding(eventBinding, func(source *playwright.BindingSource, args ...interface{}) interface{} {
		if raw, ok := firstString(args); ok {
			h.handleEvent(source.Page, raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose %s: %w", eventBinding, err)
	}

	err = bctx.ExposeBinding(overlayBinding, func(source *playwright.BindingSource, args ...interface{}) interface{} {
		if raw, ok := firstString(args); ok {
			// Overlay actions wait on the content loop, which may itself be
			// waiting on this dispatcher.
			go h.handleOverlay(source.Page, raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose %s: %w", overlayBinding, err)
	}

	bctx.OnPage(h.watch)
	return nil
}

// watch follows main-frame navigations of page.
func (h *Host) watch(page playwright.Page) {
	h.mu.Lock()
	if h.watched[page] {
		h.mu.Unlock()
		return
	}
	h.watched[page] = true
	h.mu.Unlock()

	page.OnFrameNavigated(func(frame playwright.Frame) {
		if frame != page.MainFrame() {
			return
		}
		url := frame.URL()
		h.enqueue(func() { h.navigated(page, url) })
	})
	page.OnClose(func(p playwright.Page) {
		h.enqueue(func() {
			h.detach(p)
			h.mu.Lock()
			delete(h.watched, p)
			h.mu.Unlock()
		})
	})
}

func (h *Host) enqueue(fn func()) {
	select {
	case h.work <- fn:
	default:
		h.logger.Warnf("host work queue full, dropping navigation update")
	}
}

// navigated replaces the script of d's previous document with one for
// url, when url is allowed.
func (h *Host) navigated(d driver, url string) {
	h.detach(d)

	if !h.matcher.Allows(url) {
		h.logger.Debugf("skipping %s", url)
		return
	}
	if err := h.attach(d); err != nil {
		h.logger.Errorf("failed to attach to %s: %v", url, err)
		return
	}
	h.logger.Debugf("attached to %s", url)
}

func (h *Host) attach(d driver) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return bus.ErrClosed
	}
	h.mu.Unlock()

	t := newTab(d, h.logger)
	t.overlay = newOverlay(d, h.opts.Script.ControlID, h.logger)

	script, err := content.New(h.bus, t, h.opts.Script,
		content.WithLogger(h.logger),
		content.WithRenderer(t.overlay))
	if err != nil {
		t.overlay.Stop()
		return err
	}
	if err := script.Mount(); err != nil {
		script.Unmount()
		t.overlay.Stop()
		return err
	}
	t.script = script

	h.mu.Lock()
	h.tabs[d] = t
	h.mu.Unlock()
	return nil
}

func (h *Host) detach(d driver) {
	h.mu.Lock()
	t, ok := h.tabs[d]
	delete(h.tabs, d)
	h.mu.Unlock()

	if !ok {
		return
	}
	t.script.Unmount()
	t.overlay.Stop()
}

func (h *Host) tabFor(d driver) (*tab, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[d]
	return t, ok
}

func (h *Host) handleEvent(d driver, raw string) {
	t, ok := h.tabFor(d)
	if !ok {
		return
	}
	if err := t.dispatch(raw); err != nil {
		h.logger.Debugf("%v", err)
	}
}

func (h *Host) handleOverlay(d driver, raw string) {
	t, ok := h.tabFor(d)
	if !ok {
		return
	}
	action, err := decodeAction(raw)
	if err != nil {
		h.logger.Debugf("%v", err)
		return
	}
	if err := perform(context.Background(), t.script, action); err != nil {
		h.logger.Debugf("overlay %s: %v", action.Action, err)
	}
}

// Attached returns the number of documents with a mounted script.
func (h *Host) Attached() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tabs)
}

// Close unmounts every script and shuts the browser down.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	tabs := make([]driver, 0, len(h.tabs))
	for d := range h.tabs {
		tabs = append(tabs, d)
	}
	pw, browser, bctx := h.pw, h.browser, h.context
	h.mu.Unlock()

	for _, d := range tabs {
		h.detach(d)
	}

	if bctx != nil {
		_ = bctx.Close() // Ignore errors, continue cleanup
	}
	if browser != nil {
		_ = browser.Close() // Ignore errors, continue cleanup
	}
	if pw != nil {
		if err := pw.Stop(); err != nil {
			h.logger.Warnf("failed to stop playwright: %v", err)
		}
	}
}

func firstString(args []interface{}) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}
