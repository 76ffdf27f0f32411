package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	ctxA = types.ContextItem{ID: "a", Title: "A", Description: "first"}
	ctxB = types.ContextItem{ID: "b", Title: "B", Description: "second"}
	ctxC = types.ContextItem{ID: "c", Title: "C", Description: "third"}
)

// fakeBackground answers content requests from a fixed list. With hold
// set, getContexts requests are parked on held instead of answered.
type fakeBackground struct {
	ep   *bus.Endpoint
	held chan *bus.Request

	mu       sync.Mutex
	items    []types.ContextItem
	state    types.SidebarState
	hold     bool
	received []*types.Message
	failGet  bool
}

func newFakeBackground(t *testing.T, b *bus.Bus, items ...types.ContextItem) *fakeBackground {
	t.Helper()
	ep, err := b.Connect(bus.Background)
	require.NoError(t, err)

	fb := &fakeBackground{
		ep:    ep,
		held:  make(chan *bus.Request, 16),
		items: items,
		state: types.SidebarState{ContentType: types.ContentContexts},
	}
	_, err = ep.Listen(fb.handle)
	require.NoError(t, err)
	return fb
}

func (fb *fakeBackground) handle(req *bus.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.received = append(fb.received, req.Message)

	switch req.Message.Action {
	case types.ActionGetContexts:
		switch {
		case fb.hold:
			fb.held <- req
		case fb.failGet:
			req.RespondError(errStoreUnavailable)
		default:
			req.RespondData(fb.items)
		}
	case types.ActionGetSidebarState:
		req.RespondData(fb.state)
	case types.ActionOpenSidePanel:
		var p types.OpenSidePanelPayload
		if req.Message.DecodePayload(&p) == nil {
			fb.state = types.SidebarState{ContentType: p.ContentType, IsSidePanelOpen: true}
		}
	case types.ActionCloseSidePanel:
		fb.state.IsSidePanelOpen = false
	}
}

var errStoreUnavailable = errors.New("store unavailable")

func (fb *fakeBackground) setItems(items ...types.ContextItem) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.items = items
}

func (fb *fakeBackground) setHold(hold bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.hold = hold
}

func (fb *fakeBackground) actions() []types.Action {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]types.Action, 0, len(fb.received))
	for _, m := range fb.received {
		out = append(out, m.Action)
	}
	return out
}

func (fb *fakeBackground) count(action types.Action) int {
	n := 0
	for _, a := range fb.actions() {
		if a == action {
			n++
		}
	}
	return n
}

func (fb *fakeBackground) message(action types.Action) *types.Message {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, m := range fb.received {
		if m.Action == action {
			return m
		}
	}
	return nil
}

func (fb *fakeBackground) nextHeld(t *testing.T) *bus.Request {
	t.Helper()
	select {
	case req := <-fb.held:
		return req
	case <-time.After(time.Second):
		t.Fatal("no getContexts request arrived")
		return nil
	}
}

// renders records every View handed to the renderer.
type renders struct {
	mu    sync.Mutex
	views []View
}

func (r *renders) Render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *renders) all() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.views...)
}

type fixture struct {
	bus     *bus.Bus
	bg      *fakeBackground
	page    *MemoryPage
	script  *Script
	renders *renders
}

func newFixture(t *testing.T, cfg Config, items ...types.ContextItem) *fixture {
	t.Helper()

	b := bus.New(bus.WithRequestTimeout(time.Second))
	bg := newFakeBackground(t, b, items...)
	page := NewMemoryPage("Shipping FAQ")
	r := &renders{}

	s, err := New(b, page, cfg, WithRenderer(r))
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Unmount()
		b.Close()
		<-bg.ep.Done()
	})
	return &fixture{bus: b, bg: bg, page: page, script: s, renders: r}
}

func (f *fixture) mount(t *testing.T) {
	t.Helper()
	require.NoError(t, f.script.Mount())
}

func (f *fixture) view(t *testing.T) View {
	t.Helper()
	v, err := f.script.Snapshot(context.Background())
	require.NoError(t, err)
	return v
}

// settle waits until tasks queued by earlier tasks have also run.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		f.view(t)
	}
}

// block parks the content loop until the returned function is called.
func (f *fixture) block(t *testing.T) func() {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, f.script.endpoint.Post(func() {
		close(started)
		<-release
	}))
	<-started
	return func() { close(release) }
}

func (f *fixture) waitContexts(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, err := f.script.Snapshot(context.Background())
		return err == nil && len(v.Contexts) == n
	}, time.Second, 5*time.Millisecond)
}

func selection(text string) *Selection {
	return &Selection{
		Text:       text,
		RangeCount: 1,
		FirstRange: types.Rect{Left: 100, Top: 180, Right: 300, Bottom: 200, Width: 200, Height: 20},
		Scroll:     types.Point{X: 0, Y: 500},
	}
}

func mouseUp(sel *Selection) PointerEvent {
	return PointerEvent{Kind: EventMouseUp, Path: []string{"", "main"}, Selection: sel}
}

func mouseDown(path ...string) PointerEvent {
	return PointerEvent{Kind: EventMouseDown, Path: path}
}
