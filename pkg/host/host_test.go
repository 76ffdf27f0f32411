package host

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/autoact/pkg/background"
	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/config"
	"github.com/entrhq/autoact/pkg/content"
	"github.com/entrhq/autoact/pkg/knowledgebase"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver stands in for a Playwright page.
type fakeDriver struct {
	mu        sync.Mutex
	title     string
	html      string
	selection string
	evalErr   error
	gate      chan struct{}
	renders   []renderPayload
	cleared   int
}

func (f *fakeDriver) Evaluate(expression string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	err, gate := f.evalErr, f.gate
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(expression, "render"):
		if gate != nil {
			<-gate
		}
		var p renderPayload
		if err := json.Unmarshal([]byte(args[0].(string)), &p); err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.renders = append(f.renders, p)
		f.mu.Unlock()
		return nil, nil
	case strings.Contains(expression, "clearSelection"):
		f.mu.Lock()
		f.cleared++
		f.selection = ""
		f.mu.Unlock()
		return nil, nil
	case strings.Contains(expression, "selection"):
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.selection, nil
	}
	return nil, nil
}

func (f *fakeDriver) Title() (string, error) { return f.title, nil }
func (f *fakeDriver) Content() (string, error) {
	if f.html == "" {
		return "", errors.New("no document")
	}
	return f.html, nil
}
func (f *fakeDriver) URL() string { return "https://example.com" }

func (f *fakeDriver) lastRender() (renderPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.renders) == 0 {
		return renderPayload{}, false
	}
	return f.renders[len(f.renders)-1], true
}

func (f *fakeDriver) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

type harness struct {
	host  *Host
	coord *background.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	b := bus.New()
	coord, err := background.New(b, knowledgebase.NewMemoryStore(
		types.ContextItem{ID: "a", Title: "Shipping", Description: "Ships in 2 days"},
	))
	require.NoError(t, err)

	matcher, err := config.NewURLMatcher([]string{"https://*"}, []string{"about:*"})
	require.NoError(t, err)

	h := New(b, matcher, Options{Script: content.DefaultConfig()})
	t.Cleanup(func() {
		h.Close()
		coord.Close()
		b.Close()
	})
	return &harness{host: h, coord: coord}
}

func waitRender(t *testing.T, d *fakeDriver, cond func(renderPayload) bool) renderPayload {
	t.Helper()
	var got renderPayload
	require.Eventually(t, func() bool {
		p, ok := d.lastRender()
		if ok && cond(p) {
			got = p
			return true
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return got
}

func TestNavigationAttachesMatchingDocuments(t *testing.T) {
	hs := newHarness(t)
	d := &fakeDriver{title: "Docs"}

	hs.host.navigated(d, "https://example.com/docs")
	assert.Equal(t, 1, hs.host.Attached())

	p := waitRender(t, d, func(p renderPayload) bool { return len(p.View.Contexts) == 1 })
	assert.Equal(t, content.DefaultControlID, p.ControlID)
	assert.Equal(t, types.RunModes(), p.Modes)
	assert.True(t, p.View.RunEnabled)

	// A new document replaces the script.
	first, _ := hs.host.tabFor(d)
	hs.host.navigated(d, "https://example.com/other")
	second, ok := hs.host.tabFor(d)
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.Zero(t, first.listenerCount())

	hs.host.navigated(d, "about:blank")
	assert.Zero(t, hs.host.Attached())
}

func TestAttachAfterCloseFails(t *testing.T) {
	hs := newHarness(t)
	hs.host.Close()

	hs.host.navigated(&fakeDriver{}, "https://example.com")
	assert.Zero(t, hs.host.Attached())
}

func TestSelectionFlowThroughBindings(t *testing.T) {
	hs := newHarness(t)
	d := &fakeDriver{title: "Docs", selection: `{"text":"hello","rangeCount":1}`}
	hs.host.navigated(d, "https://example.com")

	hs.host.handleEvent(d, `{"kind":"mouseup","path":["p",""],"selection":{"text":" hello ","rangeCount":1,"firstRange":{"left":10,"bottom":20},"scroll":{"x":0,"y":100}}}`)

	p := waitRender(t, d, func(p renderPayload) bool { return p.View.Toolbar.Visible })
	assert.Equal(t, types.Point{X: 10, Y: 124}, p.View.Toolbar.Anchor)
	assert.Equal(t, types.PageSelection{Title: "Docs", Description: "hello", Anchor: types.Point{X: 10, Y: 124}}, p.View.Toolbar.Selection)

	hs.host.handleOverlay(d, `{"action":"add"}`)
	waitRender(t, d, func(p renderPayload) bool { return !p.View.Toolbar.Visible })
	assert.Equal(t, 1, d.clearCount())

	require.Eventually(t, func() bool {
		s, err := hs.coord.PanelState(context.Background())
		return err == nil && s.IsOpen && s.ContentType == types.ContentAddNewContext
	}, time.Second, 5*time.Millisecond)
}

func TestMouseDownOnControlKeepsToolbar(t *testing.T) {
	hs := newHarness(t)
	d := &fakeDriver{title: "Docs", selection: `{"text":"hello","rangeCount":1}`}
	hs.host.navigated(d, "https://example.com")

	hs.host.handleEvent(d, `{"kind":"mouseup","path":[],"selection":{"text":"hello","rangeCount":1}}`)
	waitRender(t, d, func(p renderPayload) bool { return p.View.Toolbar.Visible })

	hs.host.handleEvent(d, `{"kind":"mousedown","path":["`+content.DefaultControlID+`","autoact-overlay"]}`)
	hs.host.handleEvent(d, `{"kind":"mousedown","path":["elsewhere"]}`)
	waitRender(t, d, func(p renderPayload) bool { return !p.View.Toolbar.Visible })
}

func TestRunModalThroughOverlay(t *testing.T) {
	hs := newHarness(t)
	d := &fakeDriver{title: "Docs"}
	hs.host.navigated(d, "https://example.com")
	waitRender(t, d, func(p renderPayload) bool { return p.View.RunEnabled })

	hs.host.handleOverlay(d, `{"action":"run"}`)
	p := waitRender(t, d, func(p renderPayload) bool { return p.View.Modal.Open })
	assert.Equal(t, "a", p.View.Modal.ContextID)
	assert.Equal(t, types.RunModeFillForm, p.View.Modal.Mode)

	hs.host.handleOverlay(d, `{"action":"mode","value":"Chat"}`)
	waitRender(t, d, func(p renderPayload) bool { return p.View.Modal.Mode == types.RunModeChat })

	// A blank prompt keeps the modal open.
	hs.host.handleOverlay(d, `{"action":"submit","value":"  "}`)
	hs.host.handleOverlay(d, `{"action":"submit","value":"fill the form"}`)
	waitRender(t, d, func(p renderPayload) bool { return !p.View.Modal.Open })
}

func TestEventsForUnknownDocumentsAreDropped(t *testing.T) {
	hs := newHarness(t)
	hs.host.handleEvent(&fakeDriver{}, `{"kind":"mouseup"}`)
	hs.host.handleOverlay(&fakeDriver{}, `{"action":"add"}`)
	assert.Zero(t, hs.host.Attached())
}

func TestFirstString(t *testing.T) {
	s, ok := firstString([]interface{}{"x", 1})
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = firstString(nil)
	assert.False(t, ok)

	_, ok = firstString([]interface{}{42})
	assert.False(t, ok)
}
