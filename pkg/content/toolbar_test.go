package content

import (
	"context"
	"testing"
	"time"

	"github.com/entrhq/autoact/pkg/background"
	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/knowledgebase"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideKnowledgebase(t *testing.T) {
	tests := []struct {
		name  string
		state types.SidebarState
		want  PanelCommand
	}{
		{name: "closed", state: types.SidebarState{ContentType: types.ContentContexts}, want: CommandOpenContexts},
		{name: "closed on add form", state: types.SidebarState{ContentType: types.ContentAddNewContext}, want: CommandOpenContexts},
		{name: "open on add form", state: types.SidebarState{ContentType: types.ContentAddNewContext, IsSidePanelOpen: true}, want: CommandOpenContexts},
		{name: "open on contexts", state: types.SidebarState{ContentType: types.ContentContexts, IsSidePanelOpen: true}, want: CommandClosePanel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideKnowledgebase(tt.state))
		})
	}
}

// liveFixture wires a script to a real background coordinator.
type liveFixture struct {
	bus    *bus.Bus
	coord  *background.Coordinator
	page   *MemoryPage
	script *Script
}

func newLiveFixture(t *testing.T, items ...types.ContextItem) *liveFixture {
	t.Helper()

	b := bus.New()
	coord, err := background.New(b, knowledgebase.NewMemoryStore(items...))
	require.NoError(t, err)

	page := NewMemoryPage("Returns policy")
	s, err := New(b, page, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Mount())

	t.Cleanup(func() {
		s.Unmount()
		coord.Close()
		b.Close()
	})
	return &liveFixture{bus: b, coord: coord, page: page, script: s}
}

func (f *liveFixture) waitPanel(t *testing.T, want types.PanelState) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := f.coord.PanelState(context.Background())
		return err == nil && got == want
	}, time.Second, 5*time.Millisecond)
}

func TestKnowledgebaseButtonToggles(t *testing.T) {
	f := newLiveFixture(t, ctxA)
	ctx := context.Background()

	require.NoError(t, f.script.OpenKnowledgebase(ctx))
	f.waitPanel(t, types.PanelState{IsOpen: true, ContentType: types.ContentContexts})

	require.NoError(t, f.script.OpenKnowledgebase(ctx))
	f.waitPanel(t, types.PanelState{IsOpen: false, ContentType: types.ContentContexts})
}

func TestConfirmAddOverridesContextsView(t *testing.T) {
	f := newLiveFixture(t, ctxA)
	ctx := context.Background()

	require.NoError(t, f.script.OpenKnowledgebase(ctx))
	f.waitPanel(t, types.PanelState{IsOpen: true, ContentType: types.ContentContexts})

	f.page.Select(*selection("Returns accepted for 30 days"))
	f.page.Dispatch(mouseUp(nil))
	require.Eventually(t, func() bool {
		v, err := f.script.Snapshot(ctx)
		return err == nil && v.Toolbar.Visible
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.script.ConfirmAdd(ctx))
	f.waitPanel(t, types.PanelState{IsOpen: true, ContentType: types.ContentAddNewContext})

	v, err := f.script.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, v.Toolbar.Visible)
	assert.Empty(t, f.page.Selection().Text)

	// The knowledge-base button now switches back to contexts.
	require.NoError(t, f.script.OpenKnowledgebase(ctx))
	f.waitPanel(t, types.PanelState{IsOpen: true, ContentType: types.ContentContexts})
}

func TestConfirmAddMessageOrder(t *testing.T) {
	f := newFixture(t, DefaultConfig(), ctxA)
	f.mount(t)
	f.waitContexts(t, 1)

	f.page.Dispatch(mouseUp(selection("captured text")))
	f.settle(t)
	require.NoError(t, f.script.ConfirmAdd(context.Background()))

	require.Eventually(t, func() bool { return f.bg.count(types.ActionOpenSidePanel) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []types.Action{
		types.ActionGetContexts,
		types.ActionScrappedPageData,
		types.ActionOpenSidePanel,
	}, f.bg.actions())

	var scraped types.ScrappedPageDataPayload
	require.NoError(t, f.bg.message(types.ActionScrappedPageData).DecodePayload(&scraped))
	assert.Equal(t, "captured text", scraped.PageData.Description)
	assert.Equal(t, "Shipping FAQ", scraped.PageData.Title)

	var open types.OpenSidePanelPayload
	require.NoError(t, f.bg.message(types.ActionOpenSidePanel).DecodePayload(&open))
	assert.Equal(t, types.OpenSidePanelPayload{ContentType: types.ContentAddNewContext, NotifySidePanel: true}, open)

	assert.Equal(t, 1, f.page.ClearCount())
	assert.False(t, f.view(t).Toolbar.Visible)
}

func TestConfirmAddWithoutCaptureSendsNothing(t *testing.T) {
	f := newFixture(t, DefaultConfig(), ctxA)
	f.mount(t)
	f.waitContexts(t, 1)

	require.NoError(t, f.script.ConfirmAdd(context.Background()))
	f.settle(t)
	assert.Equal(t, []types.Action{types.ActionGetContexts}, f.bg.actions())
}

func TestKnowledgebaseQueryFailureIsNoop(t *testing.T) {
	f := newFixture(t, DefaultConfig(), ctxA)
	f.mount(t)
	f.waitContexts(t, 1)

	f.bg.ep.Close()
	<-f.bg.ep.Done()

	f.page.Dispatch(mouseUp(selection("text")))
	require.NoError(t, f.script.OpenKnowledgebase(context.Background()))
	f.settle(t)

	// The selection is still consumed; nothing else happens.
	assert.False(t, f.view(t).Toolbar.Visible)
	assert.Equal(t, 1, f.page.ClearCount())
}

func TestRunDisabledWhileMirrorEmpty(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.mount(t)
	f.settle(t)

	v := f.view(t)
	assert.False(t, v.RunEnabled)
	assert.ErrorIs(t, f.script.OpenRun(context.Background()), ErrNoContexts)
	assert.False(t, f.view(t).Modal.Open)

	f.bg.setItems(ctxA)
	require.NoError(t, f.script.Refresh(context.Background()))
	f.waitContexts(t, 1)
	assert.True(t, f.view(t).RunEnabled)
	require.NoError(t, f.script.OpenRun(context.Background()))
	assert.True(t, f.view(t).Modal.Open)
}
