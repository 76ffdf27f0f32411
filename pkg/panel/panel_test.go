package panel

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/autoact/pkg/background"
	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/knowledgebase"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// wiredBackend connects a busBackend to a real coordinator and collects
// the tea messages it produces.
func wiredBackend(t *testing.T) (*busBackend, *background.Coordinator, *bus.Bus, chan tea.Msg) {
	t.Helper()

	b := bus.New()
	coord, err := background.New(b, knowledgebase.NewMemoryStore(items...))
	require.NoError(t, err)

	endpoint, err := b.Connect(bus.Panel)
	require.NoError(t, err)

	msgs := make(chan tea.Msg, 16)
	be := &busBackend{endpoint: endpoint, send: func(msg tea.Msg) { msgs <- msg }}
	_, err = endpoint.Listen(be.handle)
	require.NoError(t, err)

	t.Cleanup(func() {
		coord.Close()
		b.Close()
		<-endpoint.Done()
	})
	return be, coord, b, msgs
}

func next[T tea.Msg](t *testing.T, msgs chan tea.Msg) T {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-msgs:
			if typed, ok := msg.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("no %T received", zero)
			return zero
		}
	}
}

func TestBusBackendFetch(t *testing.T) {
	be, _, _, msgs := wiredBackend(t)

	be.FetchContexts()
	got := next[contextsMsg](t, msgs)
	assert.Equal(t, items, got.items)
}

func TestBusBackendAddBroadcastsRefetch(t *testing.T) {
	be, _, _, msgs := wiredBackend(t)

	be.AddContext(types.ContextFormValues{Title: "Warranty", Description: "One year"})
	saved := next[savedMsg](t, msgs)
	assert.True(t, saved.added)
	assert.Equal(t, "Warranty", saved.item.Title)

	next[refetchMsg](t, msgs)
}

func TestBusBackendUpdateError(t *testing.T) {
	be, _, _, msgs := wiredBackend(t)

	be.UpdateContext(types.ContextItem{ID: "missing", Title: "t", Description: "d"})
	failed := next[backendErrMsg](t, msgs)
	assert.Equal(t, types.ActionUpdateContext, failed.action)
	assert.Error(t, failed.err)
}

func TestBusBackendFollowsPanelState(t *testing.T) {
	be, coord, b, msgs := wiredBackend(t)

	content, err := b.Connect(bus.NewContentName())
	require.NoError(t, err)
	defer content.Close()

	sel := types.PageSelection{Title: "Docs", Description: "selected"}
	content.Notify(bus.Background, types.NewScrappedPageDataMessage(sel))
	content.Notify(bus.Background, types.NewOpenSidePanelMessage(types.ContentAddNewContext, true))

	assert.Equal(t, sel, next[pageDataMsg](t, msgs).data)
	pushed := next[sidePanelContentMsg](t, msgs).content
	assert.True(t, pushed.IsSidePanelOpen)
	assert.Equal(t, types.ContentAddNewContext, pushed.ContentType)

	be.PanelClosed()
	require.Eventually(t, func() bool {
		s, err := coord.PanelState(context.Background())
		return err == nil && !s.IsOpen
	}, time.Second, 5*time.Millisecond)
}
