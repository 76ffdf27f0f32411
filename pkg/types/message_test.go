package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRequiresResponse(t *testing.T) {
	tests := []struct {
		action   Action
		expected bool
	}{
		{ActionGetContexts, true},
		{ActionGetSidebarState, true},
		{ActionAddContext, true},
		{ActionUpdateContext, true},
		{ActionRefetchContexts, false},
		{ActionScrappedPageData, false},
		{ActionOpenSidePanel, false},
		{ActionCloseSidePanel, false},
		{ActionSidePanelContent, false},
		{ActionSidePanelClosed, false},
		{ActionRunAction, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.action.RequiresResponse())
			assert.True(t, tt.action.Known())
		})
	}

	assert.False(t, Action("bogus").Known())
}

func TestConstructorsSetRequiresResponse(t *testing.T) {
	assert.True(t, NewGetContextsMessage().RequiresResponse)
	assert.True(t, NewGetSidebarStateMessage().RequiresResponse)
	assert.False(t, NewRefetchContextsMessage().RequiresResponse)
	assert.False(t, NewCloseSidePanelMessage().RequiresResponse)
	assert.Empty(t, NewGetContextsMessage().Payload)
}

func TestOpenSidePanelPayload(t *testing.T) {
	msg := NewOpenSidePanelMessage(ContentAddNewContext, true)
	assert.Equal(t, ActionOpenSidePanel, msg.Action)
	assert.JSONEq(t, `{"contentType":"addNewContext","notifySidePanel":true}`, string(msg.Payload))

	var payload OpenSidePanelPayload
	require.NoError(t, msg.DecodePayload(&payload))
	assert.Equal(t, ContentAddNewContext, payload.ContentType)
	assert.True(t, payload.NotifySidePanel)
}

func TestScrappedPageDataPayload(t *testing.T) {
	sel := PageSelection{Title: "Doc", Description: "picked text", Anchor: Point{X: 10, Y: 24}}
	msg := NewScrappedPageDataMessage(sel)

	var payload ScrappedPageDataPayload
	require.NoError(t, msg.DecodePayload(&payload))
	assert.Equal(t, sel, payload.PageData)
}

func TestDecodePayloadWithoutPayload(t *testing.T) {
	var payload OpenSidePanelPayload
	err := NewCloseSidePanelMessage().DecodePayload(&payload)
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestResponseValidate(t *testing.T) {
	data, err := NewDataResponse([]ContextItem{})
	require.NoError(t, err)
	assert.NoError(t, data.Validate())

	assert.NoError(t, NewErrorResponse("boom").Validate())

	assert.ErrorIs(t, (&Response{}).Validate(), ErrMalformedResponse)

	both := NewErrorResponse("boom")
	both.Data = []byte(`[]`)
	assert.ErrorIs(t, both.Validate(), ErrMalformedResponse)
}

func TestResponseDecode(t *testing.T) {
	items := []ContextItem{{ID: "a", Title: "A", Description: "first"}}
	resp, err := NewDataResponse(items)
	require.NoError(t, err)

	var got []ContextItem
	require.NoError(t, resp.Decode(&got))
	assert.Equal(t, items, got)
}

func TestResponseDecodeRemoteError(t *testing.T) {
	resp := NewErrorResponse("store unavailable")

	var got []ContextItem
	err := resp.Decode(&got)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "store unavailable", remote.Message)
	assert.Nil(t, got)
}
