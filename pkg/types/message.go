package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action is the tag carried by every message on the bus.
type Action string

const (
	ActionGetContexts      Action = "getContexts"      // ActionGetContexts requests the full knowledge-base list.
	ActionRefetchContexts  Action = "refetchContexts"  // ActionRefetchContexts is pushed by the background when the list changed.
	ActionScrappedPageData Action = "scrappedPageData" // ActionScrappedPageData hands a captured selection to the background or panel.
	ActionOpenSidePanel    Action = "openSidePanel"    // ActionOpenSidePanel asks the background to open or switch the panel.
	ActionGetSidebarState  Action = "getSidebarState"  // ActionGetSidebarState queries the authoritative panel state.
	ActionCloseSidePanel   Action = "closeSidePanel"   // ActionCloseSidePanel asks the background to close the panel.
	ActionAddContext       Action = "addContext"       // ActionAddContext creates a new context item.
	ActionUpdateContext    Action = "updateContext"    // ActionUpdateContext edits an existing context item.
	ActionSidePanelContent Action = "sidePanelContent" // ActionSidePanelContent is pushed to the panel when its state changes.
	ActionSidePanelClosed  Action = "sidePanelClosed"  // ActionSidePanelClosed reports that the user closed the panel.
	ActionRunAction        Action = "runAction"        // ActionRunAction hands a run-modal submission to the background.
)

// RequiresResponse reports whether the catalog defines a response for the action.
func (a Action) RequiresResponse() bool {
	switch a {
	case ActionGetContexts, ActionGetSidebarState, ActionAddContext, ActionUpdateContext:
		return true
	default:
		return false
	}
}

// Known reports whether the action is part of the message catalog.
func (a Action) Known() bool {
	switch a {
	case ActionGetContexts, ActionRefetchContexts, ActionScrappedPageData,
		ActionOpenSidePanel, ActionGetSidebarState, ActionCloseSidePanel,
		ActionAddContext, ActionUpdateContext, ActionSidePanelContent,
		ActionSidePanelClosed, ActionRunAction:
		return true
	default:
		return false
	}
}

// Message is the wire unit of the bus.
type Message struct {
	// Action identifies the message in the catalog.
	Action Action `json:"action"`

	// Payload is the action-specific body, encoded as JSON so that no
	// structure is shared between contexts.
	Payload json.RawMessage `json:"payload,omitempty"`

	// RequiresResponse is set when the sender waits for a Response.
	RequiresResponse bool `json:"requiresResponse"`
}

// Response answers a Message with RequiresResponse set.
// Exactly one of Data and Error is set.
type Response struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *string         `json:"error"`
}

var (
	// ErrNoPayload is returned when decoding a message that carries no payload.
	ErrNoPayload = errors.New("message has no payload")

	// ErrMalformedResponse is returned when a response sets both or neither of data and error.
	ErrMalformedResponse = errors.New("response must set exactly one of data and error")
)

// RemoteError is a background-reported error carried in Response.Error.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "background error: " + e.Message
}

func newMessage(action Action, payload any) *Message {
	msg := &Message{
		Action:           action,
		RequiresResponse: action.RequiresResponse(),
	}
	if payload != nil {
		// Payload types in this package always marshal.
		raw, _ := json.Marshal(payload)
		msg.Payload = raw
	}
	return msg
}

// NewGetContextsMessage creates a getContexts request.
func NewGetContextsMessage() *Message {
	return newMessage(ActionGetContexts, nil)
}

// NewRefetchContextsMessage creates a refetchContexts push.
func NewRefetchContextsMessage() *Message {
	return newMessage(ActionRefetchContexts, nil)
}

// NewScrappedPageDataMessage creates a scrappedPageData notification.
func NewScrappedPageDataMessage(sel PageSelection) *Message {
	return newMessage(ActionScrappedPageData, ScrappedPageDataPayload{PageData: sel})
}

// NewOpenSidePanelMessage creates an openSidePanel notification.
func NewOpenSidePanelMessage(contentType ContentType, notifySidePanel bool) *Message {
	return newMessage(ActionOpenSidePanel, OpenSidePanelPayload{
		ContentType:     contentType,
		NotifySidePanel: notifySidePanel,
	})
}

// NewGetSidebarStateMessage creates a getSidebarState request.
func NewGetSidebarStateMessage() *Message {
	return newMessage(ActionGetSidebarState, nil)
}

// NewCloseSidePanelMessage creates a closeSidePanel notification.
func NewCloseSidePanelMessage() *Message {
	return newMessage(ActionCloseSidePanel, nil)
}

// NewAddContextMessage creates an addContext request.
func NewAddContextMessage(values ContextFormValues) *Message {
	return newMessage(ActionAddContext, values)
}

// NewUpdateContextMessage creates an updateContext request.
func NewUpdateContextMessage(item ContextItem) *Message {
	return newMessage(ActionUpdateContext, item)
}

// NewSidePanelContentMessage creates a sidePanelContent push for the panel.
func NewSidePanelContentMessage(content SidePanelContent) *Message {
	return newMessage(ActionSidePanelContent, content)
}

// NewSidePanelClosedMessage creates a sidePanelClosed notification.
func NewSidePanelClosedMessage() *Message {
	return newMessage(ActionSidePanelClosed, nil)
}

// NewRunActionMessage creates a runAction notification.
func NewRunActionMessage(req RunRequest) *Message {
	return newMessage(ActionRunAction, req)
}

// DecodePayload unmarshals the message payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return ErrNoPayload
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Action, err)
	}
	return nil
}

// NewDataResponse creates a successful response carrying v.
func NewDataResponse(v any) (*Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response data: %w", err)
	}
	return &Response{Data: raw}, nil
}

// NewErrorResponse creates a response carrying a background-reported error.
func NewErrorResponse(msg string) *Response {
	return &Response{Error: &msg}
}

// Validate checks that exactly one of Data and Error is set.
func (r *Response) Validate() error {
	hasData := len(r.Data) > 0
	hasErr := r.Error != nil
	if hasData == hasErr {
		return ErrMalformedResponse
	}
	return nil
}

// Err returns the background-reported error, if any.
func (r *Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return &RemoteError{Message: *r.Error}
}

// Decode validates the response and unmarshals its data into v.
// A background-reported error is returned as *RemoteError.
func (r *Response) Decode(v any) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := r.Err(); err != nil {
		return err
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
