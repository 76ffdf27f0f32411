package types

import (
	"errors"
	"strings"
)

// ContextItem is a stored title/description pair. The background owns
// the authoritative copy; other contexts hold read-only mirrors.
type ContextItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ContextFormValues is the editable part of a ContextItem.
type ContextFormValues struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var (
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrEmptyDescription = errors.New("description must not be empty")
)

// Validate rejects values whose title or description is empty after trimming.
func (v ContextFormValues) Validate() error {
	if strings.TrimSpace(v.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(v.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// Values returns the editable fields of the item.
func (c ContextItem) Values() ContextFormValues {
	return ContextFormValues{Title: c.Title, Description: c.Description}
}

// Point is a position in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a viewport-relative bounding rectangle.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageSelection is a transient capture of the user's text selection.
type PageSelection struct {
	// Title is the document title at capture time.
	Title string `json:"title"`

	// Description is the trimmed selected text.
	Description string `json:"description"`

	// Anchor is the scroll-adjusted bottom-left point of the selection.
	Anchor Point `json:"anchor"`
}

// Values converts the capture into prefilled form values.
func (p PageSelection) Values() ContextFormValues {
	return ContextFormValues{Title: p.Title, Description: p.Description}
}

// ContentType selects what the panel shows.
type ContentType string

const (
	ContentContexts      ContentType = "contexts"      // ContentContexts shows the knowledge-base list.
	ContentAddNewContext ContentType = "addNewContext" // ContentAddNewContext shows the add form.
)

// Valid reports whether the content type is one of the known values.
func (c ContentType) Valid() bool {
	return c == ContentContexts || c == ContentAddNewContext
}

// PanelState is the background's view of the panel.
type PanelState struct {
	IsOpen      bool
	ContentType ContentType
}

// SidebarState is the getSidebarState response body.
type SidebarState struct {
	ContentType     ContentType `json:"contentType"`
	IsSidePanelOpen bool        `json:"isSidePanelOpen"`
}

// PanelState converts the wire form into a PanelState.
func (s SidebarState) PanelState() PanelState {
	return PanelState{IsOpen: s.IsSidePanelOpen, ContentType: s.ContentType}
}

// SidebarState converts the state into its wire form.
func (p PanelState) SidebarState() SidebarState {
	return SidebarState{ContentType: p.ContentType, IsSidePanelOpen: p.IsOpen}
}

// OpenSidePanelPayload is the openSidePanel body.
type OpenSidePanelPayload struct {
	ContentType     ContentType `json:"contentType"`
	NotifySidePanel bool        `json:"notifySidePanel"`
}

// ScrappedPageDataPayload is the scrappedPageData body.
type ScrappedPageDataPayload struct {
	PageData PageSelection `json:"pageData"`
}

// SidePanelContent is pushed to the panel whenever the background changes
// the panel state. PageData is set when a capture is waiting to be saved.
type SidePanelContent struct {
	ContentType     ContentType    `json:"contentType"`
	IsSidePanelOpen bool           `json:"isSidePanelOpen"`
	PageData        *PageSelection `json:"pageData,omitempty"`
}

// RunMode is the action picked in the run modal.
type RunMode string

const (
	RunModeFillForm RunMode = "Fill Form"
	RunModeChat     RunMode = "Chat"
)

// RunModes lists the modes in display order.
func RunModes() []RunMode {
	return []RunMode{RunModeFillForm, RunModeChat}
}

// RunRequest is the runAction body.
type RunRequest struct {
	Mode      RunMode `json:"mode"`
	ContextID string  `json:"contextId"`
	Prompt    string  `json:"prompt"`
}
