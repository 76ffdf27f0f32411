package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/types"
)

var (
	// ErrModalClosed is returned by modal edits while the modal is closed.
	ErrModalClosed = errors.New("run modal is not open")

	// ErrEmptyPrompt is returned when running with a blank prompt.
	ErrEmptyPrompt = errors.New("prompt must not be empty")
)

// ModalState is the run modal as rendered.
type ModalState struct {
	Open      bool          `json:"open"`
	Mode      types.RunMode `json:"mode"`
	ContextID string        `json:"contextId"`
	Prompt    string        `json:"prompt"`
}

// RunModal is the content-local dialog that launches an action against
// one context. Its pills come from the mirror. It must only be used on
// the content loop.
type RunModal struct {
	endpoint *bus.Endpoint
	mirror   *ContextMirror
	state    ModalState
}

func newRunModal(endpoint *bus.Endpoint, mirror *ContextMirror) *RunModal {
	return &RunModal{endpoint: endpoint, mirror: mirror}
}

// State returns the modal state. A selected context that left the mirror
// falls back to the mirror's selection.
func (r *RunModal) State() ModalState {
	s := r.state
	if s.Open && !r.hasContext(s.ContextID) {
		s.ContextID = ""
		if item, ok := r.mirror.Selected(); ok {
			s.ContextID = item.ID
		}
	}
	return s
}

func (r *RunModal) open() {
	r.state = ModalState{Open: true, Mode: types.RunModeFillForm}
	if item, ok := r.mirror.Selected(); ok {
		r.state.ContextID = item.ID
	}
}

// Close dismisses the modal without running.
func (r *RunModal) Close() {
	r.state = ModalState{}
}

// SetMode picks the action.
func (r *RunModal) SetMode(mode types.RunMode) error {
	if !r.state.Open {
		return ErrModalClosed
	}
	for _, m := range types.RunModes() {
		if m == mode {
			r.state.Mode = mode
			return nil
		}
	}
	return fmt.Errorf("unknown run mode %q", mode)
}

// SelectContext picks the context pill with the given id.
func (r *RunModal) SelectContext(id string) error {
	if !r.state.Open {
		return ErrModalClosed
	}
	if !r.hasContext(id) {
		return fmt.Errorf("no context with id %q", id)
	}
	r.state.ContextID = id
	return nil
}

// SetPrompt replaces the prompt text.
func (r *RunModal) SetPrompt(prompt string) error {
	if !r.state.Open {
		return ErrModalClosed
	}
	r.state.Prompt = prompt
	return nil
}

// Run sends the runAction notification and closes the modal.
func (r *RunModal) Run() error {
	s := r.State()
	if !s.Open {
		return ErrModalClosed
	}
	if s.ContextID == "" {
		return ErrNoContexts
	}
	prompt := strings.TrimSpace(s.Prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	r.endpoint.Notify(bus.Background, types.NewRunActionMessage(types.RunRequest{
		Mode:      s.Mode,
		ContextID: s.ContextID,
		Prompt:    prompt,
	}))
	r.Close()
	return nil
}

func (r *RunModal) hasContext(id string) bool {
	_, ok := r.mirror.find(id)
	return ok
}
