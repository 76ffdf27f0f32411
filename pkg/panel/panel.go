// Package panel is the side panel: a terminal UI for browsing, editing
// and adding knowledge-base contexts. It follows the background's panel
// state and talks to it only over the bus.
package panel

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// Panel runs the panel UI as the bus's panel endpoint.
type Panel struct {
	endpoint *bus.Endpoint
	logger   *logging.Logger
	opts     []tea.ProgramOption
	program  *tea.Program
}

// Option configures a Panel.
type Option func(*Panel)

// WithLogger sets the panel's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Panel) {
		p.logger = logger
	}
}

// WithProgramOptions passes options to the bubbletea program.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(p *Panel) {
		p.opts = append(p.opts, opts...)
	}
}

// New connects the panel to b.
func New(b *bus.Bus, opts ...Option) (*Panel, error) {
	p := &Panel{
		logger: logging.Nop(),
		opts:   []tea.ProgramOption{tea.WithAltScreen()},
	}
	for _, opt := range opts {
		opt(p)
	}

	endpoint, err := b.Connect(bus.Panel)
	if err != nil {
		return nil, fmt.Errorf("failed to connect panel: %w", err)
	}
	p.endpoint = endpoint
	return p, nil
}

// Run starts the UI and blocks until the user quits or ctx is done.
func (p *Panel) Run(ctx context.Context) error {
	defer func() {
		p.endpoint.Close()
		<-p.endpoint.Done()
	}()

	be := &busBackend{endpoint: p.endpoint}
	m := newModel(be, p.logger)

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, p.opts...)
	p.program = tea.NewProgram(m, opts...)
	be.send = p.program.Send

	unlisten, err := p.endpoint.Listen(be.handle)
	if err != nil {
		return fmt.Errorf("failed to listen on panel: %w", err)
	}
	defer unlisten()

	p.logger.Infof("panel started")
	if _, err := p.program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run panel: %w", err)
	}
	p.logger.Infof("panel stopped")
	return nil
}

// busBackend turns model calls into bus requests and bus traffic into
// tea messages.
type busBackend struct {
	endpoint *bus.Endpoint
	send     func(tea.Msg)
}

func (b *busBackend) FetchContexts() {
	b.endpoint.Send(bus.Background, types.NewGetContextsMessage(), func(resp *types.Response, err error) {
		var items []types.ContextItem
		if err == nil {
			err = resp.Decode(&items)
		}
		if err != nil {
			b.send(backendErrMsg{action: types.ActionGetContexts, err: err})
			return
		}
		b.send(contextsMsg{items: items})
	})
}

func (b *busBackend) AddContext(values types.ContextFormValues) {
	b.endpoint.Send(bus.Background, types.NewAddContextMessage(values), b.saved(types.ActionAddContext, true))
}

func (b *busBackend) UpdateContext(item types.ContextItem) {
	b.endpoint.Send(bus.Background, types.NewUpdateContextMessage(item), b.saved(types.ActionUpdateContext, false))
}

func (b *busBackend) saved(action types.Action, added bool) bus.Callback {
	return func(resp *types.Response, err error) {
		var item types.ContextItem
		if err == nil {
			err = resp.Decode(&item)
		}
		if err != nil {
			b.send(backendErrMsg{action: action, err: err})
			return
		}
		b.send(savedMsg{item: item, added: added})
	}
}

func (b *busBackend) PanelClosed() {
	b.endpoint.Notify(bus.Background, types.NewSidePanelClosedMessage())
}

// handle is the panel's durable listener.
func (b *busBackend) handle(req *bus.Request) {
	switch req.Message.Action {
	case types.ActionRefetchContexts:
		b.send(refetchMsg{})
	case types.ActionSidePanelContent:
		var content types.SidePanelContent
		if err := req.Message.DecodePayload(&content); err == nil {
			b.send(sidePanelContentMsg{content: content})
		}
	case types.ActionScrappedPageData:
		var payload types.ScrappedPageDataPayload
		if err := req.Message.DecodePayload(&payload); err == nil {
			b.send(pageDataMsg{data: payload.PageData})
		}
	}
}
