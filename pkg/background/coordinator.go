// Package background implements the coordinator that owns the knowledge
// base and the panel state. Content scripts and the panel only ever see
// snapshots of either, obtained over the bus.
package background

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/autoact/pkg/bus"
	"github.com/entrhq/autoact/pkg/knowledgebase"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// storeTimeout bounds a single knowledge-base operation.
const storeTimeout = 5 * time.Second

// RunHandler receives runAction requests. sender is the content endpoint
// that issued the request.
type RunHandler func(sender string, req types.RunRequest)

// Coordinator is the background context.
type Coordinator struct {
	endpoint *bus.Endpoint
	store    knowledgebase.Store
	logger   *logging.Logger
	onRun    RunHandler
	unlisten func()

	// Loop-owned state.
	panel    PanelMachine
	pageData *types.PageSelection
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithRunHandler sets the receiver of runAction requests.
func WithRunHandler(h RunHandler) Option {
	return func(c *Coordinator) {
		c.onRun = h
	}
}

// New connects the coordinator to b under bus.Background and starts
// serving requests against store.
func New(b *bus.Bus, store knowledgebase.Store, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		store:  store,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint, err := b.Connect(bus.Background)
	if err != nil {
		return nil, fmt.Errorf("failed to connect background: %w", err)
	}
	c.endpoint = endpoint

	unlisten, err := endpoint.Listen(c.handle)
	if err != nil {
		endpoint.Close()
		return nil, fmt.Errorf("failed to listen on background: %w", err)
	}
	c.unlisten = unlisten

	c.logger.Infof("background coordinator started")
	return c, nil
}

// Invalidate tells every content script and the panel to refetch their
// context lists. It may be called from any goroutine.
func (c *Coordinator) Invalidate() {
	c.endpoint.Post(c.broadcastRefetch)
}

// PanelState returns a snapshot of the panel state, read on the
// coordinator's loop.
func (c *Coordinator) PanelState(ctx context.Context) (types.PanelState, error) {
	ch := make(chan types.PanelState, 1)
	if !c.endpoint.Post(func() { ch <- c.panel.State() }) {
		return types.PanelState{}, bus.ErrClosed
	}
	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return types.PanelState{}, ctx.Err()
	}
}

// Close disconnects the coordinator. The store is left open.
func (c *Coordinator) Close() {
	c.unlisten()
	c.endpoint.Close()
	<-c.endpoint.Done()
	c.logger.Infof("background coordinator stopped")
}

func (c *Coordinator) handle(req *bus.Request) {
	c.logger.Debugf("received %s from %s", req.Message.Action, req.Sender)

	switch req.Message.Action {
	case types.ActionGetContexts:
		c.handleGetContexts(req)
	case types.ActionScrappedPageData:
		c.handleScrappedPageData(req)
	case types.ActionOpenSidePanel:
		c.handleOpenSidePanel(req)
	case types.ActionGetSidebarState:
		req.RespondData(c.panel.State().SidebarState())
	case types.ActionCloseSidePanel:
		c.closePanel(true)
	case types.ActionSidePanelClosed:
		c.closePanel(false)
	case types.ActionAddContext:
		c.handleAddContext(req)
	case types.ActionUpdateContext:
		c.handleUpdateContext(req)
	case types.ActionRunAction:
		c.handleRunAction(req)
	default:
		c.logger.Warnf("unhandled action %q from %s", req.Message.Action, req.Sender)
		req.RespondError(fmt.Errorf("unknown action %q", req.Message.Action))
	}
}

func (c *Coordinator) handleGetContexts(req *bus.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	items, err := c.store.List(ctx)
	if err != nil {
		c.logger.Errorf("getContexts failed: %v", err)
		req.RespondError(err)
		return
	}
	req.RespondData(items)
}

func (c *Coordinator) handleScrappedPageData(req *bus.Request) {
	var payload types.ScrappedPageDataPayload
	if err := req.Message.DecodePayload(&payload); err != nil {
		c.logger.Errorf("scrappedPageData from %s: %v", req.Sender, err)
		return
	}

	c.pageData = &payload.PageData
	c.endpoint.Notify(bus.Panel, types.NewScrappedPageDataMessage(payload.PageData))
}

func (c *Coordinator) handleOpenSidePanel(req *bus.Request) {
	var payload types.OpenSidePanelPayload
	if err := req.Message.DecodePayload(&payload); err != nil {
		c.logger.Errorf("openSidePanel from %s: %v", req.Sender, err)
		return
	}

	changed, err := c.panel.Open(payload.ContentType)
	if err != nil {
		c.logger.Errorf("openSidePanel from %s: %v", req.Sender, err)
		return
	}
	if changed {
		c.logger.Infof("panel open on %s", payload.ContentType)
	}
	if payload.NotifySidePanel {
		c.pushPanelContent()
	}
}

func (c *Coordinator) closePanel(notify bool) {
	if !c.panel.Close() {
		return
	}
	c.logger.Infof("panel closed")
	if notify {
		c.pushPanelContent()
	}
}

func (c *Coordinator) pushPanelContent() {
	state := c.panel.State()
	content := types.SidePanelContent{
		ContentType:     state.ContentType,
		IsSidePanelOpen: state.IsOpen,
	}
	if state.ContentType == types.ContentAddNewContext && c.pageData != nil {
		data := *c.pageData
		content.PageData = &data
	}
	c.endpoint.Notify(bus.Panel, types.NewSidePanelContentMessage(content))
}

func (c *Coordinator) handleAddContext(req *bus.Request) {
	var values types.ContextFormValues
	if err := req.Message.DecodePayload(&values); err != nil {
		req.RespondError(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	item, err := c.store.Add(ctx, values)
	if err != nil {
		c.logger.Warnf("addContext from %s rejected: %v", req.Sender, err)
		req.RespondError(err)
		return
	}

	c.logger.Infof("added context %s", item.ID)
	c.pageData = nil
	req.RespondData(item)
	c.broadcastRefetch()
}

func (c *Coordinator) handleUpdateContext(req *bus.Request) {
	var item types.ContextItem
	if err := req.Message.DecodePayload(&item); err != nil {
		req.RespondError(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	updated, err := c.store.Update(ctx, item)
	if err != nil {
		c.logger.Warnf("updateContext %s from %s rejected: %v", item.ID, req.Sender, err)
		req.RespondError(err)
		return
	}

	c.logger.Infof("updated context %s", updated.ID)
	req.RespondData(updated)
	c.broadcastRefetch()
}

func (c *Coordinator) handleRunAction(req *bus.Request) {
	var run types.RunRequest
	if err := req.Message.DecodePayload(&run); err != nil {
		c.logger.Errorf("runAction from %s: %v", req.Sender, err)
		return
	}

	c.logger.Infof("run %q with context %s from %s", run.Mode, run.ContextID, req.Sender)
	if c.onRun != nil {
		c.onRun(req.Sender, run)
	}
}

func (c *Coordinator) broadcastRefetch() {
	n, err := c.endpoint.Broadcast(bus.ContentPattern, types.NewRefetchContextsMessage())
	if err != nil {
		c.logger.Errorf("refetch broadcast failed: %v", err)
		return
	}
	c.endpoint.Notify(bus.Panel, types.NewRefetchContextsMessage())
	c.logger.Debugf("refetch sent to %d content scripts and the panel", n)
}
