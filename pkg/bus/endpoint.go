package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// Callback receives the outcome of a request. It always runs on the
// requesting endpoint's loop. Exactly one of resp and err is non-nil.
type Callback func(resp *types.Response, err error)

// Handler is an endpoint's durable listener. It runs on the endpoint's loop.
type Handler func(req *Request)

// Request is an inbound message together with the means to answer it.
type Request struct {
	Message *types.Message
	Sender  string

	id        string
	endpoint  *Endpoint
	responded atomic.Bool
}

// Respond answers the request. It is a no-op for messages that do not
// require a response and for every call after the first.
func (r *Request) Respond(resp *types.Response) {
	if !r.Message.RequiresResponse || !r.responded.CompareAndSwap(false, true) {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		err = fmt.Errorf("failed to encode response: %w", err)
	}
	r.endpoint.bus.reply(r.Sender, r.id, raw, err)
}

// RespondData answers with v as data, or with an error response if v
// cannot be encoded.
func (r *Request) RespondData(v any) {
	resp, err := types.NewDataResponse(v)
	if err != nil {
		r.Respond(types.NewErrorResponse(err.Error()))
		return
	}
	r.Respond(resp)
}

// RespondError answers with a background-reported error.
func (r *Request) RespondError(err error) {
	r.Respond(types.NewErrorResponse(err.Error()))
}

type envelope struct {
	id      string
	from    string
	payload []byte
}

// pendingRequest tracks a request waiting for its response
type pendingRequest struct {
	id       string
	seq      uint64
	action   types.Action
	to       string
	callback Callback
	timer    *time.Timer
}

// Endpoint is one context's connection to the bus.
type Endpoint struct {
	name    string
	bus     *Bus
	loop    *loop
	logger  *logging.Logger
	timeout time.Duration

	seq atomic.Uint64

	mu          sync.Mutex
	pending     map[string]*pendingRequest
	listener    Handler
	listenerGen uint64
	closed      bool
	closeOnce   sync.Once
}

func newEndpoint(name string, b *Bus) *Endpoint {
	return &Endpoint{
		name:    name,
		bus:     b,
		loop:    newLoop(),
		logger:  b.logger.With(name),
		timeout: b.timeout,
		pending: make(map[string]*pendingRequest),
	}
}

// Name returns the endpoint's bus name.
func (e *Endpoint) Name() string {
	return e.name
}

// LastSeq returns the sequence number of the most recently sent message.
func (e *Endpoint) LastSeq() uint64 {
	return e.seq.Load()
}

// Listen registers the endpoint's single durable listener. The returned
// function unregisters it.
func (e *Endpoint) Listen(h Handler) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if e.listener != nil {
		return nil, ErrListenerRegistered
	}
	e.listener = h
	e.listenerGen++
	gen := e.listenerGen

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.listenerGen == gen {
			e.listener = nil
		}
	}, nil
}

// Send delivers msg to the endpoint named to and returns the message's
// sequence number. When msg requires a response and cb is non-nil, cb is
// invoked exactly once on this endpoint's loop with the response or with
// ErrUnreachable/ErrTimeout. Send never blocks on the receiver.
func (e *Endpoint) Send(to string, msg *types.Message, cb Callback) uint64 {
	seq := e.seq.Add(1)
	id := uuid.New().String()

	raw, err := json.Marshal(msg)
	if err != nil {
		e.logger.Errorf("failed to encode %s for %s: %v", msg.Action, to, err)
		if msg.RequiresResponse && cb != nil {
			e.loop.post(func() { cb(nil, fmt.Errorf("failed to encode %s: %w", msg.Action, err)) })
		}
		return seq
	}

	wantsResponse := msg.RequiresResponse && cb != nil
	if wantsResponse && !e.track(id, seq, msg.Action, to, cb) {
		return seq
	}

	target, ok := e.bus.lookup(to)
	if ok {
		env := envelope{id: id, from: e.name, payload: raw}
		ok = target.loop.post(func() { target.deliver(env) })
	}
	if !ok {
		if wantsResponse {
			e.complete(id, nil, ErrUnreachable)
		} else {
			e.logger.Warnf("%s to %s dropped: %v", msg.Action, to, ErrUnreachable)
		}
		return seq
	}

	e.logger.Debugf("sent %s to %s (seq %d)", msg.Action, to, seq)
	return seq
}

// Notify sends a fire-and-forget message.
func (e *Endpoint) Notify(to string, msg *types.Message) uint64 {
	return e.Send(to, msg, nil)
}

// Broadcast notifies every other endpoint whose name matches the glob
// pattern and returns how many were addressed.
func (e *Endpoint) Broadcast(pattern string, msg *types.Message) (int, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid broadcast pattern %q: %w", pattern, err)
	}

	n := 0
	for _, name := range e.bus.Endpoints() {
		if name == e.name || !g.Match(name) {
			continue
		}
		e.Notify(name, msg)
		n++
	}
	return n, nil
}

// Call sends a request and waits for its response. It is meant for code
// running outside any endpoint loop and must not be called from this
// endpoint's own handlers or callbacks.
func (e *Endpoint) Call(ctx context.Context, to string, msg *types.Message) (*types.Response, error) {
	if !msg.RequiresResponse {
		return nil, fmt.Errorf("%s does not expect a response", msg.Action)
	}

	type result struct {
		resp *types.Response
		err  error
	}
	ch := make(chan result, 1)
	e.Send(to, msg, func(resp *types.Response, err error) {
		ch <- result{resp: resp, err: err}
	})

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post schedules fn on the endpoint's loop after the tasks already queued.
// It returns false once the endpoint is closed.
func (e *Endpoint) Post(fn func()) bool {
	return e.loop.post(fn)
}

// Close disconnects the endpoint. Pending callbacks are dropped without
// being invoked.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		pending := e.pending
		e.pending = make(map[string]*pendingRequest)
		e.listener = nil
		e.mu.Unlock()

		for _, p := range pending {
			p.timer.Stop()
		}
		e.bus.remove(e)
		e.loop.close()
	})
}

// Done is closed when the endpoint's loop has stopped.
func (e *Endpoint) Done() <-chan struct{} {
	return e.loop.done
}

func (e *Endpoint) track(id string, seq uint64, action types.Action, to string, cb Callback) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	e.pending[id] = &pendingRequest{
		id:       id,
		seq:      seq,
		action:   action,
		to:       to,
		callback: cb,
		timer: time.AfterFunc(e.timeout, func() {
			e.complete(id, nil, ErrTimeout)
		}),
	}
	return true
}

// complete resolves a pending request and queues its callback.
func (e *Endpoint) complete(id string, raw []byte, err error) {
	e.mu.Lock()
	p, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Debugf("dropping response %s: no pending request", id)
		return
	}
	p.timer.Stop()

	if err != nil {
		e.logger.Warnf("%s to %s (seq %d) failed: %v", p.action, p.to, p.seq, err)
	}

	e.loop.post(func() {
		if err != nil {
			p.callback(nil, err)
			return
		}
		var resp types.Response
		if decodeErr := json.Unmarshal(raw, &resp); decodeErr != nil {
			p.callback(nil, fmt.Errorf("failed to decode %s response: %w", p.action, decodeErr))
			return
		}
		if validErr := resp.Validate(); validErr != nil {
			p.callback(nil, validErr)
			return
		}
		p.callback(&resp, nil)
	})
}

// deliver runs on the receiving loop.
func (e *Endpoint) deliver(env envelope) {
	var msg types.Message
	if err := json.Unmarshal(env.payload, &msg); err != nil {
		e.logger.Errorf("dropping undecodable message from %s: %v", env.from, err)
		return
	}

	e.mu.Lock()
	h := e.listener
	e.mu.Unlock()

	if h == nil {
		e.logger.Debugf("no listener for %s from %s", msg.Action, env.from)
		if msg.RequiresResponse {
			e.bus.reply(env.from, env.id, nil, ErrUnreachable)
		}
		return
	}

	h(&Request{
		Message:  &msg,
		Sender:   env.from,
		id:       env.id,
		endpoint: e,
	})
}
