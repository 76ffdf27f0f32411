// Package bus connects the isolated AutoAct contexts (content scripts,
// the background coordinator and the panel). Each context owns one
// Endpoint; an Endpoint runs every handler, response callback and posted
// task on its own single goroutine, so context state never needs locks.
//
// Messages are JSON-encoded on send and decoded on delivery. Delivery is
// FIFO per sender/receiver pair; there is no ordering across pairs.
package bus

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/autoact/pkg/logging"
	"github.com/google/uuid"
)

// Well-known endpoint names.
const (
	Background     = "background"
	Panel          = "panel"
	ContentPrefix  = "content:"
	ContentPattern = ContentPrefix + "*"
)

// DefaultRequestTimeout bounds how long a request waits for its response.
const DefaultRequestTimeout = 10 * time.Second

var (
	// ErrUnreachable is reported when the receiving endpoint does not exist,
	// was closed, or has no listener.
	ErrUnreachable = errors.New("receiving end does not exist")

	// ErrTimeout is reported when no response arrived in time.
	ErrTimeout = errors.New("request timed out")

	// ErrClosed is returned by operations on a closed endpoint.
	ErrClosed = errors.New("endpoint closed")

	// ErrListenerRegistered is returned when a second durable listener is registered.
	ErrListenerRegistered = errors.New("endpoint already has a listener")

	// ErrNameTaken is returned when connecting a name that is already connected.
	ErrNameTaken = errors.New("endpoint name already connected")
)

// NewContentName returns a unique endpoint name for a content script.
func NewContentName() string {
	return ContentPrefix + uuid.New().String()
}

// IsContentName reports whether name belongs to a content script.
func IsContentName(name string) bool {
	return strings.HasPrefix(name, ContentPrefix)
}

// Bus routes messages between connected endpoints.
type Bus struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	logger    *logging.Logger
	timeout   time.Duration
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithRequestTimeout sets the response timeout for every request.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		endpoints: make(map[string]*Endpoint),
		logger:    logging.Nop(),
		timeout:   DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect creates and starts an endpoint with the given name.
func (b *Bus) Connect(name string) (*Endpoint, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("endpoint name is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.endpoints[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
	}

	e := newEndpoint(name, b)
	b.endpoints[name] = e
	b.logger.Debugf("endpoint %s connected", name)
	return e, nil
}

// Endpoints returns the names of all connected endpoints, sorted.
func (b *Bus) Endpoints() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.endpoints))
	for name := range b.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every connected endpoint.
func (b *Bus) Close() {
	b.mu.RLock()
	all := make([]*Endpoint, 0, len(b.endpoints))
	for _, e := range b.endpoints {
		all = append(all, e)
	}
	b.mu.RUnlock()

	for _, e := range all {
		e.Close()
	}
}

func (b *Bus) lookup(name string) (*Endpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.endpoints[name]
	return e, ok
}

func (b *Bus) remove(e *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.endpoints[e.name]; ok && current == e {
		delete(b.endpoints, e.name)
		b.logger.Debugf("endpoint %s disconnected", e.name)
	}
}

// reply hands an encoded response back to the requesting endpoint.
func (b *Bus) reply(to, id string, raw []byte, err error) {
	sender, ok := b.lookup(to)
	if !ok {
		b.logger.Debugf("dropping response %s: %s is gone", id, to)
		return
	}
	sender.complete(id, raw, err)
}
