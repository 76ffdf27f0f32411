package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/autoact/pkg/content"
	"github.com/entrhq/autoact/pkg/logging"
	"github.com/entrhq/autoact/pkg/types"
)

// actionTimeout bounds how long an overlay click waits on the content loop.
const actionTimeout = 5 * time.Second

// overlay draws the script's View into the page. Render never blocks the
// content loop: views are handed to a drawing goroutine and only the
// latest one is kept.
type overlay struct {
	driver    driver
	controlID string
	logger    *logging.Logger

	views    chan content.View
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newOverlay(d driver, controlID string, logger *logging.Logger) *overlay {
	o := &overlay{
		driver:    d,
		controlID: controlID,
		logger:    logger,
		views:     make(chan content.View, 1),
		done:      make(chan struct{}),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// Render replaces any view still waiting to be drawn. It must be called
// from a single goroutine.
func (o *overlay) Render(v content.View) {
	select {
	case o.views <- v:
		return
	default:
	}
	select {
	case <-o.views:
	default:
	}
	select {
	case o.views <- v:
	default:
	}
}

func (o *overlay) run() {
	defer o.wg.Done()
	for {
		select {
		case v := <-o.views:
			if err := o.draw(v); err != nil {
				o.logger.Debugf("overlay draw failed: %v", err)
			}
		case <-o.done:
			return
		}
	}
}

type renderPayload struct {
	View      content.View    `json:"view"`
	ControlID string          `json:"controlId"`
	Modes     []types.RunMode `json:"modes"`
}

func (o *overlay) draw(v content.View) error {
	payload, err := json.Marshal(renderPayload{View: v, ControlID: o.controlID, Modes: types.RunModes()})
	if err != nil {
		return fmt.Errorf("failed to encode view: %w", err)
	}
	_, err = o.driver.Evaluate("p => window.__autoact && window.__autoact.render(p)", string(payload))
	return err
}

// Stop ends the drawing goroutine.
func (o *overlay) Stop() {
	o.stopOnce.Do(func() {
		close(o.done)
	})
	o.wg.Wait()
}

// overlayAction is a click reported by the overlay's binding.
type overlayAction struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Value  string `json:"value,omitempty"`
}

func decodeAction(raw string) (overlayAction, error) {
	var a overlayAction
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return a, fmt.Errorf("failed to decode overlay action: %w", err)
	}
	if a.Action == "" {
		return a, fmt.Errorf("overlay action is missing")
	}
	return a, nil
}

// controls is what overlay actions drive. *content.Script implements it.
type controls interface {
	ConfirmAdd(ctx context.Context) error
	OpenRun(ctx context.Context) error
	OpenKnowledgebase(ctx context.Context) error
	Modal(ctx context.Context, fn func(*content.RunModal) error) error
}

// perform applies a to c.
func perform(ctx context.Context, c controls, a overlayAction) error {
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	switch a.Action {
	case "add":
		return c.ConfirmAdd(ctx)
	case "knowledgebase":
		return c.OpenKnowledgebase(ctx)
	case "run":
		return c.OpenRun(ctx)
	case "mode":
		return c.Modal(ctx, func(m *content.RunModal) error {
			return m.SetMode(types.RunMode(a.Value))
		})
	case "context":
		return c.Modal(ctx, func(m *content.RunModal) error {
			return m.SelectContext(a.ID)
		})
	case "prompt":
		return c.Modal(ctx, func(m *content.RunModal) error {
			return m.SetPrompt(a.Value)
		})
	case "submit":
		return c.Modal(ctx, func(m *content.RunModal) error {
			if err := m.SetPrompt(a.Value); err != nil {
				return err
			}
			return m.Run()
		})
	case "close":
		return c.Modal(ctx, func(m *content.RunModal) error {
			m.Close()
			return nil
		})
	default:
		return fmt.Errorf("unknown overlay action %q", a.Action)
	}
}
