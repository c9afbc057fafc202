// Package selection arms the in-page element picker and hands the clicked element
// to a capture handler.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"formfill/internal/application/port/input"
	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
)

var _ input.SelectionController = (*Controller)(nil)

var ErrNoCaptureHandler = errors.New("no capture handler registered")

type Controller struct {
	page      output.PagePort
	ui        output.UserInteractionPort
	logger    output.LoggerPort
	onCapture input.CaptureHandler

	mu      sync.Mutex
	state   input.SelectionState
	gen     uint64
	hovered string
	wg      sync.WaitGroup
}

func NewController(
	page output.PagePort,
	ui output.UserInteractionPort,
	logger output.LoggerPort,
	onCapture input.CaptureHandler,
) *Controller {
	return &Controller{
		page:      page,
		ui:        ui,
		logger:    logger.WithField("component", "selection"),
		onCapture: onCapture,
		state:     input.SelectionIdle,
	}
}

// Start arms the picker. A previous arming is torn down first.
func (c *Controller) Start(ctx context.Context) error {
	if c.onCapture == nil {
		return ErrNoCaptureHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != input.SelectionIdle {
		c.logger.Debug("Re-arming selection, tearing down previous", "state", c.state)
		if err := c.teardownLocked(ctx); err != nil {
			return err
		}
	}

	c.gen++
	gen := c.gen
	// Captured elements outlive the request that armed the picker.
	captureCtx := context.WithoutCancel(ctx)

	sink := func(ev entity.SelectionEvent) {
		c.handleEvent(captureCtx, gen, ev)
	}
	if err := c.page.InstallSelectionOverlay(ctx, sink); err != nil {
		return fmt.Errorf("install selection overlay: %w", err)
	}

	c.state = input.SelectionArmed
	c.hovered = ""
	c.logger.Info("Selection armed")
	if c.ui != nil {
		c.ui.ShowSelectionArmed(ctx)
	}
	return nil
}

func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == input.SelectionIdle {
		return nil
	}
	if err := c.teardownLocked(ctx); err != nil {
		return err
	}
	c.logger.Info("Selection cancelled")
	if c.ui != nil {
		c.ui.ShowSelectionCancelled(ctx)
	}
	return nil
}

func (c *Controller) State() input.SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Hovered returns the tag of the element currently previewed.
func (c *Controller) Hovered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered
}

// Wait blocks until every dispatched capture handler has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// teardownLocked always leaves the controller Idle, even when the page call fails.
func (c *Controller) teardownLocked(ctx context.Context) error {
	c.gen++
	c.state = input.SelectionIdle
	c.hovered = ""
	if err := c.page.RemoveSelectionOverlay(ctx); err != nil {
		return fmt.Errorf("remove selection overlay: %w", err)
	}
	return nil
}

func (c *Controller) handleEvent(ctx context.Context, gen uint64, ev entity.SelectionEvent) {
	c.mu.Lock()

	if gen != c.gen || c.state == input.SelectionIdle || c.state == input.SelectionCaptured {
		c.mu.Unlock()
		c.logger.Debug("Ignoring stale selection event", "kind", ev.Kind)
		return
	}

	switch ev.Kind {
	case entity.SelectionPreview:
		c.state = input.SelectionPreviewing
		c.hovered = ev.Tag
		c.mu.Unlock()

	case entity.SelectionCancelled:
		err := c.teardownLocked(ctx)
		c.mu.Unlock()
		if err != nil {
			c.logger.Warn("Teardown after cancel failed", "error", err)
		}
		c.logger.Info("Selection cancelled from page")
		if c.ui != nil {
			c.ui.ShowSelectionCancelled(ctx)
		}

	case entity.SelectionCaptured:
		c.state = input.SelectionCaptured
		c.gen++
		captured := c.gen
		c.wg.Add(1)
		c.mu.Unlock()

		el := entity.CapturedElement{
			HTML:    ev.HTML,
			Tag:     ev.Tag,
			PageURL: ev.PageURL,
			Rect:    ev.Rect,
		}
		// Page callbacks must not block on further page round-trips.
		go c.finishCapture(ctx, captured, el)

	default:
		c.mu.Unlock()
		c.logger.Warn("Unknown selection event", "kind", ev.Kind)
	}
}

func (c *Controller) finishCapture(ctx context.Context, gen uint64, el entity.CapturedElement) {
	defer c.wg.Done()

	c.mu.Lock()
	// A Start in between already tore this arming down.
	if c.state == input.SelectionCaptured && c.gen == gen {
		if err := c.page.RemoveSelectionOverlay(ctx); err != nil {
			c.logger.Warn("Teardown after capture failed", "error", err)
		}
		c.state = input.SelectionIdle
		c.hovered = ""
	}
	c.mu.Unlock()

	c.logger.Info("Element captured", "tag", el.Tag, "html_len", len(el.HTML))
	c.onCapture(ctx, el)
}
