package webview

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/uithread"
)

// ErrLoopStopped is returned when the callback loop is no longer running.
var ErrLoopStopped = uithread.ErrStopped

// Info is a point-in-time view of one webview.
type Info struct {
	ID     ID     `json:"id"`
	State  string `json:"state"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Controller is the host-side handle of one webview. Its methods may be
// called from any goroutine; each one marshals onto the callback loop.
type Controller struct {
	handler *Handler
	loop    *uithread.Loop
	metrics *monitoring.Metrics
	runIDs  atomic.Int64
}

func newController(loop *uithread.Loop, handler *Handler, metrics *monitoring.Metrics) *Controller {
	return &Controller{handler: handler, loop: loop, metrics: metrics}
}

// ID returns the webview id.
func (c *Controller) ID() ID {
	return c.handler.ID()
}

// Resize stores a new viewport size and has the engine query it.
func (c *Controller) Resize(ctx context.Context, width, height int) error {
	return c.do(ctx, func() error {
		if err := c.handler.SetWebviewSize(width, height); err != nil {
			return err
		}
		c.handler.NotifyResized()
		return nil
	})
}

// LoadURL navigates the main frame.
func (c *Controller) LoadURL(ctx context.Context, url string) error {
	return c.do(ctx, func() error {
		return c.handler.LoadURL(url)
	})
}

// RunJavascript sends script to the renderer and returns its run id. The
// result arrives through Callbacks.OnJavascriptResult.
func (c *Controller) RunJavascript(ctx context.Context, script string) (int, error) {
	runID := int(c.runIDs.Add(1))
	err := c.do(ctx, func() error {
		return c.handler.RunJavascript(runID, script)
	})
	if err != nil {
		return 0, err
	}
	return runID, nil
}

// Close requests the close and waits until the browser is torn down or
// ctx ends. Closing an already closed webview returns nil.
func (c *Controller) Close(ctx context.Context) error {
	timer := monitoring.NewTimer(c.metrics.RecordClose)
	done := make(chan struct{})

	if err := c.loop.Post(func() {
		c.handler.CloseBrowser(func() { close(done) })
	}); err != nil {
		return err
	}

	select {
	case <-done:
		timer.Stop()
		return nil
	case <-c.loop.Stopped():
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the lifecycle state.
func (c *Controller) State(ctx context.Context) (State, error) {
	var s State
	err := c.do(ctx, func() error {
		s = c.handler.State()
		return nil
	})
	return s, err
}

// History returns every state the webview has been in.
func (c *Controller) History(ctx context.Context) ([]State, error) {
	var h []State
	err := c.do(ctx, func() error {
		h = c.handler.History()
		return nil
	})
	return h, err
}

// Info returns a summary of the webview.
func (c *Controller) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.do(ctx, func() error {
		info.ID = c.handler.ID()
		info.State = c.handler.State().String()
		info.Width, info.Height = c.handler.GetViewportSize()
		if b := c.handler.Browser(); b != nil {
			info.URL = b.MainFrame().URL()
		}
		return nil
	})
	return info, err
}

// Snapshot returns a copy of the composited frame, or nil before the first
// paint.
func (c *Controller) Snapshot(ctx context.Context) (*image.RGBA, error) {
	var img *image.RGBA
	err := c.do(ctx, func() error {
		img = c.handler.Snapshot()
		return nil
	})
	return img, err
}

func (c *Controller) do(ctx context.Context, fn func() error) error {
	var err error
	if loopErr := c.loop.Do(ctx, func() { err = fn() }); loopErr != nil {
		return loopErr
	}
	return err
}
