package headless

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/scriptrunner"
	"github.com/GriffinCanCode/AgentOS/webview/internal/uithread"
)

var (
	ErrNoClient     = errors.New("headless: browser params need a client")
	ErrShuttingDown = errors.New("headless: engine is shutting down")
)

// Config controls the simulated browsers.
type Config struct {
	Script scriptrunner.Config
}

// Engine is an in-process engine. Browser-side callbacks run on the shared
// callback loop; every browser also owns a renderer loop that executes
// page scripts, reached only through the process message wire codec.
type Engine struct {
	loop    *uithread.Loop
	config  Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	nextID   atomic.Int32
	mu       sync.Mutex
	browsers map[int]*Browser
	shutdown bool
	wg       sync.WaitGroup
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine whose callbacks run on loop.
func New(loop *uithread.Loop, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		loop:     loop,
		config:   config,
		logger:   logger,
		browsers: make(map[int]*Browser),
	}
}

// WithMetrics adds metrics tracking to renderer script execution
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// CreateBrowser starts a browser. OnAfterCreated and the initial
// navigation are delivered later on the callback loop.
func (e *Engine) CreateBrowser(params engine.BrowserParams) error {
	if params.Client == nil {
		return ErrNoClient
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrShuttingDown
	}
	id := int(e.nextID.Add(1))
	b := newBrowser(e, id, params.Client)
	e.browsers[id] = b
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = b.renderer.Run(b.ctx)
	}()

	e.logger.Debug("Creating browser", zap.Int("browser_id", id), zap.String("url", params.URL))

	if err := e.loop.Post(func() {
		b.client.OnAfterCreated(b)
	}); err != nil {
		e.forget(b)
		b.stopRenderer()
		return fmt.Errorf("post browser creation: %w", err)
	}
	if params.URL != "" {
		b.frame.LoadURL(params.URL)
	}
	return nil
}

// Browser returns a live browser by identifier.
func (e *Engine) Browser(id int) (*Browser, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.browsers[id]
	return b, ok
}

// Browsers returns the live browsers ordered by identifier.
func (e *Engine) Browsers() []*Browser {
	e.mu.Lock()
	out := make([]*Browser, 0, len(e.browsers))
	for _, b := range e.browsers {
		out = append(out, b)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Shutdown tears down every remaining browser without consulting DoClose,
// the way an engine does on process exit, then waits for the renderer
// loops to stop.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.shutdown = true
	e.mu.Unlock()

	for _, b := range e.Browsers() {
		b := b
		if err := e.loop.Post(func() { b.teardown("engine shutdown") }); err != nil {
			b.stopRenderer()
			e.forget(b)
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) forget(b *Browser) {
	e.mu.Lock()
	delete(e.browsers, b.id)
	e.mu.Unlock()
}
