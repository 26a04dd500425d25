package webview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/webview/internal/uithread"
)

var (
	ErrNotFound = errors.New("webview: not found")
	ErrTooMany  = errors.New("webview: limit reached")
)

// Manager creates webviews on one engine and tracks them until their
// browser is torn down.
type Manager struct {
	loop    *uithread.Loop
	engine  engine.Engine
	ids     *id.Generator
	logger  *zap.Logger
	metrics *monitoring.Metrics
	limit   int

	mu       sync.RWMutex
	webviews map[ID]*Controller
}

// NewManager creates a manager. limit caps open webviews; zero means no
// limit.
func NewManager(loop *uithread.Loop, eng engine.Engine, limit int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		loop:     loop,
		engine:   eng,
		ids:      id.Default(),
		logger:   logger,
		limit:    limit,
		webviews: make(map[ID]*Controller),
	}
}

// WithMetrics adds metrics tracking to the manager and its webviews
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Create registers a webview and asks the engine for its browser. The
// webview is usable once Callbacks.OnAfterCreated fires; it is removed
// after Callbacks.OnBeforeClose.
func (m *Manager) Create(ctx context.Context, params CreationParams) (*Controller, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wid := ID(m.ids.GenerateWithPrefix(id.WebviewPrefix))

	hostBeforeClose := params.Callbacks.OnBeforeClose
	params.Callbacks.OnBeforeClose = func(closed ID, browser engine.Browser) {
		if hostBeforeClose != nil {
			hostBeforeClose(closed, browser)
		}
		m.remove(closed)
	}

	handler := NewHandler(wid, params, m.logger).WithMetrics(m.metrics)
	ctrl := newController(m.loop, handler, m.metrics)

	m.mu.Lock()
	if m.limit > 0 && len(m.webviews) >= m.limit {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d open", ErrTooMany, m.limit)
	}
	m.webviews[wid] = ctrl
	count := len(m.webviews)
	m.mu.Unlock()

	if err := m.engine.CreateBrowser(engine.BrowserParams{URL: params.URL, Client: handler}); err != nil {
		m.remove(wid)
		return nil, fmt.Errorf("create browser for %s: %w", wid, err)
	}

	m.metrics.IncWebviewsTotal()
	m.metrics.SetWebviewsActive(count)
	m.logger.Info("Webview created",
		zap.String("webview_id", string(wid)),
		zap.String("url", params.URL))
	return ctrl, nil
}

// Get returns the controller of an open webview.
func (m *Manager) Get(wid ID) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctrl, ok := m.webviews[wid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, wid)
	}
	return ctrl, nil
}

// List returns the open webviews in creation order.
func (m *Manager) List() []*Controller {
	m.mu.RLock()
	out := make([]*Controller, 0, len(m.webviews))
	for _, ctrl := range m.webviews {
		out = append(out, ctrl)
	}
	m.mu.RUnlock()

	// ULID ids sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Count returns the number of open webviews.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.webviews)
}

// Close closes one webview and waits for its teardown.
func (m *Manager) Close(ctx context.Context, wid ID) error {
	ctrl, err := m.Get(wid)
	if err != nil {
		return err
	}
	return ctrl.Close(ctx)
}

// Shutdown closes every open webview concurrently and waits for all of
// them.
func (m *Manager) Shutdown(ctx context.Context) error {
	open := m.List()
	if len(open) == 0 {
		return nil
	}
	m.logger.Info("Closing webviews", zap.Int("count", len(open)))

	g, ctx := errgroup.WithContext(ctx)
	for _, ctrl := range open {
		ctrl := ctrl
		g.Go(func() error {
			if err := ctrl.Close(ctx); err != nil {
				return fmt.Errorf("close %s: %w", ctrl.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) remove(wid ID) {
	m.mu.Lock()
	_, ok := m.webviews[wid]
	delete(m.webviews, wid)
	count := len(m.webviews)
	m.mu.Unlock()

	if ok {
		m.metrics.SetWebviewsActive(count)
		m.logger.Debug("Webview removed", zap.String("webview_id", string(wid)))
	}
}
