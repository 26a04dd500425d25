package webview

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webview/internal/compositor"
	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/procmsg"
	"github.com/GriffinCanCode/AgentOS/webview/internal/uithread"
)

var (
	ErrClosed      = errors.New("webview: closed")
	ErrClosing     = errors.New("webview: closing")
	ErrNotCreated  = errors.New("webview: browser not created yet")
	ErrInvalidSize = errors.New("webview: width and height must be greater than 0")
)

// Handler is the engine client for one webview. It owns the lifecycle
// state, the requested viewport and the composited surface, and relays
// engine events to the host callbacks.
//
// Every method must run on the engine callback loop; overlapping calls
// panic with *uithread.ConcurrentAccessError.
type Handler struct {
	id      ID
	cb      Callbacks
	logger  *zap.Logger
	guard   *uithread.Guard
	metrics *monitoring.Metrics

	state   State
	history []State
	browser *engine.Ref

	// closeDone is set only while a close is pending.
	closeDone   func()
	closeQueued bool

	width, height int
	compositor    *compositor.Compositor
}

var _ engine.Client = (*Handler)(nil)

// NewHandler creates a handler in StateBeforeCreated. Non-positive
// dimensions are replaced with 1.
func NewHandler(id ID, params CreationParams, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		id:         id,
		cb:         params.Callbacks.withDefaults(),
		logger:     logger.With(zap.String("webview_id", string(id))),
		guard:      uithread.NewGuard("webview.Handler"),
		state:      StateBeforeCreated,
		history:    []State{StateBeforeCreated},
		width:      params.Width,
		height:     params.Height,
		compositor: compositor.New(),
	}

	if h.width <= 0 || h.height <= 0 {
		if h.width <= 0 {
			h.width = 1
		}
		if h.height <= 0 {
			h.height = 1
		}
		h.logger.Warn("Width and height must be greater than 0, using corrected size",
			zap.Int("requested_width", params.Width),
			zap.Int("requested_height", params.Height),
			zap.Int("width", h.width),
			zap.Int("height", h.height),
		)
	}

	return h
}

// WithMetrics adds metrics tracking to the handler
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// ID returns the webview id.
func (h *Handler) ID() ID {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handler) State() State {
	return h.state
}

// History returns every state the handler has been in, oldest first.
func (h *Handler) History() []State {
	return append([]State(nil), h.history...)
}

// Browser returns the held browser reference, or nil outside
// Created/Ready/Closing.
func (h *Handler) Browser() engine.Browser {
	if h.browser == nil {
		return nil
	}
	return h.browser
}

// GetViewportSize returns the stored viewport size.
func (h *Handler) GetViewportSize() (int, int) {
	return h.width, h.height
}

// Snapshot returns a copy of the composited frame, or nil before the first
// paint.
func (h *Handler) Snapshot() *image.RGBA {
	return h.compositor.Snapshot()
}

// ============================================================================
// Lifecycle
// ============================================================================

// OnBeforePopup blocks every popup window and loads its target in the main
// frame instead, so one webview always maps to one browser.
func (h *Handler) OnBeforePopup(parent engine.Browser, targetURL string) bool {
	defer h.guard.Enter("OnBeforePopup")()
	if h.isClosed("OnBeforePopup") {
		return true
	}

	h.logger.Debug("Loading popup in the main frame", zap.String("url", targetURL))
	if targetURL != "" && parent != nil {
		parent.MainFrame().LoadURL(targetURL)
	}
	return true
}

// OnAfterCreated stores the browser and moves to Created.
func (h *Handler) OnAfterCreated(browser engine.Browser) {
	defer h.guard.Enter("OnAfterCreated")()

	if h.state != StateBeforeCreated {
		h.logger.Error("Browser created twice", zap.Stringer("state", h.state))
		return
	}

	h.browser = engine.Retain(browser)
	h.transition(StateCreated)
	h.cb.OnAfterCreated(h.id, h.browser)

	if h.closeQueued {
		h.closeQueued = false
		h.logger.Info("Issuing close requested before creation")
		h.beginClose()
	}
}

// CloseBrowser starts the host-initiated close. done runs after the
// browser is torn down; for an already closed webview it runs immediately.
// A close requested before creation is issued as soon as the browser
// exists.
func (h *Handler) CloseBrowser(done func()) {
	defer h.guard.Enter("CloseBrowser")()

	switch h.state {
	case StateBeforeCreated:
		h.closeDone = chain(h.closeDone, done)
		h.closeQueued = true
		h.logger.Info("Close requested before browser creation, deferring")

	case StateCreated, StateReady:
		h.closeDone = chain(h.closeDone, done)
		h.beginClose()

	case StateClosing:
		h.logger.Debug("Close already in progress")
		h.closeDone = chain(h.closeDone, done)

	case StateClosed:
		if done != nil {
			done()
		}
	}
}

func (h *Handler) beginClose() {
	if !h.transition(StateClosing) {
		return
	}
	h.logger.Debug("Requesting browser close")
	h.browser.Host().CloseBrowser(false)
}

// DoClose gates engine close attempts: only a close started through
// CloseBrowser may proceed. Returning true cancels the close.
func (h *Handler) DoClose(browser engine.Browser) bool {
	defer h.guard.Enter("DoClose")()

	if h.state != StateClosing {
		h.logger.Warn("Closing a browser by any way other than CloseBrowser is not allowed",
			zap.Stringer("state", h.state))
		h.metrics.IncCloseDenied()
		return true
	}
	return false
}

// OnBeforeClose finishes teardown: the reference is dropped, the host is
// notified, the state becomes Closed and the pending completion runs.
func (h *Handler) OnBeforeClose(browser engine.Browser) {
	defer h.guard.Enter("OnBeforeClose")()

	switch h.state {
	case StateClosing:
	case StateCreated, StateReady:
		// The engine tore the browser down on its own (shutdown or crash).
		h.logger.Warn("Browser closed without a close request", zap.Stringer("state", h.state))
		h.transition(StateClosing)
	default:
		h.logger.Error("Unexpected OnBeforeClose", zap.Stringer("state", h.state))
		return
	}

	// The host gets the handle it was given in OnAfterCreated.
	var handle engine.Browser = browser
	if ref := h.browser; ref != nil {
		h.browser = nil
		ref.Release()
		handle = ref
	}

	h.cb.OnBeforeClose(h.id, handle)
	h.transition(StateClosed)

	if done := h.closeDone; done != nil {
		h.closeDone = nil
		done()
	}
}

// ============================================================================
// Navigation
// ============================================================================

// OnLoadingProgressChange forwards progress (0.0 to 1.0) as a truncated
// percentage.
func (h *Handler) OnLoadingProgressChange(browser engine.Browser, progress float64) {
	defer h.guard.Enter("OnLoadingProgressChange")()
	if h.isClosed("OnLoadingProgressChange") {
		return
	}

	h.cb.OnProgress(h.id, int(progress*100))
}

// OnLoadStart makes the webview ready on its first main-frame navigation.
func (h *Handler) OnLoadStart(browser engine.Browser, frame engine.Frame) {
	defer h.guard.Enter("OnLoadStart")()
	if h.isClosed("OnLoadStart") {
		return
	}

	if !frame.IsMain() {
		return
	}
	h.markReady()
	h.cb.OnPageStarted(h.id, frame.URL())
}

// OnLoadEnd reports a finished main-frame load. The status code is logged
// only.
func (h *Handler) OnLoadEnd(browser engine.Browser, frame engine.Frame, httpStatusCode int) {
	defer h.guard.Enter("OnLoadEnd")()
	if h.isClosed("OnLoadEnd") {
		return
	}

	if !frame.IsMain() {
		return
	}
	h.logger.Debug("Main frame loaded",
		zap.String("url", frame.URL()),
		zap.Int("http_status", httpStatusCode))
	h.cb.OnPageFinished(h.id, frame.URL())
}

// OnLoadError covers a first navigation that fails before it starts: any
// load error makes the webview ready too. Only main-frame errors reach the
// host.
func (h *Handler) OnLoadError(browser engine.Browser, frame engine.Frame, code engine.ErrorCode, errorText, failedURL string) {
	defer h.guard.Enter("OnLoadError")()
	if h.isClosed("OnLoadError") {
		return
	}

	h.markReady()
	if !frame.IsMain() {
		return
	}
	h.cb.OnWebResourceError(h.id, int(code), errorText, failedURL)
}

func (h *Handler) markReady() {
	if h.state != StateCreated {
		return
	}
	if h.transition(StateReady) {
		h.cb.OnBrowserReady(h.id)
	}
}

// ============================================================================
// Geometry and painting
// ============================================================================

// GetViewRect answers the engine's geometry query.
func (h *Handler) GetViewRect(browser engine.Browser) engine.Rect {
	defer h.guard.Enter("GetViewRect")()
	return engine.Rect{Width: h.width, Height: h.height}
}

// SetWebviewSize stores a new viewport size. Non-positive sizes are
// rejected, as is any resize once closing has started.
func (h *Handler) SetWebviewSize(width, height int) error {
	defer h.guard.Enter("SetWebviewSize")()

	switch h.state {
	case StateClosing:
		h.logger.Debug("Ignoring resize while closing")
		return ErrClosing
	case StateClosed:
		h.logger.Debug("Ignoring resize after close")
		return ErrClosed
	}

	if width <= 0 || height <= 0 {
		h.logger.Error("Width and height must be greater than 0",
			zap.Int("width", width), zap.Int("height", height))
		return fmt.Errorf("%w: got %dx%d", ErrInvalidSize, width, height)
	}

	h.width = width
	h.height = height
	return nil
}

// OnPaint composites one engine paint between the host's paint-begin and
// paint-end notifications. A view paint while a popup is placed also
// requests a popup repaint so the overlay is never stale.
func (h *Handler) OnPaint(browser engine.Browser, element engine.PaintElementType, dirtyRects []engine.Rect, buffer []byte, width, height int) {
	defer h.guard.Enter("OnPaint")()
	if h.isClosed("OnPaint") {
		return
	}

	h.cb.OnPaintBegin(h.id)

	if err := h.compositor.Paint(element, dirtyRects, buffer, width, height); err != nil {
		h.logger.Error("Dropping paint", zap.Stringer("element", element), zap.Error(err))
	} else {
		h.metrics.RecordPaint(element.String())
	}

	if element == engine.PaintView && !h.compositor.PopupRect().IsEmpty() {
		if browser == nil && h.browser != nil {
			browser = h.browser
		}
		if browser != nil {
			browser.Host().Invalidate(engine.PaintPopup)
			h.metrics.IncPopupInvalidates()
		}
	}

	h.cb.OnPaintEnd(h.id)
}

// OnPopupShow shows or hides the popup overlay for the next paint.
func (h *Handler) OnPopupShow(browser engine.Browser, show bool) {
	defer h.guard.Enter("OnPopupShow")()
	if h.isClosed("OnPopupShow") {
		return
	}
	h.compositor.OnPopupShow(show)
}

// OnPopupSize places the popup overlay for the next paint.
func (h *Handler) OnPopupSize(browser engine.Browser, rect engine.Rect) {
	defer h.guard.Enter("OnPopupSize")()
	if h.isClosed("OnPopupSize") {
		return
	}
	h.compositor.OnPopupSize(rect)
}

// ============================================================================
// Process messages
// ============================================================================

// OnProcessMessageReceived consumes run-javascript responses and forwards
// them to the host. Other kinds are left for other handlers. A malformed
// response is dropped but still reported as consumed.
func (h *Handler) OnProcessMessageReceived(browser engine.Browser, frame engine.Frame, source engine.ProcessID, msg *procmsg.ProcessMessage) bool {
	defer h.guard.Enter("OnProcessMessageReceived")()
	if h.isClosed("OnProcessMessageReceived") {
		return false
	}

	if msg == nil || procmsg.KindOf(msg.Name) != procmsg.KindRunJavascriptResponse {
		return false
	}

	decoded, err := procmsg.Decode(msg)
	if err != nil {
		h.logger.Error("Dropping malformed process message",
			zap.String("name", msg.Name), zap.Error(err))
		h.metrics.IncDecodeErrors()
		return true
	}

	switch m := decoded.(type) {
	case procmsg.RunJavascriptResponse:
		h.logger.Debug("Received javascript result", zap.Int("run_id", m.RunID))
		h.cb.OnJavascriptResult(h.id, m.RunID, m.WasExecuted, m.IsException, m.Result, m.IsUndefined)
		h.metrics.RecordJavascriptResult(javascriptOutcome(m))
		return true
	}
	return false
}

func javascriptOutcome(m procmsg.RunJavascriptResponse) string {
	switch {
	case !m.WasExecuted:
		return "not_executed"
	case m.IsException:
		return "exception"
	case m.IsUndefined:
		return "undefined"
	default:
		return "value"
	}
}

// ============================================================================
// Host requests
// ============================================================================

// LoadURL navigates the main frame.
func (h *Handler) LoadURL(url string) error {
	defer h.guard.Enter("LoadURL")()

	browser, err := h.liveBrowser()
	if err != nil {
		return err
	}
	browser.MainFrame().LoadURL(url)
	return nil
}

// RunJavascript sends a script to the renderer; the result comes back via
// OnProcessMessageReceived with the same runID.
func (h *Handler) RunJavascript(runID int, script string) error {
	defer h.guard.Enter("RunJavascript")()

	browser, err := h.liveBrowser()
	if err != nil {
		return err
	}
	msg := procmsg.Encode(procmsg.RunJavascript{RunID: runID, Script: script})
	browser.MainFrame().SendProcessMessage(engine.ProcessRenderer, msg)
	return nil
}

// NotifyResized asks the engine to query the viewport again.
func (h *Handler) NotifyResized() {
	defer h.guard.Enter("NotifyResized")()

	if browser, err := h.liveBrowser(); err == nil {
		browser.Host().WasResized()
	}
}

func (h *Handler) liveBrowser() (engine.Browser, error) {
	switch h.state {
	case StateBeforeCreated:
		return nil, ErrNotCreated
	case StateClosing:
		return nil, ErrClosing
	case StateClosed:
		return nil, ErrClosed
	}
	return h.browser, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (h *Handler) transition(to State) bool {
	from := h.state
	if !from.CanTransition(to) {
		h.logger.Error("Illegal lifecycle transition",
			zap.Stringer("from", from), zap.Stringer("to", to))
		return false
	}

	h.state = to
	h.history = append(h.history, to)
	h.metrics.RecordTransition(from.String(), to.String())
	h.logger.Debug("Lifecycle transition",
		zap.Stringer("from", from), zap.Stringer("to", to))
	return true
}

func (h *Handler) isClosed(callback string) bool {
	if h.state != StateClosed {
		return false
	}
	h.logger.Debug("Ignoring callback on closed webview", zap.String("callback", callback))
	return true
}

func chain(first, second func()) func() {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func() {
		first()
		second()
	}
}
