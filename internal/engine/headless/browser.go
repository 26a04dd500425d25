package headless

import (
	"context"
	"hash/fnv"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
	"github.com/GriffinCanCode/AgentOS/webview/internal/procmsg"
	"github.com/GriffinCanCode/AgentOS/webview/internal/scriptrunner"
	"github.com/GriffinCanCode/AgentOS/webview/internal/uithread"
)

// Browser is one simulated browser. Its state is touched only on the
// callback loop, except the URL which frames report from any goroutine.
type Browser struct {
	engine *Engine
	id     int
	client engine.Client
	frame  *Frame
	logger *zap.Logger

	renderer *uithread.Loop
	runtime  *scriptrunner.Runtime
	ctx      context.Context
	cancel   context.CancelFunc

	mu  sync.RWMutex
	url string

	closed     bool
	popupShown bool
	popupRect  engine.Rect
}

var (
	_ engine.Browser = (*Browser)(nil)
	_ engine.Host    = (*Browser)(nil)
)

func newBrowser(e *Engine, id int, client engine.Client) *Browser {
	logger := e.logger.With(zap.Int("browser_id", id))
	ctx, cancel := context.WithCancel(context.Background())

	b := &Browser{
		engine:   e,
		id:       id,
		client:   client,
		logger:   logger,
		renderer: uithread.New(logger.Named("renderer")),
		runtime:  scriptrunner.New(e.config.Script, logger.Named("renderer")).WithMetrics(e.metrics),
		ctx:      ctx,
		cancel:   cancel,
	}
	b.frame = &Frame{browser: b}
	return b
}

// Identifier returns the engine-wide browser id.
func (b *Browser) Identifier() int { return b.id }

// MainFrame returns the only frame of the browser.
func (b *Browser) MainFrame() engine.Frame { return b.frame }

// Host returns the browser itself.
func (b *Browser) Host() engine.Host { return b }

// CloseBrowser asks the client through DoClose and tears down unless the
// close is cancelled. force only skips page unload handlers, which the
// simulation has none of.
func (b *Browser) CloseBrowser(force bool) {
	b.post(func() {
		if b.closed {
			return
		}
		if b.client.DoClose(b) {
			b.logger.Debug("Close cancelled by client", zap.Bool("force", force))
			return
		}
		b.teardown("close")
	})
}

// Invalidate schedules a full repaint of element.
func (b *Browser) Invalidate(element engine.PaintElementType) {
	b.post(func() { b.paint(element) })
}

// WasResized re-queries the view rect and repaints the view.
func (b *Browser) WasResized() {
	b.post(func() { b.paint(engine.PaintView) })
}

// ScriptClose simulates the page calling window.close().
func (b *Browser) ScriptClose() {
	b.CloseBrowser(false)
}

// OpenPopup simulates the page opening a new window for targetURL.
func (b *Browser) OpenPopup(targetURL string) {
	b.post(func() {
		if b.closed {
			return
		}
		if !b.client.OnBeforePopup(b, targetURL) {
			b.logger.Warn("Popup windows are not supported, dropping", zap.String("url", targetURL))
		}
	})
}

// ShowPopup simulates a popup widget (such as a select dropdown) at rect.
func (b *Browser) ShowPopup(rect engine.Rect) {
	b.post(func() {
		if b.closed {
			return
		}
		b.popupShown = true
		b.popupRect = rect
		b.client.OnPopupShow(b, true)
		b.client.OnPopupSize(b, rect)
		b.paint(engine.PaintView)
	})
}

// HidePopup removes the popup widget.
func (b *Browser) HidePopup() {
	b.post(func() {
		if b.closed || !b.popupShown {
			return
		}
		b.popupShown = false
		b.popupRect = engine.Rect{}
		b.client.OnPopupShow(b, false)
		b.paint(engine.PaintView)
	})
}

// Crash simulates the browser going away without any close request.
func (b *Browser) Crash() {
	b.post(func() { b.teardown("crash") })
}

// post runs fn on the callback loop. Posting after the loop stopped is
// logged and dropped.
func (b *Browser) post(fn func()) {
	if err := b.engine.loop.Post(fn); err != nil {
		b.logger.Debug("Dropping browser task", zap.Error(err))
	}
}

func (b *Browser) teardown(reason string) {
	if b.closed {
		return
	}
	b.closed = true
	b.logger.Debug("Destroying browser", zap.String("reason", reason))

	b.stopRenderer()
	b.client.OnBeforeClose(b)
	b.engine.forget(b)
}

func (b *Browser) stopRenderer() {
	b.cancel()
	b.renderer.Stop()
}

// navigate runs a whole simulated load on the callback loop.
func (b *Browser) navigate(rawURL string) {
	if b.closed {
		return
	}

	b.setURL(rawURL)
	_ = b.renderer.Post(func() { b.runtime.Navigate(rawURL) })

	b.client.OnLoadingProgressChange(b, 0.1)

	if code, text := checkURL(rawURL); code != engine.ErrNone {
		b.client.OnLoadError(b, b.frame, code, text, rawURL)
		b.client.OnLoadingProgressChange(b, 1.0)
		return
	}

	b.client.OnLoadStart(b, b.frame)
	b.client.OnLoadingProgressChange(b, 0.5)
	b.paint(engine.PaintView)
	b.client.OnLoadEnd(b, b.frame, 200)
	b.client.OnLoadingProgressChange(b, 1.0)
}

// paint renders element as a solid fill derived from the current URL.
func (b *Browser) paint(element engine.PaintElementType) {
	if b.closed {
		return
	}

	var rect engine.Rect
	switch element {
	case engine.PaintView:
		rect = b.client.GetViewRect(b)
		rect.X, rect.Y = 0, 0
	case engine.PaintPopup:
		if !b.popupShown || b.popupRect.IsEmpty() {
			return
		}
		rect = b.popupRect
	default:
		return
	}
	if rect.IsEmpty() {
		b.logger.Warn("Skipping paint of empty view", zap.Stringer("element", element))
		return
	}

	buffer := solidBGRA(rect.Width, rect.Height, fillColor(b.URL(), element))
	full := []engine.Rect{{Width: rect.Width, Height: rect.Height}}
	b.client.OnPaint(b, element, full, buffer, rect.Width, rect.Height)
}

// sendToRenderer ships msg over the wire codec to the renderer loop and
// posts the answer back to the callback loop.
func (b *Browser) sendToRenderer(msg *procmsg.ProcessMessage) {
	data, err := procmsg.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to encode process message", zap.Error(err))
		return
	}

	err = b.renderer.Post(func() {
		in, err := procmsg.Unmarshal(data)
		if err != nil {
			b.logger.Error("Renderer dropped process message", zap.Error(err))
			return
		}
		out, err := b.runtime.HandleMessage(b.ctx, in)
		if err != nil {
			b.logger.Error("Renderer rejected process message", zap.String("name", in.Name), zap.Error(err))
			return
		}
		reply, err := procmsg.Marshal(out)
		if err != nil {
			b.logger.Error("Failed to encode renderer reply", zap.Error(err))
			return
		}
		b.post(func() { b.deliver(reply) })
	})
	if err != nil {
		b.logger.Debug("Renderer is gone, dropping process message", zap.String("name", msg.Name))
	}
}

func (b *Browser) deliver(data []byte) {
	if b.closed {
		return
	}
	msg, err := procmsg.Unmarshal(data)
	if err != nil {
		b.logger.Error("Browser dropped renderer reply", zap.Error(err))
		return
	}
	if !b.client.OnProcessMessageReceived(b, b.frame, engine.ProcessRenderer, msg) {
		b.logger.Debug("Unhandled process message", zap.String("name", msg.Name))
	}
}

// URL returns the last committed URL.
func (b *Browser) URL() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.url
}

func (b *Browser) setURL(u string) {
	b.mu.Lock()
	b.url = u
	b.mu.Unlock()
}

// Frame is the main frame of a Browser.
type Frame struct {
	browser *Browser
}

var _ engine.Frame = (*Frame)(nil)

// IsMain is always true; the simulation has no subframes.
func (f *Frame) IsMain() bool { return true }

// URL returns the frame's URL.
func (f *Frame) URL() string { return f.browser.URL() }

// LoadURL starts an asynchronous navigation.
func (f *Frame) LoadURL(rawURL string) {
	f.browser.post(func() { f.browser.navigate(rawURL) })
}

// SendProcessMessage delivers msg to the target process. Only the renderer
// accepts messages.
func (f *Frame) SendProcessMessage(target engine.ProcessID, msg *procmsg.ProcessMessage) {
	if target != engine.ProcessRenderer {
		f.browser.logger.Warn("Dropping process message for unsupported target", zap.Int("target", int(target)))
		return
	}
	f.browser.sendToRenderer(msg)
}

// checkURL mimics the engine's early navigation failures.
func checkURL(rawURL string) (engine.ErrorCode, string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return engine.ErrInvalidURL, "net::ERR_INVALID_URL"
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Hostname() == "" {
			return engine.ErrInvalidURL, "net::ERR_INVALID_URL"
		}
		if strings.HasSuffix(u.Hostname(), ".invalid") {
			return engine.ErrNameNotResolved, "net::ERR_NAME_NOT_RESOLVED"
		}
		return engine.ErrNone, ""
	case "about", "data", "file":
		return engine.ErrNone, ""
	default:
		return engine.ErrUnknownURLScheme, "net::ERR_UNKNOWN_URL_SCHEME"
	}
}

// fillColor derives a stable opaque color for a page and layer.
func fillColor(pageURL string, element engine.PaintElementType) [4]byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pageURL))
	sum := h.Sum32()
	if element == engine.PaintPopup {
		sum = ^sum
	}
	// BGRA
	return [4]byte{byte(sum), byte(sum >> 8), byte(sum >> 16), 0xff}
}

func solidBGRA(width, height int, px [4]byte) []byte {
	buf := make([]byte, width*height*4)
	for i := 0; i < len(buf); i += 4 {
		copy(buf[i:i+4], px[:])
	}
	return buf
}
