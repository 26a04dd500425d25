package engine

import (
	"github.com/GriffinCanCode/AgentOS/webview/internal/procmsg"
)

// PaintElementType distinguishes the main view surface from the popup
// overlay (select dropdowns and similar widgets).
type PaintElementType int

const (
	PaintView PaintElementType = iota
	PaintPopup
)

// String returns the string representation of the element type
func (t PaintElementType) String() string {
	switch t {
	case PaintView:
		return "view"
	case PaintPopup:
		return "popup"
	default:
		return "unknown"
	}
}

// ProcessID identifies the sending side of a process message
type ProcessID int

const (
	ProcessBrowser ProcessID = iota
	ProcessRenderer
)

// ErrorCode is a network error code reported on failed navigations.
// Values follow the negative net error numbering of the engine.
type ErrorCode int

const (
	ErrNone                 ErrorCode = 0
	ErrFailed               ErrorCode = -2
	ErrAborted              ErrorCode = -3
	ErrConnectionRefused    ErrorCode = -102
	ErrNameNotResolved      ErrorCode = -105
	ErrCertAuthorityInvalid ErrorCode = -202
	ErrInvalidURL           ErrorCode = -300
	ErrUnknownURLScheme     ErrorCode = -302
)

// Rect is an integer rectangle in view coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// IsEmpty reports whether the rectangle covers no pixels.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Browser is the engine's handle to one browser instance. The engine owns
// it; clients only reference it.
type Browser interface {
	Identifier() int
	MainFrame() Frame
	Host() Host
}

// Frame is a navigable document inside a browser.
type Frame interface {
	IsMain() bool
	URL() string
	LoadURL(url string)
	SendProcessMessage(target ProcessID, msg *procmsg.ProcessMessage)
}

// Host exposes browser-process operations on a browser.
type Host interface {
	// CloseBrowser requests close. A non-forced close asks the client
	// through DoClose before tearing down.
	CloseBrowser(force bool)
	// Invalidate schedules a repaint of the given element.
	Invalidate(element PaintElementType)
	// WasResized makes the engine query GetViewRect again.
	WasResized()
}

// LifeSpanHandler receives browser creation and teardown events.
type LifeSpanHandler interface {
	// OnBeforePopup returns true to block the popup window.
	OnBeforePopup(parent Browser, targetURL string) bool
	OnAfterCreated(browser Browser)
	// DoClose returns true to cancel the close.
	DoClose(browser Browser) bool
	OnBeforeClose(browser Browser)
}

// LoadHandler receives navigation events.
type LoadHandler interface {
	OnLoadingProgressChange(browser Browser, progress float64)
	OnLoadStart(browser Browser, frame Frame)
	OnLoadEnd(browser Browser, frame Frame, httpStatusCode int)
	OnLoadError(browser Browser, frame Frame, code ErrorCode, errorText, failedURL string)
}

// RenderHandler receives off-screen rendering queries and paints.
type RenderHandler interface {
	GetViewRect(browser Browser) Rect
	// OnPaint lends buffer (BGRA, width*height*4 bytes) for the duration
	// of the call only.
	OnPaint(browser Browser, element PaintElementType, dirtyRects []Rect, buffer []byte, width, height int)
	OnPopupShow(browser Browser, show bool)
	OnPopupSize(browser Browser, rect Rect)
}

// Client is the full callback surface an engine drives. Every method is
// invoked on the engine's callback loop.
type Client interface {
	LifeSpanHandler
	LoadHandler
	RenderHandler
	// OnProcessMessageReceived returns true when the message was consumed.
	OnProcessMessageReceived(browser Browser, frame Frame, source ProcessID, msg *procmsg.ProcessMessage) bool
}

// BrowserParams describes a browser to create.
type BrowserParams struct {
	URL    string
	Client Client
}

// Engine creates browsers. CreateBrowser is asynchronous: completion is
// signalled by Client.OnAfterCreated on the callback loop.
type Engine interface {
	CreateBrowser(params BrowserParams) error
}
