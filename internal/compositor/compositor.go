package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
)

var (
	ErrShortBuffer  = errors.New("compositor: buffer smaller than width*height*4")
	ErrInvalidSize  = errors.New("compositor: frame dimensions must be positive")
	ErrUnknownLayer = errors.New("compositor: unknown paint element type")
)

const bytesPerPixel = 4

// Compositor merges dirty-rectangle BGRA paints into an RGBA view surface
// and a popup layer drawn over it.
//
// It is not safe for concurrent use; the owning webview handler calls it
// from its callback loop only.
type Compositor struct {
	view  *image.RGBA
	popup *image.RGBA

	popupVisible bool
	popupRect    engine.Rect
}

// New creates an empty compositor.
func New() *Compositor {
	return &Compositor{}
}

// Paint copies the dirty regions of buffer into the layer selected by
// element. buffer is only read during the call.
func (c *Compositor) Paint(element engine.PaintElementType, dirtyRects []engine.Rect, buffer []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if len(buffer) < width*height*bytesPerPixel {
		return fmt.Errorf("%w: have %d bytes for %dx%d", ErrShortBuffer, len(buffer), width, height)
	}

	var layer **image.RGBA
	switch element {
	case engine.PaintView:
		layer = &c.view
	case engine.PaintPopup:
		layer = &c.popup
	default:
		return fmt.Errorf("%w: %d", ErrUnknownLayer, element)
	}

	full := image.Rect(0, 0, width, height)
	if *layer == nil || (*layer).Bounds() != full {
		*layer = image.NewRGBA(full)
		// A resized surface has no valid content outside the dirty set.
		dirtyRects = nil
	}

	if len(dirtyRects) == 0 {
		copyBGRA(*layer, buffer, width, full)
		return nil
	}
	for _, r := range dirtyRects {
		rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Intersect(full)
		if rect.Empty() {
			continue
		}
		copyBGRA(*layer, buffer, width, rect)
	}
	return nil
}

// OnPopupShow toggles the popup layer. Hiding discards its geometry and
// pixels.
func (c *Compositor) OnPopupShow(show bool) {
	c.popupVisible = show
	if !show {
		c.popupRect = engine.Rect{}
		c.popup = nil
	}
}

// OnPopupSize places the popup, shifted so it stays inside the view.
func (c *Compositor) OnPopupSize(rect engine.Rect) {
	if rect.IsEmpty() {
		c.popupRect = engine.Rect{}
		return
	}
	c.popupRect = c.clampToView(rect)
}

// PopupRect returns the current popup geometry in view coordinates.
func (c *Compositor) PopupRect() engine.Rect {
	return c.popupRect
}

// PopupVisible reports whether the popup layer is shown.
func (c *Compositor) PopupVisible() bool {
	return c.popupVisible
}

// ViewSize returns the size of the last painted view surface.
func (c *Compositor) ViewSize() (int, int) {
	if c.view == nil {
		return 0, 0
	}
	b := c.view.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot returns a copy of the composed frame: the view with the popup
// drawn over it when visible. It returns nil before the first view paint.
func (c *Compositor) Snapshot() *image.RGBA {
	if c.view == nil {
		return nil
	}

	out := image.NewRGBA(c.view.Bounds())
	draw.Draw(out, out.Bounds(), c.view, image.Point{}, draw.Src)

	if c.popupVisible && c.popup != nil && !c.popupRect.IsEmpty() {
		dst := image.Rect(c.popupRect.X, c.popupRect.Y,
			c.popupRect.X+c.popupRect.Width, c.popupRect.Y+c.popupRect.Height)
		draw.Draw(out, dst, c.popup, image.Point{}, draw.Over)
	}
	return out
}

func (c *Compositor) clampToView(rect engine.Rect) engine.Rect {
	if c.view == nil {
		return rect
	}
	vw, vh := c.ViewSize()

	if rect.X+rect.Width > vw {
		rect.X = vw - rect.Width
	}
	if rect.Y+rect.Height > vh {
		rect.Y = vh - rect.Height
	}
	if rect.X < 0 {
		rect.X = 0
	}
	if rect.Y < 0 {
		rect.Y = 0
	}
	return rect
}

// copyBGRA converts rect of a tightly packed BGRA buffer with the given
// row width into dst.
func copyBGRA(dst *image.RGBA, buffer []byte, width int, rect image.Rectangle) {
	stride := width * bytesPerPixel
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		src := buffer[y*stride+rect.Min.X*bytesPerPixel : y*stride+rect.Max.X*bytesPerPixel]
		row := dst.Pix[dst.PixOffset(rect.Min.X, y):]
		for i := 0; i < len(src); i += bytesPerPixel {
			row[i+0] = src[i+2]
			row[i+1] = src[i+1]
			row[i+2] = src[i+0]
			row[i+3] = src[i+3]
		}
	}
}
