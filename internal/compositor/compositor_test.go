package compositor

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
)

// solid returns a BGRA buffer filled with one color.
func solid(width, height int, c color.RGBA) []byte {
	buf := make([]byte, width*height*4)
	for i := 0; i < len(buf); i += 4 {
		buf[i+0] = c.B
		buf[i+1] = c.G
		buf[i+2] = c.R
		buf[i+3] = c.A
	}
	return buf
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
)

func TestPaintConvertsBGRA(t *testing.T) {
	c := New()

	require.NoError(t, c.Paint(engine.PaintView, nil, solid(4, 3, red), 4, 3))

	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 4, snap.Bounds().Dx())
	assert.Equal(t, 3, snap.Bounds().Dy())
	assert.Equal(t, red, snap.RGBAAt(0, 0))
	assert.Equal(t, red, snap.RGBAAt(3, 2))
}

func TestPaintOnlyTouchesDirtyRects(t *testing.T) {
	c := New()
	require.NoError(t, c.Paint(engine.PaintView, nil, solid(10, 10, red), 10, 10))

	dirty := []engine.Rect{{X: 2, Y: 2, Width: 3, Height: 3}}
	require.NoError(t, c.Paint(engine.PaintView, dirty, solid(10, 10, green), 10, 10))

	snap := c.Snapshot()
	assert.Equal(t, red, snap.RGBAAt(0, 0))
	assert.Equal(t, green, snap.RGBAAt(2, 2))
	assert.Equal(t, green, snap.RGBAAt(4, 4))
	assert.Equal(t, red, snap.RGBAAt(5, 5))
}

func TestPaintClipsDirtyRectsToFrame(t *testing.T) {
	c := New()
	require.NoError(t, c.Paint(engine.PaintView, nil, solid(5, 5, red), 5, 5))

	dirty := []engine.Rect{{X: 3, Y: 3, Width: 100, Height: 100}, {X: 50, Y: 50, Width: 2, Height: 2}}
	require.NoError(t, c.Paint(engine.PaintView, dirty, solid(5, 5, blue), 5, 5))

	snap := c.Snapshot()
	assert.Equal(t, blue, snap.RGBAAt(4, 4))
	assert.Equal(t, red, snap.RGBAAt(2, 2))
}

func TestPaintResizeRepaintsWholeFrame(t *testing.T) {
	c := New()
	require.NoError(t, c.Paint(engine.PaintView, nil, solid(4, 4, red), 4, 4))

	// Dirty set only covers one pixel but the surface grew.
	dirty := []engine.Rect{{X: 0, Y: 0, Width: 1, Height: 1}}
	require.NoError(t, c.Paint(engine.PaintView, dirty, solid(8, 6, green), 8, 6))

	w, h := c.ViewSize()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)
	assert.Equal(t, green, c.Snapshot().RGBAAt(7, 5))
}

func TestPaintRejectsBadInput(t *testing.T) {
	c := New()

	assert.ErrorIs(t, c.Paint(engine.PaintView, nil, make([]byte, 10), 4, 4), ErrShortBuffer)
	assert.ErrorIs(t, c.Paint(engine.PaintView, nil, nil, 0, 4), ErrInvalidSize)
	assert.ErrorIs(t, c.Paint(engine.PaintElementType(7), nil, solid(1, 1, red), 1, 1), ErrUnknownLayer)
	assert.Nil(t, c.Snapshot())
}

func TestPopupOverlay(t *testing.T) {
	c := New()
	require.NoError(t, c.Paint(engine.PaintView, nil, solid(20, 20, red), 20, 20))

	c.OnPopupShow(true)
	c.OnPopupSize(engine.Rect{X: 5, Y: 5, Width: 4, Height: 4})
	require.NoError(t, c.Paint(engine.PaintPopup, nil, solid(4, 4, blue), 4, 4))

	snap := c.Snapshot()
	assert.Equal(t, blue, snap.RGBAAt(5, 5))
	assert.Equal(t, blue, snap.RGBAAt(8, 8))
	assert.Equal(t, red, snap.RGBAAt(9, 9))

	c.OnPopupShow(false)
	assert.True(t, c.PopupRect().IsEmpty())
	assert.False(t, c.PopupVisible())
	assert.Equal(t, red, c.Snapshot().RGBAAt(5, 5))
}

func TestPopupSizeClampedIntoView(t *testing.T) {
	c := New()
	require.NoError(t, c.Paint(engine.PaintView, nil, solid(100, 50, red), 100, 50))

	c.OnPopupSize(engine.Rect{X: 90, Y: 45, Width: 30, Height: 20})
	assert.Equal(t, engine.Rect{X: 70, Y: 30, Width: 30, Height: 20}, c.PopupRect())

	c.OnPopupSize(engine.Rect{X: -5, Y: -5, Width: 10, Height: 10})
	assert.Equal(t, engine.Rect{X: 0, Y: 0, Width: 10, Height: 10}, c.PopupRect())

	c.OnPopupSize(engine.Rect{X: 10, Y: 10})
	assert.True(t, c.PopupRect().IsEmpty())
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New()
	require.NoError(t, c.Paint(engine.PaintView, nil, solid(2, 2, red), 2, 2))

	snap := c.Snapshot()
	snap.SetRGBA(0, 0, green)

	assert.Equal(t, red, c.Snapshot().RGBAAt(0, 0))
}
