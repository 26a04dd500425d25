package webview

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
	"github.com/GriffinCanCode/AgentOS/webview/internal/procmsg"
)

type fakeHost struct {
	closes      []bool
	invalidates []engine.PaintElementType
	resized     int
}

func (h *fakeHost) CloseBrowser(force bool)               { h.closes = append(h.closes, force) }
func (h *fakeHost) Invalidate(el engine.PaintElementType) { h.invalidates = append(h.invalidates, el) }
func (h *fakeHost) WasResized()                           { h.resized++ }

type sentMessage struct {
	target engine.ProcessID
	msg    *procmsg.ProcessMessage
}

type fakeFrame struct {
	main  bool
	url   string
	loads []string
	sent  []sentMessage
}

func (f *fakeFrame) IsMain() bool       { return f.main }
func (f *fakeFrame) URL() string        { return f.url }
func (f *fakeFrame) LoadURL(url string) { f.loads = append(f.loads, url) }
func (f *fakeFrame) SendProcessMessage(target engine.ProcessID, msg *procmsg.ProcessMessage) {
	f.sent = append(f.sent, sentMessage{target: target, msg: msg})
}

type fakeBrowser struct {
	frame *fakeFrame
	host  *fakeHost
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		frame: &fakeFrame{main: true, url: "https://example.com/"},
		host:  &fakeHost{},
	}
}

func (b *fakeBrowser) Identifier() int         { return 1 }
func (b *fakeBrowser) MainFrame() engine.Frame { return b.frame }
func (b *fakeBrowser) Host() engine.Host       { return b.host }

func subFrame() *fakeFrame {
	return &fakeFrame{main: false, url: "https://ads.example.com/"}
}

// recorder collects host callbacks in order.
type recorder struct {
	events     []string
	ready      int
	jsResults  [][]any
	created    engine.Browser
	closedWith engine.Browser
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnPaintBegin:   func(ID) { r.add("paint_begin") },
		OnPaintEnd:     func(ID) { r.add("paint_end") },
		OnPageStarted:  func(_ ID, url string) { r.add("page_started %s", url) },
		OnPageFinished: func(_ ID, url string) { r.add("page_finished %s", url) },
		OnProgress:     func(_ ID, p int) { r.add("progress %d", p) },
		OnWebResourceError: func(_ ID, code int, text, url string) {
			r.add("resource_error %d %s %s", code, text, url)
		},
		OnJavascriptResult: func(_ ID, runID int, wasExecuted, isException bool, result string, isUndefined bool) {
			r.jsResults = append(r.jsResults, []any{runID, wasExecuted, isException, result, isUndefined})
		},
		OnAfterCreated: func(_ ID, b engine.Browser) {
			r.created = b
			r.add("after_created")
		},
		OnBrowserReady: func(ID) {
			r.ready++
			r.add("ready")
		},
		OnBeforeClose: func(_ ID, b engine.Browser) {
			r.closedWith = b
			r.add("before_close")
		},
	}
}

type fixture struct {
	h       *Handler
	rec     *recorder
	browser *fakeBrowser
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, width, height int) *fixture {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	rec := &recorder{}
	h := NewHandler("wv_test", CreationParams{
		Width:     width,
		Height:    height,
		URL:       "https://example.com/",
		Callbacks: rec.callbacks(),
	}, zap.New(core))

	return &fixture{h: h, rec: rec, browser: newFakeBrowser(), logs: logs}
}

// ready drives the fixture to StateReady.
func (f *fixture) ready() *fixture {
	f.h.OnAfterCreated(f.browser)
	f.h.OnLoadStart(f.browser, f.browser.frame)
	return f
}

// closed drives the fixture through a full host-initiated close.
func (f *fixture) closed() *fixture {
	f.h.CloseBrowser(nil)
	f.h.DoClose(f.browser)
	f.h.OnBeforeClose(f.browser)
	return f
}
