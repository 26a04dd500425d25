package webview

import (
	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
)

// ID is the opaque identifier the host assigns to a webview.
type ID string

// Callbacks is the host-facing notification set. Every callback runs on the
// callback loop and receives the webview id first. Nil entries are skipped.
type Callbacks struct {
	OnPaintBegin       func(id ID)
	OnPaintEnd         func(id ID)
	OnPageStarted      func(id ID, url string)
	OnPageFinished     func(id ID, url string)
	OnProgress         func(id ID, percent int)
	OnWebResourceError func(id ID, code int, text, url string)
	OnJavascriptResult func(id ID, runID int, wasExecuted, isException bool, result string, isUndefined bool)
	OnAfterCreated     func(id ID, browser engine.Browser)
	OnBrowserReady     func(id ID)
	OnBeforeClose      func(id ID, browser engine.Browser)
}

// withDefaults fills nil callbacks with no-ops.
func (c Callbacks) withDefaults() Callbacks {
	if c.OnPaintBegin == nil {
		c.OnPaintBegin = func(ID) {}
	}
	if c.OnPaintEnd == nil {
		c.OnPaintEnd = func(ID) {}
	}
	if c.OnPageStarted == nil {
		c.OnPageStarted = func(ID, string) {}
	}
	if c.OnPageFinished == nil {
		c.OnPageFinished = func(ID, string) {}
	}
	if c.OnProgress == nil {
		c.OnProgress = func(ID, int) {}
	}
	if c.OnWebResourceError == nil {
		c.OnWebResourceError = func(ID, int, string, string) {}
	}
	if c.OnJavascriptResult == nil {
		c.OnJavascriptResult = func(ID, int, bool, bool, string, bool) {}
	}
	if c.OnAfterCreated == nil {
		c.OnAfterCreated = func(ID, engine.Browser) {}
	}
	if c.OnBrowserReady == nil {
		c.OnBrowserReady = func(ID) {}
	}
	if c.OnBeforeClose == nil {
		c.OnBeforeClose = func(ID, engine.Browser) {}
	}
	return c
}

// CreationParams describes a webview to create.
type CreationParams struct {
	Width     int
	Height    int
	URL       string
	Callbacks Callbacks
}
