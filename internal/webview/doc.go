/*
Package webview is the core of the off-screen browser bridge.

A Handler is the engine client for exactly one browser. It owns:

  - the lifecycle: BeforeCreated -> Created -> Ready -> Closing -> Closed,
    where Ready fires once, on the first main-frame load start or the first
    load error, and Closed is terminal
  - the close protocol: only closes started through CloseBrowser pass the
    engine's DoClose gate; the completion runs after the browser is gone
  - the viewport the engine renders at, always at least 1x1
  - the composited surface (view plus popup overlay)
  - the run-javascript result relay

Handler methods must all run on the engine callback loop
(uithread.Loop). Controller wraps a Handler for use from any goroutine and
Manager keys controllers by a ULID-based ID.

	mgr := webview.NewManager(loop, eng, 0, logger)
	ctrl, err := mgr.Create(ctx, webview.CreationParams{
		Width: 1280, Height: 720, URL: "https://example.com",
		Callbacks: webview.Callbacks{OnBrowserReady: onReady},
	})
	...
	err = ctrl.Close(ctx)
*/
package webview
