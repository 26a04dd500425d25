// Package server exposes webviews over HTTP and streams their events over
// a websocket.
//
// Routes:
//
//	POST   /webviews                  create (url, width, height optional)
//	GET    /webviews                  list
//	GET    /webviews/:id              info
//	GET    /webviews/:id/history      lifecycle history
//	PUT    /webviews/:id/size         resize
//	POST   /webviews/:id/navigate     load a URL in the main frame
//	POST   /webviews/:id/javascript   run a script, result arrives on /stream
//	GET    /webviews/:id/frame        composited frame as PNG
//	DELETE /webviews/:id              close and wait for teardown
//	GET    /stream                    websocket event stream
//	GET    /metrics                   Prometheus exposition
//	GET    /health                    JSON health snapshot
package server
