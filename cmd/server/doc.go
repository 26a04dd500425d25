// Package main runs the webview bridge: an HTTP and websocket front end
// over off-screen browsers driven by the in-process headless engine.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (-config), then environment variables, then flags.
//
// Usage:
//
//	./server -config bridge.yaml
//	./server -port 9000 -dev
//
// Signals:
//   - SIGINT, SIGTERM: close every webview, stop the engine, exit
package main
