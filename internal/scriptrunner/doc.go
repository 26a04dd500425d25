// Package scriptrunner executes page scripts on the renderer side of the
// headless engine using goja, and answers run-javascript process messages.
package scriptrunner
