// Package headless implements the engine contract in process. It drives
// the same callback sequences a real off-screen engine would: creation,
// navigation with progress, solid-color paints sized from GetViewRect,
// popup widgets, gated closes and run-javascript round trips through a
// renderer loop that only speaks the process message wire format.
package headless
