/*
Package monitoring provides Prometheus metrics for the webview bridge.

# Overview

Each Metrics value owns a private registry, so several bridges (or tests)
can coexist in one process without duplicate registration panics.

# Features

- HTTP request metrics (latency, status)
- Webview lifecycle metrics (active, created, transitions, denied closes)
- Paint metrics per layer and popup repaint requests
- Process message decode failures and javascript outcomes
- Event stream connection metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics.RecordClose)
	// ... close the webview ...
	timer.Stop()
*/
package monitoring
