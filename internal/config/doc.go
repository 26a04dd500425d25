// Package config provides 12-factor configuration management for the
// webview bridge.
//
// Values come from three layers, each overriding the previous one only
// where it sets a value: built-in defaults, an optional YAML file and
// environment variables.
//
// Configuration Sections:
//   - Server: HTTP listen address, shutdown timeout, CORS origins
//   - Logging: Log level and output format
//   - Webview: default viewport, start URL, close timeout, webview cap
//   - Script: renderer-side script timeout
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.Load(os.Getenv("WEBVIEW_CONFIG"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT, CORS_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - WEBVIEW_WIDTH, WEBVIEW_HEIGHT, WEBVIEW_START_URL, WEBVIEW_CLOSE_TIMEOUT, WEBVIEW_MAX
//   - SCRIPT_TIMEOUT
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
