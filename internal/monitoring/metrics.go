package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
//
// All record methods accept a nil receiver so components can run without
// metrics attached.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Webview metrics
	WebviewsActive    prometheus.Gauge
	WebviewsTotal     prometheus.Counter
	Transitions       *prometheus.CounterVec
	CloseDenied       prometheus.Counter
	CloseDuration     prometheus.Histogram
	Paints            *prometheus.CounterVec
	PopupInvalidates  prometheus.Counter
	DecodeErrors      prometheus.Counter
	JavascriptResults *prometheus.CounterVec
	ScriptDuration    prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Snapshot for JSON API
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint.
type Snapshot struct {
	TotalRequests     int64 `json:"total_requests"`
	TotalErrors       int64 `json:"total_errors"`
	ActiveWebviews    int64 `json:"active_webviews"`
	ActiveConnections int64 `json:"active_connections"`
	Paints            int64 `json:"paints"`
}

// NewMetrics creates a metrics collector with its own registry, which
// also carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Webview metrics
		WebviewsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webview_sessions_active",
				Help: "Number of webviews not yet closed",
			},
		),
		WebviewsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webview_sessions_total",
				Help: "Total number of webviews created",
			},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webview_lifecycle_transitions_total",
				Help: "Lifecycle state transitions",
			},
			[]string{"from", "to"},
		),
		CloseDenied: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webview_close_denied_total",
				Help: "Engine close attempts denied because no close was requested",
			},
		),
		CloseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webview_close_duration_seconds",
				Help:    "Time from close request to teardown",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		Paints: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webview_paints_total",
				Help: "Composited paints by layer",
			},
			[]string{"element"},
		),
		PopupInvalidates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webview_popup_invalidates_total",
				Help: "Popup repaints requested after a view paint",
			},
		),
		DecodeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webview_process_message_decode_errors_total",
				Help: "Malformed process messages dropped",
			},
		),
		JavascriptResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webview_javascript_results_total",
				Help: "Javascript results relayed to the host by outcome",
			},
			[]string{"outcome"},
		),
		ScriptDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webview_script_duration_seconds",
				Help:    "Renderer-side script execution time",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webview_ws_connections",
				Help: "Number of active event stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webview_ws_messages_total",
				Help: "Total number of event stream messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Snapshot returns the current JSON snapshot.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetWebviewsActive sets the number of open webviews
func (m *Metrics) SetWebviewsActive(count int) {
	if m == nil {
		return
	}
	m.WebviewsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveWebviews = int64(count)
	m.mu.Unlock()
}

// IncWebviewsTotal increments the created webviews counter
func (m *Metrics) IncWebviewsTotal() {
	if m == nil {
		return
	}
	m.WebviewsTotal.Inc()
}

// RecordTransition records one lifecycle transition
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// IncCloseDenied counts a denied engine close
func (m *Metrics) IncCloseDenied() {
	if m == nil {
		return
	}
	m.CloseDenied.Inc()
}

// RecordClose records how long a close took to complete
func (m *Metrics) RecordClose(duration time.Duration) {
	if m == nil {
		return
	}
	m.CloseDuration.Observe(duration.Seconds())
}

// RecordPaint counts a composited paint
func (m *Metrics) RecordPaint(element string) {
	if m == nil {
		return
	}
	m.Paints.WithLabelValues(element).Inc()
	m.mu.Lock()
	m.snapshot.Paints++
	m.mu.Unlock()
}

// IncPopupInvalidates counts a popup repaint request
func (m *Metrics) IncPopupInvalidates() {
	if m == nil {
		return
	}
	m.PopupInvalidates.Inc()
}

// IncDecodeErrors counts a dropped malformed process message
func (m *Metrics) IncDecodeErrors() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

// RecordJavascriptResult counts a relayed javascript result
func (m *Metrics) RecordJavascriptResult(outcome string) {
	if m == nil {
		return
	}
	m.JavascriptResults.WithLabelValues(outcome).Inc()
}

// RecordScript records renderer-side script execution time
func (m *Metrics) RecordScript(duration time.Duration) {
	if m == nil {
		return
	}
	m.ScriptDuration.Observe(duration.Seconds())
}

// RecordWSMessage records an event stream message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments event stream connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements event stream connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}
