package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/webview/internal/config"
	"github.com/GriffinCanCode/AgentOS/webview/internal/engine/headless"
	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/scriptrunner"
	"github.com/GriffinCanCode/AgentOS/webview/internal/uithread"
	"github.com/GriffinCanCode/AgentOS/webview/internal/webview"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*httptest.Server
	server  *Server
	manager *webview.Manager
}

func newTestServer(t *testing.T, limit int) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	cfg.Webview.DefaultWidth = 40
	cfg.Webview.DefaultHeight = 30
	cfg.Webview.MaxWebviews = limit

	loop := uithread.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = loop.Run(ctx)
	}()

	metrics := monitoring.NewMetrics()
	eng := headless.New(loop, headless.Config{Script: scriptrunner.DefaultConfig()}, nil).WithMetrics(metrics)
	manager := webview.NewManager(loop, eng, limit, nil).WithMetrics(metrics)
	srv := New(Deps{Config: cfg, Manager: manager, Metrics: metrics})
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		_ = manager.Shutdown(shutdownCtx)
		_ = eng.Shutdown(shutdownCtx)
		cancel()
		<-stopped
	})
	return &testServer{Server: ts, server: srv, manager: manager}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (ts *testServer) create(t *testing.T, body string) webview.Info {
	t.Helper()

	resp, data := ts.do(t, http.MethodPost, "/webviews", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var info webview.Info
	require.NoError(t, sonic.Unmarshal(data, &info))
	require.NotEmpty(t, info.ID)

	require.Eventually(t, func() bool {
		_, data := ts.do(t, http.MethodGet, "/webviews/"+string(info.ID), "")
		var cur webview.Info
		return sonic.Unmarshal(data, &cur) == nil && cur.State == "ready"
	}, 2*time.Second, 10*time.Millisecond)
	return info
}

func TestCreateAppliesDefaults(t *testing.T) {
	ts := newTestServer(t, 8)
	info := ts.create(t, "")

	resp, data := ts.do(t, http.MethodGet, "/webviews/"+string(info.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cur webview.Info
	require.NoError(t, sonic.Unmarshal(data, &cur))
	assert.Equal(t, 40, cur.Width)
	assert.Equal(t, 30, cur.Height)
	assert.Equal(t, "about:blank", cur.URL)
}

func TestCreateClampsSize(t *testing.T) {
	ts := newTestServer(t, 8)
	info := ts.create(t, `{"url":"https://example.com/","width":0,"height":-5}`)

	_, data := ts.do(t, http.MethodGet, "/webviews/"+string(info.ID), "")
	var cur webview.Info
	require.NoError(t, sonic.Unmarshal(data, &cur))
	assert.Equal(t, 1, cur.Width)
	assert.Equal(t, 1, cur.Height)
}

func TestResizeAndFrame(t *testing.T) {
	ts := newTestServer(t, 8)
	info := ts.create(t, `{"url":"https://example.com/"}`)
	path := "/webviews/" + string(info.ID)

	resp, _ := ts.do(t, http.MethodPut, path+"/size", `{"width":-1,"height":10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data := ts.do(t, http.MethodPut, path+"/size", `{"width":0,"height":100}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), webview.ErrInvalidSize.Error())

	resp, _ = ts.do(t, http.MethodPut, path+"/size", `{"height":100}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, path+"/size", `{"width":20,"height":10}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, data := ts.do(t, http.MethodGet, path+"/frame", "")
		if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
			return false
		}
		img, err := png.Decode(bytes.NewReader(data))
		return err == nil && img.Bounds().Dx() == 20 && img.Bounds().Dy() == 10
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownWebview(t *testing.T) {
	ts := newTestServer(t, 8)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/webviews/wv_missing", ""},
		{http.MethodPut, "/webviews/wv_missing/size", `{"width":1,"height":1}`},
		{http.MethodPost, "/webviews/wv_missing/navigate", `{"url":"about:blank"}`},
		{http.MethodGet, "/webviews/wv_missing/frame", ""},
		{http.MethodDelete, "/webviews/wv_missing", ""},
	} {
		resp, _ := ts.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestCloseRemovesWebview(t *testing.T) {
	ts := newTestServer(t, 8)
	info := ts.create(t, "")
	path := "/webviews/" + string(info.ID)

	resp, _ := ts.do(t, http.MethodGet, path+"/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data := ts.do(t, http.MethodGet, "/webviews", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"count":0`)
}

func TestCreateRespectsLimit(t *testing.T) {
	ts := newTestServer(t, 1)
	ts.create(t, "")

	resp, _ := ts.do(t, http.MethodPost, "/webviews", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t, 8)
	info := ts.create(t, "")
	path := "/webviews/" + string(info.ID)

	resp, _ := ts.do(t, http.MethodPost, path+"/navigate", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, path+"/javascript", `{"script":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, 8)
	ts.create(t, "")

	resp, data := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"webviews":1`)

	resp, data = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "webview_sessions_total 1")
}

func dialStream(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The pong proves the client is registered with the hub.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, kind string) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev Event
		require.NoError(t, sonic.Unmarshal(data, &ev))
		if ev.Type == kind {
			return ev
		}
	}
}

func TestStreamDeliversLifecycleAndScriptResults(t *testing.T) {
	ts := newTestServer(t, 8)
	conn := dialStream(t, ts)

	info := ts.create(t, `{"url":"https://example.com/page"}`)
	ev := readUntil(t, conn, EventReady)
	assert.Equal(t, info.ID, ev.WebviewID)

	resp, data := ts.do(t, http.MethodPost, "/webviews/"+string(info.ID)+"/javascript",
		`{"script":"location.href"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))

	ev = readUntil(t, conn, EventJavascriptResult)
	assert.Equal(t, info.ID, ev.WebviewID)
	assert.Equal(t, true, ev.Data["was_executed"])
	assert.Equal(t, "https://example.com/page", ev.Data["result"])

	resp, _ = ts.do(t, http.MethodDelete, "/webviews/"+string(info.ID), "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	ev = readUntil(t, conn, EventClosed)
	assert.Equal(t, info.ID, ev.WebviewID)
}

func TestStreamRejectsUnknownMessages(t *testing.T) {
	ts := newTestServer(t, 8)
	conn := dialStream(t, ts)
	assert.Equal(t, 1, ts.server.Hub().Clients())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "unknown message type")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", webview.ErrNotFound): http.StatusNotFound,
		webview.ErrInvalidSize:                  http.StatusBadRequest,
		webview.ErrTooMany:                      http.StatusServiceUnavailable,
		webview.ErrLoopStopped:                  http.StatusServiceUnavailable,
		webview.ErrClosed:                       http.StatusConflict,
		webview.ErrClosing:                      http.StatusConflict,
		webview.ErrNotCreated:                   http.StatusConflict,
		context.DeadlineExceeded:                http.StatusGatewayTimeout,
		errors.New("boom"):                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
