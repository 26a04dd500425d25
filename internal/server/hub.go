package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webview/internal/engine"
	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/webview/internal/webview"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Event types published on the stream.
const (
	EventCreated          = "created"
	EventReady            = "ready"
	EventPageStarted      = "page_started"
	EventPageFinished     = "page_finished"
	EventProgress         = "progress"
	EventLoadError        = "load_error"
	EventJavascriptResult = "javascript_result"
	EventFrame            = "frame"
	EventClosed           = "closed"
)

// Event is one webview notification sent to stream clients.
type Event struct {
	Type      string         `json:"type"`
	WebviewID webview.ID     `json:"webview_id"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type streamClient struct {
	id   id.ClientID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans webview events out to websocket clients. Publish never blocks;
// a client whose buffer is full misses the event.
type Hub struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[id.ClientID]*streamClient
	closed  bool
}

// NewHub creates an event hub.
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[id.ClientID]*streamClient),
	}
}

// Callbacks returns webview callbacks that publish every notification.
func (h *Hub) Callbacks() webview.Callbacks {
	return webview.Callbacks{
		OnAfterCreated: func(wid webview.ID, b engine.Browser) {
			h.Publish(newEvent(EventCreated, wid, map[string]any{"browser_id": b.Identifier()}))
		},
		OnBrowserReady: func(wid webview.ID) {
			h.Publish(newEvent(EventReady, wid, nil))
		},
		OnPageStarted: func(wid webview.ID, url string) {
			h.Publish(newEvent(EventPageStarted, wid, map[string]any{"url": url}))
		},
		OnPageFinished: func(wid webview.ID, url string) {
			h.Publish(newEvent(EventPageFinished, wid, map[string]any{"url": url}))
		},
		OnProgress: func(wid webview.ID, percent int) {
			h.Publish(newEvent(EventProgress, wid, map[string]any{"percent": percent}))
		},
		OnWebResourceError: func(wid webview.ID, code int, text, url string) {
			h.Publish(newEvent(EventLoadError, wid, map[string]any{
				"code": code,
				"text": text,
				"url":  url,
			}))
		},
		OnJavascriptResult: func(wid webview.ID, runID int, wasExecuted, isException bool, result string, isUndefined bool) {
			h.Publish(newEvent(EventJavascriptResult, wid, map[string]any{
				"run_id":       runID,
				"was_executed": wasExecuted,
				"is_exception": isException,
				"result":       result,
				"is_undefined": isUndefined,
			}))
		},
		OnPaintEnd: func(wid webview.ID) {
			h.Publish(newEvent(EventFrame, wid, nil))
		},
		OnBeforeClose: func(wid webview.ID, _ engine.Browser) {
			h.Publish(newEvent(EventClosed, wid, nil))
		},
	}
}

func newEvent(kind string, wid webview.ID, data map[string]any) Event {
	return Event{Type: kind, WebviewID: wid, Timestamp: time.Now().UnixMilli(), Data: data}
}

// Publish sends ev to every connected client.
func (h *Hub) Publish(ev Event) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
			h.metrics.RecordWSMessage("out", ev.Type)
		default:
			h.logger.Warn("Event stream backpressure, dropping event",
				zap.String("client_id", c.id.String()),
				zap.String("type", ev.Type))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams events until the
// client goes away or the hub closes.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &streamClient{
		id:   id.NewClientID(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.clients[client.id] = client
	h.mu.Unlock()

	h.metrics.IncWSConnections()
	h.logger.Info("Stream client connected",
		zap.String("client_id", client.id.String()),
		zap.String("remote_addr", c.Request.RemoteAddr))

	go h.writePump(client)
	h.readPump(client)
}

// streamRequest is the only message clients send.
type streamRequest struct {
	Type string `json:"type"`
}

func (h *Hub) readPump(client *streamClient) {
	defer func() {
		h.remove(client)
		h.metrics.DecWSConnections()
		h.logger.Info("Stream client disconnected", zap.String("client_id", client.id.String()))
	}()

	client.conn.SetReadLimit(4096)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var req streamRequest
		if err := sonic.Unmarshal(data, &req); err != nil {
			h.reply(client, map[string]any{"type": "error", "message": "invalid message format"})
			continue
		}
		h.metrics.RecordWSMessage("in", req.Type)

		switch req.Type {
		case "ping":
			h.reply(client, map[string]any{"type": "pong"})
		default:
			h.reply(client, map[string]any{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *Hub) reply(client *streamClient, msg map[string]any) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) writePump(client *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cid, c := range h.clients {
		delete(h.clients, cid)
		close(c.send)
	}
}
