package server

import (
	"bytes"
	"context"
	"image/png"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/webview/internal/webview"
)

type createRequest struct {
	URL    string `json:"url"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

// Zero sizes must reach Resize; only a missing field fails binding.
type resizeRequest struct {
	Width  *int `json:"width" binding:"required"`
	Height *int `json:"height" binding:"required"`
}

type navigateRequest struct {
	URL string `json:"url" binding:"required"`
}

type javascriptRequest struct {
	Script string `json:"script" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"webviews":       s.manager.Count(),
		"stream_clients": s.hub.Clients(),
		"metrics":        s.metrics.Snapshot(),
	})
}

func (s *Server) createWebview(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	params := webview.CreationParams{
		URL:       req.URL,
		Width:     s.config.Webview.DefaultWidth,
		Height:    s.config.Webview.DefaultHeight,
		Callbacks: s.hub.Callbacks(),
	}
	if params.URL == "" {
		params.URL = s.config.Webview.StartURL
	}
	if req.Width != nil {
		params.Width = *req.Width
	}
	if req.Height != nil {
		params.Height = *req.Height
	}

	ctrl, err := s.manager.Create(c.Request.Context(), params)
	if err != nil {
		s.fail(c, err)
		return
	}

	info, err := ctrl.Info(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) listWebviews(c *gin.Context) {
	ctrls := s.manager.List()
	infos := make([]webview.Info, 0, len(ctrls))
	for _, ctrl := range ctrls {
		info, err := ctrl.Info(c.Request.Context())
		if err != nil {
			s.fail(c, err)
			return
		}
		infos = append(infos, info)
	}
	c.JSON(http.StatusOK, gin.H{"webviews": infos, "count": len(infos)})
}

func (s *Server) getWebview(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	info, err := ctrl.Info(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getHistory(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	history, err := ctrl.History(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	states := make([]string, len(history))
	for i, st := range history {
		states[i] = st.String()
	}
	c.JSON(http.StatusOK, gin.H{"id": ctrl.ID(), "history": states})
}

func (s *Server) resizeWebview(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctrl.Resize(c.Request.Context(), *req.Width, *req.Height); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": ctrl.ID(), "width": *req.Width, "height": *req.Height})
}

func (s *Server) navigate(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctrl.LoadURL(c.Request.Context(), req.URL); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": ctrl.ID(), "url": req.URL})
}

func (s *Server) runJavascript(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	var req javascriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runID, err := ctrl.RunJavascript(c.Request.Context(), req.Script)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": ctrl.ID(), "run_id": runID})
}

func (s *Server) frame(c *gin.Context) {
	ctrl, ok := s.lookup(c)
	if !ok {
		return
	}
	img, err := ctrl.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no frame painted yet"})
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) closeWebview(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.Webview.CloseTimeout)
	defer cancel()

	if err := s.manager.Close(ctx, webview.ID(c.Param("id"))); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) lookup(c *gin.Context) (*webview.Controller, bool) {
	ctrl, err := s.manager.Get(webview.ID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return ctrl, true
}
