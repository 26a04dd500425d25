package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webview/internal/webview"
)

// statusFor maps webview errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, webview.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, webview.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, webview.ErrTooMany), errors.Is(err, webview.ErrLoopStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, webview.ErrClosed),
		errors.Is(err, webview.ErrClosing),
		errors.Is(err, webview.ErrNotCreated):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
