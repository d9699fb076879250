package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCounter reports live sessions; learnview.Registry satisfies it.
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	sessions SessionCounter
}

func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.sessions == nil || c.Query("verbose") == "" {
		c.String(http.StatusOK, "ok")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.sessions.Len()})
}
