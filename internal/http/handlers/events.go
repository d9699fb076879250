package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-learnview/internal/modules/learnview"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

type EventsHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	sessions *learnview.Registry
}

func NewEventsHandler(log *logger.Logger, hub *realtime.SSEHub, sessions *learnview.Registry) *EventsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EventsHandler{log: log.With("handler", "EventsHandler"), hub: hub, sessions: sessions}
}

// GET /api/learn/sessions/:id/events
func (h *EventsHandler) Stream(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"), ownerID(c))
	if err != nil {
		respondLearnError(c, err)
		return
	}
	client := h.hub.NewSSEClient(s.OwnerID())
	h.hub.AddChannel(client, realtime.SessionChannel(s.ID()))
	h.log.Debug("SSE stream open", "session_id", s.ID(), "client_id", client.ID.String())

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "session_id", s.ID(), "client_id", client.ID.String())
}
