package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-learnview/internal/http/response"
	"github.com/yungbote/neurobridge-learnview/internal/learning/diagrams"
	"github.com/yungbote/neurobridge-learnview/internal/learning/render"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

// maxRenderBytes bounds a single render request body.
const maxRenderBytes = 1 << 20

type RenderHandler struct {
	log      *logger.Logger
	renderer *render.Renderer
	resolver *diagrams.Resolver
}

// NewRenderHandler renders with renderer; a nil resolver leaves diagram
// placeholders in their loading state.
func NewRenderHandler(log *logger.Logger, renderer *render.Renderer, resolver *diagrams.Resolver) *RenderHandler {
	if log == nil {
		log = logger.Nop()
	}
	if renderer == nil {
		renderer = render.New(render.Options{})
	}
	return &RenderHandler{log: log.With("handler", "RenderHandler"), renderer: renderer, resolver: resolver}
}

type renderRequest struct {
	Content string `json:"content"`
}

type renderResponse struct {
	HTML     string   `json:"html"`
	Diagrams []string `json:"diagrams"`
}

// POST /api/render
func (h *RenderHandler) Render(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRenderBytes)
	var body renderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("content is required: %w", err))
		return
	}
	html := h.renderer.Render(body.Content)
	topics := diagrams.Topics(html)
	if topics == nil {
		topics = []string{}
	}
	if h.resolver != nil && len(topics) > 0 && c.Query("resolve") != "false" {
		resolved, err := h.resolver.Resolve(c.Request.Context(), html)
		if err != nil {
			h.log.Warn("diagram resolution aborted", "error", err)
			response.RespondError(c, http.StatusGatewayTimeout, "render_aborted", err)
			return
		}
		html = resolved
	}
	response.RespondOK(c, renderResponse{HTML: html, Diagrams: topics})
}
