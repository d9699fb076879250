package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	"github.com/yungbote/neurobridge-learnview/internal/http/response"
	"github.com/yungbote/neurobridge-learnview/internal/modules/learnview"
	pkgerrors "github.com/yungbote/neurobridge-learnview/internal/pkg/errors"
	"github.com/yungbote/neurobridge-learnview/internal/platform/apierr"
	"github.com/yungbote/neurobridge-learnview/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

type LearnHandler struct {
	log      *logger.Logger
	sessions *learnview.Registry
}

func NewLearnHandler(log *logger.Logger, sessions *learnview.Registry) *LearnHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LearnHandler{log: log.With("handler", "LearnHandler"), sessions: sessions}
}

type createSessionRequest struct {
	learnview.Request
	// Wait holds the response until the first load finishes.
	Wait bool `json:"wait,omitempty"`
}

type completionRequest struct {
	Completed *bool `json:"completed"`
}

type appendMessagesRequest struct {
	Messages []learning.Message `json:"messages"`
}

type conversationResponse struct {
	Messages []learning.Message `json:"messages"`
}

// learnAPIError maps session errors onto HTTP status and code.
func learnAPIError(err error) error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return err
	}
	if q, ok := courseapi.AsQuota(err); ok {
		return apierr.New(http.StatusTooManyRequests, "quota_exceeded", q)
	}
	switch {
	case errors.Is(err, learnview.ErrSessionNotFound):
		return apierr.NotFound("session_not_found", err)
	case errors.Is(err, learnview.ErrLessonNotFound):
		return apierr.NotFound("lesson_not_found", err)
	case errors.Is(err, learnview.ErrNoCourse):
		return apierr.New(http.StatusConflict, "no_course", err)
	case errors.Is(err, learnview.ErrReconcileInFlight):
		return apierr.New(http.StatusConflict, "load_in_flight", err)
	case errors.Is(err, learnview.ErrSessionClosed):
		return apierr.New(http.StatusGone, "session_closed", err)
	case errors.Is(err, learnview.ErrUpgradeRequired):
		return apierr.New(http.StatusPaymentRequired, "upgrade_required", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return apierr.BadRequest("invalid_request", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return apierr.NotFound("not_found", err)
	case errors.Is(err, courseapi.ErrInvalidPayload):
		return apierr.New(http.StatusBadGateway, "invalid_payload", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apierr.New(http.StatusGatewayTimeout, "timeout", err)
	}
	var he *courseapi.HTTPError
	if errors.As(err, &he) {
		return apierr.New(http.StatusBadGateway, "content_api_error", err)
	}
	return apierr.New(http.StatusInternalServerError, "internal_error", err)
}

func respondLearnError(c *gin.Context, err error) {
	response.RespondAPIError(c, learnAPIError(err))
}

func ownerID(c *gin.Context) string {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return ""
}

func (h *LearnHandler) session(c *gin.Context) (*learnview.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"), ownerID(c))
	if err != nil {
		respondLearnError(c, err)
		return nil, false
	}
	return s, true
}

func lessonParams(c *gin.Context) (int, int, bool) {
	moduleID, mErr := strconv.Atoi(c.Param("moduleId"))
	lessonIndex, lErr := strconv.Atoi(c.Param("lessonIndex"))
	if mErr != nil || lErr != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_lesson", fmt.Errorf("moduleId and lessonIndex must be integers"))
		return 0, 0, false
	}
	return moduleID, lessonIndex, true
}

// POST /api/learn/sessions
func (h *LearnHandler) CreateSession(c *gin.Context) {
	var body createSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req, err := body.Request.Normalize()
	if err != nil {
		respondLearnError(c, err)
		return
	}
	s := h.sessions.Create(ownerID(c))
	if body.Wait {
		if err := s.Load(c.Request.Context(), req); err != nil {
			h.log.Debug("initial load finished with error", "session_id", s.ID(), "error", err)
		}
	} else {
		// The load outlives this request; the client follows it over SSE.
		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if err := s.Load(ctx, req); err != nil {
				h.log.Debug("initial load finished with error", "session_id", s.ID(), "error", err)
			}
		}()
	}
	c.JSON(http.StatusCreated, s.State())
}

// GET /api/learn/sessions/:id
func (h *LearnHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	response.RespondOK(c, s.State())
}

// POST /api/learn/sessions/:id/load
func (h *LearnHandler) Reload(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	// The body is optional; without one the previous request is reloaded.
	var req learnview.Request
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	if strings.TrimSpace(req.Topic) == "" && strings.TrimSpace(req.ID) == "" {
		req = s.State().Request
	}
	err := s.Load(c.Request.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, learnview.ErrReconcileInFlight),
		errors.Is(err, pkgerrors.ErrInvalidArgument),
		errors.Is(err, learnview.ErrSessionClosed):
		respondLearnError(c, err)
		return
	default:
		// Quota, upgrade and page errors are part of the state.
		h.log.Debug("reload finished with error", "session_id", s.ID(), "error", err)
	}
	response.RespondOK(c, s.State())
}

// DELETE /api/learn/sessions/:id
func (h *LearnHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id"), ownerID(c)); err != nil {
		respondLearnError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/learn/sessions/:id/quota
func (h *LearnHandler) DismissQuota(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.DismissQuota()
	response.RespondOK(c, s.State())
}

// POST /api/learn/sessions/:id/lessons/:moduleId/:lessonIndex/select
func (h *LearnHandler) SelectLesson(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	moduleID, lessonIndex, ok := lessonParams(c)
	if !ok {
		return
	}
	view, err := s.SelectLesson(c.Request.Context(), moduleID, lessonIndex)
	if err != nil {
		respondLearnError(c, err)
		return
	}
	if view.Status == learnview.LessonLoading && c.Query("wait") == "true" {
		view, err = s.WaitLesson(c.Request.Context(), moduleID, lessonIndex)
		if err != nil {
			respondLearnError(c, err)
			return
		}
	}
	response.RespondOK(c, view)
}

// GET /api/learn/sessions/:id/lessons/:moduleId/:lessonIndex
func (h *LearnHandler) GetLesson(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	moduleID, lessonIndex, ok := lessonParams(c)
	if !ok {
		return
	}
	view, err := s.Lesson(moduleID, lessonIndex)
	if err != nil {
		respondLearnError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// PUT /api/learn/sessions/:id/lessons/:moduleId/:lessonIndex/completion
func (h *LearnHandler) SetCompletion(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	moduleID, lessonIndex, ok := lessonParams(c)
	if !ok {
		return
	}
	var body completionRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Completed == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("completed is required"))
		return
	}
	view, err := s.SetLessonCompleted(c.Request.Context(), moduleID, lessonIndex, *body.Completed)
	if err != nil {
		respondLearnError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/learn/sessions/:id/conversation
func (h *LearnHandler) GetConversation(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	msgs, err := s.Conversation(c.Request.Context())
	if err != nil {
		respondLearnError(c, err)
		return
	}
	response.RespondOK(c, conversationResponse{Messages: nonNil(msgs)})
}

// POST /api/learn/sessions/:id/conversation
func (h *LearnHandler) AppendConversation(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var body appendMessagesRequest
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Messages) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("messages are required"))
		return
	}
	msgs, err := s.AppendMessages(c.Request.Context(), body.Messages...)
	if err != nil {
		respondLearnError(c, err)
		return
	}
	response.RespondOK(c, conversationResponse{Messages: nonNil(msgs)})
}

func nonNil(msgs []learning.Message) []learning.Message {
	if msgs == nil {
		return []learning.Message{}
	}
	return msgs
}
