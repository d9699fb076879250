package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/neurobridge-learnview/internal/clients/courseapi"
	"github.com/yungbote/neurobridge-learnview/internal/data/localstore"
	"github.com/yungbote/neurobridge-learnview/internal/domain/learning"
	httpMW "github.com/yungbote/neurobridge-learnview/internal/http/middleware"
	"github.com/yungbote/neurobridge-learnview/internal/learning/diagrams"
	"github.com/yungbote/neurobridge-learnview/internal/learning/render"
	"github.com/yungbote/neurobridge-learnview/internal/modules/learnview"
	pkgerrors "github.com/yungbote/neurobridge-learnview/internal/pkg/errors"
	"github.com/yungbote/neurobridge-learnview/internal/platform/apierr"
)

// stubAPI serves one library course and echoes lesson titles.
type stubAPI struct{}

func (stubAPI) LibraryItem(context.Context, string) (*courseapi.LibraryItem, error) {
	return nil, &courseapi.HTTPError{StatusCode: http.StatusNotFound}
}

func (stubAPI) SearchLibrary(context.Context, string, int) ([]courseapi.LibraryItem, error) {
	return []courseapi.LibraryItem{{
		ID: "c1", Topic: "Go", Difficulty: "beginner",
		Modules: []learning.Module{{Title: "Basics", Lessons: []learning.Lesson{{Title: "Intro"}, {Title: "Types"}}}},
	}}, nil
}

func (stubAPI) SearchCollection(context.Context, learning.Format, string, int) ([]courseapi.LibraryItem, error) {
	return nil, nil
}

func (stubAPI) SaveCourse(context.Context, courseapi.GenerateRequest, courseapi.LibraryItem) error {
	return nil
}

func (stubAPI) GenerateCourse(context.Context, courseapi.GenerateRequest) (*courseapi.GenerateResponse, error) {
	return nil, &courseapi.QuotaError{Used: 5, Limit: 5}
}

func (stubAPI) GenerateFlashcards(context.Context, string, string) (*courseapi.GenerateResponse, error) {
	return nil, &courseapi.QuotaError{Used: 5, Limit: 5}
}

func (stubAPI) GenerateLesson(_ context.Context, req courseapi.LessonRequest) (string, error) {
	return "## " + req.LessonTitle, nil
}

func (stubAPI) SaveProgress(context.Context, courseapi.ProgressUpdate) error { return nil }

func (stubAPI) SaveConversation(context.Context, learning.Scope, []learning.Message) error {
	return nil
}

func (stubAPI) Conversation(context.Context, learning.Scope) ([]learning.Message, error) {
	return nil, nil
}

func (stubAPI) Usage(context.Context) (*courseapi.Usage, error) {
	return &courseapi.Usage{Used: 1, Limit: 5}, nil
}

func newTestRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := localstore.NewStore(localstore.NewMemoryKV(0), nil, 0)
	reg := learnview.NewRegistry(learnview.Deps{API: stubAPI{}, Store: store})
	t.Cleanup(reg.CloseAll)

	catalog, err := diagrams.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	learn := NewLearnHandler(nil, reg)
	rh := NewRenderHandler(nil, render.New(render.Options{}), diagrams.NewResolver(catalog, nil))
	auth := httpMW.NewAuthMiddleware(nil, secret)

	r := gin.New()
	api := r.Group("/api", auth.RequireAuth())
	api.POST("/render", rh.Render)
	api.POST("/learn/sessions", learn.CreateSession)
	api.GET("/learn/sessions/:id", learn.GetSession)
	api.DELETE("/learn/sessions/:id", learn.DeleteSession)
	api.POST("/learn/sessions/:id/load", learn.Reload)
	api.DELETE("/learn/sessions/:id/quota", learn.DismissQuota)
	api.POST("/learn/sessions/:id/lessons/:moduleId/:lessonIndex/select", learn.SelectLesson)
	api.GET("/learn/sessions/:id/lessons/:moduleId/:lessonIndex", learn.GetLesson)
	api.PUT("/learn/sessions/:id/lessons/:moduleId/:lessonIndex/completion", learn.SetCompletion)
	api.GET("/learn/sessions/:id/conversation", learn.GetConversation)
	api.POST("/learn/sessions/:id/conversation", learn.AppendConversation)
	r.GET("/healthcheck", NewHealthHandler(reg).HealthCheck)
	return r
}

func do(t *testing.T, r http.Handler, method, target, body, token string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func TestLearnSessionFlow(t *testing.T) {
	r := newTestRouter(t, "")

	var st learnview.State
	if code := do(t, r, http.MethodPost, "/api/learn/sessions", `{"topic":"go","difficulty":"Beginner","wait":true}`, "", &st); code != http.StatusCreated {
		t.Fatalf("create: status=%d", code)
	}
	if st.Course == nil || st.Course.ID != "c1" || st.Loading {
		t.Fatalf("create state: %+v", st)
	}
	base := "/api/learn/sessions/" + st.ID

	var view learnview.LessonView
	if code := do(t, r, http.MethodPost, base+"/lessons/1/1/select?wait=true", "", "", &view); code != http.StatusOK {
		t.Fatalf("select: status=%d", code)
	}
	if view.Status != learnview.LessonReady || view.Content != "## Types" {
		t.Fatalf("select view: %+v", view)
	}
	if code := do(t, r, http.MethodGet, base+"/lessons/1/1", "", "", &view); code != http.StatusOK || view.Content != "## Types" {
		t.Fatalf("get lesson: status=%d view=%+v", code, view)
	}

	var pv learnview.ProgressView
	if code := do(t, r, http.MethodPut, base+"/lessons/1/1/completion", `{"completed":true}`, "", &pv); code != http.StatusOK {
		t.Fatalf("completion: status=%d", code)
	}
	if pv.Progress != 50 || pv.Lesson != "1-1" {
		t.Fatalf("progress view: %+v", pv)
	}
	if code := do(t, r, http.MethodPut, base+"/lessons/1/1/completion", `{}`, "", nil); code != http.StatusBadRequest {
		t.Fatalf("completion without flag: status=%d", code)
	}

	var conv conversationResponse
	if code := do(t, r, http.MethodGet, base+"/conversation", "", "", &conv); code != http.StatusOK || conv.Messages == nil {
		t.Fatalf("conversation: status=%d body=%+v", code, conv)
	}
	if code := do(t, r, http.MethodPost, base+"/conversation", `{"messages":[{"type":"user","message":"hi"}]}`, "", &conv); code != http.StatusOK || len(conv.Messages) != 1 {
		t.Fatalf("append: status=%d body=%+v", code, conv)
	}

	var eb errorBody
	if code := do(t, r, http.MethodGet, base+"/lessons/9/0", "", "", &eb); code != http.StatusNotFound || eb.Error.Code != "lesson_not_found" {
		t.Fatalf("missing lesson: status=%d body=%+v", code, eb)
	}
	if code := do(t, r, http.MethodGet, base+"/lessons/x/0", "", "", nil); code != http.StatusBadRequest {
		t.Fatalf("bad lesson params: status=%d", code)
	}

	if code := do(t, r, http.MethodDelete, base, "", "", nil); code != http.StatusNoContent {
		t.Fatalf("delete: status=%d", code)
	}
	eb = errorBody{}
	if code := do(t, r, http.MethodGet, base, "", "", &eb); code != http.StatusNotFound || eb.Error.Code != "session_not_found" {
		t.Fatalf("after delete: status=%d body=%+v", code, eb)
	}
}

func TestReloadWithoutBodyRepeatsPreviousRequest(t *testing.T) {
	r := newTestRouter(t, "")

	var st learnview.State
	if code := do(t, r, http.MethodPost, "/api/learn/sessions", `{"topic":"Go","wait":true}`, "", &st); code != http.StatusCreated {
		t.Fatalf("create: status=%d", code)
	}
	base := "/api/learn/sessions/" + st.ID

	for _, body := range []string{"", "{}"} {
		st = learnview.State{}
		if code := do(t, r, http.MethodPost, base+"/load", body, "", &st); code != http.StatusOK {
			t.Fatalf("reload body=%q: status=%d", body, code)
		}
		if st.Request.Topic != "Go" || st.Source != learnview.SourceLibrarySearch || st.Course == nil {
			t.Fatalf("reload body=%q: got=%+v", body, st)
		}
	}

	var eb errorBody
	if code := do(t, r, http.MethodPost, base+"/load", `{"topic":`, "", &eb); code != http.StatusBadRequest || eb.Error.Code != "invalid_request" {
		t.Fatalf("malformed body: status=%d body=%+v", code, eb)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	r := newTestRouter(t, "")
	var eb errorBody
	if code := do(t, r, http.MethodPost, "/api/learn/sessions", `{"difficulty":"beginner"}`, "", &eb); code != http.StatusBadRequest {
		t.Fatalf("missing topic: status=%d", code)
	}
	if eb.Error.Code != "invalid_request" || eb.Error.Message == "" {
		t.Fatalf("envelope: %+v", eb)
	}
	if code := do(t, r, http.MethodPost, "/api/learn/sessions", `{"topic":"go","format":"poster"}`, "", nil); code != http.StatusBadRequest {
		t.Fatalf("unknown format: status=%d", code)
	}
}

func TestQuotaIsSessionState(t *testing.T) {
	r := newTestRouter(t, "")
	var st learnview.State
	if code := do(t, r, http.MethodPost, "/api/learn/sessions", `{"topic":"rust","wait":true}`, "", &st); code != http.StatusCreated {
		t.Fatalf("create: status=%d", code)
	}
	if st.Quota == nil || st.Quota.Used != 5 || st.Error != "" {
		t.Fatalf("quota state: %+v", st)
	}
	id := st.ID
	st = learnview.State{}
	if code := do(t, r, http.MethodDelete, "/api/learn/sessions/"+id+"/quota", "", "", &st); code != http.StatusOK || st.Quota != nil {
		t.Fatalf("dismiss: status=%d quota=%+v", code, st.Quota)
	}
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	const secret = "k"
	r := newTestRouter(t, secret)
	token := func(sub string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpMW.Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	var st learnview.State
	if code := do(t, r, http.MethodPost, "/api/learn/sessions", `{"topic":"go","wait":true}`, token("u1"), &st); code != http.StatusCreated {
		t.Fatalf("create: status=%d", code)
	}
	if code := do(t, r, http.MethodGet, "/api/learn/sessions/"+st.ID, "", token("u2"), nil); code != http.StatusNotFound {
		t.Fatalf("other owner: status=%d", code)
	}
	if code := do(t, r, http.MethodGet, "/api/learn/sessions/"+st.ID, "", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d", code)
	}
	if code := do(t, r, http.MethodGet, "/api/learn/sessions/"+st.ID, "", token("u1"), nil); code != http.StatusOK {
		t.Fatalf("owner: status=%d", code)
	}
}

func TestRenderEndpoint(t *testing.T) {
	r := newTestRouter(t, "")
	var out renderResponse
	body := `{"content":"# Cells\n\n[Wikipedia Diagram: Mitochondrion]\n\nText with <script>x</script>"}`
	if code := do(t, r, http.MethodPost, "/api/render", body, "", &out); code != http.StatusOK {
		t.Fatalf("render: status=%d", code)
	}
	if !strings.Contains(out.HTML, "<h1>Cells</h1>") || !strings.Contains(out.HTML, "<figure") {
		t.Fatalf("html: %s", out.HTML)
	}
	if strings.Contains(out.HTML, "<script") {
		t.Fatalf("script survived: %s", out.HTML)
	}
	if len(out.Diagrams) != 1 || out.Diagrams[0] != "Mitochondrion" {
		t.Fatalf("diagrams: %v", out.Diagrams)
	}

	if code := do(t, r, http.MethodPost, "/api/render?resolve=false", body, "", &out); code != http.StatusOK || strings.Contains(out.HTML, "<figure") {
		t.Fatalf("unresolved render: status=%d html=%s", code, out.HTML)
	}
	if code := do(t, r, http.MethodPost, "/api/render", `not json`, "", nil); code != http.StatusBadRequest {
		t.Fatalf("bad body: status=%d", code)
	}
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(t, "")
	var out map[string]any
	if code := do(t, r, http.MethodGet, "/healthcheck?verbose=1", "", "", &out); code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("health: status=%d body=%v", code, out)
	}
}

func TestLearnAPIErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{learnview.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{learnview.ErrReconcileInFlight, http.StatusConflict, "load_in_flight"},
		{learnview.ErrUpgradeRequired, http.StatusPaymentRequired, "upgrade_required"},
		{&courseapi.QuotaError{Used: 1, Limit: 1}, http.StatusTooManyRequests, "quota_exceeded"},
		{pkgerrors.ErrInvalidArgument, http.StatusBadRequest, "invalid_request"},
		{courseapi.ErrInvalidPayload, http.StatusBadGateway, "invalid_payload"},
		{fmt.Errorf("%w: deck", pkgerrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{learnview.ErrLessonNotFound, http.StatusNotFound, "lesson_not_found"},
		{&courseapi.HTTPError{StatusCode: 500}, http.StatusBadGateway, "content_api_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := apierr.From(learnAPIError(tc.err))
		if status != tc.status || code != tc.code {
			t.Fatalf("%v: got=%d/%s want=%d/%s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
