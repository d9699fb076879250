package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/neurobridge-learnview/internal/platform/ctxutil"
)

func signed(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authRouter(am *AuthMiddleware, seen **ctxutil.RequestData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/me", func(c *gin.Context) {
		*seen = ctxutil.GetRequestData(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireAuthPremiumClaim(t *testing.T) {
	var seen *ctxutil.RequestData
	r := authRouter(NewAuthMiddleware(nil, "s3cret"), &seen)
	tok := signed(t, "s3cret", Claims{Premium: true, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if seen == nil || seen.UserID != "u1" || !seen.Premium || seen.Token != tok {
		t.Fatalf("request data: got=%+v", seen)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	var seen *ctxutil.RequestData
	r := authRouter(NewAuthMiddleware(nil, "s3cret"), &seen)
	expired := signed(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	wrongKey := signed(t, "other", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	noSubject := signed(t, "s3cret", Claims{})

	for name, target := range map[string]string{
		"missing":    "/me",
		"expired":    "/me?token=" + expired,
		"wrong key":  "/me?token=" + wrongKey,
		"no subject": "/me?token=" + noSubject,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status got=%d want=401", name, rec.Code)
		}
	}
	if seen != nil {
		t.Fatalf("handler ran for a rejected token")
	}
}

func TestRequireAuthWithoutSecretIsAnonymous(t *testing.T) {
	var seen *ctxutil.RequestData
	r := authRouter(NewAuthMiddleware(nil, ""), &seen)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusOK || seen == nil || seen.UserID != AnonymousUserID || seen.Premium {
		t.Fatalf("anonymous: status=%d rd=%+v", rec.Code, seen)
	}
}
