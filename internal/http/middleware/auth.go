package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/neurobridge-learnview/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

// AnonymousUserID owns every session when no signing key is configured.
const AnonymousUserID = "anonymous"

// Claims is what the identity provider signs into the access token. Premium
// unlocks generation above the beginner difficulty.
type Claims struct {
	Premium bool `json:"premium,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

// NewAuthMiddleware verifies HS256 tokens signed with secret. An empty secret
// disables verification: callers become AnonymousUserID without premium.
func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), secret: []byte(strings.TrimSpace(secret))}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if len(am.secret) == 0 {
			rd := &ctxutil.RequestData{UserID: AnonymousUserID, Token: tokenString}
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
			c.Next()
			return
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		claims, err := am.Parse(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": err.Error(), "code": "unauthorized"},
			})
			return
		}
		rd := &ctxutil.RequestData{UserID: claims.Subject, Premium: claims.Premium, Token: tokenString}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// Parse validates the signature and expiry and requires a subject.
func (am *AuthMiddleware) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return am.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// extractTokenFromAll also accepts ?token= because EventSource cannot set headers.
func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
