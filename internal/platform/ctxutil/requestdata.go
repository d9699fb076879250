package ctxutil

import (
	"context"
	"strings"
)

type requestDataKey struct{}

// RequestData is what the entitlement middleware learned about the caller.
type RequestData struct {
	UserID  string
	Premium bool
	// Token is forwarded to the content API as a bearer token.
	Token string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// BearerToken returns the caller token attached to ctx, if any.
func BearerToken(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return strings.TrimSpace(rd.Token)
	}
	return ""
}

// Default returns context.Background() for a nil ctx.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
