package service

import (
	"context"

	"github.com/noah-isme/medsurat-api/internal/models"
)

type sessionContextKey struct{}

// ContextWithSession attaches an authenticated officer session to ctx.
func ContextWithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the officer session carried by ctx.
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	if ctx == nil {
		return nil, false
	}
	session, ok := ctx.Value(sessionContextKey{}).(*models.Session)
	return session, ok && session != nil
}

// RequestMeta identifies the client behind a request for audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type requestMetaContextKey struct{}

// ContextWithRequestMeta attaches client metadata to ctx.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaContextKey{}, meta)
}

// RequestMetaFromContext returns the client metadata carried by ctx.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestMetaContextKey{}).(RequestMeta)
	return meta, ok
}
