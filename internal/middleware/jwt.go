package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/medsurat-api/internal/models"
	"github.com/noah-isme/medsurat-api/internal/service"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
	"github.com/noah-isme/medsurat-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the officer session.
const ContextSessionKey = "officerSession"

// SessionAuthenticator resolves a bearer token into an officer session.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// RequireOfficer protects routes by requiring a live officer session. The
// session is attached to both the gin context and the request context so
// services can re-check it.
func RequireOfficer(auth SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrAuthRequired, ""))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrAuthRequired, "invalid authorization header"))
			return
		}

		session, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ContextSessionKey, session)
		c.Request = c.Request.WithContext(service.ContextWithSession(c.Request.Context(), session))
		c.Next()
	}
}

// ClientMeta records the caller's address and user agent on the request
// context for audit entries.
func ClientMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		c.Request = c.Request.WithContext(service.ContextWithRequestMeta(c.Request.Context(), meta))
		c.Next()
	}
}
