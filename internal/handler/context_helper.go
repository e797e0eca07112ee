package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/middleware"
	"github.com/noah-isme/medsurat-api/internal/models"
)

func sessionFromContext(c *gin.Context) *models.Session {
	value, exists := c.Get(middleware.ContextSessionKey)
	if !exists {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}

// officerLogFields tags access log lines of authenticated requests with the
// acting officer and session.
func officerLogFields(c *gin.Context) []zap.Field {
	session := sessionFromContext(c)
	if session == nil {
		return nil
	}
	return []zap.Field{
		zap.String("officer", session.Officer.Email),
		zap.String("session_id", session.ID),
	}
}

// recordIDParam returns the trimmed :id path parameter.
func recordIDParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
