package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/middleware"
	"github.com/noah-isme/medsurat-api/internal/service"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
	"github.com/noah-isme/medsurat-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/medsurat-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/medsurat-api/pkg/middleware/requestid"
	"github.com/noah-isme/medsurat-api/pkg/response"
)

// RouterConfig controls route registration.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
}

// Handlers groups every HTTP handler mounted by NewRouter.
type Handlers struct {
	Requests     *RequestHandler
	Approvals    *ApprovalHandler
	Verification *VerificationHandler
	Documents    *DocumentHandler
	Auth         *AuthHandler
	Metrics      *MetricsHandler
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(cfg RouterConfig, h Handlers, auth middleware.SessionAuthenticator, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	if logr == nil {
		logr = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, officerLogFields))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.ClientMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.POST("/requests", h.Requests.Submit)
	api.GET("/verify", h.Verification.Verify)
	api.GET("/verify/:id", h.Verification.Verify)
	api.GET("/documents/:token", h.Documents.Download)
	api.POST("/auth/login", h.Auth.Login)

	officer := api.Group("", middleware.RequireOfficer(auth))
	officer.POST("/auth/logout", h.Auth.Logout)
	officer.GET("/auth/me", h.Auth.Me)

	requests := officer.Group("/officer/requests")
	requests.GET("", h.Requests.List)
	requests.GET("/export", h.Documents.Export)
	requests.GET("/:id", h.Requests.Get)
	requests.GET("/:id/history", h.Requests.History)
	requests.GET("/:id/document", h.Documents.OfficerDocument)
	requests.PATCH("/:id/notes", h.Approvals.SaveNotes)
	requests.POST("/:id/draft", h.Approvals.Draft)
	requests.POST("/:id/approve", h.Approvals.Approve)
	requests.POST("/:id/reject", h.Approvals.Reject)

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusMethodNotAllowed)
	})
	return r
}
