package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/medsurat-api/internal/models"
	"github.com/noah-isme/medsurat-api/internal/service"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

type authenticatorStub struct {
	token string
}

func (a authenticatorStub) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token != a.token {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "session is invalid or expired")
	}
	return &models.Session{ID: "sess-1", Officer: models.OfficerInfo{Email: "dokter@klinik.test", Role: models.OfficerRole}}, nil
}

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientMeta())
	r.GET("/private", RequireOfficer(authenticatorStub{token: "good"}), func(c *gin.Context) {
		session, ok := service.SessionFromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		fromGin, _ := c.Get(ContextSessionKey)
		meta, _ := service.RequestMetaFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"session": session.ID,
			"same":    fromGin == session,
			"ua":      meta.UserAgent,
		})
	})
	return r
}

func TestRequireOfficer(t *testing.T) {
	r := newProtectedRouter()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"good token", "Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			req.Header.Set("User-Agent", "medsurat-test")
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"session":"sess-1","same":true,"ua":"medsurat-test"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "AUTH_REQUIRED")
			}
		})
	}
}

func TestMetricsMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/does-not-exist"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	paths := map[string]bool{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					paths[label.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, paths["/health"])
	assert.True(t, paths["unmatched"])
	assert.False(t, paths["/does-not-exist"])
}

func TestMetricsMiddlewareSkipsScrapes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/ready"))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ready", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/metrics", "/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "http_requests_total" {
			assert.Empty(t, family.GetMetric())
		}
	}
}
