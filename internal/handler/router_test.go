package handler

import (
	"context"
	"errors"
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

type tokenAuthenticator struct{}

func (tokenAuthenticator) Authenticate(_ context.Context, token string) (*models.Session, error) {
	if token != "valid" {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "session expired")
	}
	return testSession(), nil
}

type routerFixture struct {
	engine  *gin.Engine
	records *fakeRecordService
	exports *fakeExportService
}

func newRouterFixture(checks map[string]Pinger) routerFixture {
	gin.SetMode(gin.TestMode)
	records := &fakeRecordService{}
	exports := &fakeExportService{}
	metrics := service.NewMetricsService()
	engine := NewRouter(RouterConfig{APIPrefix: "/api/v1"}, Handlers{
		Requests:     NewRequestHandler(records),
		Approvals:    NewApprovalHandler(&fakeApprovalService{}),
		Verification: NewVerificationHandler(newFakeVerification()),
		Documents:    NewDocumentHandler(&fakeDocumentService{}, exports),
		Auth:         NewAuthHandler(&fakeAuthService{}),
		Metrics:      NewMetricsHandler(metrics, checks),
	}, tokenAuthenticator{}, metrics, nil)
	return routerFixture{engine: engine, records: records, exports: exports}
}

func (f routerFixture) do(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicRoutesNeedNoSession(t *testing.T) {
	f := newRouterFixture(nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/verify?id=MC-2025-0042", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/verify/MC-2025-0042", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/documents/tok", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
}

func TestRouterOfficerRoutesRequireSession(t *testing.T) {
	f := newRouterFixture(nil)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/officer/requests"},
		{http.MethodGet, "/api/v1/officer/requests/req-1"},
		{http.MethodPost, "/api/v1/officer/requests/req-1/approve"},
		{http.MethodPost, "/api/v1/officer/requests/req-1/reject"},
		{http.MethodGet, "/api/v1/officer/requests/export"},
		{http.MethodGet, "/api/v1/auth/me"},
	}
	for _, p := range paths {
		assert.Equal(t, http.StatusUnauthorized, f.do(p.method, p.path, "").Code, p.path)
		assert.Equal(t, http.StatusUnauthorized, f.do(p.method, p.path, "forged").Code, p.path)
	}

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/officer/requests", "valid").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/officer/requests/req-1/reject", "valid").Code)
}

func TestRouterExportIsNotShadowedByRequestID(t *testing.T) {
	f := newRouterFixture(nil)

	rec := f.do(http.MethodGet, "/api/v1/officer/requests/export?format=pdf", "valid")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf", f.exports.format)
}

func TestRouterUnknownRouteIsJSONNotFound(t *testing.T) {
	f := newRouterFixture(nil)

	rec := f.do(http.MethodGet, "/api/v1/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestRouterReadyReportsFailingDependency(t *testing.T) {
	f := newRouterFixture(map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	})

	rec := f.do(http.MethodGet, "/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dial tcp: refused")
}

func TestRouterServesMetrics(t *testing.T) {
	f := newRouterFixture(nil)
	f.do(http.MethodGet, "/health", "")

	rec := f.do(http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
