package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/medsurat-api/internal/models"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

type revokerStub struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (r *revokerStub) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = make(map[string]time.Duration)
	}
	r.revoked[sessionID] = ttl
	return nil
}

func (r *revokerStub) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[sessionID]
	return ok, nil
}

func newTestAuthService(t *testing.T) (*AuthService, *revokerStub, *auditStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia-klinik"), bcrypt.MinCost)
	require.NoError(t, err)
	revoker := &revokerStub{}
	audit := &auditStub{}
	svc := NewAuthService(revoker, audit, nil, nil, AuthConfig{
		Secret:       "test-secret",
		Expiry:       time.Hour,
		Issuer:       "medsurat-test",
		OfficerEmail: " Dokter@Klinik.test ",
		OfficerName:  "dr. Sari",
		PasswordHash: string(hash),
	})
	return svc, revoker, audit
}

func TestAuthServiceLoginIssuesSession(t *testing.T) {
	svc, _, audit := newTestAuthService(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "dokter@klinik.test", Password: "rahasia-klinik", IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "dokter@klinik.test", resp.Officer.Email)
	assert.Equal(t, models.OfficerRole, resp.Officer.Role)
	assert.Equal(t, []string{models.AuditActionLogin}, audit.actions())

	session, err := svc.Authenticate(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "dr. Sari", session.Officer.FullName)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, _, audit := newTestAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "dokter@klinik.test", Password: "salah"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "lain@klinik.test", Password: "rahasia-klinik"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "bukan-email", Password: "x"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, audit.actions())
}

func TestAuthServiceAuthenticateRejectsForeignTokens(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, appErrors.ErrAuthRequired)

	_, err = svc.Authenticate(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, appErrors.ErrAuthRequired)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{
		Role: models.OfficerRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    "medsurat-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), signed)
	require.ErrorIs(t, err, appErrors.ErrAuthRequired)
}

func TestAuthServiceAuthenticateRejectsExpiredToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "dokter@klinik.test", Password: "rahasia-klinik"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Authenticate(context.Background(), resp.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrAuthRequired)
}

func TestAuthServiceLogoutRevokesSession(t *testing.T) {
	svc, revoker, audit := newTestAuthService(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "dokter@klinik.test", Password: "rahasia-klinik"})
	require.NoError(t, err)
	session, err := svc.Authenticate(context.Background(), resp.AccessToken)
	require.NoError(t, err)

	ctx := ContextWithSession(context.Background(), session)
	require.True(t, svc.IsAuthenticated(ctx))

	require.NoError(t, svc.Logout(ctx, session, "10.0.0.1", "test"))
	assert.Contains(t, revoker.revoked, session.ID)
	assert.Positive(t, revoker.revoked[session.ID])
	assert.Equal(t, []string{models.AuditActionLogin, models.AuditActionLogout}, audit.actions())

	_, err = svc.Authenticate(context.Background(), resp.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrAuthRequired)
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestAuthServiceRequireSessionWithoutSession(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	assert.False(t, svc.IsAuthenticated(context.Background()))
	_, err := svc.RequireSession(context.Background())
	require.ErrorIs(t, err, appErrors.ErrAuthRequired)

	expired := officerSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	assert.False(t, svc.IsAuthenticated(ContextWithSession(context.Background(), expired)))
}
