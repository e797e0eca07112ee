package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/medsurat-api/internal/models"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

type sessionRevoker interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines the shared officer credential and token settings.
type AuthConfig struct {
	Secret       string
	Expiry       time.Duration
	Issuer       string
	OfficerEmail string
	OfficerName  string
	PasswordHash string
}

// AuthService is the identity gate in front of the officer dashboard.
type AuthService struct {
	sessions  sessionRevoker
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(sessions sessionRevoker, audit auditLogger, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiry <= 0 {
		config.Expiry = 12 * time.Hour
	}
	config.OfficerEmail = strings.ToLower(strings.TrimSpace(config.OfficerEmail))
	return &AuthService{sessions: sessions, audit: audit, validator: validate, logger: logger, config: config, now: time.Now}
}

// Login checks the officer credential and issues a session token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if s.config.PasswordHash == "" {
		s.logger.Error("officer credential not configured")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.config.OfficerEmail)) == 1
	// always run bcrypt so a wrong email costs the same as a wrong password
	passwordErr := bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(req.Password))
	if !emailOK || passwordErr != nil {
		s.logger.Info("officer login rejected", zap.String("ip", req.IP))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	issuedAt := s.now().UTC()
	session := &models.Session{
		ID: uuid.NewString(),
		Officer: models.OfficerInfo{
			Email:    s.config.OfficerEmail,
			FullName: s.config.OfficerName,
			Role:     models.OfficerRole,
		},
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.config.Expiry),
	}
	token, err := s.sign(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}

	s.emitAudit(ctx, &models.AuditLog{
		Actor:      &session.Officer.Email,
		Action:     models.AuditActionLogin,
		Resource:   models.AuditResourceSession,
		ResourceID: &session.ID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	})

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		ExpiresAt:   session.ExpiresAt,
		Officer:     session.Officer,
	}, nil
}

// Authenticate validates a bearer token and returns its live session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "")
	}

	claims := &models.JWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" || claims.Role != models.OfficerRole {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "session is invalid or expired")
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	if revoked {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "session has been logged out")
	}

	session := &models.Session{
		ID: claims.ID,
		Officer: models.OfficerInfo{
			Email:    claims.Email,
			FullName: claims.FullName,
			Role:     claims.Role,
		},
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Logout revokes the session until its token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, session *models.Session, ip, userAgent string) error {
	if session == nil {
		return appErrors.Clone(appErrors.ErrAuthRequired, "")
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.sessions.Revoke(ctx, session.ID, ttl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	s.emitAudit(ctx, &models.AuditLog{
		Actor:      &session.Officer.Email,
		Action:     models.AuditActionLogout,
		Resource:   models.AuditResourceSession,
		ResourceID: &session.ID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	return nil
}

// IsAuthenticated reports whether ctx carries a live, unrevoked officer session.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	_, err := s.RequireSession(ctx)
	return err == nil
}

// RequireSession returns the officer session carried by ctx or AuthRequired.
func (s *AuthService) RequireSession(ctx context.Context) (*models.Session, error) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "")
	}
	if !session.ExpiresAt.IsZero() && s.now().After(session.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "session is invalid or expired")
	}
	revoked, err := s.sessions.IsRevoked(ctx, session.ID)
	if err != nil {
		s.logger.Warn("session revocation check failed", zap.String("session_id", session.ID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "")
	}
	if revoked {
		return nil, appErrors.Clone(appErrors.ErrAuthRequired, "session has been logged out")
	}
	return session, nil
}

func (s *AuthService) sign(session *models.Session) (string, error) {
	if s.config.Secret == "" {
		return "", errors.New("jwt secret missing")
	}
	claims := models.JWTClaims{
		Email:    session.Officer.Email,
		FullName: session.Officer.FullName,
		Role:     session.Officer.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.Officer.Email,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			NotBefore: jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (s *AuthService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
