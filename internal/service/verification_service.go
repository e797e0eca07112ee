package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/medsurat-api/internal/models"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

const (
	maxVerificationIDLength = 64
	sharedLookupTimeout     = 5 * time.Second
)

type verificationRecords interface {
	FindApprovedByCertificateID(ctx context.Context, id string) (*models.CertificateRequest, error)
}

// VerificationService answers public "is this certificate genuine" lookups.
type VerificationService struct {
	records verificationRecords
	cache   *VerificationCache
	links   documentLinker
	metrics *MetricsService
	logger  *zap.Logger
	group   singleflight.Group

	lookupTimeout time.Duration
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(records verificationRecords, cache *VerificationCache, links documentLinker, metrics *MetricsService, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		records:       records,
		cache:         cache,
		links:         links,
		metrics:       metrics,
		logger:        logger,
		lookupTimeout: sharedLookupTimeout,
	}
}

// Verify reports whether inputID names an approved certificate. Unknown,
// pending and rejected IDs are all Invalid.
func (s *VerificationService) Verify(ctx context.Context, inputID string) (*models.VerificationResult, error) {
	id := strings.TrimSpace(inputID)
	if id == "" || len(id) > maxVerificationIDLength {
		s.metrics.RecordVerification(string(models.VerificationInvalid))
		return &models.VerificationResult{Status: models.VerificationInvalid}, nil
	}

	view, err := s.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.metrics.RecordVerification(string(models.VerificationInvalid))
			return &models.VerificationResult{Status: models.VerificationInvalid}, nil
		}
		return nil, err
	}

	// copy before decorating, the view may be shared with other callers
	out := *view
	if s.links != nil {
		if link, expiresAt, err := s.links.DownloadURL(out.CertificateID); err == nil {
			out.DocumentURL = link
			out.DocumentURLExpiresAt = &expiresAt
		} else {
			s.logger.Warn("failed to sign document link", zap.String("certificate_id", out.CertificateID), zap.Error(err))
		}
	}
	s.metrics.RecordVerification(string(models.VerificationValid))
	return &models.VerificationResult{Status: models.VerificationValid, Certificate: &out}, nil
}

func (s *VerificationService) lookup(ctx context.Context, id string) (*models.VerificationView, error) {
	if cached, ok := s.cache.Lookup(ctx, id); ok {
		return cached, nil
	}

	// the lookup is shared by every caller of id, so it must not inherit
	// one caller's cancellation
	ch := s.group.DoChan(id, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lookupTimeout)
		defer cancel()
		record, err := s.records.FindApprovedByCertificateID(lookupCtx, id)
		if err != nil {
			return nil, err
		}
		view := models.NewVerificationView(*record)
		s.cache.Store(lookupCtx, view, id, view.CertificateID)
		return &view, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.VerificationView), nil
	}
}
