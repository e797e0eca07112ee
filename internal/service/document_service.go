package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/dto"
	"github.com/noah-isme/medsurat-api/internal/models"
	"github.com/noah-isme/medsurat-api/pkg/document"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
	"github.com/noah-isme/medsurat-api/pkg/storage"
)

type documentRecords interface {
	Get(ctx context.Context, id string) (*models.CertificateRequest, error)
	FindApprovedByCertificateID(ctx context.Context, id string) (*models.CertificateRequest, error)
}

// DocumentConfig configures download links and regeneration.
type DocumentConfig struct {
	DownloadBaseURL string
	RenderTimeout   time.Duration
	UploadTimeout   time.Duration
}

// DocumentService serves certificate PDFs, regenerating them when the stored
// copy is missing.
type DocumentService struct {
	records  documentRecords
	renderer certificateRenderer
	storage  documentStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      DocumentConfig
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(records documentRecords, renderer certificateRenderer, store documentStorage, signer *storage.SignedURLSigner, cfg DocumentConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.DownloadBaseURL = strings.TrimRight(cfg.DownloadBaseURL, "/")
	return &DocumentService{records: records, renderer: renderer, storage: store, signer: signer, logger: logger, cfg: cfg}
}

// CertificateObjectName is the storage key of a certificate PDF.
func CertificateObjectName(certificateID string) string {
	return certificateID + ".pdf"
}

// CertificateSnapshot projects an approved record into renderer input.
func CertificateSnapshot(r *models.CertificateRequest) document.Certificate {
	cert := document.Certificate{
		Category:   string(r.Type),
		FullName:   r.FullName,
		NIK:        r.NIK,
		DOB:        r.DOB,
		Address:    r.Address,
		ValidFrom:  r.ValidFrom,
		ValidUntil: r.ValidUntil,
		IssuedAt:   r.RequestDate,
	}
	if r.CertificateID != nil {
		cert.CertificateID = *r.CertificateID
	}
	if r.DoctorNotes != nil {
		cert.Notes = *r.DoctorNotes
	}
	if r.ReviewedAt != nil {
		cert.IssuedAt = *r.ReviewedAt
	}
	return cert
}

// DownloadURL returns a signed, expiring link to a certificate PDF.
func (s *DocumentService) DownloadURL(certificateID string) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, errors.New("document signer not configured")
	}
	token, expiresAt, err := s.signer.Generate(certificateID, CertificateObjectName(certificateID))
	if err != nil {
		return "", time.Time{}, err
	}
	return fmt.Sprintf("%s/%s", s.cfg.DownloadBaseURL, token), expiresAt, nil
}

// OfficerDocument returns the certificate PDF of an approved request.
func (s *DocumentService) OfficerDocument(ctx context.Context, id string) (*dto.Document, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.RequestStatusApproved || record.CertificateID == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved requests have a certificate")
	}
	return s.load(ctx, record)
}

// ResolveDownload validates a signed download token and returns its PDF.
func (s *DocumentService) ResolveDownload(ctx context.Context, token string) (*dto.Document, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	certID, objectName, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if objectName != CertificateObjectName(certID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	record, err := s.records.FindApprovedByCertificateID(ctx, certID)
	if err != nil {
		return nil, err
	}
	if record.CertificateID == nil || *record.CertificateID != certID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return s.load(ctx, record)
}

func (s *DocumentService) load(ctx context.Context, record *models.CertificateRequest) (*dto.Document, error) {
	certID := *record.CertificateID
	objectName := CertificateObjectName(certID)
	doc := &dto.Document{Filename: objectName, ContentType: "application/pdf"}

	data, err := s.storage.Open(ctx, objectName)
	if err == nil {
		doc.Data = data
		return doc, nil
	}
	if !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("stored certificate unreadable, regenerating", zap.String("certificate_id", certID), zap.Error(err))
	}

	data, err = callWithTimeout(ctx, s.cfg.RenderTimeout, func(ctx context.Context) ([]byte, error) {
		return s.renderer.Render(ctx, CertificateSnapshot(record))
	})
	if err != nil {
		s.logger.Error("certificate regeneration failed", zap.String("certificate_id", certID), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrRenderFailure, err, "")
	}
	if _, err := callWithTimeout(ctx, s.cfg.UploadTimeout, func(ctx context.Context) (string, error) {
		return s.storage.Upload(ctx, objectName, data)
	}); err != nil {
		s.logger.Warn("failed to store regenerated certificate", zap.String("certificate_id", certID), zap.Error(err))
	}
	doc.Data = data
	return doc, nil
}
