package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/models"
	"github.com/noah-isme/medsurat-api/internal/repository"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, req *models.CertificateRequest) error
	GetByID(ctx context.Context, id string) (*models.CertificateRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.CertificateRequest, int, error)
	UpdateIfStatus(ctx context.Context, id string, expected models.RequestStatus, patch models.RequestPatch) (*models.CertificateRequest, error)
	FindApprovedByCertificateID(ctx context.Context, id string) (*models.CertificateRequest, error)
	CertificateIDExists(ctx context.Context, certID string) (bool, error)
	LatestCertificateSequence(ctx context.Context, prefix string, year int) (int, error)
}

type auditTrail interface {
	auditLogger
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

// RecordStore owns the certificate request records and enforces their
// lifecycle rules on every write.
type RecordStore struct {
	repo      requestStore
	audit     auditTrail
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore(repo requestStore, audit auditTrail, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RecordStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RecordStore{repo: repo, audit: audit, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Create validates a patient submission and stores it as a pending request.
func (s *RecordStore) Create(ctx context.Context, sub models.Submission) (*models.CertificateRequest, error) {
	sub.Normalize()
	if err := s.validator.Struct(sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}
	dob, err := time.Parse("2006-01-02", sub.DOB)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date of birth")
	}
	now := s.now().UTC()
	if dob.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date of birth cannot be in the future")
	}

	record := &models.CertificateRequest{
		NIK:         sub.NIK,
		FullName:    sub.FullName,
		DOB:         dob,
		Address:     sub.Address,
		Email:       sub.Email,
		Type:        sub.Type,
		Symptoms:    sub.Symptoms,
		RequestDate: now,
		Status:      models.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store request")
	}

	s.metrics.RecordSubmission(string(record.Type))
	s.emitAudit(ctx, nil, models.AuditActionRequestCreate, record.ID, nil, map[string]interface{}{
		"type":   record.Type,
		"status": record.Status,
	})
	return record, nil
}

// Get returns a request by ID.
func (s *RecordStore) Get(ctx context.Context, id string) (*models.CertificateRequest, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return record, nil
}

// List returns requests newest first together with pagination metadata.
func (s *RecordStore) List(ctx context.Context, filter models.RequestFilter) ([]models.CertificateRequest, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown type filter")
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	pagination := &models.Pagination{
		Page:       filter.Offset/filter.Limit + 1,
		PageSize:   filter.Limit,
		TotalCount: total,
	}
	return records, pagination, nil
}

// Update applies a partial update. The write only lands if the record still
// has the status it was checked against, so a concurrent decision surfaces as
// InvalidTransition instead of being overwritten.
func (s *RecordStore) Update(ctx context.Context, id string, patch models.RequestPatch) (*models.CertificateRequest, error) {
	if patch.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.CheckPatch(current.Status, patch); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInvalidTransition, err, "")
	}

	updated, err := s.repo.UpdateIfStatus(ctx, id, current.Status, patch)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, sql.ErrNoRows):
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request was decided concurrently")
	case errors.Is(err, repository.ErrDuplicateCertificateID):
		return nil, appErrors.WrapAs(appErrors.ErrConflict, err, "certificate id already issued")
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
}

// FindApprovedByCertificateID resolves an approved request by certificate ID
// or record ID. Only APPROVED records are ever returned.
func (s *RecordStore) FindApprovedByCertificateID(ctx context.Context, id string) (*models.CertificateRequest, error) {
	record, err := s.repo.FindApprovedByCertificateID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up certificate")
	}
	if record.Status != models.RequestStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	return record, nil
}

// CertificateIDExists reports whether a certificate ID is already issued.
func (s *RecordStore) CertificateIDExists(ctx context.Context, certID string) (bool, error) {
	return s.repo.CertificateIDExists(ctx, certID)
}

// LatestCertificateSequence returns the highest issued sequence for a prefix
// and year, or -1.
func (s *RecordStore) LatestCertificateSequence(ctx context.Context, prefix string, year int) (int, error) {
	return s.repo.LatestCertificateSequence(ctx, prefix, year)
}

// History returns the audit trail of a request, oldest first.
func (s *RecordStore) History(ctx context.Context, id string) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []models.AuditLog{}, nil
	}
	logs, err := s.audit.ListByResource(ctx, models.AuditResourceRequest, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return logs, nil
}

func (s *RecordStore) emitAudit(ctx context.Context, actor *string, action, resourceID string, oldValues, newValues interface{}) {
	writeAudit(ctx, s.audit, s.logger, actor, action, resourceID, oldValues, newValues)
}

func writeAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor *string, action, resourceID string, oldValues, newValues interface{}) {
	if audit == nil {
		return
	}
	log := &models.AuditLog{
		Actor:      actor,
		Action:     action,
		Resource:   models.AuditResourceRequest,
		ResourceID: &resourceID,
	}
	if meta, ok := RequestMetaFromContext(ctx); ok {
		log.IPAddress = meta.IP
		log.UserAgent = meta.UserAgent
	}
	if oldValues != nil {
		log.OldValues = marshalAudit(oldValues)
	}
	if newValues != nil {
		log.NewValues = marshalAudit(newValues)
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("request_id", resourceID), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
