package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/dto"
	"github.com/noah-isme/medsurat-api/internal/models"
	"github.com/noah-isme/medsurat-api/pkg/ai"
	"github.com/noah-isme/medsurat-api/pkg/document"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
	"github.com/noah-isme/medsurat-api/pkg/mailer"
	"github.com/noah-isme/medsurat-api/pkg/storage"
)

// lateUploadGrace bounds how long a failed approval waits for a timed-out
// upload before giving up on removing its object.
const lateUploadGrace = time.Minute

type sessionGate interface {
	RequireSession(ctx context.Context) (*models.Session, error)
}

type approvalRecords interface {
	Get(ctx context.Context, id string) (*models.CertificateRequest, error)
	Update(ctx context.Context, id string, patch models.RequestPatch) (*models.CertificateRequest, error)
}

type certificateMinter interface {
	Mint(ctx context.Context, year int) (string, error)
	Release(id string)
	ValidityWindow(start time.Time, days int) (time.Time, time.Time, error)
	Location() *time.Location
}

type certificateRenderer interface {
	Render(ctx context.Context, cert document.Certificate) ([]byte, error)
	VerificationURL(certificateID string) string
}

type documentStorage interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

type approvalNotifier interface {
	SendApproval(ctx context.Context, approval mailer.Approval) error
}

type chatCompleter interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

type documentLinker interface {
	DownloadURL(certificateID string) (string, time.Time, error)
}

// ApprovalConfig bounds each external call made while approving.
type ApprovalConfig struct {
	RenderTimeout time.Duration
	UploadTimeout time.Duration
	NotifyTimeout time.Duration
	DraftTimeout  time.Duration
}

// ApprovalService drives a request from PENDING to APPROVED or REJECTED.
type ApprovalService struct {
	gate      sessionGate
	records   approvalRecords
	minter    certificateMinter
	renderer  certificateRenderer
	storage   documentStorage
	notifier  approvalNotifier
	links     documentLinker
	drafter   chatCompleter
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ApprovalConfig
	now       func() time.Time
}

// ApprovalDeps groups the collaborators of ApprovalService.
type ApprovalDeps struct {
	Gate      sessionGate
	Records   approvalRecords
	Minter    certificateMinter
	Renderer  certificateRenderer
	Storage   documentStorage
	Notifier  approvalNotifier
	Links     documentLinker
	Drafter   chatCompleter
	Audit     auditLogger
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(deps ApprovalDeps, cfg ApprovalConfig) *ApprovalService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &ApprovalService{
		gate:      deps.Gate,
		records:   deps.Records,
		minter:    deps.Minter,
		renderer:  deps.Renderer,
		storage:   deps.Storage,
		notifier:  deps.Notifier,
		links:     deps.Links,
		drafter:   deps.Drafter,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Approve issues a certificate for a pending request.
//
// Minting, rendering and the final commit are fatal: if any fails the record
// is left untouched. Storing the PDF and notifying the patient are tolerated
// and reported through the result warnings.
func (s *ApprovalService) Approve(ctx context.Context, id string, req dto.ApproveRequest) (*dto.ApprovalResult, error) {
	session, err := s.gate.RequireSession(ctx)
	if err != nil {
		s.metrics.RecordApprovalOutcome(OutcomeUnauthenticated)
		return nil, err
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "clinical notes are required and validity must be 1 to 14 days")
	}

	record, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.RequestStatusPending {
		s.metrics.RecordApprovalOutcome(OutcomeInvalidTransition)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request is already %s", record.Status))
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	var validFrom, validUntil *time.Time
	if record.Type.HasValidityWindow() {
		days := 0
		if req.ValidityDays != nil {
			days = *req.ValidityDays
		}
		from, until, err := s.minter.ValidityWindow(issuedAt, days)
		if err != nil {
			return nil, err
		}
		validFrom, validUntil = &from, &until
	}

	started := time.Now()
	certID, err := s.minter.Mint(ctx, issuedAt.In(s.minter.Location()).Year())
	s.metrics.ObserveStep("mint", time.Since(started))
	if err != nil {
		s.metrics.RecordApprovalOutcome(OutcomeMintFailed)
		s.logger.Error("certificate mint failed", zap.String("request_id", id), zap.Error(err))
		return nil, err
	}
	defer s.minter.Release(certID)

	approved := *record
	approved.DoctorNotes = &req.Notes
	approved.ValidFrom = validFrom
	approved.ValidUntil = validUntil
	approved.CertificateID = &certID
	approved.ReviewedAt = &issuedAt

	started = time.Now()
	pdf, err := callWithTimeout(ctx, s.cfg.RenderTimeout, func(ctx context.Context) ([]byte, error) {
		return s.renderer.Render(ctx, CertificateSnapshot(&approved))
	})
	s.metrics.ObserveStep("render", time.Since(started))
	if err != nil {
		s.metrics.RecordApprovalOutcome(OutcomeRenderFailed)
		s.logger.Error("certificate render failed", zap.String("request_id", id), zap.String("certificate_id", certID), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrRenderFailure, err, "")
	}

	result := &dto.ApprovalResult{}
	objectName := CertificateObjectName(certID)
	started = time.Now()
	uploadDone := make(chan struct{})
	documentURL, err := callWithTimeout(ctx, s.cfg.UploadTimeout, func(ctx context.Context) (string, error) {
		defer close(uploadDone)
		return s.storage.Upload(ctx, objectName, pdf)
	})
	s.metrics.ObserveStep("upload", time.Since(started))
	if err != nil {
		s.metrics.RecordApprovalWarning(WarningStepUpload)
		s.logger.Warn("certificate upload failed, approving without stored document",
			zap.String("request_id", id), zap.String("certificate_id", certID),
			zap.Error(appErrors.WrapAs(appErrors.ErrUploadFailure, err, "")))
		result.Warnings = append(result.Warnings, appErrors.ErrUploadFailure.Message)
	} else {
		result.DocumentStored = true
	}

	approvedStatus := models.RequestStatusApproved
	patch := models.RequestPatch{
		Status:        &approvedStatus,
		DoctorNotes:   &req.Notes,
		ValidFrom:     validFrom,
		ValidUntil:    validUntil,
		CertificateID: &certID,
		ReviewedBy:    &session.Officer.Email,
		ReviewedAt:    &issuedAt,
	}
	if result.DocumentStored {
		patch.CertificateURL = &documentURL
	}
	started = time.Now()
	updated, err := s.records.Update(ctx, id, patch)
	s.metrics.ObserveStep("commit", time.Since(started))
	if err != nil {
		s.discardDocument(ctx, objectName, uploadDone)
		if appErrors.FromError(err).Code == appErrors.ErrInvalidTransition.Code {
			s.metrics.RecordApprovalOutcome(OutcomeInvalidTransition)
		} else {
			s.metrics.RecordApprovalOutcome(OutcomeCommitFailed)
		}
		s.logger.Error("approval commit failed", zap.String("request_id", id), zap.String("certificate_id", certID), zap.Error(err))
		return nil, err
	}
	result.Request = updated

	if s.notify(ctx, updated, pdf) {
		sent := true
		flagged, err := s.records.Update(ctx, id, models.RequestPatch{EmailSent: &sent})
		if err != nil {
			s.logger.Warn("failed to flag notification as sent", zap.String("request_id", id), zap.Error(err))
		} else {
			result.Request = flagged
		}
		result.NotificationSent = true
	} else {
		result.Warnings = append(result.Warnings, appErrors.ErrNotificationFailure.Message)
	}

	writeAudit(ctx, s.audit, s.logger, &session.Officer.Email, models.AuditActionRequestApprove, id,
		map[string]interface{}{"status": record.Status},
		map[string]interface{}{"status": approvedStatus, "certificateId": certID, "documentStored": result.DocumentStored})
	s.metrics.RecordApprovalOutcome(OutcomeApproved)
	s.logger.Info("request approved", zap.String("request_id", id), zap.String("certificate_id", certID))
	return result, nil
}

// Reject closes a pending request without issuing a certificate.
func (s *ApprovalService) Reject(ctx context.Context, id string) (*models.CertificateRequest, error) {
	session, err := s.gate.RequireSession(ctx)
	if err != nil {
		s.metrics.RecordApprovalOutcome(OutcomeUnauthenticated)
		return nil, err
	}
	rejected := models.RequestStatusRejected
	reviewedAt := s.now().UTC().Truncate(time.Second)
	updated, err := s.records.Update(ctx, id, models.RequestPatch{
		Status:     &rejected,
		ReviewedBy: &session.Officer.Email,
		ReviewedAt: &reviewedAt,
	})
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrInvalidTransition.Code {
			s.metrics.RecordApprovalOutcome(OutcomeInvalidTransition)
		}
		return nil, err
	}
	writeAudit(ctx, s.audit, s.logger, &session.Officer.Email, models.AuditActionRequestReject, id,
		map[string]interface{}{"status": models.RequestStatusPending},
		map[string]interface{}{"status": rejected})
	s.metrics.RecordApprovalOutcome(OutcomeRejected)
	return updated, nil
}

// SaveNotes stores draft clinical notes on a pending request.
func (s *ApprovalService) SaveNotes(ctx context.Context, id string, req dto.NotesRequest) (*models.CertificateRequest, error) {
	session, err := s.gate.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notes")
	}
	updated, err := s.records.Update(ctx, id, models.RequestPatch{DoctorNotes: &req.Notes})
	if err != nil {
		return nil, err
	}
	writeAudit(ctx, s.audit, s.logger, &session.Officer.Email, models.AuditActionRequestNotes, id, nil,
		map[string]interface{}{"notesLength": len(req.Notes)})
	return updated, nil
}

// DraftNotes asks the drafting assistant for clinical notes. The draft is
// returned to the officer and never stored.
func (s *ApprovalService) DraftNotes(ctx context.Context, id string) (*dto.DraftResponse, error) {
	if _, err := s.gate.RequireSession(ctx); err != nil {
		return nil, err
	}
	if s.drafter == nil {
		return nil, appErrors.Clone(appErrors.ErrAIUnavailable, "note drafting assistant is not enabled")
	}
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "notes can only be drafted for pending requests")
	}

	messages := []ai.Message{
		{Role: "system", Content: draftPrompt(record.Type)},
		{Role: "user", Content: fmt.Sprintf("Nama pasien: %s. Keluhan/konteks: %q", record.FullName, record.Symptoms)},
	}
	text, err := callWithTimeout(ctx, s.cfg.DraftTimeout, func(ctx context.Context) (string, error) {
		return s.drafter.Complete(ctx, messages)
	})
	if err != nil {
		s.logger.Warn("note drafting failed", zap.String("request_id", id), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrAIUnavailable, err, "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrAIUnavailable, "note drafting assistant returned no text")
	}
	return &dto.DraftResponse{Notes: text}, nil
}

func (s *ApprovalService) notify(ctx context.Context, record *models.CertificateRequest, pdf []byte) bool {
	if s.notifier == nil {
		return false
	}
	certID := *record.CertificateID
	approval := mailer.Approval{
		To:              record.Email,
		PatientName:     record.FullName,
		CertificateID:   certID,
		VerificationURL: s.renderer.VerificationURL(certID),
		Document:        pdf,
	}
	if s.links != nil {
		if link, _, err := s.links.DownloadURL(certID); err == nil {
			approval.DocumentURL = link
		}
	}

	started := time.Now()
	_, err := callWithTimeout(ctx, s.cfg.NotifyTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.notifier.SendApproval(ctx, approval)
	})
	s.metrics.ObserveStep("notify", time.Since(started))
	if errors.Is(err, mailer.ErrNotDelivered) {
		s.metrics.RecordApprovalWarning(WarningStepNotify)
		s.logger.Info("approval notification logged only, email not sent",
			zap.String("request_id", record.ID), zap.String("certificate_id", certID))
		return false
	}
	if err != nil {
		s.metrics.RecordApprovalWarning(WarningStepNotify)
		s.logger.Warn("approval notification failed",
			zap.String("request_id", record.ID), zap.String("certificate_id", certID),
			zap.Error(appErrors.WrapAs(appErrors.ErrNotificationFailure, err, "")))
		return false
	}
	return true
}

// discardDocument removes the object of a failed approval. An upload that
// outlived its timeout may still land, so removal waits for it to finish.
func (s *ApprovalService) discardDocument(ctx context.Context, objectName string, uploadDone <-chan struct{}) {
	remove := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.storage.Delete(ctx, objectName); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to remove orphaned certificate document", zap.String("object", objectName), zap.Error(err))
		}
	}
	select {
	case <-uploadDone:
		remove()
	default:
		go func() {
			select {
			case <-uploadDone:
				remove()
			case <-time.After(lateUploadGrace):
				s.logger.Warn("upload still running, orphaned certificate document may remain", zap.String("object", objectName))
			}
		}()
	}
}

// callWithTimeout runs fn with a deadline of d. It returns when the deadline
// passes even if fn ignores its context. A non-positive d means no deadline.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()
	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

const (
	sickLeavePrompt = `Peran: dokter umum profesional.
Tugas: tulis hasil pemeriksaan singkat dan rekomendasi untuk Surat Keterangan Sakit.
Bahasa: Bahasa Indonesia formal.
Format:
1. Hasil Pemeriksaan
2. Saran Medis (misalnya istirahat selama X hari)
Tetap profesional, empatik, dan objektif.`

	healthCheckPrompt = `Peran: dokter umum profesional.
Tugas: tulis pernyataan standar untuk Surat Keterangan Sehat.
Bahasa: Bahasa Indonesia formal.
Nyatakan bahwa pasien telah diperiksa dan dalam keadaan sehat jasmani dan rohani serta layak untuk keperluan yang disebutkan.`

	narcoticsFreePrompt = `Peran: dokter umum profesional.
Tugas: tulis pernyataan hasil pemeriksaan untuk Surat Keterangan Bebas Narkoba.
Bahasa: Bahasa Indonesia formal.
Sebutkan bahwa pemeriksaan telah dilakukan dan tuliskan kesimpulannya secara objektif.`

	combinedPrompt = `Peran: dokter umum profesional.
Tugas: tulis pernyataan untuk Surat Keterangan Kesehatan dan Bebas Narkoba.
Bahasa: Bahasa Indonesia formal.
Nyatakan hasil pemeriksaan kesehatan umum dan hasil pemeriksaan narkoba secara terpisah dan objektif.`

	referralPrompt = `Peran: dokter umum. Tugas: tulis catatan rujukan medis. Bahasa: Bahasa Indonesia.`
)

func draftPrompt(t models.CertificateType) string {
	switch t {
	case models.CertificateTypeSickLeave:
		return sickLeavePrompt
	case models.CertificateTypeHealthCheck:
		return healthCheckPrompt
	case models.CertificateTypeNarcoticsFree:
		return narcoticsFreePrompt
	case models.CertificateTypeCombined:
		return combinedPrompt
	default:
		return referralPrompt
	}
}
