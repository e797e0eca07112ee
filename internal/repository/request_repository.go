package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/medsurat-api/internal/models"
)

const requestColumns = `id, nik, full_name, dob, address, email, type, symptoms, request_date, status,
       doctor_notes, valid_from, valid_until, certificate_id, certificate_url, email_sent, reviewed_by, reviewed_at`

const uniqueViolation = "23505"

// ErrDuplicateCertificateID is returned when a certificate ID is already held by another record.
var ErrDuplicateCertificateID = errors.New("certificate id already issued")

// RequestRepository persists certificate requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, req *models.CertificateRequest) error {
	if req.ID == "" {
		req.ID = "req_" + uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.RequestDate.IsZero() {
		req.RequestDate = time.Now().UTC()
	}
	const query = `INSERT INTO certificate_requests
	(id, nik, full_name, dob, address, email, type, symptoms, request_date, status, email_sent)
	VALUES (:id, :nik, :full_name, :dob, :address, :email, :type, :symptoms, :request_date, :status, :email_sent)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create certificate request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.CertificateRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM certificate_requests WHERE id = $1`
	var req models.CertificateRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter, newest first, plus the total match count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.CertificateRequest, int, error) {
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM certificate_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificate requests: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM certificate_requests%s ORDER BY request_date DESC, id DESC LIMIT %d OFFSET %d",
		requestColumns, where, limit, offset)
	requests := make([]models.CertificateRequest, 0)
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificate requests: %w", err)
	}
	return requests, total, nil
}

// UpdateIfStatus applies patch only while the row still has the expected
// status and returns the updated row. sql.ErrNoRows means the row is missing
// or its status moved on.
func (r *RequestRepository) UpdateIfStatus(ctx context.Context, id string, expected models.RequestStatus, patch models.RequestPatch) (*models.CertificateRequest, error) {
	setParts := make([]string, 0, 9)
	args := make([]interface{}, 0, 11)
	set := func(column string, value interface{}) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.DoctorNotes != nil {
		set("doctor_notes", *patch.DoctorNotes)
	}
	if patch.ValidFrom != nil {
		set("valid_from", *patch.ValidFrom)
	}
	if patch.ValidUntil != nil {
		set("valid_until", *patch.ValidUntil)
	}
	if patch.CertificateID != nil {
		set("certificate_id", *patch.CertificateID)
	}
	if patch.CertificateURL != nil {
		set("certificate_url", *patch.CertificateURL)
	}
	if patch.EmailSent != nil {
		set("email_sent", *patch.EmailSent)
	}
	if patch.ReviewedBy != nil {
		set("reviewed_by", *patch.ReviewedBy)
	}
	if patch.ReviewedAt != nil {
		set("reviewed_at", *patch.ReviewedAt)
	}
	if len(setParts) == 0 {
		return nil, fmt.Errorf("update certificate request: empty patch")
	}

	args = append(args, id, expected)
	query := fmt.Sprintf("UPDATE certificate_requests SET %s WHERE id = $%d AND status = $%d RETURNING %s",
		strings.Join(setParts, ", "), len(args)-1, len(args), requestColumns)

	var updated models.CertificateRequest
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCertificateID
		}
		return nil, fmt.Errorf("update certificate request: %w", err)
	}
	return &updated, nil
}

// FindApprovedByCertificateID resolves an approved request by certificate ID,
// falling back to the record ID.
func (r *RequestRepository) FindApprovedByCertificateID(ctx context.Context, id string) (*models.CertificateRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM certificate_requests
	WHERE (certificate_id = $1 OR id = $1) AND status = $2
	LIMIT 1`
	var req models.CertificateRequest
	if err := r.db.GetContext(ctx, &req, query, id, models.RequestStatusApproved); err != nil {
		return nil, err
	}
	return &req, nil
}

// CertificateIDExists reports whether certID is already issued.
func (r *RequestRepository) CertificateIDExists(ctx context.Context, certID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM certificate_requests WHERE certificate_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, certID); err != nil {
		return false, fmt.Errorf("check certificate id: %w", err)
	}
	return exists, nil
}

// LatestCertificateSequence returns the highest sequence issued under
// prefix-year, or -1 when none has been issued.
func (r *RequestRepository) LatestCertificateSequence(ctx context.Context, prefix string, year int) (int, error) {
	const query = `SELECT COALESCE(MAX(CAST(SUBSTRING(certificate_id FROM '([0-9]{4})$') AS INTEGER)), -1)
	FROM certificate_requests WHERE certificate_id LIKE $1`
	var seq int
	if err := r.db.GetContext(ctx, &seq, query, fmt.Sprintf("%s-%04d-%%", prefix, year)); err != nil {
		return 0, fmt.Errorf("latest certificate sequence: %w", err)
	}
	return seq, nil
}

// Ping verifies database connectivity for readiness checks.
func (r *RequestRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
