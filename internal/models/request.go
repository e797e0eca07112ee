package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CertificateType enumerates the certificate categories a patient can request.
type CertificateType string

const (
	CertificateTypeSickLeave     CertificateType = "SICK_LEAVE"
	CertificateTypeHealthCheck   CertificateType = "HEALTH_CHECK"
	CertificateTypeReferral      CertificateType = "REFERRAL"
	CertificateTypeNarcoticsFree CertificateType = "NARCOTICS_FREE"
	CertificateTypeCombined      CertificateType = "COMBINED"
)

// Valid reports whether t is a known category.
func (t CertificateType) Valid() bool {
	switch t {
	case CertificateTypeSickLeave, CertificateTypeHealthCheck, CertificateTypeReferral,
		CertificateTypeNarcoticsFree, CertificateTypeCombined:
		return true
	}
	return false
}

// HasValidityWindow reports whether certificates of this category carry a
// bounded validity period.
func (t CertificateType) HasValidityWindow() bool {
	return t == CertificateTypeSickLeave
}

// RequestStatus captures the review state of a certificate request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	return s == RequestStatusPending || s == RequestStatusApproved || s == RequestStatusRejected
}

// Terminal reports whether no further transition is possible from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// Submission is what a patient provides when filing a request.
type Submission struct {
	NIK      string          `json:"nik" validate:"required,len=16,number"`
	FullName string          `json:"fullName" validate:"required,max=200"`
	DOB      string          `json:"dob" validate:"required,datetime=2006-01-02"`
	Address  string          `json:"address" validate:"required,max=500"`
	Email    string          `json:"email" validate:"required,email,max=254"`
	Type     CertificateType `json:"type" validate:"required,oneof=SICK_LEAVE HEALTH_CHECK REFERRAL NARCOTICS_FREE COMBINED"`
	Symptoms string          `json:"symptoms" validate:"required,max=4000"`
}

// Normalize trims surrounding whitespace from every free-text field.
func (s *Submission) Normalize() {
	s.NIK = strings.TrimSpace(s.NIK)
	s.FullName = strings.TrimSpace(s.FullName)
	s.DOB = strings.TrimSpace(s.DOB)
	s.Address = strings.TrimSpace(s.Address)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Symptoms = strings.TrimSpace(s.Symptoms)
}

// CertificateRequest is the persisted request record.
type CertificateRequest struct {
	ID             string          `db:"id" json:"id"`
	NIK            string          `db:"nik" json:"nik"`
	FullName       string          `db:"full_name" json:"fullName"`
	DOB            time.Time       `db:"dob" json:"dob"`
	Address        string          `db:"address" json:"address"`
	Email          string          `db:"email" json:"email"`
	Type           CertificateType `db:"type" json:"type"`
	Symptoms       string          `db:"symptoms" json:"symptoms"`
	RequestDate    time.Time       `db:"request_date" json:"requestDate"`
	Status         RequestStatus   `db:"status" json:"status"`
	DoctorNotes    *string         `db:"doctor_notes" json:"doctorNotes,omitempty"`
	ValidFrom      *time.Time      `db:"valid_from" json:"validFrom,omitempty"`
	ValidUntil     *time.Time      `db:"valid_until" json:"validUntil,omitempty"`
	CertificateID  *string         `db:"certificate_id" json:"certificateId,omitempty"`
	CertificateURL *string         `db:"certificate_url" json:"certificateUrl,omitempty"`
	EmailSent      bool            `db:"email_sent" json:"emailSent"`
	ReviewedBy     *string         `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time      `db:"reviewed_at" json:"reviewedAt,omitempty"`
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	Status RequestStatus
	Type   CertificateType
	Limit  int
	Offset int
}

// RequestPatch is a partial update. Nil fields are left untouched.
type RequestPatch struct {
	Status         *RequestStatus
	DoctorNotes    *string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	CertificateID  *string
	CertificateURL *string
	EmailSent      *bool
	ReviewedBy     *string
	ReviewedAt     *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p RequestPatch) IsEmpty() bool {
	return p.Status == nil && p.DoctorNotes == nil && p.ValidFrom == nil && p.ValidUntil == nil &&
		p.CertificateID == nil && p.CertificateURL == nil && p.EmailSent == nil &&
		p.ReviewedBy == nil && p.ReviewedAt == nil
}

// ErrIllegalPatch marks a patch that would violate the request lifecycle.
var ErrIllegalPatch = errors.New("illegal request patch")

func illegal(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIllegalPatch, fmt.Sprintf(format, args...))
}

// CheckPatch verifies that applying p to a record currently in status current
// keeps the lifecycle invariants: status only leaves PENDING, a certificate ID
// exists exactly when the record is APPROVED, and clinical fields are frozen
// once the request is decided.
func CheckPatch(current RequestStatus, p RequestPatch) error {
	target := current
	if p.Status != nil {
		if current != RequestStatusPending {
			return illegal("status %s is final", current)
		}
		switch *p.Status {
		case RequestStatusApproved:
			if p.CertificateID == nil || strings.TrimSpace(*p.CertificateID) == "" {
				return illegal("approval requires a certificate id")
			}
		case RequestStatusRejected:
			if p.CertificateID != nil {
				return illegal("rejected request cannot carry a certificate id")
			}
		default:
			return illegal("cannot move %s to %s", current, *p.Status)
		}
		target = *p.Status
	} else {
		if p.CertificateID != nil {
			return illegal("certificate id can only be set on approval")
		}
		if p.ReviewedBy != nil || p.ReviewedAt != nil {
			return illegal("review fields can only be set with a decision")
		}
	}

	if p.DoctorNotes != nil || p.ValidFrom != nil || p.ValidUntil != nil {
		if current != RequestStatusPending {
			return illegal("clinical fields are frozen once status is %s", current)
		}
	}
	if (p.ValidFrom == nil) != (p.ValidUntil == nil) {
		return illegal("validity window needs both bounds")
	}
	if p.ValidFrom != nil && p.ValidUntil.Before(*p.ValidFrom) {
		return illegal("validity window ends before it starts")
	}
	if (p.CertificateURL != nil || p.EmailSent != nil) && target != RequestStatusApproved {
		return illegal("document fields require an approved request")
	}
	return nil
}

// Apply returns a copy of r with p applied.
func (r CertificateRequest) Apply(p RequestPatch) CertificateRequest {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.DoctorNotes != nil {
		r.DoctorNotes = p.DoctorNotes
	}
	if p.ValidFrom != nil {
		r.ValidFrom = p.ValidFrom
	}
	if p.ValidUntil != nil {
		r.ValidUntil = p.ValidUntil
	}
	if p.CertificateID != nil {
		r.CertificateID = p.CertificateID
	}
	if p.CertificateURL != nil {
		r.CertificateURL = p.CertificateURL
	}
	if p.EmailSent != nil {
		r.EmailSent = *p.EmailSent
	}
	if p.ReviewedBy != nil {
		r.ReviewedBy = p.ReviewedBy
	}
	if p.ReviewedAt != nil {
		r.ReviewedAt = p.ReviewedAt
	}
	return r
}

// VerificationStatus is the public outcome of a certificate lookup.
type VerificationStatus string

const (
	VerificationValid   VerificationStatus = "VALID"
	VerificationInvalid VerificationStatus = "INVALID"
)

// VerificationView is the subset of an approved record disclosed to anyone
// holding the certificate ID.
type VerificationView struct {
	CertificateID        string          `json:"certificateId"`
	FullName             string          `json:"fullName"`
	NIKMasked            string          `json:"nikMasked"`
	Type                 CertificateType `json:"type"`
	ValidFrom            *time.Time      `json:"validFrom,omitempty"`
	ValidUntil           *time.Time      `json:"validUntil,omitempty"`
	IssuedAt             *time.Time      `json:"issuedAt,omitempty"`
	DocumentURL          string          `json:"documentUrl,omitempty"`
	DocumentURLExpiresAt *time.Time      `json:"documentUrlExpiresAt,omitempty"`
}

// VerificationResult answers a verification lookup.
type VerificationResult struct {
	Status      VerificationStatus `json:"status"`
	Certificate *VerificationView  `json:"certificate,omitempty"`
}

// NewVerificationView projects an approved record into its public form.
func NewVerificationView(r CertificateRequest) VerificationView {
	view := VerificationView{
		FullName:   r.FullName,
		NIKMasked:  MaskNIK(r.NIK),
		Type:       r.Type,
		ValidFrom:  r.ValidFrom,
		ValidUntil: r.ValidUntil,
		IssuedAt:   r.ReviewedAt,
	}
	if r.CertificateID != nil {
		view.CertificateID = *r.CertificateID
	}
	return view
}

// MaskNIK hides all but the last four digits of a national ID number.
func MaskNIK(nik string) string {
	if len(nik) <= 4 {
		return strings.Repeat("*", len(nik))
	}
	return strings.Repeat("*", len(nik)-4) + nik[len(nik)-4:]
}
