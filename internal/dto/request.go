package dto

import "github.com/noah-isme/medsurat-api/internal/models"

// RequestQuery captures officer listing filters.
type RequestQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
	Type     string `form:"type" binding:"omitempty,oneof=SICK_LEAVE HEALTH_CHECK REFERRAL NARCOTICS_FREE COMBINED"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// ExportQuery captures history export options.
type ExportQuery struct {
	RequestQuery
	Format string `form:"format" binding:"omitempty,oneof=csv pdf"`
}

// ApproveRequest is the officer's approval payload.
type ApproveRequest struct {
	Notes        string `json:"notes" validate:"required,max=4000"`
	ValidityDays *int   `json:"validityDays" validate:"omitempty,min=1,max=14"`
}

// NotesRequest saves draft clinical notes on a pending request.
type NotesRequest struct {
	Notes string `json:"notes" validate:"required,max=4000"`
}

// DraftResponse carries AI drafted notes back to the officer.
type DraftResponse struct {
	Notes string `json:"notes"`
}

// ApprovalResult reports the outcome of an approval, including the tolerated
// side effects that did not succeed.
type ApprovalResult struct {
	Request          *models.CertificateRequest `json:"request"`
	DocumentStored   bool                       `json:"documentStored"`
	NotificationSent bool                       `json:"notificationSent"`
	Warnings         []string                   `json:"warnings,omitempty"`
}

// Document is a binary file returned to clients.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Filter converts the query into a repository filter.
func (q RequestQuery) Filter() models.RequestFilter {
	size := q.PageSize
	if size <= 0 {
		size = 50
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	return models.RequestFilter{
		Status: models.RequestStatus(q.Status),
		Type:   models.CertificateType(q.Type),
		Limit:  size,
		Offset: (page - 1) * size,
	}
}
