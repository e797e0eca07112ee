package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/medsurat-api/internal/dto"
	"github.com/noah-isme/medsurat-api/internal/models"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
	"github.com/noah-isme/medsurat-api/pkg/response"
)

type approvalService interface {
	Approve(ctx context.Context, id string, req dto.ApproveRequest) (*dto.ApprovalResult, error)
	Reject(ctx context.Context, id string) (*models.CertificateRequest, error)
	SaveNotes(ctx context.Context, id string, req dto.NotesRequest) (*models.CertificateRequest, error)
	DraftNotes(ctx context.Context, id string) (*dto.DraftResponse, error)
}

// ApprovalHandler exposes officer decisions.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(svc approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// Approve godoc
// @Summary Approve request
// @Description Issues a certificate ID, renders the PDF, stores it and emails the patient.
// @Tags Officer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.ApproveRequest true "Clinical notes and validity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /officer/requests/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}
	result, err := h.service.Approve(c.Request.Context(), recordIDParam(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject request
// @Tags Officer
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /officer/requests/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	record, err := h.service.Reject(c.Request.Context(), recordIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// SaveNotes godoc
// @Summary Save draft clinical notes
// @Tags Officer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.NotesRequest true "Notes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /officer/requests/{id}/notes [patch]
func (h *ApprovalHandler) SaveNotes(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notes payload"))
		return
	}
	record, err := h.service.SaveNotes(c.Request.Context(), recordIDParam(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Draft godoc
// @Summary Draft clinical notes with the AI assistant
// @Description The draft is returned for review and is not saved.
// @Tags Officer
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /officer/requests/{id}/draft [post]
func (h *ApprovalHandler) Draft(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	draft, err := h.service.DraftNotes(c.Request.Context(), recordIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}
