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

type recordService interface {
	Create(ctx context.Context, sub models.Submission) (*models.CertificateRequest, error)
	Get(ctx context.Context, id string) (*models.CertificateRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.CertificateRequest, *models.Pagination, error)
	History(ctx context.Context, id string) ([]models.AuditLog, error)
}

// RequestHandler exposes patient submission and the officer queue.
type RequestHandler struct {
	records recordService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(records recordService) *RequestHandler {
	return &RequestHandler{records: records}
}

// Submit godoc
// @Summary Submit certificate request
// @Description File a new medical certificate request. No account is needed.
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body models.Submission true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	if h.records == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	record, err := h.records.Create(c.Request.Context(), sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List certificate requests
// @Description Officer queue and history, newest first
// @Tags Officer
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param type query string false "Certificate category"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 200)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /officer/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	if h.records == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var query dto.RequestQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	records, pagination, err := h.records.List(c.Request.Context(), query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get certificate request
// @Tags Officer
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /officer/requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	if h.records == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	record, err := h.records.Get(c.Request.Context(), recordIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// History godoc
// @Summary Request audit trail
// @Tags Officer
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /officer/requests/{id}/history [get]
func (h *RequestHandler) History(c *gin.Context) {
	if h.records == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	logs, err := h.records.History(c.Request.Context(), recordIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
