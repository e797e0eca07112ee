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

type documentService interface {
	OfficerDocument(ctx context.Context, id string) (*dto.Document, error)
	ResolveDownload(ctx context.Context, token string) (*dto.Document, error)
}

type exportService interface {
	Export(ctx context.Context, filter models.RequestFilter, format string) (*dto.Document, error)
}

// DocumentHandler serves certificate PDFs and history exports.
type DocumentHandler struct {
	documents documentService
	exports   exportService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents documentService, exports exportService) *DocumentHandler {
	return &DocumentHandler{documents: documents, exports: exports}
}

// Download godoc
// @Summary Download certificate by signed link
// @Tags Documents
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	if h.documents == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	doc, err := h.documents.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data, true)
}

// OfficerDocument godoc
// @Summary Download certificate of an approved request
// @Tags Officer
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /officer/requests/{id}/document [get]
func (h *DocumentHandler) OfficerDocument(c *gin.Context) {
	if h.documents == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	doc, err := h.documents.OfficerDocument(c.Request.Context(), recordIDParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data, c.Query("download") == "")
}

// Export godoc
// @Summary Export request history
// @Tags Officer
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param type query string false "Category filter"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /officer/requests/export [get]
func (h *DocumentHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	doc, err := h.exports.Export(c.Request.Context(), query.Filter(), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data, false)
}
