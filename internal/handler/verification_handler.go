package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/medsurat-api/internal/models"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
	"github.com/noah-isme/medsurat-api/pkg/response"
)

type verificationService interface {
	Verify(ctx context.Context, id string) (*models.VerificationResult, error)
}

// VerificationHandler serves the public verification endpoint encoded in
// certificate QR codes.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(svc verificationService) *VerificationHandler {
	return &VerificationHandler{service: svc}
}

// Verify godoc
// @Summary Verify certificate
// @Description Reports whether a certificate ID belongs to an approved certificate.
// @Tags Verification
// @Produce json
// @Param id query string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /verify [get]
func (h *VerificationHandler) Verify(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	id := c.Query("id")
	if id == "" {
		id = recordIDParam(c)
	}
	result, err := h.service.Verify(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
