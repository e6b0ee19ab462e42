package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flexprice/payflow/internal/api/dto"
	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/service"
)

type PaymentHandler struct {
	admission service.AdmissionService
	log       *logger.Logger
}

func NewPaymentHandler(admission service.AdmissionService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{admission: admission, log: log}
}

// CreatePayment admits a payment creation request. The response is
// deterministic for a given Idempotency-Key: 201 on first admission, 200
// replaying the cached result, 202 while the original request is still in
// flight, 409 on key reuse with a different payload.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Errorw("failed to bind request", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	resp, outcome, err := h.admission.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	switch outcome {
	case service.AdmissionOutcomeNew:
		c.JSON(http.StatusCreated, resp)
	case service.AdmissionOutcomeReplay:
		c.JSON(http.StatusOK, resp)
	case service.AdmissionOutcomeInFlight:
		c.JSON(http.StatusAccepted, dto.NewProcessingResponse())
	default:
		c.Error(ierr.NewError("unknown admission outcome").
			WithHint("Internal admission error").
			Mark(ierr.ErrSystem))
	}
}

// GetPayment returns a payment by id. The read is unlocked and may trail
// an in-flight transition.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	resp, err := h.admission.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
