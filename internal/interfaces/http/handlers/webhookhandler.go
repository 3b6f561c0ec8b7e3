package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flaco-inc/flaco/internal/application/license/usecases"
	"github.com/flaco-inc/flaco/internal/domain/license"
	"github.com/flaco-inc/flaco/internal/infrastructure/billing"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
)

const maxWebhookBodySize = 1 << 20

type WebhookHandler struct {
	verifier  *billing.SignatureVerifier
	webhookUC *usecases.HandleWebhookUseCase
	logger    logger.Interface
}

func NewWebhookHandler(
	verifier *billing.SignatureVerifier,
	webhookUC *usecases.HandleWebhookUseCase,
	logger logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		webhookUC: webhookUC,
		logger:    logger,
	}
}

// @Summary		Billing webhook
// @Description	Receive a signed billing provider event. Non-2xx responses make the provider retry.
// @Tags			webhooks
// @Accept			json
// @Produce		json
// @Param			Stripe-Signature	header		string											true	"t=<unix>,v1=<hex hmac>"
// @Success		200					{object}	utils.APIResponse{data=usecases.WebhookResult}	"Event handled"
// @Failure		400					{object}	utils.APIResponse								"Bad signature or payload"
// @Failure		500					{object}	utils.APIResponse								"Processing failed, retry later"
// @Router			/api/webhooks/stripe [post]
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodySize))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := h.verifier.Verify(payload, c.GetHeader(billing.SignatureHeader)); err != nil {
		h.logger.Warnw("rejected webhook signature", "error", err, "client_ip", c.ClientIP())
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid signature")
		return
	}

	event, err := billing.ParseEvent(payload)
	if err != nil {
		h.logger.Warnw("rejected webhook payload", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid event payload")
		return
	}

	result, err := h.webhookUC.Execute(c.Request.Context(), event)
	if err != nil {
		if errors.Is(err, license.ErrMalformedEvent) {
			h.logger.Warnw("malformed webhook event", "event_id", event.ID, "error", err)
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid event payload")
			return
		}
		h.logger.Errorw("failed to process webhook event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to process event")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "event "+string(result.Status), result)
}
