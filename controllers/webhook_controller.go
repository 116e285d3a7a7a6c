package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/checkout-service/errors"
	"github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = int64(65536)

type WebhookController struct {
	webhooks services.WebhookService
	logger   *zap.Logger
}

func NewWebhookController(svc services.WebhookService, logger *zap.Logger) *WebhookController {
	return &WebhookController{webhooks: svc, logger: logger}
}

// StripeWebhook handles POST /webhook. The body must reach signature
// verification byte for byte, so it is read raw and never bound.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, wc.logger, apperrors.ErrInvalidRequest.WithMessage("Webhook Error: "+err.Error()))
		return
	}

	eventType, err := wc.webhooks.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		respondError(c, wc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "type": eventType})
}
