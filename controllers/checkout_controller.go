package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/models"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
)

// CheckoutURLs are the hosted page redirect targets.
type CheckoutURLs struct {
	Success string
	Cancel  string
}

type CheckoutController struct {
	provider services.PaymentProvider
	orders   services.OrderService
	metrics  services.MetricsRecorder
	urls     CheckoutURLs
	logger   *zap.Logger
}

func NewCheckoutController(
	provider services.PaymentProvider,
	orders services.OrderService,
	metrics services.MetricsRecorder,
	urls CheckoutURLs,
	logger *zap.Logger,
) *CheckoutController {
	return &CheckoutController{
		provider: provider,
		orders:   orders,
		metrics:  metrics,
		urls:     urls,
		logger:   logger,
	}
}

// CreateCheckoutSession handles POST /create-checkout-session
func (cc *CheckoutController) CreateCheckoutSession(c *gin.Context) {
	var req models.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, cc.logger, services.RequestError(err))
		return
	}

	ctx := c.Request.Context()
	if req.OrderID != "" {
		if err := cc.orders.ValidateCheckoutOrder(ctx, req.OrderID); err != nil {
			respondError(c, cc.logger, err)
			return
		}
	}

	session, err := cc.provider.CreateCheckoutSession(ctx, services.CheckoutSessionInput{
		Items:      req.Items,
		SuccessURL: cc.urls.Success,
		CancelURL:  cc.urls.Cancel,
		OrderID:    req.OrderID,
	})
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}

	if req.OrderID != "" {
		// The webhook can still resolve the order through session metadata.
		if err := cc.orders.AttachCheckoutSession(ctx, req.OrderID, session.ID); err != nil {
			cc.logger.Error("Failed to attach checkout session",
				zap.String("order_id", req.OrderID),
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}

	if cc.metrics != nil {
		_ = cc.metrics.RecordCount(ctx, aws_pkg.MetricCheckoutSessions, map[string]string{"Service": "checkout-service"})
	}
	cc.logger.Info("Checkout session created", zap.String("session_id", session.ID), zap.Int("items", len(req.Items)))
	c.JSON(http.StatusOK, session)
}
