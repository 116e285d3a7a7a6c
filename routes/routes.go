package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/controllers"
)

const serviceName = "checkout-service"

// Controllers bundles the handlers mounted by RegisterRoutes.
type Controllers struct {
	Orders   *controllers.OrderController
	Checkout *controllers.CheckoutController
	Webhook  *controllers.WebhookController
}

// RegisterRoutes mounts the public checkout API on r.
func RegisterRoutes(r *gin.Engine, h Controllers, clientURL string) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "Checkout service is running",
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"client":    clientURL,
		})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})

	r.POST("/create-order", h.Orders.CreateOrder)
	r.GET("/order/:orderId", h.Orders.GetOrder)
	r.GET("/orders/:userId", h.Orders.GetUserOrders)
	r.POST("/cancel-order/:orderId", h.Orders.CancelOrder)

	r.POST("/create-checkout-session", h.Checkout.CreateCheckoutSession)
	r.POST("/webhook", h.Webhook.StripeWebhook)
}
