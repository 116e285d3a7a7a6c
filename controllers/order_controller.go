package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
)

type OrderController struct {
	orderService services.OrderService
	logger       *zap.Logger
}

func NewOrderController(svc services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orderService: svc, logger: logger}
}

// CreateOrder handles POST /create-order
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, oc.logger, services.RequestError(err))
		return
	}

	resp, err := oc.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetOrder handles GET /order/:orderId
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.orderService.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetUserOrders handles GET /orders/:userId
func (oc *OrderController) GetUserOrders(c *gin.Context) {
	orders, err := oc.orderService.GetOrdersForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// CancelOrder handles POST /cancel-order/:orderId
func (oc *OrderController) CancelOrder(c *gin.Context) {
	if err := oc.orderService.CancelOrder(c.Request.Context(), c.Param("orderId")); err != nil {
		respondError(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully"})
}
