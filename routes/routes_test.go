package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/checkout-service/controllers"
	"github.com/yashrajoria/checkout-service/repository"
	"github.com/yashrajoria/checkout-service/routes"
	"github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
)

func TestRootAndHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo, err := repository.NewFileOrderRepository(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)
	orders := services.NewOrderService(repo, nil, nil, nil, zap.NewNop())

	r := gin.New()
	routes.RegisterRoutes(r, routes.Controllers{
		Orders:   controllers.NewOrderController(orders, zap.NewNop()),
		Checkout: controllers.NewCheckoutController(nil, orders, nil, controllers.CheckoutURLs{}, zap.NewNop()),
		Webhook:  controllers.NewWebhookController(nil, zap.NewNop()),
	}, "http://localhost:4200")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var root map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &root))
	assert.Equal(t, "OK", root["status"])
	assert.Equal(t, "http://localhost:4200", root["client"])
	assert.NotEmpty(t, root["timestamp"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"healthy","service":"checkout-service"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/nobody", nil))
	assert.JSONEq(t, `[]`, w.Body.String())
}
