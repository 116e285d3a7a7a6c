package controllers

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/checkout-service/errors"
	"go.uber.org/zap"
)

// respondError writes {"error": message} with the status carried by err.
// Server-side failures are logged with their cause.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := apperrors.From(err)
	if appErr.Code >= 500 {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
