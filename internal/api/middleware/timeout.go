package middleware

import (
	"context"
	"errors"
	"time"

	"recipe-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestTimeout 為每個請求設定逾時，處理器未寫回應時返回 504
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(common.ErrGatewayTimeout.Status, common.ErrorResponse{
					Code:    common.ErrCodeGatewayTimeout,
					Message: common.ErrGatewayTimeout.Message,
				})
			}
		}
	}
}
