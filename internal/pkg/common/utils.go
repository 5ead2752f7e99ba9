package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WriteError 將錯誤轉換為統一的 API 錯誤響應
func WriteError(c *gin.Context, err error, debug bool) {
	ce, ok := AsCustomError(err)
	if !ok {
		switch {
		case IsValidationError(err):
			ce = ErrInvalidRequest.WithErr(err)
		case errors.Is(err, context.DeadlineExceeded):
			ce = ErrGatewayTimeout.WithErr(err)
		default:
			ce = ErrInternalError.WithErr(err)
		}
	}

	resp := ErrorResponse{
		Code:    ce.Code,
		Message: ce.Message,
	}
	if debug && ce.Err != nil {
		resp.Details = ce.Err.Error()
	}

	if ce.Status >= http.StatusInternalServerError {
		LogError("請求處理失敗",
			zap.String("code", ce.Code),
			zap.String("path", c.Request.URL.Path),
			zap.Error(errors.Unwrap(ce)),
		)
	}

	c.AbortWithStatusJSON(ce.Status, resp)
}
