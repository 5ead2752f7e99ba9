package rag

import (
	"context"
	"fmt"
	"net/http"

	"recipe-recommender/internal/core/recommend"
	"recipe-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recommender 推薦服務
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
}

// Handler 推薦處理程序
type Handler struct {
	svc     Recommender
	maxTopK int
	debug   bool
}

// NewHandler 創建推薦處理程序，maxTopK 為 top_k 上限
func NewHandler(svc Recommender, maxTopK int, debug bool) *Handler {
	return &Handler{svc: svc, maxTopK: maxTopK, debug: debug}
}

// Recommend POST /api/v1/rag/recommend
func (h *Handler) Recommend(c *gin.Context) {
	var req recommend.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestid.Get(c)),
		)
		common.WriteError(c, common.ErrInvalidRequest.WithErr(err), h.debug)
		return
	}
	if req.TopK != nil && *req.TopK <= 0 {
		common.WriteError(c, common.NewValidationError("top_k must be positive"), h.debug)
		return
	}
	if req.TopK != nil && h.maxTopK > 0 && *req.TopK > h.maxTopK {
		common.WriteError(c, common.NewValidationError(fmt.Sprintf("top_k must not exceed %d", h.maxTopK)), h.debug)
		return
	}

	common.LogInfo("開始處理推薦請求",
		zap.String("request_id", requestid.Get(c)),
		zap.Int64("user_id", req.UserID),
		zap.String("query", req.Query),
	)

	resp, err := h.svc.Recommend(c.Request.Context(), req)
	if err != nil {
		common.WriteError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, resp)
}
