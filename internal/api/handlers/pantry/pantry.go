package pantry

import (
	"context"
	"net/http"
	"strconv"

	"recipe-recommender/internal/core/pantry"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service 冰箱服務
type Service interface {
	AddIngredient(ctx context.Context, userID int64, name string, quantity float64) (*pantry.Result, error)
	ListPantry(ctx context.Context, userID int64) ([]recipe.UserIngredient, error)
}

// AddIngredientRequest 新增冰箱食材
type AddIngredientRequest struct {
	Name     string  `json:"name" binding:"required"`
	Quantity float64 `json:"quantity"`
}

// Handler 冰箱處理程序
type Handler struct {
	svc   Service
	debug bool
}

// NewHandler 創建冰箱處理程序
func NewHandler(svc Service, debug bool) *Handler {
	return &Handler{svc: svc, debug: debug}
}

// AddIngredient POST /api/v1/pantry/:user_id/ingredients，匯入在背景進行
func (h *Handler) AddIngredient(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req AddIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.WithErr(err), h.debug)
		return
	}

	res, err := h.svc.AddIngredient(c.Request.Context(), userID, req.Name, req.Quantity)
	if err != nil {
		common.WriteError(c, err, h.debug)
		return
	}

	common.LogInfo("冰箱食材已更新",
		zap.String("request_id", requestid.Get(c)),
		zap.Int64("user_id", userID),
		zap.String("ingredient", res.Name),
		zap.String("task_id", res.TaskID),
	)
	c.JSON(http.StatusAccepted, res)
}

// List GET /api/v1/pantry/:user_id/ingredients
func (h *Handler) List(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	items, err := h.svc.ListPantry(c.Request.Context(), userID)
	if err != nil {
		common.WriteError(c, err, h.debug)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "ingredients": items})
}

func (h *Handler) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		common.WriteError(c, common.NewValidationError("invalid user_id"), h.debug)
		return 0, false
	}
	return id, true
}
