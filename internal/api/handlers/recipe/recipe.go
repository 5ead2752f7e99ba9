package recipe

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"recipe-recommender/internal/core/catalog"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Catalog 食譜目錄的唯讀操作
type Catalog interface {
	RecipesByIDs(ctx context.Context, ids []int64) ([]recipe.Recipe, error)
	IngredientNames(ctx context.Context, recipeIDs []int64) (map[int64][]string, error)
	Instructions(ctx context.Context, recipeID int64) ([]recipe.Instruction, error)
	Embedding(ctx context.Context, recipeID int64) (*recipe.RecipeEmbedding, error)
	CountRecipes(ctx context.Context) (int, error)
	CountEmbeddings(ctx context.Context) (int, error)
}

// DetailResponse 食譜詳細資料
type DetailResponse struct {
	recipe.Recipe
	Ingredients  []string             `json:"ingredients"`
	Instructions []recipe.Instruction `json:"instructions"`
	Embedded     bool                 `json:"embedded"`
}

// StatsResponse 目錄統計
type StatsResponse struct {
	Recipes    int `json:"recipes"`
	Embeddings int `json:"embeddings"`
	Pending    int `json:"pending"`
}

// Handler 食譜處理程序
type Handler struct {
	catalog Catalog
	debug   bool
}

// NewHandler 創建食譜處理程序
func NewHandler(c Catalog, debug bool) *Handler {
	return &Handler{catalog: c, debug: debug}
}

// Get GET /api/v1/recipes/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.WriteError(c, common.NewValidationError("recipe id must be a positive integer"), h.debug)
		return
	}

	ctx := c.Request.Context()
	recipes, err := h.catalog.RecipesByIDs(ctx, []int64{id})
	if err != nil {
		common.WriteError(c, err, h.debug)
		return
	}
	if len(recipes) == 0 {
		common.WriteError(c, common.ErrNotFound, h.debug)
		return
	}

	resp := DetailResponse{Recipe: recipes[0], Ingredients: []string{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		names, err := h.catalog.IngredientNames(gctx, []int64{id})
		if err != nil {
			return err
		}
		if n := names[id]; n != nil {
			resp.Ingredients = n
		}
		return nil
	})
	g.Go(func() error {
		steps, err := h.catalog.Instructions(gctx, id)
		resp.Instructions = steps
		return err
	})
	g.Go(func() error {
		_, err := h.catalog.Embedding(gctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil
		}
		resp.Embedded = err == nil
		return err
	})
	if err := g.Wait(); err != nil {
		common.WriteError(c, err, h.debug)
		return
	}
	if resp.Instructions == nil {
		resp.Instructions = []recipe.Instruction{}
	}

	c.JSON(http.StatusOK, resp)
}

// Stats GET /api/v1/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	recipes, err := h.catalog.CountRecipes(ctx)
	if err != nil {
		common.WriteError(c, err, h.debug)
		return
	}
	embeddings, err := h.catalog.CountEmbeddings(ctx)
	if err != nil {
		common.WriteError(c, err, h.debug)
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		Recipes:    recipes,
		Embeddings: embeddings,
		Pending:    max(recipes-embeddings, 0),
	})
}
