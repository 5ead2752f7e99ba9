package pantry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recipe-recommender/internal/core/pantry"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	addErr error
	items  []recipe.UserIngredient
	userID int64
	name   string
}

func (f *fakeService) AddIngredient(ctx context.Context, userID int64, name string, quantity float64) (*pantry.Result, error) {
	f.userID, f.name = userID, name
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &pantry.Result{IngredientID: 4, Name: name, Created: true, TaskID: "task-1"}, nil
}

func (f *fakeService) ListPantry(ctx context.Context, userID int64) ([]recipe.UserIngredient, error) {
	f.userID = userID
	return f.items, nil
}

func setup(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc, false)
	r.POST("/pantry/:user_id/ingredients", h.AddIngredient)
	r.GET("/pantry/:user_id/ingredients", h.List)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAddIngredientAccepted(t *testing.T) {
	svc := &fakeService{}
	w := do(setup(svc), http.MethodPost, "/pantry/12/ingredients", `{"name": "두부", "quantity": 1}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var res pantry.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, int64(12), svc.userID)
	assert.Equal(t, "두부", svc.name)
}

func TestAddIngredientInvalid(t *testing.T) {
	r := setup(&fakeService{})
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/pantry/abc/ingredients", `{"name": "두부"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/pantry/1/ingredients", `{}`).Code)

	r = setup(&fakeService{addErr: common.NewValidationError("ingredient name is required")})
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/pantry/1/ingredients", `{"name": " "}`).Code)

	r = setup(&fakeService{addErr: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/pantry/1/ingredients", `{"name": "두부"}`).Code)
}

func TestListPantry(t *testing.T) {
	svc := &fakeService{items: []recipe.UserIngredient{{UserID: 3, IngredientID: 1, Name: "감자", Quantity: 2}}}
	w := do(setup(svc), http.MethodGet, "/pantry/3/ingredients", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		UserID      int64                   `json:"user_id"`
		Ingredients []recipe.UserIngredient `json:"ingredients"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.UserID)
	require.Len(t, body.Ingredients, 1)
	assert.Equal(t, "감자", body.Ingredients[0].Name)
}
