package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recipe-recommender/internal/core/catalog"
	"recipe-recommender/internal/core/ingest"
	"recipe-recommender/internal/core/pantry"
	"recipe-recommender/internal/core/queue"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/recommend"
	"recipe-recommender/internal/core/vectorindex"
	"recipe-recommender/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecommender struct{}

func (stubRecommender) Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error) {
	return &recommend.Response{Fridge: []string{"계란"}, Recommendations: []recommend.Recommendation{{ID: 1, Name: "계란찜"}}}, nil
}

type stubPantry struct{}

func (stubPantry) AddIngredient(ctx context.Context, userID int64, name string, quantity float64) (*pantry.Result, error) {
	return &pantry.Result{IngredientID: 1, Name: name, Created: true}, nil
}

func (stubPantry) ListPantry(ctx context.Context, userID int64) ([]recipe.UserIngredient, error) {
	return []recipe.UserIngredient{}, nil
}

type stubIngester struct{}

func (stubIngester) Ingest(ctx context.Context, keyword string) (*ingest.Result, error) {
	return &ingest.Result{Keyword: keyword}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedPending(ctx context.Context, batchSize int) (int, error) { return 0, nil }

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Version: "test"},
		Server:      config.ServerConfig{RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
		Embedding:   config.EmbeddingConfig{Dimension: 4, BatchSize: 8},
		RateLimit:   config.RateLimitConfig{Enabled: true, Requests: 100, Window: time.Minute},
		DedupWindow: time.Second,
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	q := queue.NewManager(config.QueueConfig{Workers: 1, MaxSize: 10})
	t.Cleanup(func() { q.Close() })

	store, err := catalog.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index := vectorindex.NewMemoryIndex()
	require.NoError(t, index.EnsureCollection(context.Background(), 4))

	return SetupRouter(testConfig(), Dependencies{
		Recommender: stubRecommender{},
		Pantry:      stubPantry{},
		Queue:       q,
		Ingester:    stubIngester{},
		Embedder:    stubEmbedder{},
		Index:       index,
		Catalog:     store,
	})
}

func request(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestRoutesAreRegistered(t *testing.T) {
	r := newTestRouter(t)

	w := request(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/live", "").Code)

	w = request(r, http.MethodPost, "/api/v1/rag/recommend", `{"user_id": 1, "query": "계란"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "계란찜")

	assert.Equal(t, http.StatusAccepted, request(r, http.MethodPost, "/api/v1/pantry/1/ingredients", `{"name": "양파", "quantity": 1}`).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/pantry/1/ingredients", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/admin/queue", "").Code)
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/api/v1/admin/tasks/none", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/admin/stats", "").Code)
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/api/v1/recipes/42", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	request(r, http.MethodGet, "/live", "")

	w := request(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAdminDuplicatePostIsRejected(t *testing.T) {
	r := newTestRouter(t)
	body := `{"keywords": ["두부"]}`

	assert.Equal(t, http.StatusAccepted, request(r, http.MethodPost, "/api/v1/admin/ingest", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodPost, "/api/v1/admin/ingest", body).Code)
}
