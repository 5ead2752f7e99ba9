package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"recipe-recommender/internal/core/queue"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDep struct{ err error }

func (f fakeDep) Ping(ctx context.Context) error  { return f.err }
func (f fakeDep) Ready(ctx context.Context) error { return f.err }

type fakeQueue struct{}

func (fakeQueue) Status() *queue.Status { return &queue.Status{Workers: 2, MaxQueueSize: 100} }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/live", h.Live)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthReportsVersionAndQueue(t *testing.T) {
	w := serve(NewHandler("1.2.3", nil, nil, fakeQueue{}), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	require.NotNil(t, resp.Queue)
	assert.Equal(t, 2, resp.Queue.Workers)
	assert.Contains(t, resp.Runtime, "goroutines")
}

func TestReady(t *testing.T) {
	w := serve(NewHandler("v", fakeDep{}, fakeDep{}, nil), "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)

	w = serve(NewHandler("v", fakeDep{}, fakeDep{err: errors.New("collection missing")}, nil), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "collection missing", body.Checks["vector_index"])
}

func TestLive(t *testing.T) {
	w := serve(NewHandler("v", nil, nil, nil), "/live")
	assert.Equal(t, http.StatusOK, w.Code)
}
