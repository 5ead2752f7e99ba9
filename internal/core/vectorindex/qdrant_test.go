package vectorindex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type fakeQdrant struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r recordedRequest)
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	req := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &req.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	f.handler(w, req)
}

func newFakeQdrant(t *testing.T, handler func(w http.ResponseWriter, r recordedRequest)) (*fakeQdrant, *QdrantClient) {
	t.Helper()
	fake := &fakeQdrant{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, NewQdrantClient(Config{URL: srv.URL, MaxRetries: 2})
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	fake, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"result": true, "status": "ok"}`))
	})

	require.NoError(t, client.EnsureCollection(context.Background(), 768))
	require.Len(t, fake.requests, 2)

	create := fake.requests[1]
	assert.Equal(t, http.MethodPut, create.Method)
	assert.Equal(t, "/collections/recipes_bert_filtered", create.Path)
	vectors := create.Body["vectors"].(map[string]any)["vector"].(map[string]any)
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestEnsureCollectionSkipsExisting(t *testing.T) {
	fake, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		w.Write([]byte(`{"result": {"status": "green"}, "status": "ok"}`))
	})

	require.NoError(t, client.EnsureCollection(context.Background(), 768))
	assert.Len(t, fake.requests, 1)
}

func TestRecreateCollection(t *testing.T) {
	fake, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		w.Write([]byte(`{"result": true, "status": "ok"}`))
	})

	require.NoError(t, client.RecreateCollection(context.Background(), 4))
	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodDelete, fake.requests[0].Method)
	assert.Equal(t, http.MethodPut, fake.requests[1].Method)
}

func TestUpsertBatchSendsNamedVectors(t *testing.T) {
	fake, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		w.Write([]byte(`{"result": {"status": "completed"}, "status": "ok"}`))
	})

	err := client.UpsertBatch(context.Background(), []Point{{
		ID:      "6f1c2b1e-0000-4000-8000-000000000001",
		Vector:  []float32{0.5, 0.5},
		Payload: map[string]any{PayloadRecipeID: 7, PayloadMethod: "끓이기"},
	}})
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)

	req := fake.requests[0]
	assert.Equal(t, "/collections/recipes_bert_filtered/points", req.Path)
	assert.Equal(t, "wait=true", req.Query)
	points := req.Body["points"].([]any)
	require.Len(t, points, 1)
	point := points[0].(map[string]any)
	assert.Equal(t, []any{0.5, 0.5}, point["vector"].(map[string]any)["vector"])
	assert.Equal(t, float64(7), point["payload"].(map[string]any)["recipe_id"])
}

func TestUpsertBatchRetriesServerErrors(t *testing.T) {
	var calls int
	_, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status": "ok"}`))
	})

	err := client.Upsert(context.Background(), Point{ID: "a", Vector: []float32{1}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestUpsertBatchMissingCollection(t *testing.T) {
	var calls int
	_, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status": {"error": "Not found: Collection doesn't exist!"}}`))
	})

	err := client.Upsert(context.Background(), Point{ID: "a", Vector: []float32{1}})
	assert.ErrorIs(t, err, ErrCollectionMissing)
	assert.Equal(t, 1, calls)
}

func TestQueryDecodesHitsAndSendsFilter(t *testing.T) {
	fake, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		w.Write([]byte(`{"result": {"points": [
			{"id": "p-1", "score": 0.91, "payload": {"recipe_id": 3, "method": "끓이기"}},
			{"id": 12, "score": 0.42, "payload": {"recipe_id": 9}}
		]}, "status": "ok"}`))
	})

	lte := 500.0
	filter := &Filter{Must: []Condition{
		{Key: PayloadMethod, Match: &MatchText{Text: "끓이기"}},
		{Key: PayloadCalories, Range: &Range{LTE: &lte}},
	}}
	hits, err := client.Query(context.Background(), []float32{1, 0}, filter, 40)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "p-1", hits[0].ID)
	assert.Equal(t, "12", hits[1].ID)
	id, ok := hits[0].RecipeID()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, "끓이기", hits[0].Method())

	req := fake.requests[0]
	assert.Equal(t, "/collections/recipes_bert_filtered/points/query", req.Path)
	assert.Equal(t, "vector", req.Body["using"])
	assert.Equal(t, float64(40), req.Body["limit"])
	assert.Equal(t, true, req.Body["with_payload"])
	must := req.Body["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 2)
	assert.Equal(t, map[string]any{"text": "끓이기"}, must[0].(map[string]any)["match"])
	assert.Equal(t, map[string]any{"lte": 500.0}, must[1].(map[string]any)["range"])
}

func TestQueryWithoutFilterOmitsIt(t *testing.T) {
	fake, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		w.Write([]byte(`{"result": {"points": []}, "status": "ok"}`))
	})

	hits, err := client.Query(context.Background(), []float32{1}, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	_, ok := fake.requests[0].Body["filter"]
	assert.False(t, ok)
}

func TestReadyMissingCollection(t *testing.T) {
	_, client := newFakeQdrant(t, func(w http.ResponseWriter, r recordedRequest) {
		w.WriteHeader(http.StatusNotFound)
	})
	assert.ErrorIs(t, client.Ready(context.Background()), ErrCollectionMissing)
}
