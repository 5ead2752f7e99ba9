package ollama

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeNormalizesAndKeepsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-m3", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"bge-m3","embeddings":[[3,4],[0,2]]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Model: "bge-m3", Dimension: 2})
	vecs, err := c.Encode(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.6, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.8, vecs[0][1], 1e-6)
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestEncodeRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings":[[1,2,3]]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Model: "bge-m3", Dimension: 2})
	_, err := c.Encode(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestEncodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"bge-m3\" not found"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Model: "bge-m3"})
	_, err := c.Encode(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEncodeEmptyInput(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:0", Model: "bge-m3"})
	vecs, err := c.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{1, 1, 1, 1})
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}
