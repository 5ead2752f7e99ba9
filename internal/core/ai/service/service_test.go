package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"recipe-recommender/internal/core/ai/cache"
	"recipe-recommender/internal/core/ai/provider"
	"recipe-recommender/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls int32
	err   error
}

func (f *fakeProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{Content: "reply:" + req.Messages[len(req.Messages)-1].Content, Model: "fake"}, nil
}

func (f *fakeProvider) GetModel() string          { return "fake" }
func (f *fakeProvider) GetTimeout() time.Duration { return time.Second }
func (f *fakeProvider) Close() error              { return nil }

func request(content string) *provider.Request {
	return &provider.Request{
		Messages:    []provider.Message{{Role: provider.RoleUser, Content: content}},
		Temperature: 0.3,
	}
}

func TestCompleteCachesResponses(t *testing.T) {
	p := &fakeProvider{}
	store := cache.NewManager(config.CacheConfig{Enabled: true, MaxSize: 10, TTL: time.Minute})
	defer store.Close()
	svc := NewService(p, store, Options{})

	first, err := svc.Complete(context.Background(), request("두부 요리"))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// 空白差異視為同一請求
	second, err := svc.Complete(context.Background(), request("두부   요리"))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))

	_, err = svc.Complete(context.Background(), request("계란 요리"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
}

func TestCompleteWithoutCache(t *testing.T) {
	p := &fakeProvider{}
	svc := NewService(p, nil, Options{})

	for i := 0; i < 2; i++ {
		_, err := svc.Complete(context.Background(), request("q"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
	assert.Equal(t, "fake", svc.Model())
}

func TestCompletePropagatesProviderError(t *testing.T) {
	boom := errors.New("upstream down")
	svc := NewService(&fakeProvider{err: boom}, nil, Options{})

	_, err := svc.Complete(context.Background(), request("q"))
	assert.ErrorIs(t, err, boom)
}

func TestCompleteHonoursContextWhilePaced(t *testing.T) {
	p := &fakeProvider{}
	svc := NewService(p, nil, Options{RequestsPerSecond: 0.001})

	_, err := svc.Complete(context.Background(), request("first"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Complete(ctx, request("second"))
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}
