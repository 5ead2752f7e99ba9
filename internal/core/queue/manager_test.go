package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipe-recommender/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueRunsJob(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 2, MaxSize: 10})
	defer m.Close()

	task, err := m.Enqueue(context.Background(), Job{
		Kind: KindIngest,
		Name: "두부",
		Run: func(ctx context.Context) (any, error) {
			return 3, nil
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	info, err := task.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, info.Status)
	assert.Equal(t, 3, info.Result)
	assert.NotNil(t, info.StartedAt)
	assert.NotNil(t, info.FinishedAt)

	got, ok := m.Get(task.ID())
	require.True(t, ok)
	assert.Equal(t, task, got)
	assert.Equal(t, int64(1), m.Status().ProcessedCount)
}

func TestFailedAndPanickingJobs(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 10})
	defer m.Close()

	failing, err := m.Enqueue(context.Background(), Job{Kind: KindEmbed, Run: func(ctx context.Context) (any, error) {
		return nil, errors.New("index down")
	}})
	require.NoError(t, err)
	panicking, err := m.Enqueue(context.Background(), Job{Kind: KindEmbed, Run: func(ctx context.Context) (any, error) {
		panic("boom")
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	info, err := failing.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, "index down", info.Error)

	info, err = panicking.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Contains(t, info.Error, "panicked")

	assert.Equal(t, int64(2), m.Status().FailedCount)
}

func TestEnqueueFullQueue(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 1})
	release := make(chan struct{})
	blocking := func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}

	running, err := m.Enqueue(context.Background(), Job{Kind: KindIngest, Run: blocking})
	require.NoError(t, err)
	// 等 worker 取走第一個任務
	require.Eventually(t, func() bool { return running.Info().Status == StatusRunning }, time.Second, 5*time.Millisecond)

	_, err = m.Enqueue(context.Background(), Job{Kind: KindIngest, Run: blocking})
	require.NoError(t, err)

	_, err = m.Enqueue(context.Background(), Job{Kind: KindIngest, Run: blocking})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	require.NoError(t, m.Close())
}

func TestCloseDrainsAndRejects(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 5})

	var tasks []*Task
	for i := 0; i < 3; i++ {
		task, err := m.Enqueue(context.Background(), Job{Kind: KindEmbed, Run: func(ctx context.Context) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return nil, nil
		}})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	require.NoError(t, m.Close())
	for _, task := range tasks {
		assert.Equal(t, StatusSucceeded, task.Info().Status)
	}

	_, err := m.Enqueue(context.Background(), Job{Kind: KindEmbed, Run: func(ctx context.Context) (any, error) { return nil, nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.NoError(t, m.Close())
}

func TestJobTimeout(t *testing.T) {
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 1, JobTimeout: 10 * time.Millisecond})
	defer m.Close()

	task, err := m.Enqueue(context.Background(), Job{Kind: KindIngest, Run: func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	require.NoError(t, err)

	info, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Contains(t, info.Error, "deadline")
}

func TestEnqueueRequiresRun(t *testing.T) {
	m := NewManager(config.QueueConfig{})
	defer m.Close()
	_, err := m.Enqueue(context.Background(), Job{Kind: KindIngest})
	assert.Error(t, err)
}
