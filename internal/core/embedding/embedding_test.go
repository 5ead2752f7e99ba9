package embedding

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"recipe-recommender/internal/core/ai/cache"
	"recipe-recommender/internal/core/catalog"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/vectorindex"
	"recipe-recommender/internal/infrastructure/config"
	"recipe-recommender/internal/infrastructure/resilience"
	"recipe-recommender/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEncoder 以文件長度產生可預測的二維向量
type fakeEncoder struct {
	calls int32
	err   error
}

func (f *fakeEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEncoder) Dimension() int { return 2 }

func TestBuildDocument(t *testing.T) {
	r := recipe.Recipe{
		Name:     "새우 두부 계란찜",
		Category: common.StringPtr("반찬"),
		Method:   common.StringPtr("찌기"),
	}
	doc := BuildDocument(r, []string{"연두부", "칵테일새우"})
	assert.Equal(t,
		"[레시피명:새우 두부 계란찜] [조리법:찌기] [요리종류:반찬] [재료:연두부, 칵테일새우] 새우 두부 계란찜는 반찬이며 찌기 만드는 요리이다.",
		doc)
}

func TestBuildDocumentMissingFields(t *testing.T) {
	doc := BuildDocument(recipe.Recipe{Name: "ABC  Soup"}, nil)
	assert.Equal(t,
		"[레시피명:abc soup] [조리법:미정] [요리종류:미정] [재료:] ABC  Soup는 미정이며 미정 만드는 요리이다.",
		doc)
}

func newCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "embed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store *catalog.Store, names ...string) []int64 {
	t.Helper()
	ctx := context.Background()
	var ids []int64
	for _, name := range names {
		err := store.WithTx(ctx, func(tx *catalog.Tx) error {
			res, err := tx.InsertRecipe(ctx, &recipe.Recipe{
				Name:       name,
				Method:     common.StringPtr("끓이기"),
				Calories:   common.IntPtr(250),
				RecipeHash: name,
			})
			if err != nil {
				return err
			}
			master, err := tx.EnsureIngredientMaster(ctx, "두부")
			if err != nil {
				return err
			}
			if _, err := tx.InsertRecipeIngredient(ctx, res.ID, master.ID, nil, nil); err != nil {
				return err
			}
			ids = append(ids, res.ID)
			return nil
		})
		require.NoError(t, err)
	}
	return ids
}

func newIndex(t *testing.T) *vectorindex.MemoryIndex {
	t.Helper()
	idx := vectorindex.NewMemoryIndex()
	require.NoError(t, idx.EnsureCollection(context.Background(), 2))
	return idx
}

func TestEmbedPendingDrainsInBatches(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	seed(t, store, "두부찌개", "두부조림", "두부부침")
	idx := newIndex(t)
	enc := &fakeEncoder{}

	g := NewGenerator(store, idx, enc, 2)
	n, err := g.EmbedPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(2), enc.calls)
	assert.Equal(t, 3, idx.Len())

	count, err := store.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// 再執行一次不會有任何工作
	n, err = g.EmbedPending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmbedRecipesWritesPayload(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	ids := seed(t, store, "두부찌개")
	idx := newIndex(t)

	g := NewGenerator(store, idx, &fakeEncoder{}, 8)
	n, err := g.EmbedRecipes(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := idx.Query(ctx, []float32{1, 0}, nil, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	id, ok := hits[0].RecipeID()
	require.True(t, ok)
	assert.Equal(t, ids[0], id)
	assert.Equal(t, "끓이기", hits[0].Method())
	assert.Equal(t, 250, hits[0].Payload[vectorindex.PayloadCalories])

	emb, err := store.Embedding(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 2)
}

func TestEmbedFailureLeavesRecipesPending(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	seed(t, store, "두부찌개")

	g := NewGenerator(store, newIndex(t), &fakeEncoder{err: errors.New("model offline")}, 8)
	n, err := g.EmbedPending(ctx, 0)
	assert.Error(t, err)
	assert.Zero(t, n)

	pending, err := store.PendingRecipes(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEmbedMissingCollectionFails(t *testing.T) {
	ctx := context.Background()
	store := newCatalog(t)
	ids := seed(t, store, "두부찌개")

	g := NewGenerator(store, vectorindex.NewMemoryIndex(), &fakeEncoder{}, 8)
	_, err := g.EmbedRecipes(ctx, ids)
	assert.ErrorIs(t, err, vectorindex.ErrCollectionMissing)
}

func TestLazyEncoderBuildsOnce(t *testing.T) {
	var builds int32
	lazy := NewLazyEncoder(2, func() (Encoder, error) {
		atomic.AddInt32(&builds, 1)
		return &fakeEncoder{}, nil
	})
	assert.Equal(t, 2, lazy.Dimension())
	assert.Zero(t, atomic.LoadInt32(&builds))

	for i := 0; i < 3; i++ {
		_, err := lazy.Encode(context.Background(), []string{"a"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

func TestLazyEncoderBuildError(t *testing.T) {
	lazy := NewLazyEncoder(0, func() (Encoder, error) {
		return nil, errors.New("no model")
	})
	_, err := lazy.Encode(context.Background(), []string{"a"})
	assert.Error(t, err)
	assert.Zero(t, lazy.Dimension())
}

func TestQueryEncoderCaches(t *testing.T) {
	enc := &fakeEncoder{}
	store := cache.NewManager(config.CacheConfig{MaxSize: 10})
	defer store.Close()
	q := NewQueryEncoder(enc, store, "test-model")

	first, err := q.EncodeQuery(context.Background(), "김치찌개")
	require.NoError(t, err)
	second, err := q.EncodeQuery(context.Background(), "김치찌개")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), enc.calls)

	_, err = q.EncodeQuery(context.Background(), "된장국")
	require.NoError(t, err)
	assert.Equal(t, int32(2), enc.calls)
}

func TestBreakerEncoderOpens(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("down")}
	b := NewBreakerEncoder(enc, resilience.BreakerConfig{MinRequests: 2, FailureRatio: 0.5})

	for i := 0; i < 2; i++ {
		_, err := b.Encode(context.Background(), []string{"a"})
		require.Error(t, err)
	}
	_, err := b.Encode(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, resilience.ErrUnavailable)
	assert.Equal(t, int32(2), enc.calls)
}
