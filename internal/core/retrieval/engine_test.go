package retrieval

import (
	"context"
	"errors"
	"testing"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/vectorindex"
	"recipe-recommender/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	vector []float32
	err    error
	seen   []string
}

func (f *fakeEncoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	f.seen = append(f.seen, text)
	return f.vector, f.err
}

type fakeCatalog struct {
	recipes map[int64]recipe.Recipe
	mapping map[int64][]int64
	pantry  map[int64][]int64
	names   map[int64][]string
}

func (f *fakeCatalog) PantryIngredientIDs(ctx context.Context, userID int64) ([]int64, error) {
	return f.pantry[userID], nil
}

func (f *fakeCatalog) PantryNames(ctx context.Context, userID int64) ([]string, error) {
	return f.names[userID], nil
}

func (f *fakeCatalog) RecipeIngredientIDs(ctx context.Context, ids []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	for _, id := range ids {
		if m, ok := f.mapping[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeCatalog) RecipesByIDs(ctx context.Context, ids []int64) ([]recipe.Recipe, error) {
	var out []recipe.Recipe
	for _, r := range f.recipes {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func point(id string, recipeID int64, method string, vec ...float32) vectorindex.Point {
	return vectorindex.Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]any{
			vectorindex.PayloadRecipeID: recipeID,
			vectorindex.PayloadMethod:   method,
		},
	}
}

func fixture(t *testing.T) (*vectorindex.MemoryIndex, *fakeCatalog) {
	t.Helper()
	ctx := context.Background()
	idx := vectorindex.NewMemoryIndex()
	require.NoError(t, idx.EnsureCollection(ctx, 2))
	require.NoError(t, idx.UpsertBatch(ctx, []vectorindex.Point{
		point("p1", 1, "끓이기", 1, 0),
		point("p2", 2, "볶기", 0.9, 0.1),
		point("p3", 3, "끓이기", 0, 1),
		point("p1-old", 1, "끓이기", 0.95, 0.05),
		point("p99", 99, "끓이기", 0.5, 0.5),
	}))

	cat := &fakeCatalog{
		recipes: map[int64]recipe.Recipe{
			1: {ID: 1, Name: "된장찌개", Method: common.StringPtr("끓이기"), Description: common.StringPtr("재료\n두부 1모, 된장 2큰술")},
			2: {ID: 2, Name: "감자볶음", Method: common.StringPtr("볶기"), Description: common.StringPtr("재료\n감자 2개, 양파 1개")},
			3: {ID: 3, Name: "미역국", Method: common.StringPtr("끓이기")},
		},
		mapping: map[int64][]int64{
			1: {10, 11},
			2: {20, 21},
			3: {30},
		},
		pantry: map[int64][]int64{},
		names:  map[int64][]string{},
	}
	return idx, cat
}

func ids(recipes []recipe.Recipe) []int64 {
	out := make([]int64, len(recipes))
	for i, r := range recipes {
		out[i] = r.ID
	}
	return out
}

func TestRecommendPureSimilarityWithEmptyPantry(t *testing.T) {
	idx, cat := fixture(t)
	enc := &fakeEncoder{vector: []float32{1, 0}}
	e := NewEngine(enc, idx, cat, Options{Boost: DefaultBoost})

	got, err := e.Recommend(context.Background(), Request{UserID: 7, Query: "따뜻한 요리", TopK: 4})
	require.NoError(t, err)
	// p99 佔用一個名額後在載入時被略過，重複的食譜只保留一次
	assert.Equal(t, []int64{1, 2, 3}, ids(got))
	assert.Equal(t, []string{"따뜻한 요리"}, enc.seen)
}

func TestRecommendBoostsPantryOverlap(t *testing.T) {
	idx, cat := fixture(t)
	cat.pantry[7] = []int64{20, 21}
	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{Boost: DefaultBoost})

	ranked, err := e.Rank(context.Background(), Request{UserID: 7, Query: "반찬", TopK: 2})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].Recipe.ID)
	assert.Equal(t, 2, ranked[0].Overlap)
	assert.InDelta(t, ranked[0].Similarity+0.4, ranked[0].Score, 1e-9)
	assert.Equal(t, int64(1), ranked[1].Recipe.ID)
}

func TestRecommendBoostOverride(t *testing.T) {
	idx, cat := fixture(t)
	cat.pantry[7] = []int64{20, 21}
	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{Boost: DefaultBoost})

	zero := 0.0
	got, err := e.Recommend(context.Background(), Request{UserID: 7, Query: "반찬", TopK: 1, Boost: &zero})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
}

func TestRecommendAppliesFilter(t *testing.T) {
	idx, cat := fixture(t)
	enc := &fakeEncoder{vector: []float32{1, 0}}
	e := NewEngine(enc, idx, cat, Options{})

	got, err := e.Recommend(context.Background(), Request{UserID: 7, Query: "감자볶음"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(got))
	assert.Equal(t, []string{"감자"}, enc.seen)
}

func TestRecommendNoHitsIsEmpty(t *testing.T) {
	idx, cat := fixture(t)
	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{})

	got, err := e.Recommend(context.Background(), Request{UserID: 7, Query: "구이"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecommendMethodBonus(t *testing.T) {
	idx, cat := fixture(t)
	// 過濾後只剩끓이기 食譜，每個命中都加分
	e := NewEngine(&fakeEncoder{vector: []float32{0, 1}}, idx, cat, Options{MethodBonus: 0.3})

	ranked, err := e.Rank(context.Background(), Request{UserID: 7, Query: "국"})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(3), ranked[0].Recipe.ID)
	assert.InDelta(t, 1.3, ranked[0].Score, 1e-6)
}

func TestRecommendSubstringOverlap(t *testing.T) {
	idx, cat := fixture(t)
	cat.names[7] = []string{"양파", "감자"}
	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{Boost: DefaultBoost, Overlap: OverlapSubstring})

	ranked, err := e.Rank(context.Background(), Request{UserID: 7, Query: "반찬", TopK: 4})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(2), ranked[0].Recipe.ID)
	assert.Equal(t, 2, ranked[0].Overlap)
}

func TestRecommendErrors(t *testing.T) {
	idx, cat := fixture(t)

	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{})
	_, err := e.Recommend(context.Background(), Request{Query: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	down := errors.New("encoder down")
	e = NewEngine(&fakeEncoder{err: down}, idx, cat, Options{})
	_, err = e.Recommend(context.Background(), Request{Query: "두부"})
	assert.ErrorIs(t, err, down)

	e = NewEngine(&fakeEncoder{vector: []float32{1, 0}}, vectorindex.NewMemoryIndex(), cat, Options{})
	_, err = e.Recommend(context.Background(), Request{Query: "두부"})
	assert.ErrorIs(t, err, vectorindex.ErrCollectionMissing)
}

func TestRankRejectsTopKAboveLimit(t *testing.T) {
	idx, cat := fixture(t)
	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{})

	_, err := e.Recommend(context.Background(), Request{UserID: 1, Query: "국", TopK: 1 << 40})
	assert.ErrorIs(t, err, ErrTopKTooLarge)

	got, err := e.Recommend(context.Background(), Request{UserID: 1, Query: "따뜻한 요리", TopK: DefaultMaxTopK})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRankSizesResultsByHits(t *testing.T) {
	idx, cat := fixture(t)
	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{MaxTopK: 1 << 40})

	got, err := e.Recommend(context.Background(), Request{UserID: 1, Query: "따뜻한 요리", TopK: 1 << 40})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(got))
}

func TestRankingIsDeterministicAndBoostMonotonic(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemoryIndex()
	require.NoError(t, idx.EnsureCollection(ctx, 2))
	require.NoError(t, idx.UpsertBatch(ctx, []vectorindex.Point{
		point("a", 1, "", 1, 0),
		point("b", 2, "", 1, 0),
		point("c", 3, "", 1, 0),
	}))
	_, cat := fixture(t)
	cat.pantry[7] = []int64{10, 20, 21}

	e := NewEngine(&fakeEncoder{vector: []float32{1, 0}}, idx, cat, Options{Boost: DefaultBoost})
	req := Request{UserID: 7, Query: "따뜻한 요리", TopK: 3}

	first, err := e.Rank(ctx, req)
	require.NoError(t, err)
	second, err := e.Rank(ctx, req)
	require.NoError(t, err)

	order := func(ranked []Ranked) []int64 {
		out := make([]int64, len(ranked))
		for i, r := range ranked {
			out[i] = r.Recipe.ID
		}
		return out
	}
	assert.Equal(t, []int64{2, 1, 3}, order(first))
	assert.Equal(t, order(first), order(second))
	assert.Equal(t, []int{2, 1, 0}, []int{first[0].Overlap, first[1].Overlap, first[2].Overlap})
	assert.Greater(t, first[0].Score, first[1].Score)
	assert.Greater(t, first[1].Score, first[2].Score)
}

func TestSubstringOverlap(t *testing.T) {
	assert.Equal(t, 2, substringOverlap("감자볶음 감자 2개, 양파 1개", []string{"감자", "양파", "당근"}))
	assert.Equal(t, 0, substringOverlap("", []string{"감자"}))
	assert.Equal(t, 0, substringOverlap("감자", []string{""}))
}
