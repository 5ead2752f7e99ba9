package eval

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	retrieved := []string{"1", "9", "2", "8", "3"}
	truth := []string{"1", "2", "4"}

	assert.InDelta(t, 2.0/5.0, PrecisionAtK(retrieved, truth, 5), 1e-9)
	assert.InDelta(t, 2.0/3.0, RecallAtK(retrieved, truth, 5), 1e-9)
	// 命中位置 1 與 3：(1/1 + 2/3) / 3
	assert.InDelta(t, (1.0+2.0/3.0)/3.0, AveragePrecisionAtK(retrieved, truth, 5), 1e-9)

	assert.InDelta(t, 1.0, PrecisionAtK(retrieved, truth, 1), 1e-9)
	assert.Zero(t, PrecisionAtK(retrieved, truth, 0))
	assert.Zero(t, RecallAtK(retrieved, nil, 5))
	assert.Zero(t, AveragePrecisionAtK(retrieved, nil, 5))
	// 結果少於 k 時分母仍為 k
	assert.InDelta(t, 0.2, PrecisionAtK([]string{"1"}, truth, 5), 1e-9)
}

func TestLoadQueries(t *testing.T) {
	csvData := "query_id, query_text, gt_ids, category\n" +
		"q1, 두부 국, \"1, 2,3\", 국\n" +
		"q2, 100kcal 이상 국, , \n" +
		"q3,,7\n"

	queries, err := LoadQueries(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, queries, 3)

	assert.Equal(t, "q1", queries[0].ID)
	assert.Equal(t, "두부 국", queries[0].Text)
	assert.Equal(t, []string{"1", "2", "3"}, queries[0].GroundTruth)
	assert.Equal(t, "국", queries[0].Category)
	assert.Empty(t, queries[1].GroundTruth)
	assert.Equal(t, "", queries[2].Text)
	assert.Equal(t, []string{"7"}, queries[2].GroundTruth)
}

func TestLoadQueriesRequiresID(t *testing.T) {
	_, err := LoadQueries(strings.NewReader("text,gt_ids\na,1\n"))
	assert.Error(t, err)
}

type fakeRecommender map[string][]int64

func (f fakeRecommender) Recommend(ctx context.Context, req retrieval.Request) ([]recipe.Recipe, error) {
	if req.Query == "" {
		return nil, retrieval.ErrEmptyQuery
	}
	if req.Query == "fail" {
		return nil, errors.New("index down")
	}
	var out []recipe.Recipe
	for _, id := range f[req.Query] {
		out = append(out, recipe.Recipe{ID: id})
	}
	return out, nil
}

func TestEvaluate(t *testing.T) {
	rec := fakeRecommender{"두부": {1, 5}, "국": {3}}
	queries := []Query{
		{ID: "a", Text: "두부", GroundTruth: []string{"1", "2"}},
		{ID: "b", Text: "국", GroundTruth: []string{"3"}},
		{ID: "c", Text: "", GroundTruth: []string{"4"}},
	}

	rows, summary, err := Evaluate(context.Background(), rec, queries, 1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"1", "5"}, rows[0].Retrieved)
	assert.InDelta(t, 0.5, rows[0].Precision, 1e-9)
	assert.InDelta(t, 0.5, rows[0].Recall, 1e-9)
	assert.InDelta(t, 0.5, rows[1].Precision, 1e-9)
	assert.InDelta(t, 1.0, rows[1].Recall, 1e-9)
	assert.Empty(t, rows[2].Retrieved)

	assert.Equal(t, 3, summary.Queries)
	assert.InDelta(t, (0.5+0.5+0)/3, summary.MeanPrecision, 1e-9)
	assert.InDelta(t, (0.5+1+0)/3, summary.MeanRecall, 1e-9)
	assert.InDelta(t, (0.5+1+0)/3, summary.MAP, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, rows, 2))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "query_id,query_text,gt_ids,retrieved_ids,precision_at_2,recall_at_2,avg_precision_at_2", lines[0])
	assert.Equal(t, `a,두부,"1,2","1,5",0.5000,0.5000,0.5000`, lines[1])
}

func TestEvaluateStopsOnError(t *testing.T) {
	_, _, err := Evaluate(context.Background(), fakeRecommender{}, []Query{{ID: "x", Text: "fail"}}, 1, 5)
	assert.Error(t, err)
}
