package eval

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/retrieval"
	"recipe-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// Recommender 被評估的推薦器
type Recommender interface {
	Recommend(ctx context.Context, req retrieval.Request) ([]recipe.Recipe, error)
}

// Query 一筆標註查詢
type Query struct {
	ID          string
	Text        string
	GroundTruth []string
	Category    string
}

// Row 單一查詢的評估結果
type Row struct {
	QueryID          string   `json:"query_id"`
	QueryText        string   `json:"query_text"`
	GroundTruth      []string `json:"gt_ids"`
	Retrieved        []string `json:"retrieved_ids"`
	Precision        float64  `json:"precision"`
	Recall           float64  `json:"recall"`
	AveragePrecision float64  `json:"avg_precision"`
}

// Summary 整體指標
type Summary struct {
	K             int     `json:"k"`
	Queries       int     `json:"queries"`
	MeanPrecision float64 `json:"mean_precision"`
	MeanRecall    float64 `json:"mean_recall"`
	MAP           float64 `json:"map"`
}

// LoadQueries 讀取 query_id, query_text, gt_ids[, category] 格式的 CSV
func LoadQueries(r io.Reader) ([]Query, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := cols["query_id"]; !ok {
		return nil, fmt.Errorf("missing query_id column")
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var queries []Query
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read query row: %w", err)
		}
		queries = append(queries, Query{
			ID:          field(rec, "query_id"),
			Text:        field(rec, "query_text"),
			GroundTruth: splitIDs(field(rec, "gt_ids")),
			Category:    field(rec, "category"),
		})
	}
	return queries, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// Evaluate 逐筆呼叫推薦器並計算指標
func Evaluate(ctx context.Context, rec Recommender, queries []Query, userID int64, k int) ([]Row, Summary, error) {
	rows := make([]Row, 0, len(queries))
	var precisions, recalls, aps []float64

	for _, q := range queries {
		recipes, err := rec.Recommend(ctx, retrieval.Request{UserID: userID, Query: q.Text, TopK: k})
		if err != nil && !errors.Is(err, retrieval.ErrEmptyQuery) {
			return nil, Summary{}, fmt.Errorf("query %s: %w", q.ID, err)
		}
		if err != nil {
			common.LogWarn("評估查詢為空，視為無結果", zap.String("query_id", q.ID))
		}

		retrieved := make([]string, len(recipes))
		for i, r := range recipes {
			retrieved[i] = strconv.FormatInt(r.ID, 10)
		}

		row := Row{
			QueryID:          q.ID,
			QueryText:        q.Text,
			GroundTruth:      q.GroundTruth,
			Retrieved:        retrieved,
			Precision:        PrecisionAtK(retrieved, q.GroundTruth, k),
			Recall:           RecallAtK(retrieved, q.GroundTruth, k),
			AveragePrecision: AveragePrecisionAtK(retrieved, q.GroundTruth, k),
		}
		rows = append(rows, row)
		precisions = append(precisions, row.Precision)
		recalls = append(recalls, row.Recall)
		aps = append(aps, row.AveragePrecision)
	}

	return rows, Summary{
		K:             k,
		Queries:       len(rows),
		MeanPrecision: mean(precisions),
		MeanRecall:    mean(recalls),
		MAP:           mean(aps),
	}, nil
}

// WriteResults 將逐筆結果寫成 CSV
func WriteResults(w io.Writer, rows []Row, k int) error {
	cw := csv.NewWriter(w)
	header := []string{
		"query_id", "query_text", "gt_ids", "retrieved_ids",
		fmt.Sprintf("precision_at_%d", k),
		fmt.Sprintf("recall_at_%d", k),
		fmt.Sprintf("avg_precision_at_%d", k),
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.QueryID,
			r.QueryText,
			strings.Join(r.GroundTruth, ","),
			strings.Join(r.Retrieved, ","),
			strconv.FormatFloat(r.Precision, 'f', 4, 64),
			strconv.FormatFloat(r.Recall, 'f', 4, 64),
			strconv.FormatFloat(r.AveragePrecision, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
