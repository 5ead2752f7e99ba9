// Package eval scores the ranking engine against labelled queries with
// Precision@K, Recall@K and MAP@K.
package eval

// PrecisionAtK 前 k 筆中相關的比例
func PrecisionAtK(retrieved, groundTruth []string, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(relevantInTopK(retrieved, groundTruth, k)) / float64(k)
}

// RecallAtK 前 k 筆涵蓋的正解比例，無正解時為 0
func RecallAtK(retrieved, groundTruth []string, k int) float64 {
	if len(groundTruth) == 0 {
		return 0
	}
	return float64(relevantInTopK(retrieved, groundTruth, k)) / float64(len(groundTruth))
}

// AveragePrecisionAtK 對每個命中位置 i 累加 hits/i 後除以正解數
func AveragePrecisionAtK(retrieved, groundTruth []string, k int) float64 {
	if len(groundTruth) == 0 {
		return 0
	}
	truth := toSet(groundTruth)
	var hits int
	var sum float64
	for i, id := range topK(retrieved, k) {
		if _, ok := truth[id]; ok {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(len(groundTruth))
}

func relevantInTopK(retrieved, groundTruth []string, k int) int {
	truth := toSet(groundTruth)
	var n int
	for _, id := range topK(retrieved, k) {
		if _, ok := truth[id]; ok {
			n++
		}
	}
	return n
}

func topK(ids []string, k int) []string {
	if k < 0 {
		return nil
	}
	if len(ids) > k {
		return ids[:k]
	}
	return ids
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
