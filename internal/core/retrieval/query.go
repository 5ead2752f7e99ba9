// Package retrieval decomposes a free-text request into a structured filter
// and a semantic residual, then ranks vector hits with pantry overlap.
package retrieval

import (
	"regexp"
	"strconv"
	"strings"

	"recipe-recommender/internal/core/vectorindex"
	"recipe-recommender/internal/pkg/textnorm"
)

// CalorieBound 熱量條件，Lower 為 true 時表示下限
type CalorieBound struct {
	Value float64 `json:"value"`
	Lower bool    `json:"lower"`
}

// QueryPlan 查詢分解結果
type QueryPlan struct {
	Filter   *vectorindex.Filter `json:"filter,omitempty"`
	Residual string              `json:"residual"`
	Method   string              `json:"method,omitempty"`
	Calories *CalorieBound       `json:"calories,omitempty"`
}

type methodKeyword struct {
	keyword string
	method  string
}

// methodTable 順序即優先順序
var methodTable = []methodKeyword{
	{"볶음", "볶기"},
	{"볶아", "볶기"},
	{"볶", "볶기"},
	{"찌개", "끓이기"},
	{"국", "끓이기"},
	{"탕", "끓이기"},
	{"찜", "찌기"},
	{"구이", "굽기"},
	{"무침", "무침"},
	{"조림", "조림"},
}

var (
	caloriePattern    = regexp.MustCompile(`(\d+)\s?k?cal`)
	lowerBoundPattern = regexp.MustCompile(`이상|초과|over|more`)
	stripPattern      = buildStripPattern()
)

func buildStripPattern() *regexp.Regexp {
	alts := []string{`\d+\s?k?cal`}
	for _, m := range methodTable {
		alts = append(alts, regexp.QuoteMeta(m.keyword))
	}
	return regexp.MustCompile(strings.Join(alts, "|"))
}

// ParseQuery 從查詢取出熱量與調理法條件，剩餘文字用於向量檢索
func ParseQuery(text string) QueryPlan {
	lowered := strings.ToLower(text)
	var plan QueryPlan
	var conds []vectorindex.Condition

	if m := caloriePattern.FindStringSubmatch(lowered); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			bound := &CalorieBound{Value: v, Lower: lowerBoundPattern.MatchString(lowered)}
			plan.Calories = bound

			r := &vectorindex.Range{}
			if bound.Lower {
				r.GTE = &bound.Value
			} else {
				r.LTE = &bound.Value
			}
			conds = append(conds, vectorindex.Condition{Key: vectorindex.PayloadCalories, Range: r})
		}
	}

	for _, m := range methodTable {
		if strings.Contains(lowered, m.keyword) {
			plan.Method = m.method
			conds = append(conds, vectorindex.Condition{
				Key:   vectorindex.PayloadMethod,
				Match: &vectorindex.MatchText{Text: m.method},
			})
			break
		}
	}

	if len(conds) > 0 {
		plan.Filter = &vectorindex.Filter{Must: conds}
	}

	plan.Residual = textnorm.CollapseSpaces(stripPattern.ReplaceAllString(lowered, ""))
	if plan.Residual == "" {
		plan.Residual = lowered
	}
	return plan
}
