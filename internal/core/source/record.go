package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"recipe-recommender/internal/core/recipe"
)

// 欄位別名：不同紀錄型態使用不同鍵名
var (
	titleKeys       = []string{"RCP_NM", "title", "name"}
	categoryKeys    = []string{"RCP_PAT2", "category"}
	methodKeys      = []string{"RCP_WAY2", "method"}
	ingredientKeys  = []string{"RCP_PARTS_DTLS", "ingredients", "parts"}
	caloriesKeys    = []string{"INFO_ENG", "calories"}
	proteinKeys     = []string{"INFO_PRO", "protein"}
	carbsKeys       = []string{"INFO_CAR", "carbs"}
	fatKeys         = []string{"INFO_FAT", "fat"}
	sodiumKeys      = []string{"INFO_NA", "sodium"}
	stepKeyPatterns = []string{"MANUAL%02d", "step%d"}
)

// MapRecord 將鬆散的外部紀錄對應為標準紀錄
func MapRecord(row map[string]any) recipe.RawRecord {
	rec := recipe.RawRecord{
		Title:          lookup(row, titleKeys),
		Category:       lookup(row, categoryKeys),
		Method:         lookup(row, methodKeys),
		IngredientText: lookupRaw(row, ingredientKeys),
		Calories:       parseInt(lookup(row, caloriesKeys)),
		Protein:        parseInt(lookup(row, proteinKeys)),
		Carbs:          parseInt(lookup(row, carbsKeys)),
		Fat:            parseInt(lookup(row, fatKeys)),
		Sodium:         parseInt(lookup(row, sodiumKeys)),
	}

	for i := 1; i <= recipe.MaxSteps; i++ {
		keys := make([]string, 0, len(stepKeyPatterns))
		for _, p := range stepKeyPatterns {
			keys = append(keys, fmt.Sprintf(p, i))
		}
		rec.Steps[i-1] = lookup(row, keys)
	}
	return rec
}

// lookup 依序找出第一個非空欄位並去除前後空白
func lookup(row map[string]any, keys []string) string {
	return strings.TrimSpace(lookupRaw(row, keys))
}

func lookupRaw(row map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := row[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// parseInt 盡力解析營養數值，空白或無法解析時為 nil
func parseInt(text string) *int {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < math.MinInt32 || v > math.MaxInt32 {
		return nil
	}
	n := int(v)
	return &n
}
