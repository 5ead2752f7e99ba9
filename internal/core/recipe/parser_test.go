package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIngredients(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ParsedIngredient
	}{
		{
			name: "drops unquantified entries",
			text: "재료\n대파 1대, 소금 2g(약간), 식용유",
			want: []ParsedIngredient{
				{Name: "대파", Quantity: 1, Unit: "대"},
				{Name: "소금", Quantity: 2, Unit: "g(약간)"},
			},
		},
		{
			name: "single line yields nothing",
			text: "대파 1대, 소금 2g",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "keeps text after the last colon",
			text: "새우두부계란찜\n주재료 : 연두부 75g(3/4모), 양념:간장 1큰술",
			want: []ParsedIngredient{
				{Name: "연두부", Quantity: 75, Unit: "g(3/4모)"},
				{Name: "간장", Quantity: 1, Unit: "큰술"},
			},
		},
		{
			name: "compound phrase degrades to the last noun",
			text: "재료\n다진 마늘 1작은술, 칵테일새우 20g(5마리)",
			want: []ParsedIngredient{
				{Name: "마늘", Quantity: 1, Unit: "작은술"},
				{Name: "칵테일새우", Quantity: 20, Unit: "g(5마리)"},
			},
		},
		{
			name: "fractions and decimals",
			text: "재료\n양파 1/2개, 우유 1.5컵",
			want: []ParsedIngredient{
				{Name: "양파", Quantity: 0.5, Unit: "개"},
				{Name: "우유", Quantity: 1.5, Unit: "컵"},
			},
		},
		{
			name: "quantity only in annotation is dropped",
			text: "재료\n닭고기(300g), 물 2컵",
			want: []ParsedIngredient{
				{Name: "물", Quantity: 2, Unit: "컵"},
			},
		},
		{
			name: "only the second line is read",
			text: "재료\n감자 2개\n당근 1개",
			want: []ParsedIngredient{
				{Name: "감자", Quantity: 2, Unit: "개"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIngredients(tt.text))
		})
	}
}

func TestSimplifyIngredients(t *testing.T) {
	got := SimplifyIngredients("재료\n대파 1대, 소금 2g(약간), 식용유")
	assert.Equal(t, "재료, 대파, 소금, 식용유", got)
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, "두부조림", HashKey("  두부조림\t"))
	assert.Equal(t, HashKey("두부조림"), HashKey(" 두부조림 "))
	assert.Equal(t, "", HashKey("   "))
}

func TestRecipeDefaults(t *testing.T) {
	method := "끓이기"
	r := Recipe{Name: "된장국", Method: &method}

	assert.Equal(t, "끓이기", r.MethodOr(UnknownPlaceholder))
	assert.Equal(t, UnknownPlaceholder, r.CategoryOr(UnknownPlaceholder))
	assert.Equal(t, "", r.DescriptionText())
}
