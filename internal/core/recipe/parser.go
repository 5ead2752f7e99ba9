package recipe

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	parenPattern         = regexp.MustCompile(`\([^)]*\)`)
	trailingParenPattern = regexp.MustCompile(`(\([^)]*\))\s*$`)
	digitPattern         = regexp.MustCompile(`\d`)
	quantityPattern      = regexp.MustCompile(`(\d+(?:\.\d+)?(?:/\d+(?:\.\d+)?)?)\s*(\S*)\s*$`)
	nonHangulPattern     = regexp.MustCompile(`[^\p{Hangul}\s]`)

	// 簡化描述時移除份量、單位與括號註記
	amountPattern = regexp.MustCompile(`\s*\d+(?:\.\d+)?\s*[^\s()]*\s*(?:\([^)]*\))?`)
	splitPattern  = regexp.MustCompile(`[\n,]`)
)

// ParseIngredients 解析外部食材區塊
//
// 第一行為標題並被忽略，第二行為以逗號分隔的食材清單。
// 無法解析出份量的項目會被略過。
func ParseIngredients(text string) []ParsedIngredient {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil
	}

	var result []ParsedIngredient
	for _, entry := range strings.Split(lines[1], ",") {
		if item, ok := parseEntry(entry); ok {
			result = append(result, item)
		}
	}
	return result
}

// parseEntry 解析單一食材項目
func parseEntry(entry string) (ParsedIngredient, bool) {
	entry = strings.TrimSpace(entry)
	if idx := strings.LastIndex(entry, ":"); idx >= 0 {
		entry = strings.TrimSpace(entry[idx+1:])
	}
	if entry == "" {
		return ParsedIngredient{}, false
	}

	annotation := ""
	if m := trailingParenPattern.FindStringSubmatch(entry); m != nil {
		annotation = m[1]
	}

	body := strings.TrimSpace(parenPattern.ReplaceAllString(entry, ""))
	if !digitPattern.MatchString(body) {
		return ParsedIngredient{}, false
	}

	loc := quantityPattern.FindStringSubmatchIndex(body)
	if loc == nil {
		return ParsedIngredient{}, false
	}
	quantity, ok := parseQuantity(body[loc[2]:loc[3]])
	if !ok {
		return ParsedIngredient{}, false
	}
	unit := body[loc[4]:loc[5]] + annotation

	name := canonicalName(body[:loc[0]])
	if name == "" {
		return ParsedIngredient{}, false
	}

	return ParsedIngredient{Name: name, Quantity: quantity, Unit: unit}, true
}

// canonicalName 只保留韓文字與空白，取最後一個詞作為食材名稱
func canonicalName(s string) string {
	fields := strings.Fields(nonHangulPattern.ReplaceAllString(s, ""))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// parseQuantity 支援整數、小數與分數
func parseQuantity(s string) (float64, bool) {
	if num, den, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SimplifyIngredients 將食材區塊簡化為只含名稱的描述
func SimplifyIngredients(text string) string {
	var names []string
	for _, part := range splitPattern.Split(text, -1) {
		cleaned := strings.TrimSpace(amountPattern.ReplaceAllString(part, ""))
		if cleaned != "" {
			names = append(names, cleaned)
		}
	}
	return strings.Join(names, ", ")
}
