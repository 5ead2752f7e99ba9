package common

import (
	"regexp"
	"strings"
)

var (
	fenceOpenPattern  = regexp.MustCompile("^```(?:json)?\\s*\n?")
	fenceClosePattern = regexp.MustCompile("\n?```$")
)

// StripCodeFence 移除模型回應外層的 ``` 或 ```json 區塊
func StripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpenPattern.ReplaceAllString(cleaned, "")
		cleaned = fenceClosePattern.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// ExtractJSONArray 取出最外層的 JSON 陣列片段
func ExtractJSONArray(raw string) (string, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}
