// Package textnorm canonicalizes free text before it is stored or embedded.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var spacePattern = regexp.MustCompile(`\s+`)

// Normalize 套用 NFKC 正規化、合併連續空白並轉為小寫
func Normalize(s string) string {
	t := norm.NFKC.String(s)
	t = spacePattern.ReplaceAllString(t, " ")
	return strings.ToLower(strings.TrimSpace(t))
}

// CollapseSpaces 只合併空白，不改變大小寫
func CollapseSpaces(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
