package rerank

import (
	"fmt"
	"strings"
)

// systemInstruction 限制模型只推薦符合要求的食譜並輸出 JSON 陣列
const systemInstruction = "당신은 요리 추천 도우미입니다. 사용자의 요청과 다른 레시피는 절대 추천하지 않습니다. " +
	"반드시 id(정수), name(문자열), reason(문자열)만 가진 JSON 배열로만 답하세요."

// BuildPrompt 組出候選清單與選擇規則
func BuildPrompt(query string, candidates []Candidate, maxPicks int) string {
	var lines strings.Builder
	for i, c := range candidates {
		if i > 0 {
			lines.WriteByte('\n')
		}
		fmt.Fprintf(&lines, "- %d / %s (%s / %s) — 재료: %s", c.ID, c.Name, c.Method, c.Category, c.Description)
	}

	return fmt.Sprintf(`사용자 요청(최우선): "%s"

후보 레시피 (ID / 이름 / 조리법 / 분류 / 재료-단순설명):
%s

1) %d개의 레시피 중, 사용자 요청을 완벽히 부합하지 않는 레시피는 전부 제거하세요.
2) 사용자 요청과 동일한 레시피 명이 있으면 추천하세요.
3) 남은 레시피 중, 사용자 요청을 완벽히 부합하지 않는 레시피는 한번 더 제거하세요.
4) **반드시 추천 %d개를 뽑을 때 사용자 요청에 맞는 조리법(method)과 분류(category)로 추천**하세요. 만약 분류가 일품인 경우는 이름을 보고 판단하세요.
5) 추천 이유(reason)는 사용자 요청에 100%% 부합하도록 작성하며, 해당 레시피의 재료-단순설명에 없는 재료가 절대 포함되지 않게 주의하고, **공백 포함 한글 기준 최소 40자 이상**으로 작성하세요.
6) 후보 레시피 순서를 유지하며, 위 조건을 만족하는 상위 %d개 이하를 선택하세요. 조건을 만족하는 레시피가 없으면 빈 배열 []을 반환하세요.
7) JSON 배열(id, name, reason)로만 반환하세요.

예시:
`+"```json"+`
[
  { "id": 42, "name": "오징어볶음", "reason": "탱글탱글한 오징어가…" }
]
`+"```", query, lines.String(), len(candidates), maxPicks, maxPicks)
}
