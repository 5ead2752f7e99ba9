package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// ErrorResponse JSON 錯誤輸出
type ErrorResponse struct {
	Error string `json:"error"`
}

// outputJSON 將結果以縮排 JSON 寫到 stdout
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

func outputError(err error) {
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetEscapeHTML(false)
	enc.Encode(ErrorResponse{Error: err.Error()})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
