package common

import "strings"

// StringPtr 將非空字串轉為指標，空字串回傳 nil
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr 返回整數指標
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr 返回浮點數指標
func Float64Ptr(v float64) *float64 {
	return &v
}
