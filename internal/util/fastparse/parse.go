// Package fastparse 提供成交文件字段的数值解析函数。
// 使用 strconv 进行转换，避免在逐行解析时使用 fmt。
package fastparse

import (
	"strconv"
	"strings"
)

// ParseFloat 解析浮点数字符串（忽略首尾空白）
// 参数 s: 待解析的字符串，如 "12345.67"
// 返回: 解析后的浮点数和可能的错误
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ParseOptionalFloat 解析可选浮点数字段
// 空字符串视为 0，用于手续费等可省略的列
func ParseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseInt 解析整数字符串（忽略首尾空白）
// 参数 s: 待解析的字符串，如 "1700000000000"
// 返回: 解析后的整数和可能的错误
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// IsInteger 判断字符串是否为十进制整数（可带负号）
func IsInteger(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
