// Package timeutil 提供成交时间的解析与转换。
// 成交时间只用于排序，统一转换为 UTC。
package timeutil

import (
	"fmt"
	"strings"
	"time"

	"ladder-allocation-engine/internal/util/fastparse"
)

// MsToTime 将毫秒时间戳转换为 time.Time（UTC）
// 参数 ms: Unix 毫秒时间戳
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ParseTradeTime 解析成交时间字段
// 支持 RFC3339（含纳秒）字符串和 Unix 毫秒整数
// 参数 s: 时间字段原始文本
// 返回: UTC 时间，格式无法识别时返回错误
func ParseTradeTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("成交时间为空")
	}
	if fastparse.IsInteger(s) {
		ms, err := fastparse.ParseInt(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("解析毫秒时间戳失败: %w", err)
		}
		return MsToTime(ms), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析成交时间失败: %w", err)
	}
	return t.UTC(), nil
}
