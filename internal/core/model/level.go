// Package model 定义阶梯分配引擎中使用的核心数据结构。
// 包含买入/卖出阶梯档位、成交记录、分配结果等类型。
package model

import "math"

// Side 计划方向
type Side string

const (
	// SideBuy 买入计划（分批建仓）
	SideBuy Side = "buy"
	// SideSell 卖出计划（分批减仓）
	SideSell Side = "sell"
)

// BuyLevel 买入阶梯档位
// 构建后不可变；Level=1 为最浅档（最接近顶部价格）
type BuyLevel struct {
	// Level 档位序号（从 1 开始）
	Level int `json:"level"`
	// DrawdownPct 相对顶部价格的回撤百分比，如 20 表示 -20%
	DrawdownPct float64 `json:"drawdown_pct"`
	// Price 档位目标价格
	// 计算公式: top_price × (1 - drawdown/100)
	Price float64 `json:"price"`
	// PlannedUSD 计划投入金额（USD，精确到分）
	PlannedUSD float64 `json:"planned_usd"`
	// EstimatedTokens 预计买入数量
	// 计算公式: planned_usd / price
	EstimatedTokens float64 `json:"estimated_tokens"`
}

// SellLevel 卖出阶梯档位
// Level=1 为最浅档（最接近基准价格）
type SellLevel struct {
	// Level 档位序号（从 1 开始）
	Level int `json:"level"`
	// TargetPrice 目标卖出价格
	// 计算公式: baseline × (1 + step/100)^level
	TargetPrice float64 `json:"target_price"`
	// RisePct 相对基准价格的涨幅百分比（仅用于展示）
	RisePct float64 `json:"rise_pct"`
	// SellPct 每档卖出剩余仓位的百分比
	SellPct float64 `json:"sell_pct"`
	// PlannedTokens 计划卖出数量（由调用方分配，见 ladder.AllocateSellTokens）
	PlannedTokens float64 `json:"planned_tokens"`
}

// IsFinitePositive 判断数值是否为有限正数
func IsFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// IsFiniteNonNegative 判断数值是否为有限非负数
func IsFiniteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// SanitizeAmount 将无效数值（NaN/Inf/负数）视为 0
func SanitizeAmount(v float64) float64 {
	if !IsFiniteNonNegative(v) {
		return 0
	}
	return v
}
