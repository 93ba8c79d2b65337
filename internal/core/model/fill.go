package model

import "time"

// BuyFillResult 买入计划分配结果
// 每次调用重新计算，引擎不保留任何状态
type BuyFillResult struct {
	// AllocatedUSD 每档计入计划的金额（USD）
	AllocatedUSD []float64
	// FillPct 每档完成度，范围 [0, 1]
	FillPct []float64
	// TargetAvg 前 k 档的计划均价 A_k = U_k / T_k
	TargetAvg []float64
	// PrefixAvgCost 第 k 个累计区块开放期间吸收资金的混合成本
	// 未吸收任何资金的区块为 0；恒有 PrefixAvgCost[k] <= TargetAvg[k]
	PrefixAvgCost []float64
	// OffPlanUSD 未被任何档位吸收的金额
	// 计算公式: trades_usd_total - allocated_total
	OffPlanUSD float64
	// PlannedTotal 计划总金额
	PlannedTotal float64
	// AllocatedTotal 计入计划的总金额
	AllocatedTotal float64
	// TradesUSDTotal 全部有效成交金额（含手续费）
	TradesUSDTotal float64
	// Absorbed 计入计划的成交明细（按吸收顺序）
	Absorbed []TradeAllocation
}

// TradeAllocation 单笔成交计入计划的部分
type TradeAllocation struct {
	// TradeID 成交标识
	TradeID string
	// USD 计入计划的金额（含手续费）
	USD float64
	// Tokens 对应的数量，计算公式: USD / 含手续费单价
	Tokens float64
}

// SellFillResult 卖出计划分配结果
type SellFillResult struct {
	// AllocatedTokens 每档计入计划的数量
	AllocatedTokens []float64
	// AllocatedUSD 每档计入计划数量按成交价计算的金额
	AllocatedUSD []float64
	// FillPct 每档完成度，范围 [0, 1]
	FillPct []float64
	// OffPlanTokens 未被任何档位吸收的数量
	OffPlanTokens float64
	// OffPlanUSD 计划外数量按各自成交价计算的金额
	OffPlanUSD float64
	// PlannedTokensTotal 计划卖出总数量
	PlannedTokensTotal float64
	// AllocatedTokensTotal 计入计划的总数量
	AllocatedTokensTotal float64
	// AllocatedUSDTotal 计入计划的总金额
	AllocatedUSDTotal float64
}

// LevelStatus 档位告警状态
type LevelStatus string

const (
	// StatusFilled 已完成
	StatusFilled LevelStatus = "filled"
	// StatusNear 现价接近档位价格
	StatusNear LevelStatus = "near"
	// StatusPending 等待中
	StatusPending LevelStatus = "pending"
)

// LevelRow 报告中的单档数据
type LevelRow struct {
	// Level 档位序号
	Level int `json:"level"`
	// Price 档位价格（买入为目标买价，卖出为目标卖价）
	Price float64 `json:"price"`
	// Planned 计划量（买入为 USD，卖出为数量）
	Planned float64 `json:"planned"`
	// Allocated 已分配量（与 Planned 同单位）
	Allocated float64 `json:"allocated"`
	// AllocatedUSD 已分配金额（卖出计划使用）
	AllocatedUSD float64 `json:"allocated_usd,omitempty"`
	// FillPct 完成度
	FillPct float64 `json:"fill_pct"`
	// Status 告警状态
	Status LevelStatus `json:"status"`
}

// FillReport 计划分配报告
// 用于 JSONL 文件输出，供展示层与告警逻辑消费
type FillReport struct {
	// ID 报告唯一标识
	ID string `json:"id"`
	// PlanID 计划标识
	PlanID string `json:"plan_id"`
	// User 用户
	User string `json:"user,omitempty"`
	// Asset 资产
	Asset string `json:"asset,omitempty"`
	// Side 计划方向
	Side Side `json:"side"`
	// GeneratedAt 生成时间
	GeneratedAt time.Time `json:"generated_at"`
	// TradeCount 参与计算的成交笔数
	TradeCount int `json:"trade_count"`
	// LivePrice 分类使用的现价（0 表示未提供）
	LivePrice float64 `json:"live_price,omitempty"`
	// Levels 每档数据
	Levels []LevelRow `json:"levels"`
	// PlannedTotal 计划总量
	PlannedTotal float64 `json:"planned_total"`
	// AllocatedTotal 已分配总量
	AllocatedTotal float64 `json:"allocated_total"`
	// OffPlan 计划外数量（买入为 USD，卖出为数量）
	OffPlan float64 `json:"off_plan"`
	// OffPlanUSD 计划外金额
	OffPlanUSD float64 `json:"off_plan_usd"`
}
