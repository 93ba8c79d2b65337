// Package ladder 根据计划参数构建买入/卖出价格阶梯。
// 所有函数均为纯函数：无 I/O、无共享状态。
package ladder

import (
	"math"

	"github.com/shopspring/decimal"

	"ladder-allocation-engine/internal/core/model"
)

const (
	// DefaultGrowthPct 默认每档资金增长率（%）
	DefaultGrowthPct = 25.0
	// DefaultDepthProfile 默认回撤深度档案
	DefaultDepthProfile = 70
)

// depthProfiles 回撤深度档案 → 每档回撤百分比（由浅到深）
var depthProfiles = map[int][]float64{
	70: {20, 30, 40, 50, 60, 70},
	75: {25, 50, 75},
	90: {20, 30, 40, 50, 60, 70, 80, 90},
}

var hundred = decimal.NewFromInt(100)

// DepthProfiles 返回支持的回撤深度档案
func DepthProfiles() []int {
	return []int{70, 75, 90}
}

// Drawdowns 返回指定深度档案的回撤表副本
// depthProfile 为 0 时使用默认档案；未知档案返回 nil
func Drawdowns(depthProfile int) []float64 {
	if depthProfile == 0 {
		depthProfile = DefaultDepthProfile
	}
	dd, ok := depthProfiles[depthProfile]
	if !ok {
		return nil
	}
	out := make([]float64, len(dd))
	copy(out, dd)
	return out
}

// BuildBuyLevels 构建买入阶梯
// 参数 topPrice: 顶部价格（>0）
// 参数 budget: 计划总预算（USD，>0）
// 参数 depthProfile: 回撤深度档案 70/75/90（0 表示默认 70）
// 参数 growthPctPerLevel: 每档资金增长率（%），越深的档位分配越多
// 返回: 由浅到深排列的档位；参数无效时返回空切片
//
// 资金按几何权重 w_i = (1+growth/100)^i 分配，换算为整数分后向下取整，
// 舍入余数（正负均可）全部加到最深一档，保证总和严格等于预算。
func BuildBuyLevels(topPrice, budget float64, depthProfile int, growthPctPerLevel float64) []model.BuyLevel {
	if !model.IsFinitePositive(topPrice) || !model.IsFinitePositive(budget) {
		return []model.BuyLevel{}
	}
	drawdowns := Drawdowns(depthProfile)
	if len(drawdowns) == 0 {
		return []model.BuyLevel{}
	}
	growth := growthPctPerLevel
	if math.IsNaN(growth) || math.IsInf(growth, 0) || growth <= -100 {
		growth = DefaultGrowthPct
	}

	weights := make([]float64, len(drawdowns))
	var sum float64
	for i := range drawdowns {
		weights[i] = math.Pow(1+growth/100, float64(i))
		sum += weights[i]
	}

	budgetCents := decimal.NewFromFloat(budget).Mul(hundred).Round(0)
	cents := make([]decimal.Decimal, len(drawdowns))
	allocated := decimal.Zero
	for i, w := range weights {
		cents[i] = budgetCents.Mul(decimal.NewFromFloat(w / sum)).Floor()
		allocated = allocated.Add(cents[i])
	}
	// 舍入余数补到最深档
	last := len(cents) - 1
	cents[last] = cents[last].Add(budgetCents.Sub(allocated))

	levels := make([]model.BuyLevel, len(drawdowns))
	for i, dd := range drawdowns {
		price := topPrice * (100 - dd) / 100
		planned := cents[i].Div(hundred).InexactFloat64()
		levels[i] = model.BuyLevel{
			Level:           i + 1,
			DrawdownPct:     dd,
			Price:           price,
			PlannedUSD:      planned,
			EstimatedTokens: planned / price,
		}
	}
	return levels
}

// PlannedBudget 计算买入阶梯的计划总金额
func PlannedBudget(levels []model.BuyLevel) float64 {
	var total float64
	for _, lv := range levels {
		total += model.SanitizeAmount(lv.PlannedUSD)
	}
	return total
}
