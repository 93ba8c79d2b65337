package ladder

import (
	"math"

	"ladder-allocation-engine/internal/core/model"
)

// sellSteps 支持的卖出档位间距（%）
var sellSteps = []float64{50, 100, 150, 200}

// SellSteps 返回支持的卖出档位间距
func SellSteps() []float64 {
	out := make([]float64, len(sellSteps))
	copy(out, sellSteps)
	return out
}

// ValidSellStep 判断卖出档位间距是否受支持
func ValidSellStep(stepPct float64) bool {
	for _, s := range sellSteps {
		if stepPct == s {
			return true
		}
	}
	return false
}

// BuildSellLadder 构建卖出阶梯
// 参数 baselinePrice: 基准价格（>0）
// 参数 stepPct: 档位间距 50/100/150/200（%）
// 参数 levelsCount: 档位数量（>0）
// 参数 sellPctOfRemaining: 每档卖出剩余仓位的百分比 (0, 100]
// 返回: 由浅到深排列的档位（PlannedTokens 为 0，需调用 AllocateSellTokens 分配）
//
// 第 i 档目标价 = baseline × (1+step/100)^i
func BuildSellLadder(baselinePrice, stepPct float64, levelsCount int, sellPctOfRemaining float64) []model.SellLevel {
	if !model.IsFinitePositive(baselinePrice) || !ValidSellStep(stepPct) || levelsCount <= 0 {
		return []model.SellLevel{}
	}
	if !model.IsFinitePositive(sellPctOfRemaining) || sellPctOfRemaining > 100 {
		return []model.SellLevel{}
	}

	levels := make([]model.SellLevel, levelsCount)
	for i := range levels {
		mult := math.Pow(1+stepPct/100, float64(i+1))
		levels[i] = model.SellLevel{
			Level:       i + 1,
			TargetPrice: baselinePrice * mult,
			RisePct:     (mult - 1) * 100,
			SellPct:     sellPctOfRemaining,
		}
	}
	return levels
}

// AllocateSellTokens 按“剩余仓位百分比”为每档分配计划卖出数量
// 最后一档吸收全部剩余，保证总和严格等于 tokenPool。
// 返回新切片，不修改入参；tokenPool 无效时每档计划为 0。
func AllocateSellTokens(levels []model.SellLevel, tokenPool float64) []model.SellLevel {
	out := make([]model.SellLevel, len(levels))
	copy(out, levels)
	if len(out) == 0 {
		return out
	}

	pool := model.SanitizeAmount(tokenPool)
	remaining := pool
	last := len(out) - 1
	for i := range out {
		if i == last {
			out[i].PlannedTokens = remaining
			break
		}
		pct := out[i].SellPct
		if !model.IsFinitePositive(pct) || pct > 100 {
			pct = 0
		}
		planned := remaining * pct / 100
		out[i].PlannedTokens = planned
		remaining -= planned
	}
	return out
}

// PlannedTokens 计算卖出阶梯的计划总数量
func PlannedTokens(levels []model.SellLevel) float64 {
	var total float64
	for _, lv := range levels {
		total += model.SanitizeAmount(lv.PlannedTokens)
	}
	return total
}
