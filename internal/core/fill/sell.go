package fill

import (
	"math"

	"ladder-allocation-engine/internal/core/model"
)

// DefaultSellTolerance 卖出价格容差（5%）
const DefaultSellTolerance = 0.05

// ComputeSellFills 计算卖出计划的分配结果
// 参数 levels: 卖出阶梯（由浅到深）
// 参数 trades: 历史卖出成交（无序）
// 参数 tolerance: 价格容差；负数或无效值使用 DefaultSellTolerance
//
// 成交按时间升序处理（同一时间戳内低价优先）；target_price <= trade_price × (1+tolerance) 的档位可接收该成交，
// 由浅到深填满剩余计划数量，剩余部分计为计划外（按该笔成交价计价）。
// 卖出侧不施加均价约束。
func ComputeSellFills(levels []model.SellLevel, trades []model.Trade, tolerance float64) model.SellFillResult {
	n := len(levels)
	res := model.SellFillResult{
		AllocatedTokens: make([]float64, n),
		AllocatedUSD:    make([]float64, n),
		FillPct:         make([]float64, n),
	}

	planned := make([]float64, n)
	for i, lv := range levels {
		if model.IsFinitePositive(lv.TargetPrice) {
			planned[i] = model.SanitizeAmount(lv.PlannedTokens)
		}
		res.PlannedTokensTotal += planned[i]
	}

	tol := tolerance
	if !model.IsFiniteNonNegative(tol) {
		tol = DefaultSellTolerance
	}

	for _, t := range model.SortForAllocation(trades, nil) {
		if !t.Valid() {
			continue
		}
		limit := t.Price * (1 + tol)
		left := t.Quantity
		for i, lv := range levels {
			if left <= eps {
				break
			}
			room := planned[i] - res.AllocatedTokens[i]
			if room <= 0 || lv.TargetPrice > limit*(1+eps) {
				continue
			}
			take := math.Min(room, left)
			res.AllocatedTokens[i] += take
			res.AllocatedUSD[i] += take * t.Price
			left -= take
		}
		if left > eps {
			res.OffPlanTokens += left
			res.OffPlanUSD += left * t.Price
		}
	}

	for i := range levels {
		res.AllocatedTokensTotal += res.AllocatedTokens[i]
		res.AllocatedUSDTotal += res.AllocatedUSD[i]
		if planned[i] > 0 {
			res.FillPct[i] = clamp01(res.AllocatedTokens[i] / planned[i])
		}
	}
	return res
}
