// Package alert 根据完成度与外部现价对阶梯档位进行告警分类。
package alert

import (
	"ladder-allocation-engine/internal/core/model"
)

// DefaultNearPct 默认“接近”阈值（5%）
const DefaultNearPct = 0.05

// filledEps 完成度判定容差
const filledEps = 1e-9

// ClassifyBuy 买入档位分类
// filled: 完成度达到 1
// near: 未完成且现价 <= 档位价 × (1+nearPct)
// 现价已跌穿档位价（无论跌多深）仍视为 near：档位仍可执行，只是尚未成交
// pending: 其他情况（含现价无效）
func ClassifyBuy(levels []model.BuyLevel, fillPct []float64, livePrice, nearPct float64) []model.LevelStatus {
	near := normalizeNear(nearPct)
	out := make([]model.LevelStatus, len(levels))
	for i, lv := range levels {
		switch {
		case filled(fillPct, i):
			out[i] = model.StatusFilled
		case model.IsFinitePositive(livePrice) && model.IsFinitePositive(lv.Price) && livePrice <= lv.Price*(1+near):
			out[i] = model.StatusNear
		default:
			out[i] = model.StatusPending
		}
	}
	return out
}

// ClassifySell 卖出档位分类
// near: 未完成且现价 >= 目标价 × (1-nearPct)，现价已涨过目标价同样视为 near
func ClassifySell(levels []model.SellLevel, fillPct []float64, livePrice, nearPct float64) []model.LevelStatus {
	near := normalizeNear(nearPct)
	out := make([]model.LevelStatus, len(levels))
	for i, lv := range levels {
		switch {
		case filled(fillPct, i):
			out[i] = model.StatusFilled
		case model.IsFinitePositive(livePrice) && model.IsFinitePositive(lv.TargetPrice) && livePrice >= lv.TargetPrice*(1-near):
			out[i] = model.StatusNear
		default:
			out[i] = model.StatusPending
		}
	}
	return out
}

func filled(fillPct []float64, i int) bool {
	return i < len(fillPct) && fillPct[i] >= 1-filledEps
}

func normalizeNear(v float64) float64 {
	if !model.IsFiniteNonNegative(v) || v >= 1 {
		return DefaultNearPct
	}
	return v
}
