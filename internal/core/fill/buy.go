// Package fill 将历史成交与预先承诺的价格阶梯对账，
// 计算每档“计划内”与“计划外”的资金/数量。
// 引擎为纯函数：每次调用都基于入参重新计算，可并发调用。
package fill

import (
	"math"
	"sort"

	"ladder-allocation-engine/internal/core/model"
)

const (
	// BuyBandPct 顶档价格上方的计划内价格带（2%）
	// 成交价 <= top_level_price × (1 + band + tolerance) 才可作为计划内候选
	BuyBandPct = 0.02

	// eps 浮点比较容差
	eps = 1e-9
)

// buyBlock 累计区块：前 k 档的计划金额、计划数量与计划均价
type buyBlock struct {
	cumUSD    float64
	cumTokens float64
	targetAvg float64
}

// buyState 单次计算内的累计吸收状态
type buyState struct {
	blocks []buyBlock
	// open 当前开放区块（累计吸收尚未达到 cumUSD 的最小 k）
	open int
	// usd/tokens 已吸收的累计金额与数量
	usd    float64
	tokens float64
	// prefixAvg 区块关闭时的混合成本
	prefixAvg []float64
	// absorbed 每笔成交计入计划的部分
	absorbed []model.TradeAllocation
}

// ComputeBuyFills 计算买入计划的分配结果
// 参数 levels: 买入阶梯（由浅到深）
// 参数 trades: 历史买入成交（无序）
// 参数 tolerance: 在 2% 价格带之上额外放宽的比例（默认 0；无效值视为 0）
//
// 成交按时间升序处理，同一时间戳内按含手续费单价升序。
// 对任意前缀 k，分配给前 k 档的成交混合均价不会超过计划均价 A_k。
func ComputeBuyFills(levels []model.BuyLevel, trades []model.Trade, tolerance float64) model.BuyFillResult {
	n := len(levels)
	res := model.BuyFillResult{
		AllocatedUSD:  make([]float64, n),
		FillPct:       make([]float64, n),
		TargetAvg:     make([]float64, n),
		PrefixAvgCost: make([]float64, n),
	}

	planned := make([]float64, n)
	blocks := make([]buyBlock, n)
	var cumUSD, cumTokens float64
	for i, lv := range levels {
		if model.IsFinitePositive(lv.Price) {
			planned[i] = model.SanitizeAmount(lv.PlannedUSD)
		}
		cumUSD += planned[i]
		if planned[i] > 0 {
			cumTokens += planned[i] / lv.Price
		}
		var avg float64
		if cumTokens > 0 {
			avg = cumUSD / cumTokens
		}
		blocks[i] = buyBlock{cumUSD: cumUSD, cumTokens: cumTokens, targetAvg: avg}
		res.TargetAvg[i] = avg
	}
	res.PlannedTotal = cumUSD

	// 同一时间戳内低成本优先，保证汇总结果与输入顺序无关
	sorted := model.SortForAllocation(trades, costPrice)
	for i := range sorted {
		res.TradesUSDTotal += sorted[i].USD()
	}
	res.OffPlanUSD = res.TradesUSDTotal
	if n == 0 || cumUSD <= 0 || res.TradesUSDTotal <= 0 {
		return res
	}

	tol := tolerance
	if !model.IsFiniteNonNegative(tol) {
		tol = 0
	}
	ceiling := topLevelPrice(levels) * (1 + BuyBandPct + tol)

	st := &buyState{blocks: blocks, prefixAvg: res.PrefixAvgCost}
	st.advance()

	// 计划内候选按成交时间升序，先成交者先占用额度
	var offPool []model.Trade
	for _, t := range sorted {
		if !t.Valid() {
			continue
		}
		if t.Price > ceiling {
			offPool = append(offPool, t)
			continue
		}
		st.absorb(t)
	}

	// 未达到计划总额时，从计划外池招募，低价优先
	if st.open < len(st.blocks) && len(offPool) > 0 {
		sort.SliceStable(offPool, func(i, j int) bool {
			return costPrice(&offPool[i]) < costPrice(&offPool[j])
		})
		for _, t := range offPool {
			if st.open >= len(st.blocks) {
				break
			}
			st.absorb(t)
		}
	}
	st.finish()

	// 由浅到深逐档展示（不影响均价约束计算）
	absorbed := math.Min(st.usd, res.PlannedTotal)
	left := absorbed
	for i := range levels {
		take := math.Min(planned[i], left)
		if take < 0 {
			take = 0
		}
		res.AllocatedUSD[i] = take
		left -= take
		if planned[i] > 0 {
			res.FillPct[i] = clamp01(take / planned[i])
		}
	}
	res.AllocatedTotal = absorbed
	res.Absorbed = st.absorbed
	res.OffPlanUSD = math.Max(0, res.TradesUSDTotal-absorbed)
	return res
}

// absorb 将一笔成交的金额按区块贪心吸收
func (s *buyState) absorb(t model.Trade) {
	price := costPrice(&t)
	remaining := t.USD()
	var taken float64
	defer func() {
		if taken > 0 {
			s.absorbed = append(s.absorbed, model.TradeAllocation{TradeID: t.ID, USD: taken, Tokens: taken / price})
		}
	}()
	for remaining > eps && s.open < len(s.blocks) {
		b := s.blocks[s.open]
		hi := math.Min(b.cumUSD-s.usd, remaining)
		if hi <= eps {
			s.advance()
			continue
		}
		x := maxUnderAvg(s.usd, s.tokens, b.targetAvg, price, hi)
		if x <= eps {
			// 本成交无法再为当前区块贡献；更便宜的成交仍可能继续填充
			return
		}
		s.usd += x
		s.tokens += x / price
		taken += x
		remaining -= x
		s.advance()
		if x < hi-eps {
			// 受均价约束只吸收了部分金额
			return
		}
	}
}

// advance 关闭所有已满的区块并记录关闭时的混合成本
func (s *buyState) advance() {
	for s.open < len(s.blocks) {
		target := s.blocks[s.open].cumUSD
		if s.usd < target-eps*math.Max(1, target) {
			return
		}
		if s.tokens > 0 {
			s.prefixAvg[s.open] = s.usd / s.tokens
		}
		s.open++
	}
}

// finish 记录仍在开放且已有吸收的区块的混合成本
func (s *buyState) finish() {
	if s.open >= len(s.blocks) || s.tokens <= 0 {
		return
	}
	var prev float64
	if s.open > 0 {
		prev = s.blocks[s.open-1].cumUSD
	}
	if s.usd > prev+eps {
		s.prefixAvg[s.open] = s.usd / s.tokens
	}
}

// maxUnderAvg 求使 (usd+x)/(tokens+x/price) <= avg 成立的最大 x ∈ [0, hi]
// 闭式解: x <= (avg·tokens - usd) / (1 - avg/price)，仅在 price > avg 时为上界。
func maxUnderAvg(usd, tokens, avg, price, hi float64) float64 {
	if hi <= 0 || avg <= 0 || price <= 0 {
		return 0
	}
	if withinAvg(usd+hi, tokens+hi/price, avg) {
		return hi
	}
	if price <= avg {
		// 吸收越多均价越低；hi 都不满足则任何子量都不满足
		return 0
	}
	root := (avg*tokens - usd) / (1 - avg/price)
	if root <= 0 || math.IsNaN(root) {
		return 0
	}
	return math.Min(root, hi)
}

func withinAvg(usd, tokens, avg float64) bool {
	if tokens <= 0 {
		return usd <= eps
	}
	return usd <= avg*tokens+eps*math.Max(1, usd)
}

// costPrice 含手续费的单位成本
func costPrice(t *model.Trade) float64 {
	return t.USD() / t.Quantity
}

// topLevelPrice 返回最浅一档的有效价格
func topLevelPrice(levels []model.BuyLevel) float64 {
	for _, lv := range levels {
		if model.IsFinitePositive(lv.Price) {
			return lv.Price
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
