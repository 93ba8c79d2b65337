// Package tracker 维护已注册计划及其成交历史，并在成交变化时显式触发重算。
// 分配引擎本身无状态；tracker 负责把“成交变化 → 重算 → 报告”串起来。
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ladder-allocation-engine/internal/config"
	"ladder-allocation-engine/internal/core/alert"
	"ladder-allocation-engine/internal/core/fill"
	"ladder-allocation-engine/internal/core/ladder"
	"ladder-allocation-engine/internal/core/model"
	"ladder-allocation-engine/internal/core/store"
)

var (
	// ErrUnknownPlan 计划未注册
	ErrUnknownPlan = errors.New("计划未注册")
	// ErrDuplicatePlan 计划已注册
	ErrDuplicatePlan = errors.New("计划已注册")
	// ErrTradeNotFound 成交不存在
	ErrTradeNotFound = errors.New("成交不存在")
	// ErrEmptyLadder 计划参数无法生成任何档位
	ErrEmptyLadder = errors.New("计划档位为空")
)

// plan 已注册计划
// 档位在注册时生成一次，之后只读
type plan struct {
	cfg        config.PlanConfig
	side       model.Side
	buyLevels  []model.BuyLevel
	sellLevels []model.SellLevel
	// planned 计划总量（买入为 USD，卖出为数量）
	planned   float64
	livePrice float64
}

// Tracker 计划追踪器（并发安全）
type Tracker struct {
	mu sync.RWMutex

	engine config.EngineConfig
	logger *zap.Logger

	plans  map[string]*plan
	trades *store.Store

	now   func() time.Time
	newID func() string
}

// New 创建计划追踪器
// 参数 engine: 引擎参数（容差、接近阈值）
// 参数 logger: 日志记录器，可为 nil
func New(engine config.EngineConfig, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		engine: engine,
		logger: logger,
		plans:  make(map[string]*plan),
		trades: store.New(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Register 注册计划并生成档位
// 参数 pc: 计划配置（side 决定使用 Buy 还是 Sell 参数）
// 返回: 计划重复、参数缺失或档位为空时返回错误
func (t *Tracker) Register(pc config.PlanConfig) error {
	p := &plan{cfg: pc, livePrice: pc.LivePrice}

	switch model.Side(pc.Side) {
	case model.SideBuy:
		if pc.Buy == nil {
			return fmt.Errorf("计划 %s 缺少买入参数", pc.ID)
		}
		p.side = model.SideBuy
		p.buyLevels = ladder.BuildBuyLevels(pc.Buy.TopPrice, pc.Buy.Budget, pc.Buy.DepthProfile, pc.Buy.EffectiveGrowthPct())
		p.planned = ladder.PlannedBudget(p.buyLevels)
	case model.SideSell:
		if pc.Sell == nil {
			return fmt.Errorf("计划 %s 缺少卖出参数", pc.ID)
		}
		p.side = model.SideSell
		levels := ladder.BuildSellLadder(pc.Sell.BaselinePrice, pc.Sell.StepPct, pc.Sell.LevelsCount, pc.Sell.SellPctOfRemaining)
		p.sellLevels = ladder.AllocateSellTokens(levels, pc.Sell.TokenPool)
		p.planned = ladder.PlannedTokens(p.sellLevels)
	default:
		return fmt.Errorf("计划 %s 方向无效: %q", pc.ID, pc.Side)
	}
	if len(p.buyLevels)+len(p.sellLevels) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyLadder, pc.ID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.plans[pc.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlan, pc.ID)
	}
	t.plans[pc.ID] = p

	t.logger.Info("计划已注册",
		zap.String("plan", pc.ID),
		zap.String("side", string(p.side)),
		zap.Int("levels", len(p.buyLevels)+len(p.sellLevels)),
		zap.Float64("planned_total", p.planned),
	)
	return nil
}

// Unregister 注销计划并丢弃其成交历史
func (t *Tracker) Unregister(planID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.plans[planID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	delete(t.plans, planID)
	t.trades.Drop(planID)

	t.logger.Info("计划已注销", zap.String("plan", planID))
	return nil
}

// AddTrades 追加成交并立即重算
// 缺少 ID 的成交会被分配 uuid；相同 ID 的成交覆盖旧记录
// 返回: 最新分配报告
func (t *Tracker) AddTrades(planID string, trades ...model.Trade) (*model.FillReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}

	batch := make([]model.Trade, len(trades))
	skipped := 0
	for i, tr := range trades {
		if tr.ID == "" {
			tr.ID = t.newID()
		}
		if !tr.Valid() {
			skipped++
		}
		batch[i] = tr
	}
	added := t.trades.Add(planID, batch...)

	if skipped > 0 {
		t.logger.Warn("存在无效成交，计算时将忽略",
			zap.String("plan", planID),
			zap.Int("invalid", skipped),
		)
	}
	t.logger.Debug("成交已追加",
		zap.String("plan", planID),
		zap.Int("added", added),
		zap.Int("replaced", len(batch)-added),
		zap.Int("total", t.trades.Len(planID)),
	)

	return t.compute(planID, p), nil
}

// RemoveTrade 删除成交并立即重算
func (t *Tracker) RemoveTrade(planID, tradeID string) (*model.FillReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	if !t.trades.Remove(planID, tradeID) {
		return nil, fmt.Errorf("%w: %s/%s", ErrTradeNotFound, planID, tradeID)
	}
	return t.compute(planID, p), nil
}

// SetLivePrice 更新告警分类使用的现价
// 现价只影响档位状态，不影响分配结果
func (t *Tracker) SetLivePrice(planID string, price float64) (*model.FillReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	p.livePrice = price
	return t.compute(planID, p), nil
}

// Report 按当前成交历史重算并返回报告
func (t *Tracker) Report(planID string) (*model.FillReport, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	return t.compute(planID, p), nil
}

// PlanIDs 返回已注册计划标识（升序）
func (t *Tracker) PlanIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.plans))
	for id := range t.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// compute 调用分配引擎并组装报告
// 调用方需持有锁（读锁即可）
func (t *Tracker) compute(planID string, p *plan) *model.FillReport {
	history := t.trades.Get(planID)

	r := &model.FillReport{
		ID:          t.newID(),
		PlanID:      planID,
		User:        p.cfg.User,
		Asset:       p.cfg.Asset,
		Side:        p.side,
		GeneratedAt: t.now().UTC(),
		TradeCount:  len(history),
		LivePrice:   p.livePrice,
	}

	switch p.side {
	case model.SideBuy:
		res := fill.ComputeBuyFills(p.buyLevels, history, t.engine.BuyTolerance)
		status := alert.ClassifyBuy(p.buyLevels, res.FillPct, p.livePrice, t.engine.NearThresholdPct)
		r.Levels = make([]model.LevelRow, len(p.buyLevels))
		for i, lv := range p.buyLevels {
			r.Levels[i] = model.LevelRow{
				Level:     lv.Level,
				Price:     lv.Price,
				Planned:   lv.PlannedUSD,
				Allocated: res.AllocatedUSD[i],
				FillPct:   res.FillPct[i],
				Status:    status[i],
			}
		}
		r.PlannedTotal = res.PlannedTotal
		r.AllocatedTotal = res.AllocatedTotal
		r.OffPlan = res.OffPlanUSD
		r.OffPlanUSD = res.OffPlanUSD
	case model.SideSell:
		res := fill.ComputeSellFills(p.sellLevels, history, t.engine.EffectiveSellTolerance())
		status := alert.ClassifySell(p.sellLevels, res.FillPct, p.livePrice, t.engine.NearThresholdPct)
		r.Levels = make([]model.LevelRow, len(p.sellLevels))
		for i, lv := range p.sellLevels {
			r.Levels[i] = model.LevelRow{
				Level:        lv.Level,
				Price:        lv.TargetPrice,
				Planned:      lv.PlannedTokens,
				Allocated:    res.AllocatedTokens[i],
				AllocatedUSD: res.AllocatedUSD[i],
				FillPct:      res.FillPct[i],
				Status:       status[i],
			}
		}
		r.PlannedTotal = res.PlannedTokensTotal
		r.AllocatedTotal = res.AllocatedTokensTotal
		r.OffPlan = res.OffPlanTokens
		r.OffPlanUSD = res.OffPlanUSD
	}
	return r
}
