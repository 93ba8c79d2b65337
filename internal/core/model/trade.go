package model

import (
	"sort"
	"time"
)

// Trade 历史成交记录
// 由外部成交存储提供；引擎只读取，不修改
type Trade struct {
	// ID 成交唯一标识
	ID string `json:"id"`
	// Price 成交价格（>0）
	Price float64 `json:"price"`
	// Quantity 成交数量（>0）
	Quantity float64 `json:"quantity"`
	// Fee 手续费（USD，>=0，仅买入计入成本）
	Fee float64 `json:"fee,omitempty"`
	// TradeTime 成交时间，仅用于排序
	TradeTime time.Time `json:"trade_time"`
}

// Valid 检查成交是否可参与计算
// 价格、数量为有限正数，且 price × quantity + fee 不溢出
func (t *Trade) Valid() bool {
	if !IsFinitePositive(t.Price) || !IsFinitePositive(t.Quantity) {
		return false
	}
	return IsFinitePositive(t.Price*t.Quantity + SanitizeAmount(t.Fee))
}

// Notional 成交名义价值（不含手续费）
// 无效成交返回 0
func (t *Trade) Notional() float64 {
	if !t.Valid() {
		return 0
	}
	return t.Price * t.Quantity
}

// USD 买入成本（含手续费）
// 计算公式: price × quantity + fee
// 无效成交返回 0
func (t *Trade) USD() float64 {
	if !t.Valid() {
		return 0
	}
	return t.Notional() + SanitizeAmount(t.Fee)
}

// SortForAllocation 返回分配处理顺序的副本
// 参数 unitPrice: 单位价格函数，nil 表示使用成交价
//
// 按成交时间升序；时间相同的成交按单位价格升序，
// 时间与单位价格都相同时保持输入顺序。无效成交的单位价格视为 0。
func SortForAllocation(trades []Trade, unitPrice func(*Trade) float64) []Trade {
	type keyed struct {
		t    Trade
		unit float64
	}
	ks := make([]keyed, len(trades))
	for i := range trades {
		ks[i].t = trades[i]
		if !trades[i].Valid() {
			continue
		}
		if unitPrice == nil {
			ks[i].unit = trades[i].Price
		} else {
			ks[i].unit = unitPrice(&ks[i].t)
		}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if !ks[i].t.TradeTime.Equal(ks[j].t.TradeTime) {
			return ks[i].t.TradeTime.Before(ks[j].t.TradeTime)
		}
		return ks[i].unit < ks[j].unit
	})

	out := make([]Trade, len(ks))
	for i := range ks {
		out[i] = ks[i].t
	}
	return out
}
