// Package store 维护每个计划的历史成交记录。
// 仅做内存缓存，不负责持久化。
package store

import "ladder-allocation-engine/internal/core/model"

// Store 成交历史缓存（单写者）
// 注意：本结构体不加锁；跨 goroutine 使用时由调用方（tracker）加锁。
type Store struct {
	// trades 按计划缓存成交
	// 第一层 key: planID
	// 第二层: 按写入顺序排列的成交
	trades map[string][]model.Trade
	// index 按计划缓存成交 ID → 下标
	index map[string]map[string]int
}

// New 创建新的成交缓存
func New() *Store {
	return &Store{
		trades: make(map[string][]model.Trade),
		index:  make(map[string]map[string]int),
	}
}

// Add 追加成交
// 已存在相同 ID 的成交会被覆盖（保持原位置）
// 返回: 新增（非覆盖）的成交数量
func (s *Store) Add(planID string, trades ...model.Trade) int {
	if planID == "" {
		return 0
	}
	idx, ok := s.index[planID]
	if !ok {
		idx = make(map[string]int)
		s.index[planID] = idx
	}

	added := 0
	for _, t := range trades {
		if t.ID != "" {
			if pos, dup := idx[t.ID]; dup {
				s.trades[planID][pos] = t
				continue
			}
			idx[t.ID] = len(s.trades[planID])
		}
		s.trades[planID] = append(s.trades[planID], t)
		added++
	}
	return added
}

// Remove 删除指定 ID 的成交
// 返回: 是否找到并删除
func (s *Store) Remove(planID, tradeID string) bool {
	idx := s.index[planID]
	pos, ok := idx[tradeID]
	if !ok {
		return false
	}

	list := s.trades[planID]
	list = append(list[:pos], list[pos+1:]...)
	s.trades[planID] = list

	delete(idx, tradeID)
	for i := pos; i < len(list); i++ {
		if list[i].ID != "" {
			idx[list[i].ID] = i
		}
	}
	return true
}

// Get 获取计划的成交副本
func (s *Store) Get(planID string) []model.Trade {
	list := s.trades[planID]
	out := make([]model.Trade, len(list))
	copy(out, list)
	return out
}

// Len 获取计划的成交笔数
func (s *Store) Len(planID string) int {
	return len(s.trades[planID])
}

// Drop 清空计划的全部成交
func (s *Store) Drop(planID string) {
	delete(s.trades, planID)
	delete(s.index, planID)
}
