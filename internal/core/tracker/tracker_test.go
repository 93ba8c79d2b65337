package tracker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"ladder-allocation-engine/internal/config"
	"ladder-allocation-engine/internal/core/model"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}

func buyPlan(id string) config.PlanConfig {
	growth := 25.0
	return config.PlanConfig{
		ID:    id,
		User:  "alice",
		Asset: "BTC",
		Side:  config.SideBuy,
		Buy: &config.BuyPlanConfig{
			TopPrice:     100,
			Budget:       1000,
			DepthProfile: 70,
			GrowthPct:    &growth,
		},
	}
}

func sellPlan(id string) config.PlanConfig {
	return config.PlanConfig{
		ID:    id,
		User:  "alice",
		Asset: "BTC",
		Side:  config.SideSell,
		Sell: &config.SellPlanConfig{
			BaselinePrice:      10,
			StepPct:            100,
			LevelsCount:        4,
			SellPctOfRemaining: 25,
			TokenPool:          1000,
		},
	}
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	sellTol := 0.05
	tr := New(config.EngineConfig{SellTolerance: &sellTol, NearThresholdPct: 0.05}, nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr.now = func() time.Time { return fixed }
	n := 0
	tr.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return tr
}

func TestRegister_Errors(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.Register(buyPlan("b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := tr.Register(buyPlan("b")); !errors.Is(err, ErrDuplicatePlan) {
		t.Fatalf("err=%v, want ErrDuplicatePlan", err)
	}

	empty := buyPlan("empty")
	empty.Buy.Budget = 0
	if err := tr.Register(empty); !errors.Is(err, ErrEmptyLadder) {
		t.Fatalf("err=%v, want ErrEmptyLadder", err)
	}

	missing := sellPlan("s")
	missing.Sell = nil
	if err := tr.Register(missing); err == nil {
		t.Fatal("缺少卖出参数应返回错误")
	}

	if _, err := tr.Report("nope"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err=%v, want ErrUnknownPlan", err)
	}
	if _, err := tr.AddTrades("nope"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err=%v, want ErrUnknownPlan", err)
	}
}

func TestBuyPlan_AddAndRemove(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.Register(buyPlan("b")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r, err := tr.Report("b")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(r.Levels) != 6 || r.TradeCount != 0 || r.AllocatedTotal != 0 {
		t.Fatalf("初始报告异常: %+v", r)
	}
	if !approx(r.PlannedTotal, 1000) {
		t.Fatalf("PlannedTotal=%f, want 1000", r.PlannedTotal)
	}

	r, err = tr.AddTrades("b", model.Trade{
		Price:     80,
		Quantity:  88.81 / 80,
		TradeTime: time.Unix(100, 0),
	})
	if err != nil {
		t.Fatalf("AddTrades: %v", err)
	}
	if r.TradeCount != 1 {
		t.Fatalf("TradeCount=%d, want 1", r.TradeCount)
	}
	if !approx(r.Levels[0].Allocated, 88.81) || r.Levels[0].Status != model.StatusFilled {
		t.Fatalf("level1=%+v, want filled 88.81", r.Levels[0])
	}
	if !approx(r.OffPlan, 0) {
		t.Fatalf("OffPlan=%f, want 0", r.OffPlan)
	}
	if r.Side != model.SideBuy || r.User != "alice" || r.Asset != "BTC" {
		t.Fatalf("报告元数据异常: %+v", r)
	}

	// 缺少 ID 的成交会被分配 ID：id-1 为初始报告，id-2 为成交
	r, err = tr.RemoveTrade("b", "id-2")
	if err != nil {
		t.Fatalf("RemoveTrade: %v", err)
	}
	if r.TradeCount != 0 || r.AllocatedTotal != 0 {
		t.Fatalf("删除后报告异常: %+v", r)
	}

	if _, err := tr.RemoveTrade("b", "id-2"); !errors.Is(err, ErrTradeNotFound) {
		t.Fatalf("err=%v, want ErrTradeNotFound", err)
	}
}

func TestBuyPlan_DuplicateTradeIDReplaces(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.Register(buyPlan("b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	first := model.Trade{ID: "t1", Price: 80, Quantity: 1, TradeTime: time.Unix(1, 0)}
	second := model.Trade{ID: "t1", Price: 70, Quantity: 1, TradeTime: time.Unix(1, 0)}
	if _, err := tr.AddTrades("b", first); err != nil {
		t.Fatalf("AddTrades: %v", err)
	}
	r, err := tr.AddTrades("b", second)
	if err != nil {
		t.Fatalf("AddTrades: %v", err)
	}
	if r.TradeCount != 1 {
		t.Fatalf("TradeCount=%d, want 1", r.TradeCount)
	}
	if !approx(r.AllocatedTotal+r.OffPlan, 70) {
		t.Fatalf("allocated+offPlan=%f, want 70", r.AllocatedTotal+r.OffPlan)
	}
}

func TestSellPlan_ReportAndLivePrice(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.Register(sellPlan("s")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r, err := tr.AddTrades("s", model.Trade{ID: "x", Price: 20, Quantity: 300, TradeTime: time.Unix(1, 0)})
	if err != nil {
		t.Fatalf("AddTrades: %v", err)
	}
	if !approx(r.PlannedTotal, 1000) {
		t.Fatalf("PlannedTotal=%f, want 1000", r.PlannedTotal)
	}
	if !approx(r.Levels[0].Allocated, 250) || !approx(r.Levels[0].AllocatedUSD, 5000) {
		t.Fatalf("level1=%+v, want 250 tokens / 5000 USD", r.Levels[0])
	}
	if !approx(r.OffPlan, 50) || !approx(r.OffPlanUSD, 1000) {
		t.Fatalf("offPlan=%f/%f, want 50/1000", r.OffPlan, r.OffPlanUSD)
	}
	if r.Levels[0].Status != model.StatusFilled || r.Levels[1].Status != model.StatusPending {
		t.Fatalf("status=%s/%s, want filled/pending", r.Levels[0].Status, r.Levels[1].Status)
	}

	r, err = tr.SetLivePrice("s", 39)
	if err != nil {
		t.Fatalf("SetLivePrice: %v", err)
	}
	if r.LivePrice != 39 || r.Levels[1].Status != model.StatusNear || r.Levels[2].Status != model.StatusPending {
		t.Fatalf("status=%v, want level2 near", r.Levels)
	}
	// 现价不影响分配
	if !approx(r.AllocatedTotal, 250) {
		t.Fatalf("AllocatedTotal=%f, want 250", r.AllocatedTotal)
	}
}

func TestPlanIDs_Sorted(t *testing.T) {
	tr := newTestTracker(t)
	for _, id := range []string{"c", "a", "b"} {
		if err := tr.Register(buyPlan(id)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	got := tr.PlanIDs()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PlanIDs=%v, want %v", got, want)
		}
	}
}

func TestTracker_ConcurrentUse(t *testing.T) {
	sellTol := 0.05
	tr := New(config.EngineConfig{SellTolerance: &sellTol, NearThresholdPct: 0.05}, nil)
	if err := tr.Register(buyPlan("b")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, _ = tr.AddTrades("b", model.Trade{
					Price:     60 + float64(i%20),
					Quantity:  0.1,
					TradeTime: time.Unix(int64(g*100+i), 0),
				})
				_, _ = tr.Report("b")
			}
		}(g)
	}
	wg.Wait()

	r, err := tr.Report("b")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.TradeCount != 200 {
		t.Fatalf("TradeCount=%d, want 200", r.TradeCount)
	}
	if r.AllocatedTotal > r.PlannedTotal+1e-9 {
		t.Fatalf("AllocatedTotal=%f 超过 PlannedTotal=%f", r.AllocatedTotal, r.PlannedTotal)
	}
}

func TestUnregister_DropsHistory(t *testing.T) {
	tr := newTestTracker(t)
	if err := tr.Register(buyPlan("b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := tr.AddTrades("b", model.Trade{ID: "t1", Price: 80, Quantity: 1, TradeTime: time.Unix(1, 0)}); err != nil {
		t.Fatalf("AddTrades: %v", err)
	}
	if err := tr.Unregister("b"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, err := tr.Report("b"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err=%v, want ErrUnknownPlan", err)
	}
	if err := tr.Unregister("b"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("重复注销 err=%v, want ErrUnknownPlan", err)
	}

	// 重新注册后不应看到旧成交
	if err := tr.Register(buyPlan("b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r, err := tr.Report("b")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.TradeCount != 0 {
		t.Fatalf("TradeCount=%d, want 0", r.TradeCount)
	}
}
