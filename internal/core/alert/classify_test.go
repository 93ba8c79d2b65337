// Package alert 告警分类测试
package alert

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"ladder-allocation-engine/internal/core/model"
)

func TestClassifyBuy(t *testing.T) {
	levels := []model.BuyLevel{
		{Level: 1, Price: 80},
		{Level: 2, Price: 70},
		{Level: 3, Price: 60},
	}
	got := ClassifyBuy(levels, []float64{1, 0.3, 0}, 72, 0.05)
	want := []model.LevelStatus{model.StatusFilled, model.StatusNear, model.StatusPending}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status[%d]=%s, want %s", i, got[i], want[i])
		}
	}
}

func TestClassifySell(t *testing.T) {
	levels := []model.SellLevel{
		{Level: 1, TargetPrice: 20},
		{Level: 2, TargetPrice: 40},
	}
	got := ClassifySell(levels, []float64{0.5, 0}, 19.5, 0.05)
	if got[0] != model.StatusNear || got[1] != model.StatusPending {
		t.Fatalf("status=%v, want [near pending]", got)
	}
}

func TestClassify_PriceThroughLevelIsNear(t *testing.T) {
	buy := []model.BuyLevel{{Level: 1, Price: 80}, {Level: 2, Price: 70}}
	got := ClassifyBuy(buy, []float64{0, 0}, 10, 0.05)
	if got[0] != model.StatusNear || got[1] != model.StatusNear {
		t.Fatalf("现价远低于买入档位 status=%v, want [near near]", got)
	}

	sell := []model.SellLevel{{Level: 1, TargetPrice: 20}, {Level: 2, TargetPrice: 40}}
	got = ClassifySell(sell, []float64{0, 1}, 500, 0.05)
	if got[0] != model.StatusNear || got[1] != model.StatusFilled {
		t.Fatalf("现价远高于卖出档位 status=%v, want [near filled]", got)
	}
}

func TestClassify_InvalidLivePrice(t *testing.T) {
	levels := []model.BuyLevel{{Level: 1, Price: 80}, {Level: 2, Price: 70}}
	got := ClassifyBuy(levels, []float64{1, 0}, math.NaN(), 0.05)
	if got[0] != model.StatusFilled || got[1] != model.StatusPending {
		t.Fatalf("status=%v, want [filled pending]", got)
	}
}

func TestClassifyBuy_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("完成度为 1 的档位总是 filled，未完成的永远不是 filled", prop.ForAll(
		func(live, pct float64) bool {
			levels := []model.BuyLevel{{Level: 1, Price: 100}, {Level: 2, Price: 50}}
			got := ClassifyBuy(levels, []float64{1, pct}, live, DefaultNearPct)
			return got[0] == model.StatusFilled && got[1] != model.StatusFilled
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(0, 0.99),
	))

	properties.TestingRun(t)
}
