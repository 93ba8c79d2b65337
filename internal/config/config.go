// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括引擎参数、计划参数、输出设置等。
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ladder-allocation-engine/internal/core/ladder"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Engine 分配引擎参数
	Engine EngineConfig `yaml:"engine"`
	// Plans 用户计划列表
	Plans []PlanConfig `yaml:"plans"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// EngineConfig 分配引擎参数
type EngineConfig struct {
	// BuyTolerance 买入价格带额外放宽比例（在 2% 之上），默认 0
	BuyTolerance float64 `yaml:"buy_tolerance"`
	// SellTolerance 卖出价格容差，默认 0.05
	SellTolerance *float64 `yaml:"sell_tolerance"`
	// NearThresholdPct 告警“接近”阈值，默认 0.05
	NearThresholdPct float64 `yaml:"near_threshold_pct"`
}

// PlanConfig 单个计划配置
type PlanConfig struct {
	// ID 计划唯一标识
	ID string `yaml:"id"`
	// User 用户标识
	User string `yaml:"user"`
	// Asset 资产标识，如 BTC
	Asset string `yaml:"asset"`
	// Side 计划方向: buy 或 sell
	Side string `yaml:"side"`
	// TradesFile 历史成交文件（.jsonl 或 .csv）
	TradesFile string `yaml:"trades_file"`
	// LivePrice 外部现价，仅用于告警分类（0 表示未提供）
	LivePrice float64 `yaml:"live_price"`
	// Buy 买入计划参数（side=buy 时必填）
	Buy *BuyPlanConfig `yaml:"buy"`
	// Sell 卖出计划参数（side=sell 时必填）
	Sell *SellPlanConfig `yaml:"sell"`
}

// BuyPlanConfig 买入计划参数
type BuyPlanConfig struct {
	// TopPrice 顶部价格
	TopPrice float64 `yaml:"top_price"`
	// Budget 计划总预算（USD）
	Budget float64 `yaml:"budget"`
	// DepthProfile 回撤深度档案: 70, 75, 90
	DepthProfile int `yaml:"depth_profile"`
	// GrowthPct 每档资金增长率（%），未配置时为 25
	GrowthPct *float64 `yaml:"growth_pct"`
}

// SellPlanConfig 卖出计划参数
type SellPlanConfig struct {
	// BaselinePrice 基准价格
	BaselinePrice float64 `yaml:"baseline_price"`
	// StepPct 档位间距: 50, 100, 150, 200（%）
	StepPct float64 `yaml:"step_pct"`
	// LevelsCount 档位数量
	LevelsCount int `yaml:"levels_count"`
	// SellPctOfRemaining 每档卖出剩余仓位的百分比
	SellPctOfRemaining float64 `yaml:"sell_pct_of_remaining"`
	// TokenPool 待卖出的总数量
	TokenPool float64 `yaml:"token_pool"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// ReportsEnabled 是否输出分配报告文件，未配置时为 true
	ReportsEnabled *bool `yaml:"reports_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

const (
	// SideBuy 买入计划
	SideBuy = "buy"
	// SideSell 卖出计划
	SideSell = "sell"
)

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "ladder-allocation-engine"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Engine.SellTolerance == nil {
		v := 0.05
		c.Engine.SellTolerance = &v
	}
	if c.Engine.NearThresholdPct == 0 {
		c.Engine.NearThresholdPct = 0.05
	}

	for i := range c.Plans {
		p := &c.Plans[i]
		p.Side = strings.ToLower(strings.TrimSpace(p.Side))
		if p.Buy != nil {
			if p.Buy.DepthProfile == 0 {
				p.Buy.DepthProfile = 70
			}
			if p.Buy.GrowthPct == nil {
				g := 25.0
				p.Buy.GrowthPct = &g
			}
		}
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
	if c.Output.ReportsEnabled == nil {
		v := true
		c.Output.ReportsEnabled = &v
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.BuyTolerance < 0 || !finite(c.Engine.BuyTolerance) {
		errs = append(errs, "engine.buy_tolerance: 买入容差不能为负数")
	}
	if c.Engine.SellTolerance != nil && (*c.Engine.SellTolerance < 0 || *c.Engine.SellTolerance >= 1) {
		errs = append(errs, "engine.sell_tolerance: 卖出容差必须在 [0, 1) 之间")
	}
	if c.Engine.NearThresholdPct < 0 || c.Engine.NearThresholdPct >= 1 {
		errs = append(errs, "engine.near_threshold_pct: 接近阈值必须在 [0, 1) 之间")
	}

	if len(c.Plans) == 0 {
		errs = append(errs, "plans: 至少需要配置一个计划")
	}
	seen := make(map[string]bool, len(c.Plans))
	for i := range c.Plans {
		p := &c.Plans[i]
		field := fmt.Sprintf("plans[%d]", i)
		if p.ID == "" {
			errs = append(errs, field+".id: 计划标识不能为空")
		} else if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("%s.id: 计划标识重复 '%s'", field, p.ID))
		}
		seen[p.ID] = true
		if p.LivePrice < 0 {
			errs = append(errs, field+".live_price: 现价不能为负数")
		}
		errs = append(errs, p.validate(field)...)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validate 验证单个计划参数
func (p *PlanConfig) validate(field string) []string {
	var errs []string
	switch p.Side {
	case SideBuy:
		if p.Buy == nil {
			return append(errs, field+".buy: 买入计划参数不能为空")
		}
		if p.Buy.TopPrice <= 0 || !finite(p.Buy.TopPrice) {
			errs = append(errs, field+".buy.top_price: 顶部价格必须为正数")
		}
		if p.Buy.Budget <= 0 || !finite(p.Buy.Budget) {
			errs = append(errs, field+".buy.budget: 预算必须为正数")
		}
		if ladder.Drawdowns(p.Buy.DepthProfile) == nil {
			errs = append(errs, fmt.Sprintf("%s.buy.depth_profile: 无效的深度档案 %d，有效值: %v", field, p.Buy.DepthProfile, ladder.DepthProfiles()))
		}
		if p.Buy.GrowthPct != nil && (*p.Buy.GrowthPct < 0 || !finite(*p.Buy.GrowthPct)) {
			errs = append(errs, field+".buy.growth_pct: 增长率不能为负数")
		}
	case SideSell:
		if p.Sell == nil {
			return append(errs, field+".sell: 卖出计划参数不能为空")
		}
		if p.Sell.BaselinePrice <= 0 || !finite(p.Sell.BaselinePrice) {
			errs = append(errs, field+".sell.baseline_price: 基准价格必须为正数")
		}
		if !ladder.ValidSellStep(p.Sell.StepPct) {
			errs = append(errs, fmt.Sprintf("%s.sell.step_pct: 无效的档位间距 %v，有效值: %v", field, p.Sell.StepPct, ladder.SellSteps()))
		}
		if p.Sell.LevelsCount <= 0 {
			errs = append(errs, field+".sell.levels_count: 档位数量必须为正数")
		}
		if p.Sell.SellPctOfRemaining <= 0 || p.Sell.SellPctOfRemaining > 100 {
			errs = append(errs, field+".sell.sell_pct_of_remaining: 卖出比例必须在 (0, 100] 之间")
		}
		if p.Sell.TokenPool < 0 || !finite(p.Sell.TokenPool) {
			errs = append(errs, field+".sell.token_pool: 卖出总量不能为负数")
		}
	default:
		errs = append(errs, fmt.Sprintf("%s.side: 无效的计划方向 '%s'，有效值: buy, sell", field, p.Side))
	}
	return errs
}

// EffectiveSellTolerance 获取卖出容差（未配置时为 0.05）
func (e *EngineConfig) EffectiveSellTolerance() float64 {
	if e.SellTolerance == nil {
		return 0.05
	}
	return *e.SellTolerance
}

// EffectiveGrowthPct 获取增长率（未配置时为 25）
func (b *BuyPlanConfig) EffectiveGrowthPct() float64 {
	if b.GrowthPct == nil {
		return 25
	}
	return *b.GrowthPct
}

// Reports 是否输出分配报告（未配置时为 true）
func (o *OutputConfig) Reports() bool {
	return o.ReportsEnabled == nil || *o.ReportsEnabled
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
