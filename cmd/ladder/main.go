// Package main 是阶梯分配引擎的命令行入口。
// 读取计划配置与历史成交文件，计算每个计划的档位分配并输出 JSONL 报告。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ladder-allocation-engine/internal/config"
	"ladder-allocation-engine/internal/core/model"
	"ladder-allocation-engine/internal/core/tracker"
	"ladder-allocation-engine/internal/input/trades"
	"ladder-allocation-engine/internal/output/jsonl"
)

// maxConcurrentReads 同时读取的成交文件数
const maxConcurrentReads = 4

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "plans.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel).With(zap.String("app", cfg.App.Name))
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，停止读取剩余文件
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，停止处理")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("运行失败", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// run 注册计划、加载成交、计算并输出报告
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tr := tracker.New(cfg.Engine, logger)
	for _, pc := range cfg.Plans {
		if err := tr.Register(pc); err != nil {
			return fmt.Errorf("注册计划失败: %w", err)
		}
	}

	reports := make([]*model.FillReport, len(cfg.Plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, pc := range cfg.Plans {
		i, pc := i, pc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if pc.TradesFile == "" {
				r, err := tr.Report(pc.ID)
				reports[i] = r
				return err
			}

			list, err := trades.ReadFile(pc.TradesFile)
			if err != nil {
				return fmt.Errorf("计划 %s 读取成交失败: %w", pc.ID, err)
			}
			logger.Debug("成交已读取",
				zap.String("plan", pc.ID),
				zap.String("file", pc.TradesFile),
				zap.Int("trades", len(list)),
			)
			r, err := tr.AddTrades(pc.ID, list...)
			reports[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range reports {
		logSummary(logger, r)
	}

	if !cfg.Output.Reports() {
		return nil
	}
	return writeReports(filepath.Join(cfg.Output.Dir, "fills.jsonl"), cfg.Output.BufferSize, reports, logger)
}

// writeReports 按配置顺序写出报告
func writeReports(path string, bufferSize int, reports []*model.FillReport, logger *zap.Logger) error {
	w, err := jsonl.NewReportWriter(path, bufferSize)
	if err != nil {
		return fmt.Errorf("创建报告 writer 失败: %w", err)
	}
	for _, r := range reports {
		if err := w.Write(r); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}
	stats := w.Stats()
	logger.Info("报告已输出",
		zap.String("path", w.Path()),
		zap.Int64("written", stats.Written),
	)
	return nil
}

func logSummary(logger *zap.Logger, r *model.FillReport) {
	if r == nil {
		return
	}
	var filled, near int
	for _, row := range r.Levels {
		switch row.Status {
		case model.StatusFilled:
			filled++
		case model.StatusNear:
			near++
		}
	}
	logger.Info("计划分配完成",
		zap.String("plan", r.PlanID),
		zap.String("side", string(r.Side)),
		zap.Int("trades", r.TradeCount),
		zap.Float64("planned_total", r.PlannedTotal),
		zap.Float64("allocated_total", r.AllocatedTotal),
		zap.Float64("off_plan", r.OffPlan),
		zap.Float64("off_plan_usd", r.OffPlanUSD),
		zap.Int("levels_filled", filled),
		zap.Int("levels_near", near),
		zap.Int("levels", len(r.Levels)),
	)
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
