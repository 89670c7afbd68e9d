// Command ecodrive 在终端运行一次驾驶会话，不依赖数据库。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/langchou/ecodrive/internal/chart"
	"github.com/langchou/ecodrive/internal/config"
	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/optimizer"
	"github.com/langchou/ecodrive/internal/report"
	"github.com/langchou/ecodrive/internal/service"
)

// historyRecorder 记录最近一个策略的进化过程
type historyRecorder struct {
	report.Nop
	sequence int
	history  []optimizer.GenerationStats
}

func (r *historyRecorder) ReportGeneration(event report.GenerationEvent) {
	if event.Sequence != r.sequence {
		r.sequence = event.Sequence
		r.history = r.history[:0]
	}
	r.history = append(r.history, event.Stats)
}

// options 命令行参数
type options struct {
	algorithm   string
	terrain     string
	temperature float64
	seed        uint64
	capacity    float64
	maxRuns     int
	plotPath    string
}

func main() {
	var opts options
	flag.StringVar(&opts.algorithm, "algorithm", "genetic", "dynamic or genetic")
	flag.StringVar(&opts.terrain, "terrain", "flat", "flat, uphill or downhill")
	flag.Float64Var(&opts.temperature, "temp", 20, "ambient temperature in °C")
	flag.Uint64Var(&opts.seed, "seed", 0, "random seed, 0 uses RANDOM_SEED or a random one")
	flag.Float64Var(&opts.capacity, "capacity", 0, "battery capacity in kWh, 0 uses config")
	flag.IntVar(&opts.maxRuns, "max", 0, "maximum strategies per session, 0 uses config")
	flag.StringVar(&opts.plotPath, "plot", "", "save the last genetic fitness history to this file (.png/.svg/.pdf)")
	debug := flag.Bool("debug", false, "log every genetic generation")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(*debug || cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, opts, os.Stdout)
	stop()
	if err != nil {
		logger.Error("Drive session failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run 运行会话并输出摘要，被中断的会话按正常结束处理
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts options, out io.Writer) error {
	t, err := models.ParseTerrain(opts.terrain)
	if err != nil {
		return err
	}

	recorder := &historyRecorder{}
	svc := service.NewStrategyService(cfg, logger, nil, nil, report.Multi{
		report.NewLogReporter(logger),
		recorder,
	})
	defer svc.Stop()

	session, err := svc.RunSession(ctx, service.SessionRequest{
		Algorithm:     models.Algorithm(opts.algorithm),
		Environment:   models.Environment{Terrain: t, Temperature: opts.temperature},
		CapacityKwh:   opts.capacity,
		Seed:          opts.seed,
		MaxStrategies: opts.maxRuns,
	})
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && session != nil:
		logger.Info("Drive session interrupted", zap.Int64("session_id", session.ID))
	default:
		return err
	}

	remaining := session.StartChargeKwh
	if session.EndChargeKwh != nil {
		remaining = *session.EndChargeKwh
	}
	fmt.Fprintf(out, "algorithm=%s seed=%d strategies=%d steps=%d/%d distance=%.3fkm remaining=%.3fkWh stop=%s\n",
		session.Algorithm, session.Seed, session.StrategyCount,
		session.StepsExecuted, session.StepsExecuted+session.StepsSkipped,
		session.DistanceKm, remaining, session.StopReason)

	if opts.plotPath == "" {
		return nil
	}
	if len(recorder.history) == 0 {
		logger.Warn("No fitness history to plot", zap.String("algorithm", opts.algorithm))
		return nil
	}
	title := fmt.Sprintf("strategy #%d seed=%d", recorder.sequence, session.Seed)
	if err := chart.SaveFitnessHistory(opts.plotPath, title, recorder.history); err != nil {
		return err
	}
	logger.Info("Fitness chart saved", zap.String("path", opts.plotPath))
	return nil
}

func newLogger(debug bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	if !debug {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	config.DisableStacktrace = true

	logger, _ := config.Build()
	return logger
}
