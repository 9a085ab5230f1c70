// Package app 负责组装依赖并驱动系统生命周期。
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"moex-trader/internal/broker"
	"moex-trader/internal/config"
	"moex-trader/internal/marketdata"
	"moex-trader/internal/report"
	"moex-trader/internal/store"
	"moex-trader/internal/strategy"
	"moex-trader/internal/trader"
)

// App 聚合核心依赖并驱动主流水线。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 启动行情流与执行循环，直到退出信号或致命错误。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易核心已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("driver", a.cfg.MarketData.Driver),
		zap.String("instrument", a.cfg.MarketData.Instrument),
		zap.Duration("period", a.cfg.MarketData.Period),
	)

	source, err := a.buildSource()
	if err != nil {
		return err
	}

	strat, err := a.buildStrategy()
	if err != nil {
		return err
	}

	sink, err := a.buildSink(ctx)
	if err != nil {
		return err
	}

	connector := broker.NewSimulated(a.cfg.Trading.Balance)

	stream := marketdata.NewStream(source, a.cfg.MarketData.Instrument, a.cfg.MarketData.Period, a.logger)
	loop := trader.New(connector, strat, sink, trader.Options{
		Instrument:    a.cfg.MarketData.Instrument,
		Quantity:      a.cfg.Trading.Quantity,
		HaltOnRefusal: a.cfg.Trading.HaltOnRefusal,
	}, a.logger)

	candles := make(chan marketdata.Candle, a.cfg.MarketData.Buffer)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer close(candles)
		return stream.Run(groupCtx, candles)
	})
	group.Go(func() error {
		return loop.Run(groupCtx, candles)
	})

	err = group.Wait()

	if a.cfg.Trading.CloseOnExit {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		loop.Flush(flushCtx)
		cancel()
	}
	a.logger.Info("账户余额", zap.Float64("balance", connector.Balance()))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

func (a *App) buildSource() (marketdata.Source, error) {
	switch a.cfg.MarketData.Driver {
	case "moex":
		return marketdata.NewMoexClient(a.cfg.MarketData.Moex, a.logger), nil
	case "ccxt":
		source, err := marketdata.NewCCXTSource(a.cfg.MarketData.CCXT, a.logger)
		if err != nil {
			return nil, fmt.Errorf("初始化行情来源失败: %w", err)
		}
		return source, nil
	default:
		return nil, fmt.Errorf("未知的行情来源 %q", a.cfg.MarketData.Driver)
	}
}

func (a *App) buildStrategy() (strategy.Strategy, error) {
	switch a.cfg.Strategy.Name {
	case "threshold":
		return strategy.NewThreshold(a.cfg.Strategy.Threshold), nil
	case "sma_cross":
		return strategy.NewSMACross(a.cfg.Strategy.FastPeriod, a.cfg.Strategy.SlowPeriod), nil
	case "llm":
		strat, err := strategy.NewLLM(a.cfg.OpenAI, a.logger)
		if err != nil {
			return nil, fmt.Errorf("初始化大模型策略失败: %w", err)
		}
		return strat, nil
	default:
		return nil, fmt.Errorf("未知的策略 %q", a.cfg.Strategy.Name)
	}
}

func (a *App) buildSink(ctx context.Context) (report.Sink, error) {
	sinks := make([]report.Sink, 0, 2)

	if a.cfg.Admin.Enabled {
		admin := report.NewAdminClient(a.cfg.Admin, a.logger)
		if err := admin.Register(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, admin)
	}

	if a.cfg.Database.RecordEvents && a.store != nil {
		storeSink, err := report.NewStoreSink(a.store, a.logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, storeSink)
	}

	switch len(sinks) {
	case 0:
		return report.Nop{}, nil
	case 1:
		return sinks[0], nil
	default:
		return report.NewMulti(sinks...), nil
	}
}
