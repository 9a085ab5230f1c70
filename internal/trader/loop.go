// Package trader 实现执行主循环：消费行情流、评估策略信号并驱动经纪端开平仓。
package trader

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"moex-trader/internal/broker"
	"moex-trader/internal/marketdata"
	"moex-trader/internal/report"
	"moex-trader/internal/strategy"
)

// Options 控制执行循环的行为。
type Options struct {
	Instrument string
	Quantity   float64
	// HaltOnRefusal 为 true 时余额不足直接终止循环，否则跳过该信号继续运行。
	HaltOnRefusal bool
}

// Loop 按到达顺序逐根处理K线。自身维护一份当前持仓ID集合，
// 该集合可能与经纪端真实状态漂移，平仓遇到未知订单按非致命处理。
type Loop struct {
	connector broker.Connector
	strategy  strategy.Strategy
	sink      report.Sink
	logger    *zap.Logger
	opts      Options

	open      []uuid.UUID
	lastClose float64
}

// New 创建执行循环。
func New(connector broker.Connector, strat strategy.Strategy, sink report.Sink, opts Options, logger *zap.Logger) *Loop {
	if sink == nil {
		sink = report.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		connector: connector,
		strategy:  strat,
		sink:      sink,
		logger:    logger,
		opts:      opts,
	}
}

// Run 消费 in 中的K线直到通道关闭、上下文取消或出现致命错误。
func (l *Loop) Run(ctx context.Context, in <-chan marketdata.Candle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case candle, ok := <-in:
			if !ok {
				return nil
			}
			if err := l.Process(ctx, candle); err != nil {
				return err
			}
		}
	}
}

// Process 处理单根K线：上报、评估信号、执行开仓或平仓。
func (l *Loop) Process(ctx context.Context, candle marketdata.Candle) error {
	l.lastClose = candle.Close

	l.logger.Info("收到新K线",
		zap.String("instrument", candle.Instrument),
		zap.Time("end", candle.End),
		zap.Float64("close", candle.Close),
		zap.Float64("volume", candle.Volume),
	)
	l.sink.ReportIncoming(ctx, candle)

	signal, err := l.strategy.Evaluate(ctx, candle)
	if err != nil {
		// 策略异常不触发任何仓位变化，等待下一根K线。
		l.logger.Error("策略评估失败", zap.Error(err))
		return nil
	}
	l.logger.Info("策略信号", zap.Bool("signal", signal))

	if signal {
		return l.openPosition(ctx, candle)
	}
	l.closePositions(ctx, candle.Close)
	return nil
}

func (l *Loop) openPosition(ctx context.Context, candle marketdata.Candle) error {
	order, err := l.connector.MakeOrder(l.opts.Instrument, candle.Close, l.opts.Quantity, broker.KindBuy)
	if err != nil {
		if errors.Is(err, broker.ErrInsufficientBalance) {
			if l.opts.HaltOnRefusal {
				return fmt.Errorf("trader: 余额不足，终止执行: %w", err)
			}
			l.logger.Warn("余额不足，跳过本次开仓", zap.Error(err))
			return nil
		}
		return fmt.Errorf("trader: 开仓失败: %w", err)
	}

	l.open = append(l.open, order.OrderID)
	l.logger.Info("开仓成功",
		zap.String("order_id", order.OrderID.String()),
		zap.Float64("open_price", order.OpenPrice),
		zap.Float64("quantity", order.Quantity),
	)
	l.sink.ReportOrder(ctx, order)
	return nil
}

func (l *Loop) closePositions(ctx context.Context, price float64) {
	if len(l.open) == 0 {
		return
	}

	remaining := l.open[:0]
	for _, orderID := range l.open {
		closed, err := l.connector.CloseOrder(orderID, price)
		if err != nil {
			if errors.Is(err, broker.ErrOrderNotFound) {
				// 经纪端为持仓的唯一事实来源，未知订单直接从本地集合剔除。
				l.logger.Warn("平仓目标不存在", zap.String("order_id", orderID.String()))
				continue
			}
			l.logger.Error("平仓失败", zap.String("order_id", orderID.String()), zap.Error(err))
			remaining = append(remaining, orderID)
			continue
		}

		l.logger.Info("平仓成功",
			zap.String("order_id", closed.OrderID.String()),
			zap.Float64("close_price", price),
		)
		l.sink.ReportOrder(ctx, closed)
	}
	l.open = remaining
}

// Flush 以最近一次收盘价尝试平掉全部本地持仓，用于退出前收尾。
func (l *Loop) Flush(ctx context.Context) {
	if l.lastClose <= 0 || len(l.open) == 0 {
		return
	}
	l.logger.Info("退出前平仓", zap.Int("open_orders", len(l.open)), zap.Float64("price", l.lastClose))
	l.closePositions(ctx, l.lastClose)
}

// TrackedOrders 返回本地持仓ID快照。
func (l *Loop) TrackedOrders() []uuid.UUID {
	return append([]uuid.UUID(nil), l.open...)
}
