// Package strategy 定义信号策略能力：对单根K线给出买入与否的布尔信号。
package strategy

import (
	"context"

	"moex-trader/internal/marketdata"
)

// Strategy 对一根K线做出判定。true 表示买入信号，false 表示离场信号。
type Strategy interface {
	Evaluate(ctx context.Context, candle marketdata.Candle) (bool, error)
}

// Func 允许使用函数作为策略。
type Func func(ctx context.Context, candle marketdata.Candle) (bool, error)

// Evaluate 调用底层函数。
func (f Func) Evaluate(ctx context.Context, candle marketdata.Candle) (bool, error) {
	return f(ctx, candle)
}

var _ Strategy = (*Threshold)(nil)

// Threshold 在收盘价低于基准价时持续给出买入信号。
type Threshold struct {
	level float64
}

// NewThreshold 创建基准价策略。
func NewThreshold(level float64) *Threshold {
	return &Threshold{level: level}
}

// Evaluate 收盘价低于基准价时返回 true。
func (t *Threshold) Evaluate(_ context.Context, candle marketdata.Candle) (bool, error) {
	return candle.Close < t.level, nil
}
