package strategy

import (
	"context"

	talib "github.com/markcheno/go-talib"

	"moex-trader/internal/marketdata"
)

var _ Strategy = (*SMACross)(nil)

// SMACross 基于快慢均线的趋势策略：快线高于慢线时给出买入信号。
// 历史窗口不足以计算慢线时一律返回 false。
type SMACross struct {
	fast   int
	slow   int
	closes []float64
}

// NewSMACross 创建均线策略，fast 必须小于 slow。
func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{
		fast:   fast,
		slow:   slow,
		closes: make([]float64, 0, slow*2),
	}
}

// Evaluate 将收盘价纳入窗口并比较快慢均线。
func (s *SMACross) Evaluate(_ context.Context, candle marketdata.Candle) (bool, error) {
	s.closes = append(s.closes, candle.Close)

	// 窗口只保留计算慢线所需的长度。
	if len(s.closes) > s.slow*2 {
		s.closes = s.closes[len(s.closes)-s.slow*2:]
	}

	if len(s.closes) < s.slow {
		return false, nil
	}

	fastLine := talib.Sma(s.closes, s.fast)
	slowLine := talib.Sma(s.closes, s.slow)

	fastLast := fastLine[len(fastLine)-1]
	slowLast := slowLine[len(slowLine)-1]

	return fastLast > slowLast, nil
}
