package marketdata

import (
	"context"
	"time"
)

// Candle 代表单根K线，自产生后不再修改。
type Candle struct {
	Instrument string
	Begin      time.Time
	End        time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Value      float64
}

// Source 抽象行情来源：按交易日与周期返回当日K线序列。
type Source interface {
	Candles(ctx context.Context, instrument string, day time.Time, period time.Duration) ([]Candle, error)
}

// Map 以键值形式返回K线内容，用于事件上报。
func (c Candle) Map() map[string]interface{} {
	return map[string]interface{}{
		"instrument": c.Instrument,
		"begin":      c.Begin.Format(time.RFC3339),
		"end":        c.End.Format(time.RFC3339),
		"open":       c.Open,
		"high":       c.High,
		"low":        c.Low,
		"close":      c.Close,
		"volume":     c.Volume,
		"value":      c.Value,
	}
}
