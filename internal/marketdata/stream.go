package marketdata

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"moex-trader/internal/clock"
)

// Stream 按固定周期轮询行情来源，向下游输出严格递增的K线序列。
// 去重依据是K线结束时间：仅当结束时间严格晚于已输出的最后一根时才会下发，
// 重复或乱序到达的K线会被记录并丢弃。
type Stream struct {
	source     Source
	instrument string
	period     time.Duration
	logger     *zap.Logger

	lastEnd time.Time
	todayFn func() time.Time
}

// NewStream 创建单标的行情流。
func NewStream(source Source, instrument string, period time.Duration, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		source:     source,
		instrument: instrument,
		period:     period,
		logger:     logger,
		todayFn:    clock.Today,
	}
}

// Run 持续轮询并将K线写入 out，直到上下文取消或上游出现不可恢复错误。
// out 由调用方创建，Run 返回后由调用方负责关闭。
func (s *Stream) Run(ctx context.Context, out chan<- Candle) error {
	for {
		batch, err := s.source.Candles(ctx, s.instrument, s.todayFn(), s.period)
		if err != nil {
			return fmt.Errorf("stream: 拉取行情失败: %w", err)
		}

		for _, candle := range batch {
			if !candle.End.After(s.lastEnd) {
				s.logger.Warn("丢弃重复K线",
					zap.String("instrument", s.instrument),
					zap.Time("candle_end", candle.End),
					zap.Time("last_end", s.lastEnd),
				)
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- candle:
			}

			s.lastEnd = candle.End
		}

		timer := time.NewTimer(s.period)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
