package marketdata

import (
	"context"
	"fmt"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"moex-trader/internal/config"
)

// CCXTSource 以 ccxt 交易所作为备选行情来源，用于加密货币标的。
type CCXTSource struct {
	cfg      config.CCXTConfig
	logger   *zap.Logger
	exchange *ccxt.Binanceusdm

	marketsLoaded bool
}

// NewCCXTSource 构造 Binance USDⓈ-M 行情来源。
func NewCCXTSource(cfg config.CCXTConfig, logger *zap.Logger) (*CCXTSource, error) {
	if cfg.Exchange != "binanceusdm" {
		return nil, fmt.Errorf("ccxt: 暂不支持交易所 %q", cfg.Exchange)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &CCXTSource{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
	}, nil
}

// Candles 拉取指定交易日的K线并过滤到当日窗口。
func (s *CCXTSource) Candles(ctx context.Context, instrument string, day time.Time, period time.Duration) ([]Candle, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	timeframe, err := ccxtTimeframe(period)
	if err != nil {
		return nil, err
	}

	if !s.marketsLoaded {
		if _, err := s.exchange.LoadMarkets(); err != nil {
			return nil, fmt.Errorf("ccxt: 加载市场元数据失败: %w", err)
		}
		s.marketsLoaded = true
		s.logger.Info("已完成市场元数据加载", zap.String("symbol", instrument))
	}

	limit := int64(24*time.Hour/period) + 1

	raw, err := s.exchange.FetchOHLCV(
		instrument,
		ccxt.WithFetchOHLCVTimeframe(timeframe),
		ccxt.WithFetchOHLCVLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("ccxt: 拉取K线失败: %w", err)
	}

	dayStart := day.Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	candles := make([]Candle, 0, len(raw))
	for _, item := range raw {
		begin := time.UnixMilli(item.Timestamp).UTC()
		if begin.Before(dayStart) || !begin.Before(dayEnd) {
			continue
		}
		candles = append(candles, Candle{
			Instrument: instrument,
			Begin:      begin,
			End:        begin.Add(period),
			Open:       item.Open,
			High:       item.High,
			Low:        item.Low,
			Close:      item.Close,
			Volume:     item.Volume,
			Value:      item.Close * item.Volume,
		})
	}

	return candles, nil
}

func ccxtTimeframe(period time.Duration) (string, error) {
	switch period {
	case time.Minute:
		return "1m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case time.Hour:
		return "1h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPeriod, period)
	}
}
