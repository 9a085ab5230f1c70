package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"moex-trader/internal/clock"
	"moex-trader/internal/config"
)

// ErrUnsupportedPeriod 表示 ISS 不支持请求的K线周期。
var ErrUnsupportedPeriod = errors.New("moex: unsupported candle period")

// MoexClient 通过 MOEX ISS 接口拉取K线并实现重试机制。
type MoexClient struct {
	cfg    config.MoexConfig
	http   *http.Client
	logger *zap.Logger
}

// NewMoexClient 构造 ISS 行情客户端。
func NewMoexClient(cfg config.MoexConfig, logger *zap.Logger) *MoexClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MoexClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Candles 返回指定交易日与周期的K线，按结束时间升序。
func (c *MoexClient) Candles(ctx context.Context, instrument string, day time.Time, period time.Duration) ([]Candle, error) {
	interval, err := issInterval(period)
	if err != nil {
		return nil, err
	}

	date := day.In(clock.Moscow).Format("2006-01-02")
	endpoint := fmt.Sprintf("%s/iss/engines/stock/markets/shares/securities/%s/candles.json",
		c.cfg.BaseURL, url.PathEscape(instrument))

	query := url.Values{}
	query.Set("from", date)
	query.Set("till", date)
	query.Set("interval", strconv.Itoa(interval))
	query.Set("iss.meta", "off")

	var payload issCandleResponse
	err = c.callWithRetry(ctx, fmt.Sprintf("candles_%s_%d", instrument, interval), func() error {
		return c.fetchJSON(ctx, endpoint+"?"+query.Encode(), &payload)
	})
	if err != nil {
		return nil, err
	}

	candles, err := payload.toCandles(instrument)
	if err != nil {
		return nil, err
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].End.Before(candles[j].End)
	})

	return candles, nil
}

func (c *MoexClient) fetchJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("moex: 构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, url: rawURL}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("moex: 解析响应失败: %w", err)
	}

	return nil
}

func (c *MoexClient) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("行情调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		if !retryable(err) || attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Error("行情调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(err),
			)
			return err
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("行情调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// statusError 携带非 200 的响应状态码。
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("moex: 请求 %s 返回状态 %d", e.url, e.code)
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= http.StatusInternalServerError || statusErr.code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// issInterval 将周期映射为 ISS 的 interval 取值。
func issInterval(period time.Duration) (int, error) {
	switch period {
	case time.Minute:
		return 1, nil
	case 10 * time.Minute:
		return 10, nil
	case time.Hour:
		return 60, nil
	case 24 * time.Hour:
		return 24, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedPeriod, period)
	}
}

const issTimeLayout = "2006-01-02 15:04:05"

type issCandleResponse struct {
	Candles struct {
		Columns []string        `json:"columns"`
		Data    [][]interface{} `json:"data"`
	} `json:"candles"`
}

func (r issCandleResponse) toCandles(instrument string) ([]Candle, error) {
	index := make(map[string]int, len(r.Candles.Columns))
	for i, col := range r.Candles.Columns {
		index[col] = i
	}

	for _, col := range []string{"open", "close", "high", "low", "value", "volume", "begin", "end"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("moex: 响应缺少字段 %q", col)
		}
	}

	candles := make([]Candle, 0, len(r.Candles.Data))
	for _, row := range r.Candles.Data {
		if len(row) < len(r.Candles.Columns) {
			return nil, fmt.Errorf("moex: 行数据长度 %d 与列数 %d 不一致", len(row), len(r.Candles.Columns))
		}

		begin, err := issTime(row[index["begin"]])
		if err != nil {
			return nil, err
		}
		end, err := issTime(row[index["end"]])
		if err != nil {
			return nil, err
		}

		candles = append(candles, Candle{
			Instrument: instrument,
			Begin:      begin,
			End:        end,
			Open:       issNumber(row[index["open"]]),
			High:       issNumber(row[index["high"]]),
			Low:        issNumber(row[index["low"]]),
			Close:      issNumber(row[index["close"]]),
			Volume:     issNumber(row[index["volume"]]),
			Value:      issNumber(row[index["value"]]),
		})
	}

	return candles, nil
}

func issTime(value interface{}) (time.Time, error) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("moex: 时间字段类型异常 %T", value)
	}
	t, err := time.ParseInLocation(issTimeLayout, s, clock.Moscow)
	if err != nil {
		return time.Time{}, fmt.Errorf("moex: 解析时间 %q 失败: %w", s, err)
	}
	return t, nil
}

func issNumber(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
