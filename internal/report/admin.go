package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"moex-trader/internal/broker"
	"moex-trader/internal/config"
	"moex-trader/internal/marketdata"
)

var _ Sink = (*AdminClient)(nil)

// AdminClient 将事件推送到管理端服务。
// 推送前需通过 Register 注册策略并取得 strategy_id。
type AdminClient struct {
	cfg    config.AdminConfig
	http   *http.Client
	logger *zap.Logger

	strategyID string
}

// NewAdminClient 创建管理端上报客户端。
func NewAdminClient(cfg config.AdminConfig, logger *zap.Logger) *AdminClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdminClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Register 在管理端登记策略并记录返回的 strategy_id。
func (c *AdminClient) Register(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"name":        c.cfg.StrategyName,
		"description": c.cfg.StrategyDescription,
		"source_code": "",
	})
	if err != nil {
		return fmt.Errorf("report: 序列化策略信息失败: %w", err)
	}

	resp, err := c.post(ctx, "/strategies", body)
	if err != nil {
		return fmt.Errorf("report: 注册策略失败: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report: 注册策略返回状态 %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("report: 解析注册响应失败: %w", err)
	}
	if created.ID == "" {
		return fmt.Errorf("report: 注册响应缺少策略ID")
	}

	c.strategyID = created.ID
	c.logger.Info("策略已注册",
		zap.String("strategy_id", c.strategyID),
		zap.String("name", c.cfg.StrategyName),
	)
	return nil
}

// ReportIncoming 推送K线事件。
func (c *AdminClient) ReportIncoming(ctx context.Context, candle marketdata.Candle) {
	c.push(ctx, "/incomings", candle.Map())
}

// ReportOrder 推送订单事件。
func (c *AdminClient) ReportOrder(ctx context.Context, order broker.OrderMetadata) {
	c.push(ctx, "/orders", order.Map())
}

func (c *AdminClient) push(ctx context.Context, path string, data map[string]interface{}) {
	body, err := json.Marshal(map[string]interface{}{
		"strategy_id": c.strategyID,
		"data":        data,
	})
	if err != nil {
		c.logger.Warn("序列化上报事件失败", zap.String("path", path), zap.Error(err))
		return
	}

	resp, err := c.post(ctx, path, body)
	if err != nil {
		c.logger.Warn("推送事件失败", zap.String("path", path), zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("推送事件被拒绝",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
	}
}

func (c *AdminClient) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}
