package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"moex-trader/internal/broker"
	"moex-trader/internal/marketdata"
	"moex-trader/internal/store"
)

// 事件类型。
const (
	eventIncoming = "incoming"
	eventOrder    = "order"
)

var _ Sink = (*StoreSink)(nil)

// StoreSink 将事件持久化到本地 SQLite，供事后审计。
type StoreSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStoreSink 初始化事件落库收口，创建所需表结构。
func NewStoreSink(store *store.Store, logger *zap.Logger) (*StoreSink, error) {
	if store == nil {
		return nil, fmt.Errorf("report: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &StoreSink{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *StoreSink) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS report_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_report_events_type ON report_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("report: 初始化表失败: %w", err)
	}
	return nil
}

// ReportIncoming 落库K线事件。
func (s *StoreSink) ReportIncoming(ctx context.Context, candle marketdata.Candle) {
	s.record(ctx, eventIncoming, candle.Map())
}

// ReportOrder 落库订单事件。
func (s *StoreSink) ReportOrder(ctx context.Context, order broker.OrderMetadata) {
	s.record(ctx, eventOrder, order.Map())
}

func (s *StoreSink) record(ctx context.Context, eventType string, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("序列化事件失败", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO report_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		eventType, string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		s.logger.Warn("写入事件失败", zap.String("event_type", eventType), zap.Error(err))
	}
}
