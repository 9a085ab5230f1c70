// Package broker 定义经纪端能力：开仓、平仓与资金核算。
package broker

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind 表示订单方向。
type Kind string

const (
	KindBuy  Kind = "buy"
	KindSell Kind = "sell"
)

// Status 表示订单状态。processing 与 cancelled 为预留状态，当前流程不会产生。
type Status string

const (
	StatusProcessing Status = "processing"
	StatusOpen       Status = "open"
	StatusCancelled  Status = "cancelled"
	StatusClose      Status = "close"
)

// OrderMetadata 描述一笔模拟持仓。ClosePrice 与 CloseDT 当且仅当状态为 close 时非空。
type OrderMetadata struct {
	OrderID    uuid.UUID
	Instrument string
	Kind       Kind
	Status     Status
	OpenPrice  float64
	ClosePrice *float64
	Quantity   float64
	OpenDT     time.Time
	CloseDT    *time.Time
}

// Map 以键值形式返回订单内容，用于事件上报。
func (o OrderMetadata) Map() map[string]interface{} {
	m := map[string]interface{}{
		"order_id":   o.OrderID.String(),
		"instrument": o.Instrument,
		"kind":       string(o.Kind),
		"status":     string(o.Status),
		"open_price": o.OpenPrice,
		"quantity":   o.Quantity,
		"open_dt":    o.OpenDT.Format(time.RFC3339),
	}
	if o.ClosePrice != nil {
		m["close_price"] = *o.ClosePrice
	}
	if o.CloseDT != nil {
		m["close_dt"] = o.CloseDT.Format(time.RFC3339)
	}
	return m
}

// Connector 抽象经纪端，便于切换模拟或真实实现。
type Connector interface {
	MakeOrder(instrument string, price, quantity float64, kind Kind) (OrderMetadata, error)
	CloseOrder(orderID uuid.UUID, price float64) (OrderMetadata, error)
}

var (
	// ErrInvalidOrder 表示价格或数量不合法。
	ErrInvalidOrder = errors.New("broker: invalid price or quantity")
	// ErrInsufficientBalance 表示余额不足，开仓被拒绝。
	ErrInsufficientBalance = errors.New("broker: insufficient balance")
	// ErrOrderNotFound 表示订单不存在或已平仓。
	ErrOrderNotFound = errors.New("broker: order not found")
)
