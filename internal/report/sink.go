// Package report 定义事件上报能力：K线到达与订单变更会推送给管理端收口。
// 上报属于可观测性副作用，任何失败只记录日志，绝不中断交易主路径。
package report

import (
	"context"

	"moex-trader/internal/broker"
	"moex-trader/internal/marketdata"
)

// Sink 接收交易核心产生的事件。实现必须自行吞掉错误。
type Sink interface {
	ReportIncoming(ctx context.Context, candle marketdata.Candle)
	ReportOrder(ctx context.Context, order broker.OrderMetadata)
}

// Nop 丢弃全部事件。
type Nop struct{}

// ReportIncoming 不做任何事。
func (Nop) ReportIncoming(context.Context, marketdata.Candle) {}

// ReportOrder 不做任何事。
func (Nop) ReportOrder(context.Context, broker.OrderMetadata) {}

var _ Sink = (*Multi)(nil)

// Multi 将事件扇出给多个下游。
type Multi struct {
	sinks []Sink
}

// NewMulti 组合多个下游收口。
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// ReportIncoming 依次转发K线事件。
func (m *Multi) ReportIncoming(ctx context.Context, candle marketdata.Candle) {
	for _, sink := range m.sinks {
		sink.ReportIncoming(ctx, candle)
	}
}

// ReportOrder 依次转发订单事件。
func (m *Multi) ReportOrder(ctx context.Context, order broker.OrderMetadata) {
	for _, sink := range m.sinks {
		sink.ReportOrder(ctx, order)
	}
}
