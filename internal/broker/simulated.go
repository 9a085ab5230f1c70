package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"moex-trader/internal/clock"
)

var _ Connector = (*Simulated)(nil)

// Simulated 在内存中维护账户余额与持仓表的模拟经纪端。
// 所有修改操作以互斥锁串行化，余额检查与扣减在同一临界区内完成。
type Simulated struct {
	mu      sync.Mutex
	balance float64
	orders  map[uuid.UUID]OrderMetadata

	nowFn func() time.Time
}

// NewSimulated 创建初始余额为 balance 的模拟经纪端。
func NewSimulated(balance float64) *Simulated {
	return &Simulated{
		balance: balance,
		orders:  make(map[uuid.UUID]OrderMetadata),
		nowFn:   clock.Now,
	}
}

// MakeOrder 尝试开仓。金额超过余额或余额已非正时拒绝，拒绝不产生任何副作用。
func (s *Simulated) MakeOrder(instrument string, price, quantity float64, kind Kind) (OrderMetadata, error) {
	if price < 0 || quantity < 0 {
		return OrderMetadata{}, fmt.Errorf("%w: price=%f quantity=%f", ErrInvalidOrder, price, quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	amount := price * quantity
	if amount > s.balance || s.balance <= 0 {
		return OrderMetadata{}, fmt.Errorf("%w: balance=%f amount=%f", ErrInsufficientBalance, s.balance, amount)
	}
	s.balance -= amount

	order := OrderMetadata{
		OrderID:    uuid.New(),
		Instrument: instrument,
		Kind:       kind,
		Status:     StatusOpen,
		OpenPrice:  price,
		Quantity:   quantity,
		OpenDT:     s.nowFn(),
	}
	s.orders[order.OrderID] = order

	return order, nil
}

// CloseOrder 平掉指定订单：计算收益入账并从持仓表移除，返回终态快照。
// 订单不存在（或已平仓）时拒绝，不改变任何状态。
func (s *Simulated) CloseOrder(orderID uuid.UUID, price float64) (OrderMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return OrderMetadata{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	closeDT := s.nowFn()
	order.Status = StatusClose
	order.ClosePrice = &price
	order.CloseDT = &closeDT

	s.balance += profit(order)
	delete(s.orders, orderID)

	return order, nil
}

// Balance 返回当前账户余额。
func (s *Simulated) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// OpenOrders 返回当前持仓快照。
func (s *Simulated) OpenOrders() []OrderMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]OrderMetadata, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	return orders
}

// profit 计算平仓回笼的现金：方向收益加上开仓时占用的本金。
// SELL 按做空处理（价格下跌产生正收益），该公式需与历史行为保持一致，不得调整。
func profit(order OrderMetadata) float64 {
	ratio := 1.0
	if order.Kind == KindSell {
		ratio = -1.0
	}
	return ratio*(*order.ClosePrice-order.OpenPrice)*order.Quantity + order.OpenPrice*order.Quantity
}
