// Package clock 提供莫斯科时区的时间工具，行情窗口与订单时间戳统一使用该时区。
package clock

import "time"

// Moscow 为 MOEX 交易时区（UTC+3，无夏令时）。
var Moscow = time.FixedZone("MSK", 3*60*60)

// Now 返回当前的莫斯科时间。
func Now() time.Time {
	return time.Now().In(Moscow)
}

// Today 返回莫斯科时区下的当前日期（零点）。
func Today() time.Time {
	now := Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, Moscow)
}
