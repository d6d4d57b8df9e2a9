package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Valid reports whether the side is one of the known values.
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// OrderType represents how an order is priced.
type OrderType string

const (
	TypeMarket    OrderType = "MARKET"
	TypeLimit     OrderType = "LIMIT"
	TypeStop      OrderType = "STOP"
	TypeStopLimit OrderType = "STOP_LIMIT"
)

// Valid reports whether the type is one of the known values.
func (t OrderType) Valid() bool {
	switch t {
	case TypeMarket, TypeLimit, TypeStop, TypeStopLimit:
		return true
	}
	return false
}

// OrderStatus represents the lifecycle status of a position record.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusFilled          OrderStatus = "FILLED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// IsOpenStatus reports whether a position carrying this status counts as open.
func (s OrderStatus) IsOpenStatus() bool {
	switch s {
	case StatusNew, StatusFilled, StatusPartiallyFilled:
		return true
	}
	return false
}

// OpenStatuses lists the statuses that count as open, in a stable order.
var OpenStatuses = []OrderStatus{StatusNew, StatusFilled, StatusPartiallyFilled}

// TimeInForce controls how long an order stays working.
type TimeInForce string

const (
	GoodTillCancel    TimeInForce = "GTC"
	ImmediateOrCancel TimeInForce = "IOC"
	FillOrKill        TimeInForce = "FOK"
)

// Valid reports whether the value is one of the known values.
func (t TimeInForce) Valid() bool {
	return t == GoodTillCancel || t == ImmediateOrCancel || t == FillOrKill
}

// PositionSide is the hedge-mode side of a position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

// Valid reports whether the value is one of the known values.
func (p PositionSide) Valid() bool {
	return p == PositionLong || p == PositionShort || p == PositionBoth
}
