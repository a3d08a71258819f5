package common

import "fmt"

// Account identifies a trader. Accounts are authenticated upstream; the
// exchange treats them as opaque.
type Account string

// Symbol is an asset ticker, at most MaxSymbolLen bytes.
type Symbol string

const MaxSymbolLen = 32

type Side int

const (
	Buy Side = iota
	Sell
)

// Opposite returns the side a new order on s matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

type OrderType int

const (
	// Limit orders are an order to buy or sell an asset at a specified
	// price or better. Limit orders may rest on the order book until
	// filled.
	LimitOrder OrderType = iota
	// Market orders are instructions to buy or sell immediately against
	// whatever rests in the book. Any unfilled remainder is dropped.
	MarketOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	}
	return fmt.Sprintf("OrderType(%d)", int(t))
}
