package common

import (
	"fmt"
	"time"

	"dex/internal/fixed"
)

type Order struct {
	ID        uint64       // Monotonic id, also the time-priority key
	Trader    Account      // Who owns this order
	Type      OrderType    //
	Side      Side         // Order side
	Ticker    Symbol       // Traded asset, never the quote asset
	Price     fixed.Amount // Quote units per asset unit, zero for market orders
	Amount    fixed.Amount // Total quantity requested
	Filled    fixed.Amount // Cumulative matched quantity
	Timestamp time.Time    // Time the exchange accepted the order
}

// Remaining returns the unfilled quantity.
func (order Order) Remaining() fixed.Amount {
	rem, err := order.Amount.Sub(order.Filled)
	if err != nil {
		// Filled never exceeds Amount.
		return fixed.Amount{}
	}
	return rem
}

func (order Order) IsFilled() bool {
	return order.Filled.Cmp(order.Amount) == 0
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:        %d
Trader:    %s
Type:      %v
Side:      %v
Ticker:    %s
Price:     %s
Filled:    %s (Total: %s)
Timestamp: %v`,
		order.ID,
		order.Trader,
		order.Type,
		order.Side,
		order.Ticker,
		order.Price,
		order.Filled,
		order.Amount,
		order.Timestamp.Format(time.RFC3339), // Formatted for readability
	)
}
