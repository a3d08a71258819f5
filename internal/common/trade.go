package common

import (
	"fmt"
	"time"

	"dex/internal/fixed"

	"github.com/google/uuid"
)

// Trade accounts for the two parties who matched. Maker is the resting
// order, Taker the incoming one; both are copies taken right after the fill.
type Trade struct {
	ID        uuid.UUID
	Ticker    Symbol
	Price     fixed.Amount // Always the maker's price
	Quantity  fixed.Amount
	Maker     Order
	Taker     Order
	Timestamp time.Time
}

// Buyer returns the account on the buy side of the trade.
func (t Trade) Buyer() Account {
	if t.Taker.Side == Buy {
		return t.Taker.Trader
	}
	return t.Maker.Trader
}

// Seller returns the account on the sell side of the trade.
func (t Trade) Seller() Account {
	if t.Taker.Side == Sell {
		return t.Taker.Trader
	}
	return t.Maker.Trader
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`ID:        %s
Ticker:    %s
Maker:     [
%s]
Taker:     [
%s]
Timestamp: %v
Quantity:  %s
Price:     %s`,
		t.ID,
		t.Ticker,
		t.Maker.String(),
		t.Taker.String(),
		t.Timestamp.Format(time.RFC3339),
		t.Quantity,
		t.Price,
	)
}
