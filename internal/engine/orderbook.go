package engine

import (
	"iter"
	"sort"

	. "dex/internal/common"
	"dex/internal/fixed"

	"github.com/tidwall/btree"
)

type PriceLevel struct {
	priceLevel fixed.Amount
	orders     []*Order
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook holds the resting limit orders of one asset. Each side is a tree
// of price levels in matching priority; orders within a level are kept in
// ascending id order.
//
// The book is not safe for concurrent use. The engine serialises every
// operation that touches it.
type OrderBook struct {
	ticker Symbol

	bids *PriceLevels
	asks *PriceLevels

	// Some book keeping
	nBuyOrders  int // Track the number of bids in the book.
	nSellOrders int // Track the number of asks in the book.
}

func NewOrderBook(ticker Symbol) *OrderBook {
	opts := btree.Options{NoLocks: true}
	// Sorted greatest first.
	bids := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.priceLevel.GreaterThan(b.priceLevel)
	}, opts)
	// Sorted least first.
	asks := btree.NewBTreeGOptions(func(a, b *PriceLevel) bool {
		return a.priceLevel.LessThan(b.priceLevel)
	}, opts)
	return &OrderBook{
		ticker: ticker,
		bids:   bids,
		asks:   asks,
	}
}

func (book *OrderBook) Ticker() Symbol { return book.ticker }

func (book *OrderBook) levels(side Side) *PriceLevels {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// Insert rests a limit order on its own side at its limit price.
func (book *OrderBook) Insert(order *Order) {
	levels := book.levels(order.Side)

	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	level, ok := levels.GetMut(&PriceLevel{priceLevel: order.Price})
	if ok {
		// Ids are handed out in arrival order, so this is almost always an
		// append.
		i := sort.Search(len(level.orders), func(i int) bool {
			return level.orders[i].ID > order.ID
		})
		level.orders = append(level.orders, nil)
		copy(level.orders[i+1:], level.orders[i:])
		level.orders[i] = order
	} else {
		levels.Set(&PriceLevel{
			priceLevel: order.Price,
			orders:     []*Order{order},
		})
	}

	if order.Side == Buy {
		book.nBuyOrders++
	} else {
		book.nSellOrders++
	}
}

// Orders walks one side in matching priority: best price first, earliest
// order first within a price. The walk is lazy and can be restarted; fills
// applied to yielded orders are visible to later walks.
//
// The tree must not be modified while a walk is in progress.
func (book *OrderBook) Orders(side Side) iter.Seq[*Order] {
	return func(yield func(*Order) bool) {
		book.levels(side).Scan(func(level *PriceLevel) bool {
			for _, order := range level.orders {
				if !yield(order) {
					return false
				}
			}
			return true
		})
	}
}

// Opposing walks the side an incoming order on side matches against.
func (book *OrderBook) Opposing(side Side) iter.Seq[*Order] {
	return book.Orders(side.Opposite())
}

// RemoveFullyFilled pops fully filled orders off the head of side. Fills
// always consume the head first, so this prunes every filled order.
// Returns the number of orders lifted off the book.
func (book *OrderBook) RemoveFullyFilled(side Side) int {
	levels := book.levels(side)

	lifted := 0
	for {
		level, ok := levels.MinMut()
		if !ok {
			break
		}

		var i int
		for i < len(level.orders) && level.orders[i].IsFilled() {
			i++
		}
		lifted += i

		if i < len(level.orders) {
			// Partially consumed level, slice off the filled orders.
			level.orders = level.orders[i:]
			break
		}
		// Full consumption, drop the level and look at the next one.
		levels.Delete(level)
	}

	if side == Buy {
		book.nBuyOrders -= lifted
	} else {
		book.nSellOrders -= lifted
	}
	return lifted
}

// Snapshot copies side in matching priority.
func (book *OrderBook) Snapshot(side Side) []Order {
	orders := make([]Order, 0, book.Len(side))
	for order := range book.Orders(side) {
		orders = append(orders, *order)
	}
	return orders
}

// Best returns a copy of the head of side.
func (book *OrderBook) Best(side Side) (Order, bool) {
	for order := range book.Orders(side) {
		return *order, true
	}
	return Order{}, false
}

func (book *OrderBook) Len(side Side) int {
	if side == Buy {
		return book.nBuyOrders
	}
	return book.nSellOrders
}

// FlatPriceLevel is a read-only view of one price level.
type FlatPriceLevel struct {
	PriceLevel fixed.Amount
	Quantity   fixed.Amount // Remaining quantity resting at this price
	Orders     []Order
}

// Depth returns the levels of side in matching priority.
func (book *OrderBook) Depth(side Side) []FlatPriceLevel {
	return FlattenLevels(book.levels(side).Items())
}

func FlattenLevels(levels []*PriceLevel) []FlatPriceLevel {
	flat := make([]FlatPriceLevel, 0, len(levels))
	for _, level := range levels {
		view := FlatPriceLevel{
			PriceLevel: level.priceLevel,
			Orders:     make([]Order, 0, len(level.orders)),
		}
		for _, order := range level.orders {
			// Resting quantities sum to at most the asset's custody supply.
			view.Quantity, _ = view.Quantity.Add(order.Remaining())
			view.Orders = append(view.Orders, *order)
		}
		flat = append(flat, view)
	}
	return flat
}
