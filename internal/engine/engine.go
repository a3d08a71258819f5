package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "dex/internal/common"
	"dex/internal/fixed"
	"dex/internal/ledger"
	"dex/internal/registry"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// This is the main matching engine.

var (
	ErrCannotTradeQuoteAsset    = errors.New("cannot trade the quote asset")
	ErrInsufficientAssetBalance = errors.New("asset balance too low")
	ErrInsufficientQuoteBalance = errors.New("quote balance too low")
	ErrInvalidAmount            = errors.New("order amount must be positive")
	ErrInvalidPrice             = errors.New("limit price must be positive")
	ErrInvalidSide              = errors.New("invalid order side")
)

// Reporter receives a copy of every trade once it has settled.
type Reporter interface {
	ReportTrade(trade Trade)
}

// Market owns one order book per tradable asset.
type Market map[Symbol]*OrderBook

func (m Market) book(ticker Symbol) *OrderBook {
	book, ok := m[ticker]
	if !ok {
		book = NewOrderBook(ticker)
		m[ticker] = book
	}
	return book
}

// Engine is the exchange: asset registry, balance ledger and order books
// behind a single lock. Every public method is one atomic operation.
type Engine struct {
	mu       sync.Mutex
	registry *registry.Registry
	ledger   *ledger.Ledger
	market   Market
	reporter Reporter
	lastID   uint64
}

func New(reg *registry.Registry, led *ledger.Ledger) *Engine {
	return &Engine{
		registry: reg,
		ledger:   led,
		market:   make(Market),
	}
}

func (engine *Engine) SetReporter(reporter Reporter) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	engine.reporter = reporter
}

// Quote returns the asset every order settles in.
func (engine *Engine) Quote() Symbol {
	return engine.registry.Quote()
}

func (engine *Engine) AddAsset(symbol Symbol, handle registry.Transferer) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if err := engine.registry.Register(symbol, handle); err != nil {
		return err
	}
	log.Info().Str("symbol", string(symbol)).Bool("quote", engine.registry.IsQuote(symbol)).Msg("asset added")
	return nil
}

// Deposit pulls amount of symbol from the account on the asset's external
// ledger into custody and credits it.
func (engine *Engine) Deposit(ctx context.Context, amount fixed.Amount, symbol Symbol, account Account) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	asset, err := engine.registry.Resolve(symbol)
	if err != nil {
		return err
	}
	if err := engine.ledger.CanCredit(symbol, amount); err != nil {
		return fmt.Errorf("deposit %s: %w", symbol, err)
	}
	if err := asset.Handle.TransferIn(ctx, account, amount); err != nil {
		return fmt.Errorf("deposit %s: transfer in: %w", symbol, err)
	}
	settle(engine.ledger.Credit(account, symbol, amount))

	log.Debug().
		Str("account", string(account)).
		Str("symbol", string(symbol)).
		Stringer("amount", amount).
		Msg("deposit")
	return nil
}

// Withdraw debits amount of symbol and sends it back to the account on the
// asset's external ledger. A failed transfer restores the balance.
func (engine *Engine) Withdraw(ctx context.Context, amount fixed.Amount, symbol Symbol, account Account) error {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	asset, err := engine.registry.Resolve(symbol)
	if err != nil {
		return err
	}
	if err := engine.ledger.Debit(account, symbol, amount); err != nil {
		return fmt.Errorf("withdraw %s: %w", symbol, err)
	}
	if err := asset.Handle.TransferOut(ctx, account, amount); err != nil {
		settle(engine.ledger.Credit(account, symbol, amount))
		return fmt.Errorf("withdraw %s: transfer out: %w", symbol, err)
	}

	log.Debug().
		Str("account", string(account)).
		Str("symbol", string(symbol)).
		Stringer("amount", amount).
		Msg("withdraw")
	return nil
}

// CreateLimitOrder matches a limit order against the opposing side up to its
// limit price and rests any remainder in the book. Returns the order id.
func (engine *Engine) CreateLimitOrder(symbol Symbol, amount, price fixed.Amount, side Side, account Account) (id uint64, err error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	defer logRejection(&err, LimitOrder, symbol, side, account)

	if price.IsZero() {
		return 0, ErrInvalidPrice
	}
	book, err := engine.validate(symbol, amount, side)
	if err != nil {
		return 0, err
	}

	quote := engine.registry.Quote()
	// A resting buy must be collateralised in full at its own price.
	var collateral fixed.Amount
	switch side {
	case Sell:
		if engine.ledger.Available(account, symbol).LessThan(amount) {
			return 0, fmt.Errorf("%w: %s %s", ErrInsufficientAssetBalance, account, symbol)
		}
	case Buy:
		if collateral, err = price.Mul(amount); err != nil {
			return 0, fmt.Errorf("limit order cost: %w", err)
		}
		if engine.ledger.Available(account, quote).LessThan(collateral) {
			return 0, fmt.Errorf("%w: %s %s", ErrInsufficientQuoteBalance, account, quote)
		}
	}

	order := Order{
		Trader: account,
		Type:   LimitOrder,
		Side:   side,
		Ticker: symbol,
		Price:  price,
		Amount: amount,
	}
	fills, _, err := plan(book, order)
	if err != nil {
		return 0, err
	}

	// Validation passed, nothing below can fail.
	engine.accept(&order)
	engine.execute(book, &order, fills)

	if !order.IsFilled() {
		remaining := order.Remaining()
		switch side {
		case Sell:
			settle(engine.ledger.Lock(account, symbol, remaining))
		case Buy:
			// Bounded by the collateral checked above.
			cost, err := price.Mul(remaining)
			settle(err)
			settle(engine.ledger.Lock(account, quote, cost))
		}
		book.Insert(&order)
	}
	return order.ID, nil
}

// CreateMarketOrder matches an order at any price against the opposing side.
// Whatever the book cannot fill is dropped.
func (engine *Engine) CreateMarketOrder(symbol Symbol, amount fixed.Amount, side Side, account Account) (err error) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	defer logRejection(&err, MarketOrder, symbol, side, account)

	book, err := engine.validate(symbol, amount, side)
	if err != nil {
		return err
	}

	if side == Sell && engine.ledger.Available(account, symbol).LessThan(amount) {
		return fmt.Errorf("%w: %s %s", ErrInsufficientAssetBalance, account, symbol)
	}

	order := Order{
		Trader: account,
		Type:   MarketOrder,
		Side:   side,
		Ticker: symbol,
		Amount: amount,
	}
	fills, cost, err := plan(book, order)
	if err != nil {
		return err
	}
	// Only the part the book can fill has to be affordable.
	quote := engine.registry.Quote()
	if side == Buy && engine.ledger.Available(account, quote).LessThan(cost) {
		return fmt.Errorf("%w: %s %s", ErrInsufficientQuoteBalance, account, quote)
	}

	engine.accept(&order)
	engine.execute(book, &order, fills)
	return nil
}

// GetOrders returns the resting orders of one side in matching priority.
func (engine *Engine) GetOrders(symbol Symbol, side Side) []Order {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	book, ok := engine.market[symbol]
	if !ok {
		return []Order{}
	}
	return book.Snapshot(side)
}

// Depth returns the price levels of one side in matching priority.
func (engine *Engine) Depth(symbol Symbol, side Side) []FlatPriceLevel {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	book, ok := engine.market[symbol]
	if !ok {
		return []FlatPriceLevel{}
	}
	return book.Depth(side)
}

// BalanceOf returns the account's balance of symbol, including collateral
// locked by resting orders.
func (engine *Engine) BalanceOf(account Account, symbol Symbol) fixed.Amount {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	return engine.ledger.BalanceOf(account, symbol)
}

// Available returns the part of the balance that can be traded or withdrawn.
func (engine *Engine) Available(account Account, symbol Symbol) fixed.Amount {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	return engine.ledger.Available(account, symbol)
}

// validate runs the checks shared by limit and market orders and returns
// the book the order trades on.
func (engine *Engine) validate(symbol Symbol, amount fixed.Amount, side Side) (*OrderBook, error) {
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSide, side)
	}
	if _, err := engine.registry.Resolve(symbol); err != nil {
		return nil, err
	}
	if engine.registry.IsQuote(symbol) {
		return nil, fmt.Errorf("%w: %s", ErrCannotTradeQuoteAsset, symbol)
	}
	return engine.market.book(symbol), nil
}

// accept stamps an order that passed validation.
func (engine *Engine) accept(order *Order) {
	engine.lastID++
	order.ID = engine.lastID
	order.Timestamp = time.Now()

	log.Debug().
		Uint64("id", order.ID).
		Stringer("type", order.Type).
		Stringer("side", order.Side).
		Str("ticker", string(order.Ticker)).
		Str("trader", string(order.Trader)).
		Stringer("price", order.Price).
		Stringer("amount", order.Amount).
		Msg("order accepted")
}

// fill is one planned match of the incoming order against a resting order.
type fill struct {
	maker    *Order
	quantity fixed.Amount
	cost     fixed.Amount // quantity * maker price, in quote units
}

// crosses reports whether a resting maker is eligible for the incoming
// taker. Market orders take any price.
func crosses(taker, maker *Order) bool {
	if taker.Type == MarketOrder {
		return true
	}
	if taker.Side == Buy {
		return !maker.Price.GreaterThan(taker.Price)
	}
	return !maker.Price.LessThan(taker.Price)
}

// plan walks the opposing side from the best price outward and returns the
// fills the taker would get and their total quote cost. Nothing is mutated.
func plan(book *OrderBook, taker Order) ([]fill, fixed.Amount, error) {
	var (
		fills []fill
		total fixed.Amount
	)
	remaining := taker.Remaining()
	for maker := range book.Opposing(taker.Side) {
		if remaining.IsZero() || !crosses(&taker, maker) {
			break
		}
		quantity := fixed.Min(remaining, maker.Remaining())
		if quantity.IsZero() {
			continue
		}
		cost, err := quantity.Mul(maker.Price)
		if err != nil {
			return nil, fixed.Amount{}, fmt.Errorf("fill cost: %w", err)
		}
		if total, err = total.Add(cost); err != nil {
			return nil, fixed.Amount{}, fmt.Errorf("fill cost: %w", err)
		}
		fills = append(fills, fill{maker: maker, quantity: quantity, cost: cost})
		remaining, _ = remaining.Sub(quantity)
	}
	return fills, total, nil
}

// execute settles planned fills. The trade price is always the resting
// order's price. Resting orders pay out of the collateral they locked when
// they were booked; the taker pays out of its available balance.
func (engine *Engine) execute(book *OrderBook, taker *Order, fills []fill) {
	quote := engine.registry.Quote()
	asset := book.Ticker()

	for _, f := range fills {
		maker := f.maker
		switch taker.Side {
		case Buy:
			settle(engine.ledger.DebitLocked(maker.Trader, asset, f.quantity))
			settle(engine.ledger.Debit(taker.Trader, quote, f.cost))
			settle(engine.ledger.Credit(taker.Trader, asset, f.quantity))
			settle(engine.ledger.Credit(maker.Trader, quote, f.cost))
		case Sell:
			settle(engine.ledger.DebitLocked(maker.Trader, quote, f.cost))
			settle(engine.ledger.Debit(taker.Trader, asset, f.quantity))
			settle(engine.ledger.Credit(maker.Trader, asset, f.quantity))
			settle(engine.ledger.Credit(taker.Trader, quote, f.cost))
		}
		maker.Filled, _ = maker.Filled.Add(f.quantity)
		taker.Filled, _ = taker.Filled.Add(f.quantity)

		engine.trade(asset, maker, taker, f)
	}

	if lifted := book.RemoveFullyFilled(taker.Side.Opposite()); lifted > 0 {
		log.Debug().Str("ticker", string(asset)).Int("lifted", lifted).Msg("filled orders removed")
	}
}

// trade logs a settled fill and hands it to the reporter.
func (engine *Engine) trade(asset Symbol, maker, taker *Order, f fill) {
	trade := Trade{
		ID:        uuid.New(),
		Ticker:    asset,
		Price:     maker.Price,
		Quantity:  f.quantity,
		Maker:     *maker,
		Taker:     *taker,
		Timestamp: time.Now(),
	}

	log.Debug().
		Stringer("trade", trade.ID).
		Str("ticker", string(asset)).
		Uint64("maker", maker.ID).
		Uint64("taker", taker.ID).
		Stringer("price", trade.Price).
		Stringer("quantity", trade.Quantity).
		Msg("trade")

	if engine.reporter != nil {
		engine.reporter.ReportTrade(trade)
	}
}

// settle panics on a ledger error. Every order is validated before the first
// mutation, so a failure here means ledger and book no longer agree.
func settle(err error) {
	if err != nil {
		log.Panic().Err(err).Msg("ledger invariant broken")
	}
}

func logRejection(err *error, typ OrderType, symbol Symbol, side Side, account Account) {
	if *err == nil {
		return
	}
	log.Debug().
		Err(*err).
		Stringer("type", typ).
		Stringer("side", side).
		Str("ticker", string(symbol)).
		Str("trader", string(account)).
		Msg("order rejected")
}
