package engine

import (
	"context"
	"reflect"
	"testing"

	. "dex/internal/common"
	"dex/internal/fixed"
	"dex/internal/ledger"
	"dex/internal/registry"
	"dex/internal/token"

	"pgregory.net/rapid"
)

var (
	propTraders = []Account{"alice", "bob", "carol"}
	propSymbols = []Symbol{DAI, REP, BAT}
)

type propMachine struct {
	engine *Engine
	ledger *ledger.Ledger
	tokens map[Symbol]*token.Token
	trades *tradeRecorder
	// Net amount deposited minus withdrawn, per asset.
	net map[Symbol]uint64
}

func newPropMachine(t *rapid.T) *propMachine {
	led := ledger.New()
	m := &propMachine{
		engine: New(registry.New(), led),
		ledger: led,
		tokens: make(map[Symbol]*token.Token),
		trades: &tradeRecorder{},
		net:    make(map[Symbol]uint64),
	}
	m.engine.SetReporter(m.trades)
	for _, symbol := range propSymbols {
		tok := token.New(symbol)
		for _, trader := range propTraders {
			if err := tok.Faucet(trader, fixed.New(1_000_000)); err != nil {
				t.Fatalf("faucet: %v", err)
			}
		}
		if err := m.engine.AddAsset(symbol, tok); err != nil {
			t.Fatalf("add asset: %v", err)
		}
		m.tokens[symbol] = tok
	}
	return m
}

type propState struct {
	balances map[Account]map[Symbol]fixed.Amount
	books    map[Symbol][2][]Order
}

func (m *propMachine) state() propState {
	s := propState{
		balances: make(map[Account]map[Symbol]fixed.Amount),
		books:    make(map[Symbol][2][]Order),
	}
	for _, trader := range propTraders {
		s.balances[trader] = make(map[Symbol]fixed.Amount)
		for _, symbol := range propSymbols {
			s.balances[trader][symbol] = m.engine.BalanceOf(trader, symbol)
		}
	}
	for _, symbol := range propSymbols {
		s.books[symbol] = [2][]Order{
			m.engine.GetOrders(symbol, Buy),
			m.engine.GetOrders(symbol, Sell),
		}
	}
	return s
}

// step runs one random operation and reports whether it was rejected.
func (m *propMachine) step(t *rapid.T) error {
	ctx := context.Background()
	trader := rapid.SampledFrom(propTraders).Draw(t, "trader")
	symbol := rapid.SampledFrom(propSymbols).Draw(t, "symbol")
	side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
	amount := rapid.Uint64Range(0, 50).Draw(t, "amount")

	switch rapid.IntRange(0, 3).Draw(t, "op") {
	case 0:
		amount = rapid.Uint64Range(0, 2_000).Draw(t, "deposit")
		err := m.engine.Deposit(ctx, fixed.New(amount), symbol, trader)
		if err == nil {
			m.net[symbol] += amount
		}
		return err
	case 1:
		err := m.engine.Withdraw(ctx, fixed.New(amount), symbol, trader)
		if err == nil {
			m.net[symbol] -= amount
		}
		return err
	case 2:
		price := rapid.Uint64Range(0, 20).Draw(t, "price")
		_, err := m.engine.CreateLimitOrder(symbol, fixed.New(amount), fixed.New(price), side, trader)
		return err
	default:
		return m.engine.CreateMarketOrder(symbol, fixed.New(amount), side, trader)
	}
}

func (m *propMachine) checkConservation(t *rapid.T) {
	for _, symbol := range propSymbols {
		var sum fixed.Amount
		for _, trader := range propTraders {
			sum, _ = sum.Add(m.engine.BalanceOf(trader, symbol))
		}
		want := fixed.New(m.net[symbol])
		if sum != want {
			t.Fatalf("%s: balances sum to %s, net deposits are %s", symbol, sum, want)
		}
		if custody := m.tokens[symbol].Custody(); custody != want {
			t.Fatalf("%s: custody %s, net deposits %s", symbol, custody, want)
		}
		if supply := m.ledger.TotalSupply(symbol); supply != want {
			t.Fatalf("%s: ledger supply %s, net deposits %s", symbol, supply, want)
		}
	}
}

func (m *propMachine) checkBookOrdering(t *rapid.T) {
	for _, symbol := range propSymbols {
		for _, side := range []Side{Buy, Sell} {
			orders := m.engine.GetOrders(symbol, side)
			for i := 1; i < len(orders); i++ {
				prev, cur := orders[i-1], orders[i]
				c := prev.Price.Cmp(cur.Price)
				if side == Sell {
					c = -c
				}
				if c < 0 || (c == 0 && prev.ID >= cur.ID) {
					t.Fatalf("%s %v out of order at %d: %d@%s then %d@%s",
						symbol, side, i, prev.ID, prev.Price, cur.ID, cur.Price)
				}
			}
			for _, order := range orders {
				if order.IsFilled() || order.Filled.GreaterThan(order.Amount) {
					t.Fatalf("%s %v: order %d filled %s of %s still resting",
						symbol, side, order.ID, order.Filled, order.Amount)
				}
			}
		}
	}
}

// checkCollateral verifies that every trader's locked balance equals what
// their resting orders need: the remaining asset for sells, price times
// remaining quote for buys.
func (m *propMachine) checkCollateral(t *rapid.T) {
	want := make(map[Account]map[Symbol]fixed.Amount)
	for _, trader := range propTraders {
		want[trader] = make(map[Symbol]fixed.Amount)
	}
	quote := m.engine.Quote()
	for _, symbol := range propSymbols {
		for _, order := range m.engine.GetOrders(symbol, Sell) {
			want[order.Trader][symbol], _ = want[order.Trader][symbol].Add(order.Remaining())
		}
		for _, order := range m.engine.GetOrders(symbol, Buy) {
			cost, _ := order.Price.Mul(order.Remaining())
			want[order.Trader][quote], _ = want[order.Trader][quote].Add(cost)
		}
	}
	for _, trader := range propTraders {
		for _, symbol := range propSymbols {
			locked := m.ledger.Locked(trader, symbol)
			if locked != want[trader][symbol] {
				t.Fatalf("%s %s: locked %s, resting orders need %s", trader, symbol, locked, want[trader][symbol])
			}
			if locked.GreaterThan(m.ledger.BalanceOf(trader, symbol)) {
				t.Fatalf("%s %s: locked %s exceeds balance", trader, symbol, locked)
			}
		}
	}
}

func (m *propMachine) checkTrades(t *rapid.T, from int) {
	for _, trade := range m.trades.trades[from:] {
		if trade.Price != trade.Maker.Price {
			t.Fatalf("trade %s settled at %s, maker price %s", trade.ID, trade.Price, trade.Maker.Price)
		}
		if trade.Taker.Type == LimitOrder {
			if trade.Taker.Side == Buy && trade.Price.GreaterThan(trade.Taker.Price) {
				t.Fatalf("buy limit %s paid %s", trade.Taker.Price, trade.Price)
			}
			if trade.Taker.Side == Sell && trade.Price.LessThan(trade.Taker.Price) {
				t.Fatalf("sell limit %s received %s", trade.Taker.Price, trade.Price)
			}
		}
		if trade.Maker.ID >= trade.Taker.ID {
			t.Fatalf("maker %d is not older than taker %d", trade.Maker.ID, trade.Taker.ID)
		}
	}
}

func TestProperty_ExchangeInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := newPropMachine(t)
		steps := rapid.IntRange(1, 80).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			before := m.state()
			nTrades := len(m.trades.trades)

			if err := m.step(t); err != nil {
				// Validation is all-or-nothing.
				if after := m.state(); !reflect.DeepEqual(before, after) {
					t.Fatalf("step %d rejected with %v but changed state", i, err)
				}
				if len(m.trades.trades) != nTrades {
					t.Fatalf("step %d rejected with %v but traded", i, err)
				}
			}

			m.checkConservation(t)
			m.checkBookOrdering(t)
			m.checkCollateral(t)
			m.checkTrades(t, nTrades)
		}
	})
}

func TestProperty_LimitBuyNeverPaysAboveLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := newPropMachine(t)
		ctx := context.Background()
		askPrice := rapid.Uint64Range(1, 100).Draw(t, "askPrice")
		bidPrice := rapid.Uint64Range(1, 100).Draw(t, "bidPrice")
		qty := rapid.Uint64Range(1, 100).Draw(t, "qty")

		if err := m.engine.Deposit(ctx, fixed.New(qty), REP, "alice"); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if err := m.engine.Deposit(ctx, fixed.New(bidPrice*qty), DAI, "bob"); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if _, err := m.engine.CreateLimitOrder(REP, fixed.New(qty), fixed.New(askPrice), Sell, "alice"); err != nil {
			t.Fatalf("ask: %v", err)
		}
		if _, err := m.engine.CreateLimitOrder(REP, fixed.New(qty), fixed.New(bidPrice), Buy, "bob"); err != nil {
			t.Fatalf("bid: %v", err)
		}

		shouldMatch := bidPrice >= askPrice
		if shouldMatch != (len(m.trades.trades) == 1) {
			t.Fatalf("bid %d ask %d: %d trades", bidPrice, askPrice, len(m.trades.trades))
		}
		if !shouldMatch {
			return
		}
		// Bob pays the ask and keeps the difference.
		refund := (bidPrice - askPrice) * qty
		if got := m.engine.Available("bob", DAI); got != fixed.New(refund) {
			t.Fatalf("bob has %s DAI available, want %d", got, refund)
		}
		if got := m.engine.BalanceOf("alice", DAI); got != fixed.New(askPrice*qty) {
			t.Fatalf("alice has %s DAI, want %d", got, askPrice*qty)
		}
	})
}
