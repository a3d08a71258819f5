// Package token is an in-memory fungible token: the external ledger an
// exchange asset lives on. Deposits move tokens from a holder into the
// exchange's custody and withdrawals move them back.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dex/internal/common"
	"dex/internal/fixed"
)

var ErrInsufficientFunds = errors.New("insufficient token funds")

type Token struct {
	mu       sync.Mutex
	symbol   common.Symbol
	balances map[common.Account]fixed.Amount
	custody  fixed.Amount
	supply   fixed.Amount
}

func New(symbol common.Symbol) *Token {
	return &Token{
		symbol:   symbol,
		balances: make(map[common.Account]fixed.Amount),
	}
}

func (t *Token) Symbol() common.Symbol { return t.symbol }

// Faucet mints amount to account.
func (t *Token) Faucet(account common.Account, amount fixed.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	supply, err := t.supply.Add(amount)
	if err != nil {
		return fmt.Errorf("%s faucet: %w", t.symbol, err)
	}
	t.supply = supply
	t.balances[account], _ = t.balances[account].Add(amount)
	return nil
}

func (t *Token) BalanceOf(account common.Account) fixed.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.balances[account]
}

// Custody returns the amount held by the exchange.
func (t *Token) Custody() fixed.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.custody
}

func (t *Token) TransferIn(ctx context.Context, from common.Account, amount fixed.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	balance, err := t.balances[from].Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s %s", ErrInsufficientFunds, from, t.balances[from], t.symbol)
	}
	t.balances[from] = balance
	t.custody, _ = t.custody.Add(amount)
	return nil
}

func (t *Token) TransferOut(ctx context.Context, to common.Account, amount fixed.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	custody, err := t.custody.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: custody holds %s %s", ErrInsufficientFunds, t.custody, t.symbol)
	}
	t.custody = custody
	t.balances[to], _ = t.balances[to].Add(amount)
	return nil
}
