// Package ledger holds the per-account, per-asset balances the exchange has
// in custody, along with the part of each balance locked by resting orders.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"dex/internal/common"
	"dex/internal/fixed"
)

var (
	ErrInsufficientBalance = errors.New("balance too low")
	ErrInsufficientLocked  = errors.New("locked balance too low")
)

type key struct {
	account common.Account
	asset   common.Symbol
}

type entry struct {
	balance fixed.Amount // Total held, including locked
	locked  fixed.Amount // Collateral reserved by resting orders
}

// available never underflows: locked <= balance is kept by every mutation.
func (e *entry) available() fixed.Amount {
	avail, _ := e.balance.Sub(e.locked)
	return avail
}

type Ledger struct {
	mu      sync.Mutex
	entries map[key]*entry
	supply  map[common.Symbol]fixed.Amount
}

func New() *Ledger {
	return &Ledger{
		entries: make(map[key]*entry),
		supply:  make(map[common.Symbol]fixed.Amount),
	}
}

func (l *Ledger) get(account common.Account, asset common.Symbol) *entry {
	k := key{account, asset}
	e, ok := l.entries[k]
	if !ok {
		e = &entry{}
		l.entries[k] = e
	}
	return e
}

// CanCredit reports whether crediting amount of asset would keep the total
// supply in custody representable.
func (l *Ledger) CanCredit(asset common.Symbol, amount fixed.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.supply[asset].Add(amount)
	return err
}

// Credit increases the balance of account in asset. Since no single balance
// can exceed the asset's total supply, only the supply needs an overflow check.
func (l *Ledger) Credit(account common.Account, asset common.Symbol, amount fixed.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	supply, err := l.supply[asset].Add(amount)
	if err != nil {
		return fmt.Errorf("crediting %s %s: %w", amount, asset, err)
	}
	e := l.get(account, asset)
	balance, err := e.balance.Add(amount)
	if err != nil {
		return fmt.Errorf("crediting %s %s: %w", amount, asset, err)
	}
	e.balance = balance
	l.supply[asset] = supply
	return nil
}

// Debit decreases the unlocked balance of account in asset.
func (l *Ledger) Debit(account common.Account, asset common.Symbol, amount fixed.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.get(account, asset)
	if amount.GreaterThan(e.available()) {
		return fmt.Errorf("%w: %s has %s %s available, needs %s",
			ErrInsufficientBalance, account, e.available(), asset, amount)
	}
	e.balance, _ = e.balance.Sub(amount)
	l.supply[asset], _ = l.supply[asset].Sub(amount)
	return nil
}

// Lock reserves part of the available balance as collateral.
func (l *Ledger) Lock(account common.Account, asset common.Symbol, amount fixed.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.get(account, asset)
	if amount.GreaterThan(e.available()) {
		return fmt.Errorf("%w: %s has %s %s available, cannot lock %s",
			ErrInsufficientBalance, account, e.available(), asset, amount)
	}
	e.locked, _ = e.locked.Add(amount)
	return nil
}

// Unlock releases previously locked collateral back to the available balance.
func (l *Ledger) Unlock(account common.Account, asset common.Symbol, amount fixed.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.get(account, asset)
	locked, err := e.locked.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %s %s locked, cannot unlock %s",
			ErrInsufficientLocked, account, e.locked, asset, amount)
	}
	e.locked = locked
	return nil
}

// DebitLocked settles amount against locked collateral, removing it from
// both the lock and the balance.
func (l *Ledger) DebitLocked(account common.Account, asset common.Symbol, amount fixed.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.get(account, asset)
	locked, err := e.locked.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %s %s locked, cannot settle %s",
			ErrInsufficientLocked, account, e.locked, asset, amount)
	}
	e.locked = locked
	e.balance, _ = e.balance.Sub(amount)
	l.supply[asset], _ = l.supply[asset].Sub(amount)
	return nil
}

// BalanceOf returns the total balance, locked collateral included.
func (l *Ledger) BalanceOf(account common.Account, asset common.Symbol) fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key{account, asset}]; ok {
		return e.balance
	}
	return fixed.Amount{}
}

// Available returns the part of the balance that is free to trade or withdraw.
func (l *Ledger) Available(account common.Account, asset common.Symbol) fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key{account, asset}]; ok {
		return e.available()
	}
	return fixed.Amount{}
}

func (l *Ledger) Locked(account common.Account, asset common.Symbol) fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key{account, asset}]; ok {
		return e.locked
	}
	return fixed.Amount{}
}

// TotalSupply returns the sum of all balances of asset in custody.
func (l *Ledger) TotalSupply(asset common.Symbol) fixed.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.supply[asset]
}
