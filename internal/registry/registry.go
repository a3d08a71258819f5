// Package registry tracks which assets the exchange can custody and which
// of them is the quote asset every pair settles in.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dex/internal/common"
	"dex/internal/fixed"
)

var (
	ErrUnknownAsset   = errors.New("this asset does not exist")
	ErrDuplicateAsset = errors.New("asset already registered")
	ErrInvalidSymbol  = errors.New("invalid asset symbol")
	ErrNilHandle      = errors.New("asset has no transfer handle")
)

// Transferer moves value between an account and the exchange's custody on
// the external ledger that owns the asset.
type Transferer interface {
	TransferIn(ctx context.Context, from common.Account, amount fixed.Amount) error
	TransferOut(ctx context.Context, to common.Account, amount fixed.Amount) error
}

type Asset struct {
	Symbol common.Symbol
	Handle Transferer
}

type Registry struct {
	mu     sync.RWMutex
	assets map[common.Symbol]Asset
	order  []common.Symbol
	quote  common.Symbol
}

type Option func(*Registry)

// WithQuote designates the quote asset up front. Without it, the first
// registered asset becomes the quote asset.
func WithQuote(symbol common.Symbol) Option {
	return func(r *Registry) {
		r.quote = symbol
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		assets: make(map[common.Symbol]Asset),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(symbol common.Symbol, handle Transferer) error {
	if len(symbol) == 0 || len(symbol) > common.MaxSymbolLen {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	if handle == nil {
		return fmt.Errorf("%w: %s", ErrNilHandle, symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assets[symbol]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAsset, symbol)
	}
	r.assets[symbol] = Asset{Symbol: symbol, Handle: handle}
	r.order = append(r.order, symbol)
	if r.quote == "" {
		r.quote = symbol
	}
	return nil
}

func (r *Registry) Lookup(symbol common.Symbol) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, ok := r.assets[symbol]
	return asset, ok
}

func (r *Registry) Resolve(symbol common.Symbol) (Asset, error) {
	asset, ok := r.Lookup(symbol)
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return asset, nil
}

func (r *Registry) IsQuote(symbol common.Symbol) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.quote != "" && symbol == r.quote
}

// Quote returns the quote asset symbol, empty until one is known.
func (r *Registry) Quote() common.Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.quote
}

// Symbols lists registered assets in registration order.
func (r *Registry) Symbols() []common.Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]common.Symbol(nil), r.order...)
}
