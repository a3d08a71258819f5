package registry

import (
	"context"
	"strings"
	"testing"

	"dex/internal/common"
	"dex/internal/fixed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandle struct{}

func (nopHandle) TransferIn(context.Context, common.Account, fixed.Amount) error  { return nil }
func (nopHandle) TransferOut(context.Context, common.Account, fixed.Amount) error { return nil }

func TestRegister_FirstIsQuote(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("DAI", nopHandle{}))
	require.NoError(t, r.Register("REP", nopHandle{}))

	assert.Equal(t, common.Symbol("DAI"), r.Quote())
	assert.True(t, r.IsQuote("DAI"))
	assert.False(t, r.IsQuote("REP"))
	assert.Equal(t, []common.Symbol{"DAI", "REP"}, r.Symbols())
}

func TestRegister_DesignatedQuote(t *testing.T) {
	r := New(WithQuote("DAI"))
	require.NoError(t, r.Register("REP", nopHandle{}))
	require.NoError(t, r.Register("DAI", nopHandle{}))

	assert.True(t, r.IsQuote("DAI"))
	assert.False(t, r.IsQuote("REP"))
}

func TestRegister_Rejects(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("DAI", nopHandle{}))

	assert.ErrorIs(t, r.Register("DAI", nopHandle{}), ErrDuplicateAsset)
	assert.ErrorIs(t, r.Register("", nopHandle{}), ErrInvalidSymbol)
	assert.ErrorIs(t, r.Register(common.Symbol(strings.Repeat("X", 33)), nopHandle{}), ErrInvalidSymbol)
	assert.ErrorIs(t, r.Register("BAT", nil), ErrNilHandle)
	assert.Len(t, r.Symbols(), 1)
}

func TestResolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("DAI", nopHandle{}))

	asset, err := r.Resolve("DAI")
	require.NoError(t, err)
	assert.Equal(t, common.Symbol("DAI"), asset.Symbol)

	_, err = r.Resolve("TOKEN-DOES-NOT-EXIST")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, ok := r.Lookup("ZRX")
	assert.False(t, ok)
}

func TestIsQuote_Empty(t *testing.T) {
	assert.False(t, New().IsQuote(""))
}
