package token

import (
	"context"
	"testing"

	"dex/internal/fixed"
	"dex/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ registry.Transferer = (*Token)(nil)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	dai := New("DAI")
	require.NoError(t, dai.Faucet("trader1", fixed.New(1000)))

	require.NoError(t, dai.TransferIn(ctx, "trader1", fixed.New(100)))
	assert.Equal(t, fixed.New(900), dai.BalanceOf("trader1"))
	assert.Equal(t, fixed.New(100), dai.Custody())

	require.NoError(t, dai.TransferOut(ctx, "trader2", fixed.New(40)))
	assert.Equal(t, fixed.New(40), dai.BalanceOf("trader2"))
	assert.Equal(t, fixed.New(60), dai.Custody())
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	dai := New("DAI")
	require.NoError(t, dai.Faucet("trader1", fixed.New(10)))

	assert.ErrorIs(t, dai.TransferIn(ctx, "trader1", fixed.New(11)), ErrInsufficientFunds)
	assert.ErrorIs(t, dai.TransferOut(ctx, "trader1", fixed.New(1)), ErrInsufficientFunds)
	assert.Equal(t, fixed.New(10), dai.BalanceOf("trader1"))
	assert.True(t, dai.Custody().IsZero())
}

func TestTransfer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dai := New("DAI")
	require.NoError(t, dai.Faucet("trader1", fixed.New(10)))
	assert.ErrorIs(t, dai.TransferIn(ctx, "trader1", fixed.New(1)), context.Canceled)
	assert.Equal(t, fixed.New(10), dai.BalanceOf("trader1"))
}
