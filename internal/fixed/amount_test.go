package fixed

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a, err := Parse("100", 18)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", a.String())

	a, err = Parse("0.5", 2)
	require.NoError(t, err)
	assert.Equal(t, New(50), a)

	a, err = Parse("10", 0)
	require.NoError(t, err)
	assert.Equal(t, New(10), a)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse("abc", 18)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("-1", 18)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("0.001", 2)
	assert.ErrorIs(t, err, ErrPrecision)

	_, err = Parse("1"+strings.Repeat("0", 80), 0)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100", MustParse("100", 18).Format(18))
	assert.Equal(t, "12.5", MustParse("12.5", 18).Format(18))
	assert.Equal(t, "0", Amount{}.Format(18))
}

func TestArithmetic(t *testing.T) {
	sum, err := New(7).Add(New(5))
	require.NoError(t, err)
	assert.Equal(t, New(12), sum)

	diff, err := New(7).Sub(New(5))
	require.NoError(t, err)
	assert.Equal(t, New(2), diff)

	_, err = New(5).Sub(New(7))
	assert.ErrorIs(t, err, ErrUnderflow)

	prod, err := New(math.MaxUint64).Mul(New(2))
	require.NoError(t, err)
	assert.Equal(t, "36893488147419103230", prod.String())
}

func TestArithmetic_Overflow(t *testing.T) {
	// 10^40 * 10^40 does not fit in 256 bits.
	big := MustParse("1"+strings.Repeat("0", 40), 0)
	_, err := big.Mul(big)
	assert.ErrorIs(t, err, ErrOverflow)

	ceiling := MustParse("115792089237316195423570985008687907853269984665640564039457584007913129639935", 0)
	_, err = ceiling.Add(New(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCompare(t *testing.T) {
	assert.True(t, New(1).LessThan(New(2)))
	assert.True(t, New(2).GreaterThan(New(1)))
	assert.Equal(t, 0, New(3).Cmp(New(3)))
	assert.Equal(t, New(1), Min(New(1), New(2)))
	assert.Equal(t, New(1), Min(New(2), New(1)))
	assert.True(t, Amount{}.IsZero())
}
