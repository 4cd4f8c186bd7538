package grain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSeed_Numeric(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"int", 42, 42},
		{"int8", int8(-3), -3},
		{"int32", int32(7), 7},
		{"int64", int64(math.MaxInt64), math.MaxInt64},
		{"uint16", uint16(9), 9},
		{"uint64 wraps", uint64(math.MaxUint64), -1},
		{"integral float", 1.0, 1},
		{"integral float32", float32(12), 12},
		{"numeric string", "1337", 1337},
		{"integral float string", "5.0", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSeed(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeSeed_OutOfRangeFloats(t *testing.T) {
	for _, f := range []float64{1.5, 1e300, -1e300, math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err := NormalizeSeed(f)
		assert.NoError(t, err, "seed %v", f)
	}

	a, err := NormalizeSeed(1.5)
	require.NoError(t, err)
	b, err := NormalizeSeed(1.25)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "fractional seeds should stay distinct")

	c, err := NormalizeSeed(1.5)
	require.NoError(t, err)
	assert.Equal(t, a, c)

	s, err := NormalizeSeed("2.75")
	require.NoError(t, err)
	assert.Equal(t, normalizeFloat(2.75), s)
}

func TestNormalizeSeed_Invalid(t *testing.T) {
	for _, in := range []any{nil, true, "abc", "", struct{}{}, []int{1}} {
		_, err := NormalizeSeed(in)
		assert.ErrorIs(t, err, ErrInvalidSeed, "seed %#v", in)
	}
}
