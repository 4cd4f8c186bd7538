package grain

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// NormalizeSeed converts any numeric seed into an int64 PRNG seed.
// Integers outside the int64 range wrap. Floats that are integral and fit are
// used as-is; every other float (fractional, huge, NaN, Inf) is folded from
// its IEEE-754 bits. Numeric strings are parsed. Anything non-numeric returns
// ErrInvalidSeed.
func NormalizeSeed(seed any) (int64, error) {
	switch v := seed.(type) {
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrInvalidSeed)
	case bool:
		return 0, fmt.Errorf("%w: bool %v", ErrInvalidSeed, v)
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(uint64(v)), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return normalizeFloat(float64(v)), nil
	case float64:
		return normalizeFloat(v), nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, fmt.Errorf("%w: empty string", ErrInvalidSeed)
		}
		if n, err := cast.ToInt64E(v); err == nil {
			return n, nil
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSeed, v)
		}
		return normalizeFloat(f), nil
	}

	f, err := cast.ToFloat64E(seed)
	if err != nil {
		return 0, fmt.Errorf("%w: %T", ErrInvalidSeed, seed)
	}
	return normalizeFloat(f), nil
}

func normalizeFloat(f float64) int64 {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	// Fold the bit pattern so 1.5 and 1.25 stay distinct seeds.
	bits := math.Float64bits(f)
	return int64(bits ^ (bits >> 29))
}
