package index

import (
	"math"

	"github.com/positive-tech/fpta/pkg/fptaerr"
)

// saturatedAddInt64 adds within [lo,hi], clamping on overflow instead
// of wrapping (spec §4.4 "saturated_add").
func saturatedAddInt64(a, b, lo, hi int64) int64 {
	sum := a + b
	if b > 0 && sum < a {
		return hi
	}
	if b < 0 && sum > a {
		return lo
	}
	if sum > hi {
		return hi
	}
	if sum < lo {
		return lo
	}
	return sum
}

func negSaturated(b, lo, hi int64) int64 {
	if b == math.MinInt64 {
		return hi
	}
	return -b
}

func saturatedSubInt64(a, b, lo, hi int64) int64 {
	return saturatedAddInt64(a, negSaturated(b, lo, hi), lo, hi)
}

func saturatedMulInt64(a, b, lo, hi int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/b != a {
		if (a > 0) == (b > 0) {
			return hi
		}
		return lo
	}
	if p > hi {
		return hi
	}
	if p < lo {
		return lo
	}
	return p
}

func saturatedDivInt64(a, b, lo, hi int64) (int64, error) {
	if b == 0 {
		return 0, fptaerr.New(fptaerr.EOverflow, "division by zero")
	}
	if a == lo && b == -1 {
		return hi, nil
	}
	q := a / b
	if q > hi {
		return hi, nil
	}
	if q < lo {
		return lo, nil
	}
	return q, nil
}

func saturatedAddUint64(a, b, max uint64) uint64 {
	sum := a + b
	if sum < a || sum > max {
		return max
	}
	return sum
}

func saturatedSubUint64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func saturatedMulUint64(a, b, max uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/b != a || p > max {
		return max
	}
	return p
}

func saturatedDivUint64(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fptaerr.New(fptaerr.EOverflow, "division by zero")
	}
	return a / b, nil
}
