package value

import (
	"math/big"
	"strings"
)

// Datetime is a 64-bit fixed-point timestamp: the upper 32 bits hold
// UTC seconds since the epoch, the lower 32 bits hold a fractional
// second in units of 2^-32 (spec §4.4 "Datetime representation").

const (
	fracShift = 32
	fracMask  = uint64(0xFFFFFFFF)
)

func split(dt uint64) (seconds int64, frac uint32) {
	return int64(dt >> fracShift), uint32(dt & fracMask)
}

func join(seconds int64, frac uint32) uint64 {
	return uint64(uint32(seconds))<<fracShift | uint64(frac)
}

// NsToFractional converts a nanosecond count (0 <= ns < 1e9) to the
// 2^-32 fractional-second representation, exactly where 1e9 divides evenly
// into 2^32 scaled space and otherwise rounded down by integer division.
func NsToFractional(ns uint64) uint32 {
	return uint32((ns << fracShift) / 1_000_000_000)
}

// FractionalToNs is the exact inverse direction of NsToFractional,
// rounded down to the nearest nanosecond.
func FractionalToNs(frac uint32) uint64 {
	return (uint64(frac) * 1_000_000_000) >> fracShift
}

func UsToFractional(us uint64) uint32 {
	return uint32((us << fracShift) / 1_000_000)
}

func FractionalToUs(frac uint32) uint64 {
	return (uint64(frac) * 1_000_000) >> fracShift
}

func MsToFractional(ms uint64) uint32 {
	return uint32((ms << fracShift) / 1_000)
}

func FractionalToMs(frac uint32) uint64 {
	return (uint64(frac) * 1_000) >> fracShift
}

// FromUnixNs builds a Datetime value from a Unix nanosecond timestamp.
func FromUnixNs(unixNs int64) uint64 {
	sec := unixNs / 1_000_000_000
	ns := unixNs % 1_000_000_000
	if ns < 0 {
		ns += 1_000_000_000
		sec--
	}
	return join(sec, NsToFractional(uint64(ns)))
}

// ToUnixNs extracts a Unix nanosecond timestamp back out, rounded down.
func ToUnixNs(dt uint64) int64 {
	sec, frac := split(dt)
	return sec*1_000_000_000 + int64(FractionalToNs(frac))
}

var pow5_32 = new(big.Int).Exp(big.NewInt(5), big.NewInt(32), nil)

// Format renders dt as "<seconds>[.<fraction>]" using the exact decimal
// expansion of the fractional part (spec §4.4 "textual formatting is
// exact, not a rounded float"). Since 2^32 * 5^32 == 10^32, frac * 5^32
// is an exact 32-digit decimal numerator over a 10^32 denominator, so
// the conversion never loses precision the way float division would.
// Trailing zero digits are stripped; an all-zero fraction is omitted.
func Format(dt uint64) string {
	sec, frac := split(dt)
	out := formatInt(sec)
	if frac == 0 {
		return out
	}
	num := new(big.Int).Mul(big.NewInt(int64(frac)), pow5_32)
	digits := num.String()
	for len(digits) < 32 {
		digits = "0" + digits
	}
	digits = strings.TrimRight(digits, "0")
	if digits == "" {
		return out
	}
	return out + "." + digits
}

func formatInt(v int64) string {
	return big.NewInt(v).String()
}
