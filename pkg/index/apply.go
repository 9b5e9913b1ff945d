package index

import (
	"math"

	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/value"
)

// applyOp computes column_inplace's new field value (spec §4.4):
// arithmetic runs in the field's native domain (signed, unsigned, or
// float) with bounds taken from kind's bit width; bes always computes
// in float64 regardless of kind, then converts back.
func applyOp(kind value.Kind, op InplaceOp, old, operand value.Value, alpha float64) (value.Value, error) {
	if op == OpBes {
		return applyBes(kind, old, operand, alpha)
	}
	switch kind.Base() {
	case value.KindInt32:
		return applySignedOp(op, old.I, operand.I, math.MinInt32, math.MaxInt32, func(v int64) value.Value { return value.Int32(int32(v)) })
	case value.KindInt64:
		return applySignedOp(op, old.I, operand.I, math.MinInt64, math.MaxInt64, value.Int64)
	case value.KindUint16:
		return applyUnsignedOp(op, old.U, operand.U, math.MaxUint16, func(v uint64) value.Value { return value.Uint16(uint16(v)) })
	case value.KindUint32:
		return applyUnsignedOp(op, old.U, operand.U, math.MaxUint32, func(v uint64) value.Value { return value.Uint32(uint32(v)) })
	case value.KindUint64:
		return applyUnsignedOp(op, old.U, operand.U, math.MaxUint64, value.Uint64)
	case value.KindDatetime:
		return applyUnsignedOp(op, old.DT, operand.DT, math.MaxUint64, value.Datetime)
	case value.KindFP32:
		return applyFloatOp(op, old.F, operand.F, func(v float64) value.Value { return value.FP32(float32(v)) })
	case value.KindFP64:
		return applyFloatOp(op, old.F, operand.F, value.FP64)
	default:
		return value.Value{}, fptaerr.New(fptaerr.ETypeMismatch, "kind %s has no inplace arithmetic", kind)
	}
}

func applySignedOp(op InplaceOp, a, b, lo, hi int64, wrap func(int64) value.Value) (value.Value, error) {
	switch op {
	case OpSaturatedAdd:
		return wrap(saturatedAddInt64(a, b, lo, hi)), nil
	case OpSaturatedSub:
		return wrap(saturatedSubInt64(a, b, lo, hi)), nil
	case OpSaturatedMul:
		return wrap(saturatedMulInt64(a, b, lo, hi)), nil
	case OpSaturatedDiv:
		q, err := saturatedDivInt64(a, b, lo, hi)
		if err != nil {
			return value.Value{}, err
		}
		return wrap(q), nil
	case OpMin:
		if b < a {
			return wrap(b), nil
		}
		return wrap(a), nil
	case OpMax:
		if b > a {
			return wrap(b), nil
		}
		return wrap(a), nil
	default:
		return value.Value{}, fptaerr.New(fptaerr.EInval, "unknown inplace op %d", op)
	}
}

func applyUnsignedOp(op InplaceOp, a, b, max uint64, wrap func(uint64) value.Value) (value.Value, error) {
	switch op {
	case OpSaturatedAdd:
		return wrap(saturatedAddUint64(a, b, max)), nil
	case OpSaturatedSub:
		return wrap(saturatedSubUint64(a, b)), nil
	case OpSaturatedMul:
		return wrap(saturatedMulUint64(a, b, max)), nil
	case OpSaturatedDiv:
		q, err := saturatedDivUint64(a, b)
		if err != nil {
			return value.Value{}, err
		}
		return wrap(q), nil
	case OpMin:
		if b < a {
			return wrap(b), nil
		}
		return wrap(a), nil
	case OpMax:
		if b > a {
			return wrap(b), nil
		}
		return wrap(a), nil
	default:
		return value.Value{}, fptaerr.New(fptaerr.EInval, "unknown inplace op %d", op)
	}
}

func applyFloatOp(op InplaceOp, a, b float64, wrap func(float64) value.Value) (value.Value, error) {
	switch op {
	case OpSaturatedAdd:
		return wrap(a + b), nil
	case OpSaturatedSub:
		return wrap(a - b), nil
	case OpSaturatedMul:
		return wrap(a * b), nil
	case OpSaturatedDiv:
		if b == 0 {
			return value.Value{}, fptaerr.New(fptaerr.EOverflow, "division by zero")
		}
		return wrap(a / b), nil
	case OpMin:
		return wrap(math.Min(a, b)), nil
	case OpMax:
		return wrap(math.Max(a, b)), nil
	default:
		return value.Value{}, fptaerr.New(fptaerr.EInval, "unknown inplace op %d", op)
	}
}

// applyBes computes s_t = alpha*sample + (1-alpha)*s_(t-1) in float64
// regardless of the column's native domain, then converts back (spec
// §4.4 "bes (Basic Exponential Smoothing)").
func applyBes(kind value.Kind, old, sample value.Value, alpha float64) (value.Value, error) {
	a := asFloat64(old)
	x := asFloat64(sample)
	result := alpha*x + (1-alpha)*a
	switch kind.Base() {
	case value.KindInt32:
		return value.Int32(int32(clampFloatToInt(result, math.MinInt32, math.MaxInt32))), nil
	case value.KindInt64:
		return value.Int64(clampFloatToInt(result, math.MinInt64, math.MaxInt64)), nil
	case value.KindUint16:
		return value.Uint16(uint16(clampFloatToUint(result, math.MaxUint16))), nil
	case value.KindUint32:
		return value.Uint32(uint32(clampFloatToUint(result, math.MaxUint32))), nil
	case value.KindUint64:
		return value.Uint64(clampFloatToUint(result, math.MaxUint64)), nil
	case value.KindDatetime:
		return value.Datetime(clampFloatToUint(result, math.MaxUint64)), nil
	case value.KindFP32:
		return value.FP32(float32(result)), nil
	case value.KindFP64:
		return value.FP64(result), nil
	default:
		return value.Value{}, fptaerr.New(fptaerr.ETypeMismatch, "kind %s has no bes arithmetic", kind)
	}
}

func asFloat64(v value.Value) float64 {
	switch v.Kind.Base() {
	case value.KindInt32, value.KindInt64:
		return float64(v.I)
	case value.KindUint16, value.KindUint32, value.KindUint64:
		return float64(v.U)
	case value.KindDatetime:
		return float64(v.DT)
	case value.KindFP32, value.KindFP64:
		return v.F
	default:
		return 0
	}
}

func clampFloatToInt(f float64, lo, hi int64) int64 {
	if f <= float64(lo) {
		return lo
	}
	if f >= float64(hi) {
		return hi
	}
	return int64(math.Round(f))
}

func clampFloatToUint(f float64, max uint64) uint64 {
	if f <= 0 {
		return 0
	}
	if f >= float64(max) {
		return max
	}
	return uint64(math.Round(f))
}

// sameValue reports whether old and next hold the same logical number,
// i.e. whether ColumnInplace's write would be a no-op (spec §4.4:
// "Result is ... NoData if unchanged").
func sameValue(kind value.Kind, old, next value.Value) bool {
	switch kind.Base() {
	case value.KindInt32, value.KindInt64:
		return old.I == next.I
	case value.KindUint16, value.KindUint32, value.KindUint64:
		return old.U == next.U
	case value.KindDatetime:
		return old.DT == next.DT
	case value.KindFP32, value.KindFP64:
		return old.F == next.F
	default:
		return false
	}
}
