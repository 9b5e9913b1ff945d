package value

import "testing"

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{KindNull, "null"},
		{KindUint16, "uint16"},
		{KindInt64, "int64"},
		{KindUint32 | ArrayFlag, "uint32[]"},
		{KindCstr, "cstr"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.want {
			t.Errorf("Kind(%d).String() = %q, want %q", c.k, got, c.want)
		}
	}
}

func TestKindFixedWidth(t *testing.T) {
	cases := []struct {
		k    Kind
		want int
	}{
		{KindUint16, 2},
		{KindInt32, 4},
		{KindFP32, 4},
		{KindInt64, 8},
		{KindDatetime, 8},
		{KindB96, 12},
		{KindB128, 16},
		{KindB160, 20},
		{KindB256, 32},
		{KindCstr, 0},
		{KindOpaque, 0},
		{KindNested, 0},
	}
	for _, c := range cases {
		if got := c.k.FixedWidth(); got != c.want {
			t.Errorf("Kind(%v).FixedWidth() = %d, want %d", c.k, got, c.want)
		}
	}
}

func TestDenilRoundtrip(t *testing.T) {
	if !Uint16(DenilUint16).IsDenil() {
		t.Error("uint16 denil not detected")
	}
	if !Int32(DenilInt32).IsDenil() {
		t.Error("int32 denil not detected")
	}
	if !Uint64(DenilUint64).IsDenil() {
		t.Error("uint64 denil not detected")
	}
	if !FP64(DenilFP64()).IsDenil() {
		t.Error("fp64 denil not detected")
	}
	if Uint16(0).IsDenil() {
		t.Error("zero uint16 must not be denil")
	}
	if Int64(5).IsDenil() {
		t.Error("non-denil int64 flagged as denil")
	}
}

func TestDatetimeConversionExact(t *testing.T) {
	for _, ns := range []uint64{0, 1, 999_999_999, 500_000_000, 123_456_789} {
		frac := NsToFractional(ns)
		back := FractionalToNs(frac)
		// Round-trip is exact only up to the granularity of 2^-32 seconds
		// versus 1e-9 seconds; allow the single-unit rounding inherent in
		// integer division both directions.
		diff := int64(back) - int64(ns)
		if diff < -1 || diff > 1 {
			t.Errorf("ns=%d -> frac=%d -> ns=%d, diff %d too large", ns, frac, back, diff)
		}
	}
}

func TestDatetimeFormat(t *testing.T) {
	dt := join(1_700_000_000, 0)
	if got := Format(dt); got != "1700000000" {
		t.Errorf("Format(no-frac) = %q, want %q", got, "1700000000")
	}

	half := join(0, 1<<31) // exactly 0.5
	if got := Format(half); got != "0.5" {
		t.Errorf("Format(half) = %q, want %q", got, "0.5")
	}
}

func TestFromUnixNsRoundtrip(t *testing.T) {
	in := int64(1_700_000_000_500_000_000)
	dt := FromUnixNs(in)
	out := ToUnixNs(dt)
	diff := out - in
	if diff < -1 || diff > 1 {
		t.Errorf("FromUnixNs/ToUnixNs roundtrip drifted: in=%d out=%d", in, out)
	}
}

func TestCompatible(t *testing.T) {
	if !Compatible(KindInt64, Int64(5)) {
		t.Error("int64 column should accept int64 value")
	}
	if Compatible(KindInt64, Uint64(5)) {
		t.Error("int64 column must reject uint64 value")
	}
	if !Compatible(KindInt64, Begin()) {
		t.Error("any column should accept pseudo-begin")
	}
	if !Compatible(KindUint32|ArrayFlag, Value{Kind: KindUint32 | ArrayFlag}) {
		t.Error("array column should accept matching array value")
	}
	if Compatible(KindUint32, Value{Kind: KindUint32 | ArrayFlag}) {
		t.Error("scalar column must reject array value")
	}
}

func TestCompatibleRangeRejectsDoubleEpsilon(t *testing.T) {
	if CompatibleRange(KindInt64, Epsilon(), Epsilon()) {
		t.Error("range with epsilon on both sides must be rejected")
	}
	if !CompatibleRange(KindInt64, Int64(1), Epsilon()) {
		t.Error("range with one epsilon side should be accepted")
	}
}
