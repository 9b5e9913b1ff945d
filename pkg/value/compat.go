package value

// Compatible reports whether a query/bind Value can stand in for a
// column of the given Kind (spec §4.2 "Value<->Column compatibility"):
// exact kind match, any pseudo-value (begin/end/epsilon/invalid/shoved),
// or same-size numeric widening is never implicit -- only exact Base
// match, mirroring the source library's strict column type checking.
func Compatible(column Kind, v Value) bool {
	if v.Pseudo != PseudoNone {
		return true
	}
	return column.Base() == v.Kind.Base() && column.IsArray() == v.Kind.IsArray()
}

// CompatibleRange reports whether lo/hi can bound a range scan over
// column: each side must be Compatible, or a pseudo endpoint, and an
// Epsilon may appear on at most one side paired with a real value.
func CompatibleRange(column Kind, lo, hi Value) bool {
	if !Compatible(column, lo) || !Compatible(column, hi) {
		return false
	}
	if lo.Pseudo == PseudoEpsilon && hi.Pseudo == PseudoEpsilon {
		return false
	}
	return true
}
