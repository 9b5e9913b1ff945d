package keycodec

import (
	"github.com/positive-tech/fpta/pkg/fptaerr"
	"github.com/positive-tech/fpta/pkg/schema"
	"github.com/positive-tech/fpta/pkg/value"
)

// ValueToKey derives an index key for v under column (spec §4.3
// "value_to_key(shove, value, copy)"). If copy is false the returned
// key's bytes may alias v.Bytes; otherwise they are always a fresh
// copy.
func ValueToKey(column schema.Column, v value.Value, copyBytes bool) (Key, error) {
	cmp := ComparatorFor(column.Flags(), column.Kind())

	switch v.Pseudo {
	case value.PseudoBegin, value.PseudoEnd, value.PseudoEpsilon, value.PseudoInvalid:
		return Key{Pseudo: v.Pseudo, Comparator: cmp}, nil
	}

	if v.IsNil() {
		if !column.IsNullable() {
			return Key{}, fptaerr.New(fptaerr.ETypeMismatch, "column is not nullable")
		}
		return nilKey(column, cmp)
	}

	if !value.Compatible(column.Kind(), v) {
		return Key{}, fptaerr.New(fptaerr.ETypeMismatch, "value kind %s incompatible with column kind %s", v.Kind, column.Kind())
	}

	if !column.Flags().IsOrdered() {
		raw := rawBytesOf(v)
		return Key{Bytes: HashUnordered(raw), Comparator: cmp}, nil
	}

	if isFixedNumeric(column.Kind()) {
		b, err := numericKey(v)
		if err != nil {
			return Key{}, err
		}
		return Key{Bytes: maybeCopy(b, copyBytes), Comparator: cmp}, nil
	}

	switch column.Kind().Base() {
	case value.KindB96, value.KindB128, value.KindB160, value.KindB256:
		want := column.Kind().FixedWidth()
		if len(v.Bytes) != want {
			return Key{}, fptaerr.New(fptaerr.EDataLenMismatch, "fixed opaque key wants %d bytes, got %d", want, len(v.Bytes))
		}
		return Key{Bytes: maybeCopy(v.Bytes, copyBytes), Comparator: cmp}, nil
	case value.KindCstr, value.KindOpaque, value.KindNested:
		return stringLikeKey(column, v.Bytes, cmp, copyBytes)
	default:
		return Key{}, fptaerr.New(fptaerr.ETypeMismatch, "kind %s has no key encoding", column.Kind())
	}
}

func rawBytesOf(v value.Value) []byte {
	if len(v.Bytes) > 0 || v.Kind.IsVariableLength() {
		return v.Bytes
	}
	b, err := numericKey(v)
	if err != nil {
		return nil
	}
	return b
}

func maybeCopy(b []byte, copyBytes bool) []byte {
	if !copyBytes {
		return b
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// stringLikeKey applies rules 3/4/6 together: short values are emitted
// as-is (tagged nullable-notnil if the column is nullable), long values
// are truncated+hashed first and then tagged.
func stringLikeKey(column schema.Column, raw []byte, cmp Comparator, copyBytes bool) (Key, error) {
	reverse := column.Flags().IsReverse()
	body := raw
	if len(raw) > MaxKeylen {
		body = shoveLongKey(raw, reverse)
	} else {
		body = maybeCopy(raw, copyBytes)
	}
	if column.IsNullable() {
		body = withNotnilPrefix(body, reverse)
	}
	return Key{Bytes: body, Comparator: cmp}, nil
}

func nilKey(column schema.Column, cmp Comparator) (Key, error) {
	if k := nilKeyForNullable(column.Kind(), column.Flags().IsReverse()); k != nil {
		return Key{Bytes: k, Comparator: cmp}, nil
	}
	width := MaxKeylen + NotnilPrefixLen
	if column.Kind().FixedWidth() > 0 {
		width = column.Kind().FixedWidth() + NotnilPrefixLen
	}
	return Key{Bytes: nilNonNumericKey(width, column.Flags().IsReverse()), Comparator: cmp}, nil
}
