package memkv

// The physical goleveldb keyspace has to emulate several logically
// independent, named, variable-length-key sub-databases. Each
// component (dbi name, user key, and — for dup-sort dbis — the dup
// data) is encoded with an order-preserving null-escape: a literal
// 0x00 in the component becomes 0x00 0xFF, and the component is closed
// with a 0x00 0x00 terminator. Concatenating encoded components keeps
// byte-lexicographic order equal to the tuple order of the decoded
// components, which is what lets range scans on the user key work
// directly against the underlying ordered keyspace without decoding
// the dbi-name or (for cursors) the data component first.

func escapeSegment(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, c)
		}
	}
	return append(out, 0x00, 0x00)
}

// unescapeSegment decodes one escaped-and-terminated segment from the
// front of buf, returning the decoded value and the number of
// physical bytes it occupied.
func unescapeSegment(buf []byte) (value []byte, n int) {
	for i := 0; i < len(buf); {
		if buf[i] == 0x00 && i+1 < len(buf) {
			if buf[i+1] == 0x00 {
				return value, i + 2
			}
			if buf[i+1] == 0xFF {
				value = append(value, 0x00)
				i += 2
				continue
			}
		}
		value = append(value, buf[i])
		i++
	}
	return value, len(buf)
}

func concatSegments(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// rowKey is the physical key for a non-dup-sort dbi's (or a dup-sort
// dbi's key-only prefix).
func rowKey(name, key []byte) []byte {
	return concatSegments(escapeSegment(name), escapeSegment(key))
}

// rowKeyDup is the physical key for one (key,data) pair in a dup-sort
// dbi; rowKey(name,key) is always a strict, order-correct prefix of
// every rowKeyDup(name,key,*).
func rowKeyDup(name, key, data []byte) []byte {
	return concatSegments(escapeSegment(name), escapeSegment(key), escapeSegment(data))
}

// systemKey builds a physical key outside every dbi's row space: it
// always starts with a literal 0x00, which no row key can start with
// since OpenDbi/CreateDbi reject names whose first byte is 0x00.
func systemKey(name []byte) []byte {
	return concatSegments([]byte{0x00}, escapeSegment(name))
}
