package schema

// dbiAlphabet is the 64-symbol alphabet spec §9 "Sub-database naming"
// specifies, ordered high-to-low significance: '@', digits, lowercase,
// uppercase, underscore.
const dbiAlphabet = "@0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"

// dbiNameLen is 12 six-bit groups (72 bits), wide enough to hold a full
// 64-bit shove zero-extended in the low bits without any group
// straddling a byte of meaning.
const dbiNameLen = 12

// DbiName derives a stable sub-database name from a shove (spec §9
// "Sub-database naming"): the catalog itself is named from shove 0.
func DbiName(s Shove) string {
	var buf [dbiNameLen]byte
	v := uint64(s)
	for i := dbiNameLen - 1; i >= 0; i-- {
		buf[i] = dbiAlphabet[v&0x3F]
		v >>= 6
	}
	return string(buf[:])
}

// CatalogDbiName is the name of the schema catalog's own sub-database.
func CatalogDbiName() string { return DbiName(0) }
