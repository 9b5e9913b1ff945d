package schema

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
	"github.com/positive-tech/fpta/pkg/fptaerr"
)

// Schema is the decoded, in-memory form of a table's catalog entry
// (spec §3 "Schema record (stored)"): checksum64, signature32, the
// column shove array, and the composites_block, with composite_offsets
// rebuilt in memory rather than stored (its content is fully
// determined by which columns are composites and in what order).
type Schema struct {
	Checksum64  uint64
	Signature32 uint32
	VersionTSN  uint64
	Columns     []Column
	Composites  []Composite // one entry per IsComposite() column, in column order
}

// Encode serialises s into its catalog entry bytes, computing a fresh
// checksum/signature over the content (spec §5 "Create table": "write
// the schema record with a computed 64-bit checksum").
func (s *Schema) Encode() []byte {
	body := s.encodeBody()
	sig := crc32.ChecksumIEEE(body)
	sum := xxhash.Sum64(body)

	out := make([]byte, 8+4+len(body))
	binary.LittleEndian.PutUint64(out[0:8], sum)
	binary.LittleEndian.PutUint32(out[8:12], sig)
	copy(out[12:], body)
	return out
}

func (s *Schema) encodeBody() []byte {
	out := make([]byte, 0, 4+8+len(s.Columns)*8+32)
	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(s.Columns)))
	out = append(out, tmp[:4]...)
	binary.LittleEndian.PutUint64(tmp[:8], s.VersionTSN)
	out = append(out, tmp[:8]...)

	for _, c := range s.Columns {
		binary.LittleEndian.PutUint64(tmp[:8], uint64(c.Shove))
		out = append(out, tmp[:8]...)
	}
	// composites_block: one {arity uint16, tersely uint8, member[uint16]}
	// record per composite, in the same order as their owning columns.
	for _, comp := range s.Composites {
		var h [3]byte
		binary.LittleEndian.PutUint16(h[:2], uint16(len(comp.Members)))
		if comp.Tersely {
			h[2] = 1
		}
		out = append(out, h[:]...)
		for _, m := range comp.Members {
			var mb [2]byte
			binary.LittleEndian.PutUint16(mb[:], uint16(m))
			out = append(out, mb[:]...)
		}
	}
	return out
}

// Decode parses a catalog entry produced by Encode, verifying the
// stored checksum/signature match the body (spec §3 "Validation").
func Decode(raw []byte) (*Schema, error) {
	if len(raw) < 16 {
		return nil, fptaerr.New(fptaerr.ESchemaCorrupted, "schema record too short")
	}
	wantSum := binary.LittleEndian.Uint64(raw[0:8])
	wantSig := binary.LittleEndian.Uint32(raw[8:12])
	body := raw[12:]
	if xxhash.Sum64(body) != wantSum {
		return nil, fptaerr.New(fptaerr.EBadSign, "schema checksum64 mismatch")
	}
	if crc32.ChecksumIEEE(body) != wantSig {
		return nil, fptaerr.New(fptaerr.EBadSign, "schema signature32 mismatch")
	}

	if len(body) < 12 {
		return nil, fptaerr.New(fptaerr.ESchemaCorrupted, "schema body too short")
	}
	count := binary.LittleEndian.Uint32(body[0:4])
	versionTSN := binary.LittleEndian.Uint64(body[4:12])
	off := 12

	cols := make([]Column, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+8 > len(body) {
			return nil, fptaerr.New(fptaerr.ESchemaCorrupted, "truncated column shove array")
		}
		shove := Shove(binary.LittleEndian.Uint64(body[off : off+8]))
		off += 8
		cols = append(cols, Column{Shove: shove})
	}

	var composites []Composite
	for _, c := range cols {
		if !c.IsComposite() {
			continue
		}
		if off+3 > len(body) {
			return nil, fptaerr.New(fptaerr.ESchemaCorrupted, "truncated composites_block")
		}
		arity := binary.LittleEndian.Uint16(body[off : off+2])
		tersely := body[off+2] != 0
		off += 3
		members := make([]int, 0, arity)
		for j := uint16(0); j < arity; j++ {
			if off+2 > len(body) {
				return nil, fptaerr.New(fptaerr.ESchemaCorrupted, "truncated composite member list")
			}
			members = append(members, int(binary.LittleEndian.Uint16(body[off:off+2])))
			off += 2
		}
		composites = append(composites, Composite{Shove: c.Shove, Members: members, Tersely: tersely})
	}

	return &Schema{
		Checksum64:  wantSum,
		Signature32: wantSig,
		VersionTSN:  versionTSN,
		Columns:     cols,
		Composites:  composites,
	}, nil
}

// ColumnIndex resolves a column's ordinal by matching its shove's name
// hash against the schema record (spec §5 "Refresh": "resolve the
// column's ordinal by locating the matching shove"). Returns
// fptaerr.ENotFound if no column matches.
func (s *Schema) ColumnIndex(want Shove) (int, error) {
	for i, c := range s.Columns {
		if SameColumn(c.Shove, want) {
			return i, nil
		}
	}
	return 0, fptaerr.New(fptaerr.ENotFound, "column with hash %d not present in schema", want.NameHash())
}

// Primary returns the table's primary-index column, always column 0
// (spec §3 "A table's columns are sorted so that the primary index is
// index 0").
func (s *Schema) Primary() Column { return s.Columns[0] }
