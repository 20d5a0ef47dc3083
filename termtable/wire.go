package termtable

import (
	"encoding/binary"

	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"

	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
)

// wireChecksumKey is a fixed 32-byte HighwayHash key used to checksum
// TermTable-<shard>.bin bodies. It is a process-wide constant, not a
// secret: the checksum only needs to catch accidental truncation/corruption
// of a config-directory artifact, not resist a deliberate adversary.
var wireChecksumKey = [32]byte{
	0x42, 0x69, 0x74, 0x46, 0x75, 0x6e, 0x6e, 0x65,
	0x6c, 0x54, 0x65, 0x72, 0x6d, 0x54, 0x61, 0x62,
	0x6c, 0x65, 0x57, 0x69, 0x72, 0x65, 0x46, 0x6f,
	0x72, 0x6d, 0x61, 0x74, 0x00, 0x01, 0x02, 0x03,
}

// Marshal serializes a sealed TermTable to the TermTable-<shard>.bin wire
// format: a gogo/protobuf-encoded body, snappy-compressed, prefixed with its
// uncompressed length and a HighwayHash checksum of the compressed bytes.
func (t *TermTable) Marshal() ([]byte, error) {
	t.mustBeSealed("Marshal")

	msg := &WireTermTable{UserFactCount: uint32(t.userFactCount)}
	for _, r := range t.explicitRows {
		msg.ExplicitRows = append(msg.ExplicitRows, &WireRowId{Rank: uint32(r.Rank), Index: uint32(r.Index)})
	}
	for hash, packed := range t.explicit {
		msg.Explicit = append(msg.Explicit, &WireExplicitEntry{
			Hash:  uint64(hash),
			Start: uint32(packed.Start()),
			Count: uint32(packed.Count()),
		})
	}
	for _, rank := range t.adhocRanks {
		msg.AdhocRanks = append(msg.AdhocRanks, uint32(rank))
	}
	for key, packed := range t.adhocByKey {
		msg.Adhoc = append(msg.Adhoc, &WireAdhocEntry{
			Idf:   uint32(key.Idf),
			Gram:  uint32(key.Gram),
			Start: uint32(packed.Start()),
			Count: uint32(packed.Count()),
		})
	}
	for r := rows.Rank(0); r <= rows.MaxRank; r++ {
		c := t.rowCounts[r]
		if c.Explicit == 0 && c.Adhoc == 0 {
			continue
		}
		msg.RowCounts = append(msg.RowCounts, &WireRankCounts{
			Rank:     uint32(r),
			Explicit: uint32(c.Explicit),
			Adhoc:    uint32(c.Adhoc),
		})
	}

	body, err := proto.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "termtable: marshal protobuf body")
	}
	compressed := snappy.Encode(nil, body)

	checksum, err := highwayhash.New64(wireChecksumKey[:])
	if err != nil {
		return nil, errors.Wrap(err, "termtable: construct checksum")
	}
	checksum.Write(compressed) // nolint: errcheck

	out := make([]byte, 0, 16+len(compressed))
	var header [16]byte
	binary.LittleEndian.PutUint64(header[0:8], uint64(len(body)))
	binary.LittleEndian.PutUint64(header[8:16], checksum.Sum64())
	out = append(out, header[:]...)
	out = append(out, compressed...)
	return out, nil
}

// Unmarshal reconstructs a sealed TermTable from the bytes produced by
// Marshal. It is the read half of spec property #4 (TermTable round-trip).
func Unmarshal(data []byte) (*TermTable, error) {
	if len(data) < 16 {
		return nil, errors.New("termtable: wire data too short")
	}
	uncompressedLen := binary.LittleEndian.Uint64(data[0:8])
	wantChecksum := binary.LittleEndian.Uint64(data[8:16])
	compressed := data[16:]

	checksum, err := highwayhash.New64(wireChecksumKey[:])
	if err != nil {
		return nil, errors.Wrap(err, "termtable: construct checksum")
	}
	checksum.Write(compressed) // nolint: errcheck
	if checksum.Sum64() != wantChecksum {
		return nil, errors.New("termtable: checksum mismatch, corrupt TermTable artifact")
	}

	body, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrap(err, "termtable: snappy decode")
	}
	if uint64(len(body)) != uncompressedLen {
		return nil, errors.New("termtable: decompressed length mismatch")
	}

	var msg WireTermTable
	if err := proto.Unmarshal(body, &msg); err != nil {
		return nil, errors.Wrap(err, "termtable: unmarshal protobuf body")
	}

	t := New()
	for _, r := range msg.ExplicitRows {
		t.explicitRows = append(t.explicitRows, rows.RowId{Rank: rows.Rank(r.Rank), Index: rows.RowIndex(r.Index)})
	}
	for _, e := range msg.Explicit {
		t.explicit[term.Hash(e.Hash)] = rows.Pack(int(e.Start), int(e.Count), rows.Explicit)
	}
	for _, r := range msg.AdhocRanks {
		t.adhocRanks = append(t.adhocRanks, rows.Rank(r))
	}
	for _, a := range msg.Adhoc {
		t.adhocByKey[adhocKey{Idf: term.IdfX10(a.Idf), Gram: uint8(a.Gram)}] = rows.Pack(int(a.Start), int(a.Count), rows.Adhoc)
	}
	for _, rc := range msg.RowCounts {
		t.rowCounts[rc.Rank] = rankCounts{Explicit: int(rc.Explicit), Adhoc: int(rc.Adhoc)}
	}
	t.userFactCount = int(msg.UserFactCount)
	t.Seal()
	return t, nil
}
