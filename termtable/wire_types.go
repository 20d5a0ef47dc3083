package termtable

import "github.com/gogo/protobuf/proto"

// Wire types for TermTable-<shard>.bin. These are plain structs tagged for
// gogo/protobuf's reflection-based Marshal/Unmarshal (proto.Message), not
// protoc-generated code: BitFunnel's TermTable wire format is small and
// stable enough that hand-tagging it avoids a codegen step, the same way
// biopb/coord.go hand-writes convenience methods around a handful of
// packed-coordinate fields rather than growing the generated surface.

// WireRowId mirrors rows.RowId.
type WireRowId struct {
	Rank  uint32 `protobuf:"varint,1,opt,name=rank,proto3" json:"rank,omitempty"`
	Index uint32 `protobuf:"varint,2,opt,name=index,proto3" json:"index,omitempty"`
}

func (m *WireRowId) Reset()         { *m = WireRowId{} }
func (m *WireRowId) String() string { return proto.CompactTextString(m) }
func (*WireRowId) ProtoMessage()    {}

// WireExplicitEntry is one (hash -> {start,count}) explicit-term entry.
type WireExplicitEntry struct {
	Hash  uint64 `protobuf:"varint,1,opt,name=hash,proto3" json:"hash,omitempty"`
	Start uint32 `protobuf:"varint,2,opt,name=start,proto3" json:"start,omitempty"`
	Count uint32 `protobuf:"varint,3,opt,name=count,proto3" json:"count,omitempty"`
}

func (m *WireExplicitEntry) Reset()         { *m = WireExplicitEntry{} }
func (m *WireExplicitEntry) String() string { return proto.CompactTextString(m) }
func (*WireExplicitEntry) ProtoMessage()    {}

// WireAdhocEntry is one ((idf,gram) -> {start,count}) adhoc-recipe entry.
type WireAdhocEntry struct {
	Idf   uint32 `protobuf:"varint,1,opt,name=idf,proto3" json:"idf,omitempty"`
	Gram  uint32 `protobuf:"varint,2,opt,name=gram,proto3" json:"gram,omitempty"`
	Start uint32 `protobuf:"varint,3,opt,name=start,proto3" json:"start,omitempty"`
	Count uint32 `protobuf:"varint,4,opt,name=count,proto3" json:"count,omitempty"`
}

func (m *WireAdhocEntry) Reset()         { *m = WireAdhocEntry{} }
func (m *WireAdhocEntry) String() string { return proto.CompactTextString(m) }
func (*WireAdhocEntry) ProtoMessage()    {}

// WireRankCounts is the per-rank {explicitCount, adhocCount} pair.
type WireRankCounts struct {
	Rank     uint32 `protobuf:"varint,1,opt,name=rank,proto3" json:"rank,omitempty"`
	Explicit uint32 `protobuf:"varint,2,opt,name=explicit,proto3" json:"explicit,omitempty"`
	Adhoc    uint32 `protobuf:"varint,3,opt,name=adhoc,proto3" json:"adhoc,omitempty"`
}

func (m *WireRankCounts) Reset()         { *m = WireRankCounts{} }
func (m *WireRankCounts) String() string { return proto.CompactTextString(m) }
func (*WireRankCounts) ProtoMessage()    {}

// WireTermTable is the top-level message persisted to TermTable-<shard>.bin.
type WireTermTable struct {
	ExplicitRows  []*WireRowId        `protobuf:"bytes,1,rep,name=explicit_rows,json=explicitRows,proto3" json:"explicit_rows,omitempty"`
	Explicit      []*WireExplicitEntry `protobuf:"bytes,2,rep,name=explicit,proto3" json:"explicit,omitempty"`
	AdhocRanks    []uint32            `protobuf:"varint,3,rep,packed,name=adhoc_ranks,json=adhocRanks,proto3" json:"adhoc_ranks,omitempty"`
	Adhoc         []*WireAdhocEntry   `protobuf:"bytes,4,rep,name=adhoc,proto3" json:"adhoc,omitempty"`
	RowCounts     []*WireRankCounts   `protobuf:"bytes,5,rep,name=row_counts,json=rowCounts,proto3" json:"row_counts,omitempty"`
	UserFactCount uint32              `protobuf:"varint,6,opt,name=user_fact_count,json=userFactCount,proto3" json:"user_fact_count,omitempty"`
}

func (m *WireTermTable) Reset()         { *m = WireTermTable{} }
func (m *WireTermTable) String() string { return proto.CompactTextString(m) }
func (*WireTermTable) ProtoMessage()    {}
