// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package stream

import (
	"encoding/binary"
	"testing"
)

func fiveIntSchema() *Schema {
	return &Schema{Columns: []Column{
		{Name: "a", Type: ColumnInt64},
		{Name: "b", Type: ColumnInt64},
		{Name: "c", Type: ColumnInt64},
		{Name: "d", Type: ColumnInt64},
		{Name: "e", Type: ColumnInt64},
	}}
}

func TestSerializedSizeReferenceFrame(t *testing.T) {
	schema := fiveIntSchema()
	if got := SerializedSize(schema); got != 94 {
		t.Fatalf("SerializedSize = %d, want 94", got)
	}
}

func TestSerializeRowLayout(t *testing.T) {
	schema := fiveIntSchema()
	size := SerializedSize(schema)
	buf := make([]byte, size)
	meta := RowMeta{
		TxnID:       11,
		Timestamp:   22,
		Sequence:    33,
		PartitionID: 44,
		SiteID:      55,
		OpKind:      66,
	}
	vals := Values{
		Ints: []int64{1, 2, 3, 4, 5},
		Null: []bool{false, false, true, false, false},
	}
	Serialize(buf, schema, meta, vals)

	gotLen := binary.BigEndian.Uint32(buf[0:4])
	if int(gotLen) != size-4 {
		t.Fatalf("row length prefix = %d, want %d", gotLen, size-4)
	}

	maskLen := nullMaskBytes(metadataColumnCount + len(schema.Columns))
	if maskLen != 2 {
		t.Fatalf("mask length = %d, want 2", maskLen)
	}
	mask := buf[4 : 4+maskLen]
	// Column index 2 of the user columns is metadataColumnCount+2 = 8,
	// MSB-first within the second mask byte.
	nullBit := metadataColumnCount + 2
	byteIdx, bitIdx := nullBit/8, nullBit%8
	if mask[byteIdx]&(1<<(7-uint(bitIdx))) == 0 {
		t.Fatalf("expected null bit set for column 2")
	}
	for i := 0; i < len(mask)*8; i++ {
		if i == nullBit {
			continue
		}
		byteIdx, bitIdx := i/8, i%8
		if mask[byteIdx]&(1<<(7-uint(bitIdx))) != 0 {
			t.Fatalf("unexpected null bit set at column %d", i)
		}
	}

	cursor := 4 + maskLen
	wantMeta := []int64{11, 22, 33, 44, 55, 66}
	for i, want := range wantMeta {
		got := int64(binary.BigEndian.Uint64(buf[cursor : cursor+8]))
		if got != want {
			t.Fatalf("metadata column %d = %d, want %d", i, got, want)
		}
		cursor += 8
	}

	for i, want := range vals.Ints {
		got := int64(binary.BigEndian.Uint64(buf[cursor : cursor+8]))
		if vals.Null[i] {
			if got != 0 {
				t.Fatalf("null user column %d not zero-filled: %d", i, got)
			}
		} else if got != want {
			t.Fatalf("user column %d = %d, want %d", i, got, want)
		}
		cursor += 8
	}

	if cursor != size {
		t.Fatalf("cursor ended at %d, want %d", cursor, size)
	}
}

func TestColumnNamesOrder(t *testing.T) {
	schema := fiveIntSchema()
	names := columnNames(schema)
	want := []string{"txn_id", "timestamp", "sequence", "partition_id", "site_id", "op_kind", "a", "b", "c", "d", "e"}
	if len(names) != len(want) {
		t.Fatalf("len(names) = %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
