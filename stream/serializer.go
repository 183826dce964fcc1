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

import "encoding/binary"

// ColumnType identifies the fixed-width wire encoding of a user
// column. Only fixed-width integer columns are supported; the spec's
// reference row layout is built entirely out of them.
type ColumnType int

const (
	// ColumnInt64 is an 8-byte big-endian signed integer.
	ColumnInt64 ColumnType = iota
)

// Width returns the on-wire byte width of the column type.
func (t ColumnType) Width() int {
	switch t {
	case ColumnInt64:
		return 8
	default:
		return 0
	}
}

// Column describes one user-visible column of a row, in the fixed
// order it will be serialized.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered list of user columns appended after the fixed
// metadata columns in every serialized row.
type Schema struct {
	Columns []Column
}

// metadataColumnNames lists, in wire order, the six fixed metadata
// columns that precede every row's user columns.
var metadataColumnNames = [...]string{
	"txn_id", "timestamp", "sequence", "partition_id", "site_id", "op_kind",
}

const (
	metadataColumnCount = len(metadataColumnNames)
	rowHeaderWidth      = 4
)

// RowMeta carries the fixed metadata columns prepended to every row.
type RowMeta struct {
	TxnID       int64
	Timestamp   int64
	Sequence    int64
	PartitionID int64
	SiteID      int64
	OpKind      int64
}

// Values holds the user column values for one row, parallel to
// Schema.Columns. Null marks the column as SQL NULL; its on-wire bytes
// are still reserved (zero-filled) so that the frame stays fixed-width.
type Values struct {
	Ints []int64
	Null []bool
}

func nullMaskBytes(totalCols int) int {
	return (totalCols + 7) / 8
}

// SerializedSize returns the exact number of bytes Serialize writes
// for a row under schema, including the 4-byte length header.
func SerializedSize(schema *Schema) int {
	totalCols := metadataColumnCount + len(schema.Columns)
	size := rowHeaderWidth + nullMaskBytes(totalCols)
	size += metadataColumnCount * ColumnInt64.Width()
	for _, c := range schema.Columns {
		size += c.Type.Width()
	}
	return size
}

func setBit(mask []byte, i int) {
	mask[i/8] |= 1 << (7 - uint(i%8))
}

// Serialize writes one row into dst, which must be exactly
// SerializedSize(schema) bytes (typically obtained from
// StreamBlock.Reserve). The frame is: a 4-byte big-endian length
// prefix (not counting itself), a most-significant-bit-first null
// mask covering the metadata columns followed by the user columns,
// the six fixed int64 metadata columns, then the user columns at
// their fixed width. Metadata columns are never null.
func Serialize(dst []byte, schema *Schema, meta RowMeta, vals Values) {
	size := SerializedSize(schema)
	if len(dst) != size {
		panic("stream: Serialize: destination length mismatch")
	}
	totalCols := metadataColumnCount + len(schema.Columns)
	maskLen := nullMaskBytes(totalCols)

	binary.BigEndian.PutUint32(dst[0:rowHeaderWidth], uint32(size-rowHeaderWidth))

	mask := dst[rowHeaderWidth : rowHeaderWidth+maskLen]
	for i := range mask {
		mask[i] = 0
	}

	cursor := rowHeaderWidth + maskLen
	putInt64 := func(v int64) {
		binary.BigEndian.PutUint64(dst[cursor:cursor+8], uint64(v))
		cursor += 8
	}
	putInt64(meta.TxnID)
	putInt64(meta.Timestamp)
	putInt64(meta.Sequence)
	putInt64(meta.PartitionID)
	putInt64(meta.SiteID)
	putInt64(meta.OpKind)

	for i, col := range schema.Columns {
		width := col.Type.Width()
		isNull := i < len(vals.Null) && vals.Null[i]
		if isNull {
			setBit(mask, metadataColumnCount+i)
			for k := 0; k < width; k++ {
				dst[cursor+k] = 0
			}
			cursor += width
			continue
		}
		var v int64
		if i < len(vals.Ints) {
			v = vals.Ints[i]
		}
		switch col.Type {
		case ColumnInt64:
			binary.BigEndian.PutUint64(dst[cursor:cursor+8], uint64(v))
		}
		cursor += width
	}
}

// columnNames returns the full wire column-name list (metadata columns
// followed by the schema's user columns) in serialization order, for
// use in TopEnd.Push.
func columnNames(schema *Schema) []string {
	names := make([]string, 0, metadataColumnCount+len(schema.Columns))
	names = append(names, metadataColumnNames[:]...)
	for _, c := range schema.Columns {
		names = append(names, c.Name)
	}
	return names
}
