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

// exportdump drives a StreamBuffer with synthetic rows and reports the
// blocks it pushes, for exercising the export buffer outside of a real
// transaction executor.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/cove9988/voltdb/partition"
	"github.com/cove9988/voltdb/sink"
	"github.com/cove9988/voltdb/stream"
)

func main() {
	rows := flag.Int("rows", 1000, "number of synthetic rows to append")
	partitions := flag.Int("partitions", 4, "number of synthetic partitions to route across")
	capacity := flag.Int("capacity", 1<<16, "default block capacity in bytes")
	checksum := flag.Bool("checksum", false, "wrap the sink in a checksumming TopEnd")
	flag.Parse()

	signature := uuid.NewString()
	schema := &stream.Schema{Columns: []stream.Column{
		{Name: "c0", Type: stream.ColumnInt64},
		{Name: "c1", Type: stream.ColumnInt64},
		{Name: "c2", Type: stream.ColumnInt64},
		{Name: "c3", Type: stream.ColumnInt64},
		{Name: "c4", Type: stream.ColumnInt64},
	}}

	var topEnd stream.TopEnd = &stream.MemTopEnd{}
	if *checksum {
		topEnd = &sink.ChecksummingTopEnd{Inner: topEnd}
	}

	router := partition.NewRouter(signature, *partitions)
	buf := stream.New(schema, topEnd, stream.Config{
		Signature:       signature,
		DefaultCapacity: *capacity,
	})

	var lastCommitted int64 = -1
	for i := 0; i < *rows; i++ {
		txn := int64(i)
		p := router.Partition(txn)
		row := stream.Row{
			Timestamp: int64(i),
			SiteID:    int64(p),
			OpKind:    0,
			Values: stream.Values{
				Ints: []int64{txn, txn * 2, txn * 3, txn * 4, txn * 5},
			},
		}
		if _, err := buf.Append(lastCommitted, txn, int64(i), p, 0, row); err != nil {
			fmt.Fprintf(os.Stderr, "append row %d: %s\n", i, err)
			os.Exit(1)
		}
		lastCommitted = txn
	}
	if err := buf.PeriodicFlush(-1, lastCommitted, lastCommitted); err != nil {
		fmt.Fprintf(os.Stderr, "final flush: %s\n", err)
		os.Exit(1)
	}

	if mem, ok := unwrapMem(topEnd); ok {
		for i, blk := range mem.Blocks {
			fmt.Printf("block %d: gen=%d partition=%d bytes=%d end_of_stream=%t\n",
				i, blk.GenerationID, blk.PartitionID, len(blk.Bytes), blk.EndOfStream)
		}
	}
	fmt.Printf("queued bytes: %d\n", topEnd.QueuedBytes())
}

func unwrapMem(t stream.TopEnd) (*stream.MemTopEnd, bool) {
	switch v := t.(type) {
	case *stream.MemTopEnd:
		return v, true
	case *sink.ChecksummingTopEnd:
		return unwrapMem(v.Inner)
	default:
		return nil, false
	}
}
