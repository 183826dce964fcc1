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

import "fmt"

// TopEnd is the consumer boundary a StreamBuffer hands sealed blocks
// to. Implementations are expected to durably persist or forward the
// bytes; the core buffer has no opinion on how.
type TopEnd interface {
	// Push hands a completed block to the consumer. Push does not take
	// ownership of block's bytes: the buffer may reuse or free the
	// underlying storage as soon as Push returns, so an implementation
	// that needs to retain the bytes past the call must copy them
	// before returning. sync requests that the consumer not return
	// until the block is durable; endOfStream marks the block as the
	// last one of its generation.
	Push(generationID int64, partitionID int32, signature string, columnNames []string, block []byte, sync bool, endOfStream bool) error

	// QueuedBytes reports how many bytes the consumer is still
	// holding that have not been fully persisted or delivered. It is
	// purely informational, for upstream backpressure decisions.
	QueuedBytes() int64
}

// MemTopEnd is an in-memory TopEnd, primarily useful for tests and the
// demo CLI. It copies every pushed block so the caller is free to
// reuse or discard its buffers immediately after Push returns.
type MemTopEnd struct {
	Blocks []PushedBlock
}

// PushedBlock records one call to MemTopEnd.Push.
type PushedBlock struct {
	GenerationID int64
	PartitionID  int32
	Signature    string
	ColumnNames  []string
	Bytes        []byte
	Sync         bool
	EndOfStream  bool
}

// Push implements TopEnd.
func (m *MemTopEnd) Push(generationID int64, partitionID int32, signature string, columnNames []string, block []byte, sync bool, endOfStream bool) error {
	cp := make([]byte, len(block))
	copy(cp, block)
	names := make([]string, len(columnNames))
	copy(names, columnNames)
	m.Blocks = append(m.Blocks, PushedBlock{
		GenerationID: generationID,
		PartitionID:  partitionID,
		Signature:    signature,
		ColumnNames:  names,
		Bytes:        cp,
		Sync:         sync,
		EndOfStream:  endOfStream,
	})
	return nil
}

// QueuedBytes implements TopEnd. MemTopEnd never queues anything past
// the call to Push, so it always reports zero.
func (m *MemTopEnd) QueuedBytes() int64 { return 0 }

// FailingTopEnd wraps another TopEnd and fails every Nth push, for
// exercising StreamBuffer's handling of a consumer error.
type FailingTopEnd struct {
	Inner TopEnd
	Every int
	count int
}

// Push implements TopEnd.
func (f *FailingTopEnd) Push(generationID int64, partitionID int32, signature string, columnNames []string, block []byte, sync bool, endOfStream bool) error {
	f.count++
	if f.Every > 0 && f.count%f.Every == 0 {
		return fmt.Errorf("failingtopend: forced failure on push #%d", f.count)
	}
	return f.Inner.Push(generationID, partitionID, signature, columnNames, block, sync, endOfStream)
}

// QueuedBytes implements TopEnd.
func (f *FailingTopEnd) QueuedBytes() int64 { return f.Inner.QueuedBytes() }
