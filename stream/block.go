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

// BlockAllocator supplies the owned byte storage for a StreamBlock.
// Implementations may return heap-backed slices (the default) or
// recycle memory from a fixed pool (see package blockalloc). Alloc
// must return a slice of exactly n bytes; Free returns a slice
// previously produced by Alloc on the same allocator and is never
// called twice for the same slice.
type BlockAllocator interface {
	Alloc(n int) []byte
	Free(buf []byte)
}

type heapAllocator struct{}

func (heapAllocator) Alloc(n int) []byte { return make([]byte, n) }
func (heapAllocator) Free([]byte)        {}

// DefaultAllocator allocates and discards ordinary Go heap memory.
var DefaultAllocator BlockAllocator = heapAllocator{}

// StreamBlock is a single owned byte buffer carved out of the stream's
// address space. Rows are appended to it via Reserve until it is cut
// and handed to a TopEnd; its storage is returned to the allocator as
// soon as the push returns, so the consumer keeps only what it copied.
//
// A StreamBlock's seq is a buffer-local monotonically increasing
// identity, not a pointer, so that a Mark captured while a block is
// current can still be recognized after the block has been displaced
// into a pending chain or cut away entirely.
type StreamBlock struct {
	seq             uint64
	buf             []byte
	uso             uint64
	offset          int
	capacity        int
	generationID    int64
	committedOffset int
}

func newStreamBlock(seq uint64, startUSO uint64, capacity int, generationID int64, alloc BlockAllocator) *StreamBlock {
	return &StreamBlock{
		seq:          seq,
		buf:          alloc.Alloc(capacity),
		uso:          startUSO,
		capacity:     capacity,
		generationID: generationID,
	}
}

// Reserve returns a writable cursor of n bytes starting at the block's
// current offset and advances the offset by n. It fails iff the block
// does not have n bytes of remaining capacity.
func (b *StreamBlock) Reserve(n int) ([]byte, error) {
	if b.offset+n > b.capacity {
		return nil, ErrCapacityExceeded
	}
	ptr := b.buf[b.offset : b.offset+n]
	b.offset += n
	return ptr, nil
}

// MarkCommitted advances committed_offset to upTo. It is a no-op if
// upTo does not exceed the current committed_offset.
func (b *StreamBlock) MarkCommitted(upTo int) {
	if upTo > b.committedOffset {
		b.committedOffset = upTo
	}
}

// TruncateTo discards every byte from offset back to mark, failing if
// mark would discard bytes that are already committed.
func (b *StreamBlock) TruncateTo(mark int) error {
	if mark < b.committedOffset {
		return ErrRollbackTooFar
	}
	b.offset = mark
	return nil
}

// RawLength returns the number of bytes written into the block so far.
func (b *StreamBlock) RawLength() int { return b.offset }

// USO returns the universal stream offset of the first byte of this
// block.
func (b *StreamBlock) USO() uint64 { return b.uso }

// Offset returns the current write cursor, equal to RawLength.
func (b *StreamBlock) Offset() int { return b.offset }

// GenerationID returns the export generation this block was created
// under. A block is tagged with its generation for life; the buffer's
// own generation may move on without affecting blocks already cut.
func (b *StreamBlock) GenerationID() int64 { return b.generationID }

// CommittedOffset returns the prefix length, in bytes, known to belong
// to committed transactions.
func (b *StreamBlock) CommittedOffset() int { return b.committedOffset }

// Capacity returns the total byte capacity of the block's backing
// storage.
func (b *StreamBlock) Capacity() int { return b.capacity }

// Bytes returns the written prefix of the block's backing storage.
// The caller must not retain the returned slice past the point where
// the block's storage is reused or freed.
func (b *StreamBlock) Bytes() []byte { return b.buf[:b.offset] }
