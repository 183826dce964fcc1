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

// Mark identifies a point in the stream an executor may later roll
// back to. It names a block by its buffer-local sequence number
// rather than a pointer, so RollbackTo can still recognize it once the
// block has been displaced into the pending chain, cut away, or
// pushed entirely.
type Mark struct {
	block  uint64
	offset int
}

// Row is the caller-supplied payload of one Append call: the part of
// the fixed metadata frame not already implied by Append's own
// arguments, plus the row's user column values.
type Row struct {
	Timestamp int64
	SiteID    int64
	OpKind    int64
	Values    Values
}

type sealedRecord struct {
	length int
	endUSO uint64
}

// Config bootstraps a StreamBuffer. See package config for loading one
// from a file.
type Config struct {
	Signature       string
	GenerationID    int64
	DefaultCapacity int
	Allocator       BlockAllocator
}

// StreamBuffer accumulates serialized rows into fixed-size blocks and
// hands completed blocks to a TopEnd. It is owned by exactly one
// execution context at a time and is not safe for concurrent use.
type StreamBuffer struct {
	schema *Schema
	topEnd TopEnd
	alloc  BlockAllocator

	defaultCapacity int
	generationID    int64
	signature       string
	partitionID     int32

	hasOpenTxn         bool
	openTxnID          int64
	lastCommittedTxnID int64

	nextSeq uint64
	current *StreamBlock
	pending []*StreamBlock

	sealed map[uint64]sealedRecord
}

// New constructs a StreamBuffer over schema, pushing completed blocks
// to topEnd.
func New(schema *Schema, topEnd TopEnd, cfg Config) *StreamBuffer {
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = 1 << 20
	}
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = DefaultAllocator
	}
	sb := &StreamBuffer{
		schema:             schema,
		topEnd:             topEnd,
		alloc:              alloc,
		defaultCapacity:    cfg.DefaultCapacity,
		generationID:       cfg.GenerationID,
		signature:          cfg.Signature,
		lastCommittedTxnID: -1,
		sealed:             make(map[uint64]sealedRecord),
	}
	sb.current = sb.allocateBlock(0, sb.generationID)
	return sb
}

func (sb *StreamBuffer) allocateBlock(startUSO uint64, generation int64) *StreamBlock {
	sb.nextSeq++
	return newStreamBlock(sb.nextSeq, startUSO, sb.defaultCapacity, generation, sb.alloc)
}

// releaseBlock frees a block's storage without ever handing it to the
// TopEnd. Used when discarding uncommitted bytes (rollback, a
// superseded pending chain).
func (sb *StreamBuffer) releaseBlock(blk *StreamBlock) {
	sb.alloc.Free(blk.buf)
}

// pushBlock hands bytes (a prefix, or the whole, of blk's written
// content) to the TopEnd and records the boundary so a later RollbackTo
// can still recognize a Mark taken against blk.
func (sb *StreamBuffer) pushBlock(blk *StreamBlock, bytes []byte, endOfStream bool) error {
	err := sb.topEnd.Push(blk.generationID, sb.partitionID, sb.signature, columnNames(sb.schema), bytes, false, endOfStream)
	sb.sealed[blk.seq] = sealedRecord{length: len(bytes), endUSO: blk.uso + uint64(len(bytes))}
	sb.alloc.Free(blk.buf)
	return err
}

// absorbCommit applies the (last_committed_txn) half of every public
// operation's contract: advance the high-water mark, and if the
// currently open transaction is now confirmed committed, freeze the
// current block's committed prefix and promote any pending chain.
func (sb *StreamBuffer) absorbCommit(lastCommitted int64) error {
	if lastCommitted > sb.lastCommittedTxnID {
		sb.lastCommittedTxnID = lastCommitted
	}
	if !sb.hasOpenTxn || sb.lastCommittedTxnID < sb.openTxnID {
		return nil
	}
	sb.current.MarkCommitted(sb.current.Offset())
	sb.hasOpenTxn = false
	if len(sb.pending) == 0 {
		return nil
	}
	pending := sb.pending
	sb.pending = nil
	for _, blk := range pending {
		blk.MarkCommitted(blk.Offset())
		if err := sb.pushBlock(blk, blk.Bytes(), false); err != nil {
			return fmt.Errorf("stream: pushing pending block: %w", err)
		}
	}
	return nil
}

// ensureCapacity runs the capacity half of the cut decision: it must
// only be called when the buffer's generation is not changing.
func (sb *StreamBuffer) ensureCapacity(size int) error {
	if sb.current.Offset()+size <= sb.current.Capacity() {
		return nil
	}
	committed := sb.current.CommittedOffset()
	offset := sb.current.Offset()
	switch {
	case committed == 0:
		// The entire block belongs to the still-open transaction: grow
		// into a new block without pushing the old one, so the whole
		// open-txn sequence remains rollback-eligible as one unit.
		old := sb.current
		sb.pending = append(sb.pending, old)
		sb.current = sb.allocateBlock(old.uso+uint64(old.Offset()), sb.generationID)
		return nil
	case committed == offset:
		// Fully committed, no open tail: an ordinary cut.
		old := sb.current
		sb.current = sb.allocateBlock(old.uso+uint64(old.Offset()), sb.generationID)
		return sb.pushBlock(old, old.Bytes(), false)
	default:
		// A committed prefix with a still-open uncommitted tail: push
		// only the committed prefix and carry the tail into a fresh
		// block, so the open transaction's bytes are never exposed to
		// the TopEnd ahead of their own commit.
		old := sb.current
		tail := append([]byte(nil), old.buf[committed:offset]...)
		next := sb.allocateBlock(old.uso+uint64(committed), sb.generationID)
		copy(next.buf[:len(tail)], tail)
		next.offset = len(tail)
		sb.current = next
		return sb.pushBlock(old, old.buf[:committed], false)
	}
}

// forceGenerationCut seals the current generation's stream and starts
// a fresh empty block under newGeneration. Any pending chain belongs
// to an open transaction that will be replayed by the executor under
// the new generation, so it is discarded outright. Of the current
// block, only the committed prefix [0, committed_offset) is pushed,
// with end_of_stream set; the uncommitted tail [committed_offset,
// offset), if any, is discarded along with the pending chain — per
// spec.md §4.3 ("discarding any uncommitted tail") and the invariant
// that no pushed block may contain bytes of a transaction that had not
// committed at push time. See DESIGN.md Open Question decisions: this
// makes scenario 5's literal 940-byte first block (which would bundle
// in the still-open row 10) an artifact of that scenario never having
// absorbed row 10's commit, not a case this buffer is free to violate
// the invariant for.
func (sb *StreamBuffer) forceGenerationCut(newGeneration int64) error {
	for _, blk := range sb.pending {
		sb.releaseBlock(blk)
	}
	sb.pending = nil

	old := sb.current
	committed := old.CommittedOffset()
	sb.hasOpenTxn = false
	sb.generationID = newGeneration
	sb.current = sb.allocateBlock(old.uso+uint64(committed), sb.generationID)
	if committed == 0 {
		sb.releaseBlock(old)
		return nil
	}
	return sb.pushBlock(old, old.buf[:committed], true)
}

// Append serializes row under the given transaction and positional
// arguments, absorbing any newly confirmed commit and cutting the
// current block first if required by a generation change or a
// capacity overflow. It returns the universal stream offset of the
// byte immediately following the written row.
//
// The caller must present current_txn values that are monotonically
// non-decreasing for as long as a transaction remains open; this
// mirrors a single partition's strictly serial transaction execution
// and is not independently validated.
func (sb *StreamBuffer) Append(lastCommittedTxn, currentTxn, sequence int64, partitionID int32, generation int64, row Row) (uint64, error) {
	if generation < sb.generationID {
		return 0, ErrGenerationRegression
	}
	size := SerializedSize(sb.schema)
	if size > sb.defaultCapacity {
		return 0, ErrRowTooLarge
	}
	sb.partitionID = partitionID

	if err := sb.absorbCommit(lastCommittedTxn); err != nil {
		return 0, err
	}

	if generation != sb.generationID {
		if err := sb.forceGenerationCut(generation); err != nil {
			return 0, err
		}
	} else if err := sb.ensureCapacity(size); err != nil {
		return 0, err
	}

	dst, err := sb.current.Reserve(size)
	if err != nil {
		return 0, fmt.Errorf("stream: %w", err)
	}
	meta := RowMeta{
		TxnID:       currentTxn,
		Timestamp:   row.Timestamp,
		Sequence:    sequence,
		PartitionID: int64(partitionID),
		SiteID:      row.SiteID,
		OpKind:      row.OpKind,
	}
	Serialize(dst, sb.schema, meta, row.Values)

	sb.hasOpenTxn = true
	sb.openTxnID = currentTxn
	return sb.current.uso + uint64(sb.current.Offset()), nil
}

// PeriodicFlush absorbs any newly confirmed commit and, if the
// current block is non-empty and has no open transaction, cuts and
// pushes it. minFutureTxnHint is accepted for interface symmetry with
// the executor's periodic housekeeping call but does not affect
// buffer state.
func (sb *StreamBuffer) PeriodicFlush(minFutureTxnHint, committedThrough, currentTxn int64) error {
	_ = minFutureTxnHint
	_ = currentTxn
	if err := sb.absorbCommit(committedThrough); err != nil {
		return err
	}
	if sb.current.Offset() > 0 && !sb.hasOpenTxn {
		old := sb.current
		sb.current = sb.allocateBlock(old.uso+uint64(old.Offset()), sb.generationID)
		return sb.pushBlock(old, old.Bytes(), false)
	}
	return nil
}

// RollbackTo discards every byte appended since mark was captured. If
// mark refers to a block still held by the buffer (current, or
// somewhere in the pending chain), that block's tail is truncated and
// everything after it is discarded. If mark refers to a block already
// pushed, rollback succeeds only when mark lands exactly on the end of
// the bytes that block pushed and the blocks the buffer still holds
// start at that USO with nothing committed in them; everything the
// buffer holds is then discarded. Any other reference to already-pushed
// bytes fails with ErrRollbackTooFar.
func (sb *StreamBuffer) RollbackTo(mark Mark) error {
	if sb.current.seq == mark.block {
		if mark.offset < sb.current.CommittedOffset() || mark.offset > sb.current.Offset() {
			return ErrRollbackTooFar
		}
		if err := sb.current.TruncateTo(mark.offset); err != nil {
			return err
		}
		sb.hasOpenTxn = false
		return nil
	}

	for i, blk := range sb.pending {
		if blk.seq != mark.block {
			continue
		}
		if mark.offset < blk.CommittedOffset() || mark.offset > blk.Offset() {
			return ErrRollbackTooFar
		}
		for j := len(sb.pending) - 1; j > i; j-- {
			sb.releaseBlock(sb.pending[j])
		}
		sb.releaseBlock(sb.current)
		if err := blk.TruncateTo(mark.offset); err != nil {
			return err
		}
		sb.pending = sb.pending[:i]
		sb.current = blk
		sb.hasOpenTxn = false
		return nil
	}

	if rec, ok := sb.sealed[mark.block]; ok {
		if mark.offset != rec.length {
			return ErrRollbackTooFar
		}
		first := sb.current
		if len(sb.pending) > 0 {
			first = sb.pending[0]
		}
		if first.uso != rec.endUSO || first.CommittedOffset() != 0 {
			return ErrRollbackTooFar
		}
		for _, blk := range sb.pending {
			sb.releaseBlock(blk)
		}
		sb.pending = nil
		sb.releaseBlock(sb.current)
		sb.current = sb.allocateBlock(rec.endUSO, sb.generationID)
		sb.hasOpenTxn = false
		return nil
	}

	return ErrRollbackTooFar
}

// SetSignatureAndGeneration forces an end-of-stream cut of the current
// generation (pushing only the committed prefix and discarding any
// uncommitted tail rather than carrying it forward — the executor is
// expected to replay it under the new generation) and begins a new one
// under signature and generation.
func (sb *StreamBuffer) SetSignatureAndGeneration(signature string, generation int64) error {
	if generation < sb.generationID {
		return ErrGenerationRegression
	}
	if err := sb.forceGenerationCut(generation); err != nil {
		return err
	}
	sb.signature = signature
	return nil
}

// BytesUsed captures a Mark at the buffer's current write position,
// suitable for a later RollbackTo. The executor is expected to capture
// marks only at transaction boundaries.
func (sb *StreamBuffer) BytesUsed() Mark {
	return Mark{block: sb.current.seq, offset: sb.current.Offset()}
}

// AllocatedByteCount returns the total bytes written into blocks this
// buffer still owns (the current block plus any pending chain). It
// reaches zero exactly when every locally owned block has been pushed
// and released.
func (sb *StreamBuffer) AllocatedByteCount() int64 {
	total := int64(sb.current.Offset())
	for _, blk := range sb.pending {
		total += int64(blk.Offset())
	}
	return total
}

// SetDefaultCapacity changes the capacity used for blocks allocated
// from now on. It fails with ErrCapacityMisconfig unless the buffer is
// fully drained: the current block is empty and there is no pending
// chain.
func (sb *StreamBuffer) SetDefaultCapacity(n int) error {
	if sb.current.Offset() != 0 || len(sb.pending) != 0 {
		return ErrCapacityMisconfig
	}
	old := sb.current
	sb.defaultCapacity = n
	sb.current = sb.allocateBlock(old.uso, sb.generationID)
	sb.releaseBlock(old)
	return nil
}

// GenerationID returns the buffer's current generation.
func (sb *StreamBuffer) GenerationID() int64 { return sb.generationID }

// Signature returns the buffer's current stream signature.
func (sb *StreamBuffer) Signature() string { return sb.signature }
