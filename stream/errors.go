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

import "errors"

// Sentinel errors returned by StreamBuffer operations. All of them are
// fatal in the sense that the caller made a request the buffer cannot
// honor without losing a correctness guarantee; none of them carry
// retry semantics.
var (
	// ErrRowTooLarge is returned by Append when a single serialized row
	// cannot fit inside an empty block at the buffer's current
	// default capacity.
	ErrRowTooLarge = errors.New("stream: serialized row exceeds default capacity")

	// ErrCapacityExceeded is returned by StreamBlock.Reserve when n
	// more bytes would not fit in the remaining capacity of that
	// specific block.
	ErrCapacityExceeded = errors.New("stream: reserve exceeds block capacity")

	// ErrRollbackTooFar is returned by RollbackTo when the mark refers
	// to bytes that have already been handed to the TopEnd, or to a
	// block this buffer never owned.
	ErrRollbackTooFar = errors.New("stream: rollback mark refers to already-pushed bytes")

	// ErrGenerationRegression is returned when a call specifies a
	// generation lower than the buffer's current generation.
	ErrGenerationRegression = errors.New("stream: generation is lower than the buffer's current generation")

	// ErrCapacityMisconfig is returned by SetDefaultCapacity when the
	// buffer is not fully drained (a current block has bytes in it, or
	// a multi-block pending chain is open).
	ErrCapacityMisconfig = errors.New("stream: default capacity may only change while the buffer is empty")
)
