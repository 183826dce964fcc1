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

// Package sink collects illustrative TopEnd decorators that operate on
// already-sealed block bytes, outside the core export buffer's own
// framing: a downstream storage layer would typically want blocks
// checksummed and compressed, but neither concern belongs to the
// buffer's own transactional contract.
package sink

import (
	"fmt"
	"log"

	"golang.org/x/crypto/blake2b"

	"github.com/cove9988/voltdb/stream"
)

// ChecksummingTopEnd wraps another TopEnd and appends a blake2b-256
// checksum to every pushed block, so a downstream reader can detect
// corruption introduced after the buffer handed the bytes off.
type ChecksummingTopEnd struct {
	Inner stream.TopEnd
}

// Push implements stream.TopEnd.
func (c *ChecksummingTopEnd) Push(generationID int64, partitionID int32, signature string, columnNames []string, block []byte, sync bool, endOfStream bool) error {
	sum := blake2b.Sum256(block)
	framed := make([]byte, len(block)+len(sum))
	copy(framed, block)
	copy(framed[len(block):], sum[:])
	log.Printf("sink: checksummed block gen=%d partition=%d bytes=%d", generationID, partitionID, len(block))
	if err := c.Inner.Push(generationID, partitionID, signature, columnNames, framed, sync, endOfStream); err != nil {
		return fmt.Errorf("sink: checksum push: %w", err)
	}
	return nil
}

// QueuedBytes implements stream.TopEnd.
func (c *ChecksummingTopEnd) QueuedBytes() int64 { return c.Inner.QueuedBytes() }

// VerifyChecksum splits a block previously framed by
// ChecksummingTopEnd back into its payload and trailing checksum,
// reporting whether the checksum still matches.
func VerifyChecksum(framed []byte) (payload []byte, ok bool) {
	if len(framed) < blake2b.Size256 {
		return nil, false
	}
	payload = framed[:len(framed)-blake2b.Size256]
	want := framed[len(framed)-blake2b.Size256:]
	got := blake2b.Sum256(payload)
	return payload, string(got[:]) == string(want)
}
