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

package sink

import (
	"fmt"

	"github.com/cove9988/voltdb/compr"
	"github.com/cove9988/voltdb/stream"
)

// CompressingTopEnd wraps another TopEnd and compresses a block's
// bytes with the named algorithm (see compr.Compression) after the
// core buffer has sealed it. The core's own row framing is never
// compressed; this only affects what CompressingTopEnd's Inner
// receives.
type CompressingTopEnd struct {
	Inner stream.TopEnd
	Algo  string

	c compr.Codec
}

// NewCompressingTopEnd wraps inner with a CompressingTopEnd using the
// named compression algorithm ("zstd", "zstd-better", or "s2").
func NewCompressingTopEnd(inner stream.TopEnd, algo string) (*CompressingTopEnd, error) {
	c := compr.Compression(algo)
	if c == nil {
		return nil, fmt.Errorf("sink: unknown compression algorithm %q", algo)
	}
	return &CompressingTopEnd{Inner: inner, Algo: algo, c: c}, nil
}

// Push implements stream.TopEnd.
func (c *CompressingTopEnd) Push(generationID int64, partitionID int32, signature string, columnNames []string, block []byte, sync bool, endOfStream bool) error {
	compressed := c.c.Compress(block, nil)
	if err := c.Inner.Push(generationID, partitionID, signature, columnNames, compressed, sync, endOfStream); err != nil {
		return fmt.Errorf("sink: compress push: %w", err)
	}
	return nil
}

// QueuedBytes implements stream.TopEnd.
func (c *CompressingTopEnd) QueuedBytes() int64 { return c.Inner.QueuedBytes() }

// VerifyCompressed decompresses a block previously produced by a
// CompressingTopEnd running algo and reports whether it matches want
// byte for byte. It exists so a caller holding both the compressed
// wire bytes and the original sealed block (as sink's own tests do)
// can confirm the round trip without threading a decoder through the
// TopEnd interface itself.
func VerifyCompressed(algo string, compressed, want []byte) (bool, error) {
	c := compr.Compression(algo)
	if c == nil {
		return false, fmt.Errorf("sink: unknown compression algorithm %q", algo)
	}
	got, err := c.Decompress(compressed)
	if err != nil {
		return false, fmt.Errorf("sink: decompress: %w", err)
	}
	return string(got) == string(want), nil
}
