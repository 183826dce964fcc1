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
	"bytes"
	"testing"

	"github.com/cove9988/voltdb/stream"
)

func TestChecksummingTopEndRoundTrip(t *testing.T) {
	mem := &stream.MemTopEnd{}
	cs := &ChecksummingTopEnd{Inner: mem}

	payload := []byte("hello export stream")
	if err := cs.Push(1, 0, "sig", nil, payload, false, false); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(mem.Blocks) != 1 {
		t.Fatalf("got %d pushed blocks, want 1", len(mem.Blocks))
	}

	got, ok := VerifyChecksum(mem.Blocks[0].Bytes)
	if !ok {
		t.Fatal("checksum did not verify")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got payload %q, want %q", got, payload)
	}

	mem.Blocks[0].Bytes[0] ^= 0xff
	if _, ok := VerifyChecksum(mem.Blocks[0].Bytes); ok {
		t.Fatal("checksum verified after corruption")
	}
}

func TestCompressingTopEndRoundTrip(t *testing.T) {
	for _, algo := range []string{"s2", "zstd", "zstd-better"} {
		t.Run(algo, func(t *testing.T) {
			mem := &stream.MemTopEnd{}
			cp, err := NewCompressingTopEnd(mem, algo)
			if err != nil {
				t.Fatalf("NewCompressingTopEnd: %v", err)
			}

			payload := bytes.Repeat([]byte("abcdefgh"), 64)
			if err := cp.Push(1, 0, "sig", nil, payload, false, false); err != nil {
				t.Fatalf("Push: %v", err)
			}
			if len(mem.Blocks) != 1 {
				t.Fatalf("got %d pushed blocks, want 1", len(mem.Blocks))
			}
			if bytes.Equal(mem.Blocks[0].Bytes, payload) {
				t.Fatal("compressed block is byte-identical to the input")
			}

			ok, err := VerifyCompressed(algo, mem.Blocks[0].Bytes, payload)
			if err != nil {
				t.Fatalf("VerifyCompressed: %v", err)
			}
			if !ok {
				t.Fatal("compressed block did not decompress back to the sealed bytes")
			}

			corrupt := append([]byte(nil), mem.Blocks[0].Bytes...)
			corrupt[0] ^= 0xff
			if ok, _ := VerifyCompressed(algo, corrupt, payload); ok {
				t.Fatal("corrupted compressed block verified successfully")
			}
		})
	}
}

func TestNewCompressingTopEndUnknownAlgo(t *testing.T) {
	mem := &stream.MemTopEnd{}
	if _, err := NewCompressingTopEnd(mem, "lz4"); err == nil {
		t.Fatal("expected an error for an unknown algorithm")
	}
}

func TestVerifyCompressedUnknownAlgo(t *testing.T) {
	if _, err := VerifyCompressed("lz4", nil, nil); err == nil {
		t.Fatal("expected an error for an unknown algorithm")
	}
}
