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

package compr

import (
	"bytes"
	"testing"
)

// sealedBlock stands in for the kind of byte string the core buffer
// actually produces: a run of fixed-width framed rows, not arbitrary
// text, so the compressor sees realistic redundancy.
func sealedBlock(rows int) []byte {
	row := bytes.Repeat([]byte{0, 0, 0, 94, 0, 3}, 1)
	row = append(row, bytes.Repeat([]byte{0, 0, 0, 0, 0, 0, 0, 1}, 11)...)
	return bytes.Repeat(row, rows)
}

func TestCompressionRoundTrip(t *testing.T) {
	for _, name := range []string{"s2", "zstd", "zstd-better"} {
		t.Run(name, func(t *testing.T) {
			c := Compression(name)
			if c == nil {
				t.Fatalf("Compression(%q) = nil", name)
			}
			if got := c.Name(); got != "s2" && got != "zstd" {
				t.Fatalf("Name() = %q, unexpected for %q", got, name)
			}

			src := sealedBlock(50)
			compressed := c.Compress(src, nil)
			if len(compressed) == 0 {
				t.Fatal("Compress produced no output")
			}

			got, err := c.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(got, src) {
				t.Fatal("decompressed bytes do not match the original sealed block")
			}
		})
	}
}

func TestCompressionAppendsToDst(t *testing.T) {
	c := Compression("s2")
	prefix := []byte("header:")
	src := sealedBlock(10)

	out := c.Compress(src, append([]byte(nil), prefix...))
	if !bytes.HasPrefix(out, prefix) {
		t.Fatal("Compress must preserve dst's existing prefix")
	}

	got, err := c.Decompress(out[len(prefix):])
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatal("decompressed bytes do not match the original sealed block")
	}
}

func TestCompressionUnknownName(t *testing.T) {
	if c := Compression("lz4"); c != nil {
		t.Fatalf("Compression(\"lz4\") = %v, want nil", c)
	}
}

func TestOverlaps(t *testing.T) {
	a := make([]byte, 10, 30)
	if overlaps(a, a[10:20]) {
		t.Error("adjacent, non-overlapping slices reported as overlapping")
	}
	if !overlaps(a, a[5:]) {
		t.Error("slices sharing 5 bytes reported as non-overlapping")
	}
	if !overlaps(a, a[9:]) {
		t.Error("slices sharing 1 byte reported as non-overlapping")
	}
	if overlaps(nil, a) || overlaps(a, nil) {
		t.Error("an empty slice can never overlap")
	}
}
