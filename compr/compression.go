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

// Package compr selects a compression codec for sink's TopEnd
// decorators to run already-sealed export blocks through. It exposes
// only the two operations sink actually drives: Compress, called on
// every pushed block by CompressingTopEnd, and Decompress, called by
// sink.VerifyCompressed to confirm a compressed block still round-trips
// to the bytes the core buffer produced.
package compr

import (
	"unsafe"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Codec names a compression algorithm and both compresses and
// decompresses with it.
type Codec interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Compress appends the compressed contents of src to dst and
	// returns the result.
	Compress(src, dst []byte) []byte
	// Decompress returns the decompressed contents of src as a
	// freshly allocated slice.
	Decompress(src []byte) ([]byte, error)
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (z zstdCodec) Name() string { return "zstd" }

func (z zstdCodec) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z zstdCodec) Decompress(src []byte) ([]byte, error) {
	return z.dec.DecodeAll(src, nil)
}

// sharedZstdDecoder is safe for concurrent use and is reused by every
// zstd Codec Compression returns, so verifying a compressed block does
// not pay for a fresh decoder per call.
var sharedZstdDecoder = mustNewZstdDecoder()

func mustNewZstdDecoder() *zstd.Decoder {
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic("compr: building shared zstd decoder: " + err.Error())
	}
	return d
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) Compress(src, dst []byte) []byte {
	tail := dst[len(dst):cap(dst)]
	// s2 requires non-overlapping src and dst
	if overlaps(src, tail) {
		tail = nil
	}
	got := s2.Encode(tail, src)
	if len(dst) == 0 {
		return got
	}
	if len(tail) > 0 && len(got) > 0 && &tail[0] == &got[0] {
		return dst[:len(dst)+len(got)]
	}
	return append(dst, got...)
}

func (s2Codec) Decompress(src []byte) ([]byte, error) {
	return s2.Decode(nil, src)
}

// Compression selects a codec by name: "zstd", "zstd-better" (slower,
// smaller output), or "s2" (faster, larger output). It returns nil
// for an unrecognized name.
func Compression(name string) Codec {
	switch name {
	case "zstd-better":
		enc, _ := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderConcurrency(1))
		return zstdCodec{enc: enc, dec: sharedZstdDecoder}
	case "zstd":
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return zstdCodec{enc: enc, dec: sharedZstdDecoder}
	case "s2":
		return s2Codec{}
	default:
		return nil
	}
}

func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	a0 := uintptr(unsafe.Pointer(&a[0]))
	a1 := a0 + uintptr(len(a))
	b0 := uintptr(unsafe.Pointer(&b[0]))
	b1 := b0 + uintptr(len(b))
	return a0 < b1 && b0 < a1
}
