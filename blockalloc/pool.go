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

// Package blockalloc provides a fixed-size, page-backed memory pool
// that satisfies stream.BlockAllocator, standing in for the external
// "memory pool allocator" a production export buffer would draw its
// block storage from instead of the Go heap.
package blockalloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/exp/slices"
)

// Pool is a fixed-capacity set of equally sized, page-aligned memory
// regions. Every region is mapped once at construction time and
// recycled between Alloc and Free calls; the pool never grows.
type Pool struct {
	blockSize int
	region    []byte
	slots     [][]byte
	free      []int
	index     map[uintptr]int
}

// New reserves capacity blocks of blockSize bytes each, backed by a
// single anonymous memory mapping. Each block's slot is rounded up to
// the platform's page size; Alloc still accepts at most blockSize bytes.
func New(blockSize, capacity int) (*Pool, error) {
	if blockSize <= 0 || capacity <= 0 {
		return nil, fmt.Errorf("blockalloc: blockSize and capacity must be positive")
	}
	slotSize := roundToPage(blockSize)
	region, err := mmapAnon(slotSize * capacity)
	if err != nil {
		return nil, fmt.Errorf("blockalloc: %w", err)
	}
	p := &Pool{
		blockSize: blockSize,
		region:    region,
		slots:     make([][]byte, capacity),
		free:      make([]int, capacity),
		index:     make(map[uintptr]int, capacity),
	}
	for i := 0; i < capacity; i++ {
		slot := region[i*slotSize : i*slotSize+slotSize]
		p.slots[i] = slot
		p.free[capacity-1-i] = i
		p.index[bufAddr(slot)] = i
	}
	return p, nil
}

// Alloc implements stream.BlockAllocator. It panics if the pool is
// exhausted or n exceeds the pool's block size — a caller configuring
// a StreamBuffer's default capacity larger than the pool's blockSize
// is a setup error, not a runtime condition to recover from.
func (p *Pool) Alloc(n int) []byte {
	if n > p.blockSize {
		panic(fmt.Sprintf("blockalloc: requested %d bytes exceeds pool block size %d", n, p.blockSize))
	}
	if len(p.free) == 0 {
		panic("blockalloc: pool exhausted")
	}
	i := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return p.slots[i][:n]
}

// Free returns a slice previously produced by Alloc to the pool. It
// panics if buf does not belong to this pool, which would indicate a
// mismatched allocator/buffer pairing elsewhere in the program.
func (p *Pool) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	full := buf[:cap(buf)]
	i, ok := p.index[bufAddr(full)]
	if !ok {
		panic("blockalloc: freed buffer does not belong to this pool")
	}
	if !slices.Contains(p.free, i) {
		p.free = append(p.free, i)
	}
}

// Close releases the pool's backing memory mapping. It must not be
// called while any block obtained from Alloc is still in use.
func (p *Pool) Close() error {
	return munmapAnon(p.region)
}

func bufAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func roundToPage(n int) int {
	ps := pageSize()
	return (n + ps - 1) / ps * ps
}
