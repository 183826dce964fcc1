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

// Package partition picks which of a fixed set of StreamBuffer
// instances a row belongs to, deterministically, the way a demo
// harness would shard synthetic export load across partitions without
// a real transaction coordinator.
package partition

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// Router assigns rows to one of n partitions by hashing a stream
// signature together with a per-row routing key.
type Router struct {
	k0, k1 uint64
	n      int
}

// NewRouter builds a Router over n partitions, keyed by signature so
// that two routers constructed with the same signature and n always
// agree on routing.
func NewRouter(signature string, n int) *Router {
	if n <= 0 {
		n = 1
	}
	k0, k1 := siphash.Hash128(0, 0, []byte(signature))
	return &Router{k0: k0, k1: k1, n: n}
}

// Partition returns the partition index, in [0, n), that key routes
// to.
func (r *Router) Partition(key int64) int32 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(key))
	h := siphash.Hash(r.k0, r.k1, buf[:])
	return int32(h % uint64(r.n))
}
