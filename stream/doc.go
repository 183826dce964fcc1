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

// Package stream implements a transactional export stream buffer: it
// accepts a stream of row mutations produced by transaction execution,
// serializes each row into a compact binary layout, and packages
// completed segments of the serialized byte stream into fixed-size
// blocks that are handed to a TopEnd for durable persistence and
// downstream delivery.
//
// StreamBuffer is owned by exactly one execution context at a time (a
// partition's executor) and is not safe for concurrent use. All public
// operations run to completion synchronously; TopEnd.Push executes on
// the caller's goroutine.
package stream
