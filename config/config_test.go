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

package config

import (
	"testing"

	"github.com/cove9988/voltdb/stream"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/buffer.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Signature != "demo-stream" {
		t.Fatalf("got signature %q, want demo-stream", cfg.Signature)
	}
	if cfg.DefaultCapacity != 1024 {
		t.Fatalf("got default_capacity %d, want 1024", cfg.DefaultCapacity)
	}

	sc := cfg.StreamConfig()
	if sc.DefaultCapacity != 1024 || sc.Signature != "demo-stream" {
		t.Fatalf("StreamConfig produced unexpected config: %+v", sc)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("testdata/does-not-exist.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadSchema(t *testing.T) {
	s, err := LoadSchema("testdata/schema.yaml")
	if err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	if len(s.Columns) != 5 {
		t.Fatalf("got %d columns, want 5", len(s.Columns))
	}
	for i, c := range s.Columns {
		if c.Type != stream.ColumnInt64 {
			t.Fatalf("column %d: got type %v, want ColumnInt64", i, c.Type)
		}
	}
	if stream.SerializedSize(s) != 94 {
		t.Fatalf("got serialized size %d, want 94", stream.SerializedSize(s))
	}
}
