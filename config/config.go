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

// Package config loads the bootstrap parameters a StreamBuffer needs
// at construction time from a YAML file.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/cove9988/voltdb/stream"
)

// Buffer is the on-disk shape of a StreamBuffer's bootstrap
// parameters.
type Buffer struct {
	Signature       string `json:"signature"`
	GenerationID    int64  `json:"generation_id"`
	DefaultCapacity int    `json:"default_capacity"`
}

// Schema is the on-disk shape of a row schema: an ordered list of
// fixed-width user columns.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Column is the on-disk shape of one user column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Load reads and validates a Buffer config from path.
func Load(path string) (Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Buffer
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Buffer{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Buffer{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that a Buffer config is usable as a
// stream.Config.
func (c Buffer) Validate() error {
	if c.Signature == "" {
		return fmt.Errorf("signature must be set")
	}
	if c.GenerationID < 0 {
		return fmt.Errorf("generation_id must be non-negative")
	}
	if c.DefaultCapacity <= 0 {
		return fmt.Errorf("default_capacity must be positive")
	}
	return nil
}

// StreamConfig converts a loaded Buffer config into a stream.Config,
// ready to pass to stream.New.
func (c Buffer) StreamConfig() stream.Config {
	return stream.Config{
		Signature:       c.Signature,
		GenerationID:    c.GenerationID,
		DefaultCapacity: c.DefaultCapacity,
	}
}

// LoadSchema reads a row schema from path.
func LoadSchema(path string) (*stream.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	out := &stream.Schema{Columns: make([]stream.Column, len(s.Columns))}
	for i, c := range s.Columns {
		ct, err := columnType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("config: %s: column %q: %w", path, c.Name, err)
		}
		out.Columns[i] = stream.Column{Name: c.Name, Type: ct}
	}
	return out, nil
}

func columnType(name string) (stream.ColumnType, error) {
	switch name {
	case "int64":
		return stream.ColumnInt64, nil
	default:
		return 0, fmt.Errorf("unknown column type %q", name)
	}
}
