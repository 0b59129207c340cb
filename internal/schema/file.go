package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// Events is the schema the commands use when no schema file is configured:
// a timestamped record with a title, an opaque key and two metrics.
func Events() *Schema {
	b := NewBuilder()
	b.AddU64Field("timestamp", Indexed|Fast|Stored)
	b.AddTextField("title", TEXT|Stored)
	b.AddBytesField("key", Indexed|Fast|Stored)
	b.AddF64Field("price", Indexed|Fast|Stored)
	b.AddI64Field("delta", Fast|Stored)
	return b.MustBuild()
}

// LoadFile reads a JSON field list such as
//
//	[{"name":"timestamp","type":"u64","options":"INDEXED|FAST"}]
//
// An empty path returns Events.
func LoadFile(path string) (*Schema, error) {
	if path == "" {
		return Events(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema file %s: %w", path, err)
	}
	return &s, nil
}
