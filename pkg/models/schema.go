package models

import (
	"fmt"
	"strings"
)

// SchemaDescriptor is a read-only snapshot of the store's table layout,
// fetched once per investigation and never mutated afterwards.
type SchemaDescriptor struct {
	Tables []Table `json:"tables"`
}

// Table describes one table with its columns in ordinal position order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column describes one column of a table.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	References string `json:"references,omitempty"` // "table.column" of the FK target, if any
}

// TableNames returns the table names in snapshot order.
func (s *SchemaDescriptor) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Table returns the named table, or nil if the snapshot has no such table.
func (s *SchemaDescriptor) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// HasColumn reports whether the named table contains the named column.
func (s *SchemaDescriptor) HasColumn(table, column string) bool {
	t := s.Table(table)
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c.Name == column {
			return true
		}
	}
	return false
}

// Render returns a deterministic plain-text description of the schema,
// suitable for inclusion in a prompt payload.
func (s *SchemaDescriptor) Render() string {
	var b strings.Builder
	for _, t := range s.Tables {
		fmt.Fprintf(&b, "table %s:\n", t.Name)
		for _, c := range t.Columns {
			nullable := "not null"
			if c.Nullable {
				nullable = "nullable"
			}
			fmt.Fprintf(&b, "  %s %s %s", c.Name, c.DataType, nullable)
			if c.References != "" {
				fmt.Fprintf(&b, " -> %s", c.References)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
