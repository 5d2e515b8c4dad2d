package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// canonicalPlan is the JSON shape used to compute a deterministic hash:
// tables sorted by name, columns sorted by name within each table, indexes
// sorted by name (§3.8, testable property 2). GeneratedAt is deliberately
// excluded — two plans with identical structure but different generation
// timestamps must hash equal.
type canonicalPlan struct {
	Dialect string           `json:"dialect"`
	Tables  []canonicalTable `json:"tables"`
}

type canonicalTable struct {
	Table   string           `json:"table"`
	Columns []ColumnPlan     `json:"columns"`
	Indexes []IndexPlan      `json:"indexes"`
}

// Hash computes the deterministic content hash of a plan. Two plans hash
// equal if and only if their canonical JSON serializations are byte-equal.
func Hash(p *MigrationPlan) string {
	if p == nil {
		return hashBytes(nil)
	}

	tables := make([]canonicalTable, 0, len(p.Tables))
	for _, t := range p.Tables {
		columns := append([]ColumnPlan(nil), t.Columns...)
		sort.Slice(columns, func(i, j int) bool { return columns[i].Name < columns[j].Name })

		indexes := append([]IndexPlan(nil), t.Indexes...)
		sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })

		tables = append(tables, canonicalTable{Table: t.Table, Columns: columns, Indexes: indexes})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Table < tables[j].Table })

	cp := canonicalPlan{Dialect: p.Dialect, Tables: tables}
	data, err := json.Marshal(cp)
	if err != nil {
		// json.Marshal only fails on unsupported types (channels, funcs);
		// MigrationPlan contains neither, so this is unreachable in practice.
		return hashBytes(nil)
	}
	return hashBytes(data)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Canonicalize returns the sorted-and-normalized JSON form of a plan used
// for the hash, exposed separately so callers (tests, diagnostics) can
// compare two plans' canonical bytes directly instead of only their hashes.
func Canonicalize(p *MigrationPlan) ([]byte, error) {
	if p == nil {
		return json.Marshal(canonicalPlan{})
	}
	tables := make([]canonicalTable, 0, len(p.Tables))
	for _, t := range p.Tables {
		columns := append([]ColumnPlan(nil), t.Columns...)
		sort.Slice(columns, func(i, j int) bool { return columns[i].Name < columns[j].Name })
		indexes := append([]IndexPlan(nil), t.Indexes...)
		sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })
		tables = append(tables, canonicalTable{Table: t.Table, Columns: columns, Indexes: indexes})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Table < tables[j].Table })
	return json.MarshalIndent(canonicalPlan{Dialect: p.Dialect, Tables: tables}, "", "  ")
}
