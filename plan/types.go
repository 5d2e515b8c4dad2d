// Package plan derives a dialect-agnostic migration plan from a schema
// metadata graph, and provides the deterministic hashing used to detect
// whether a plan has changed since it was last applied.
package plan

// ColumnKind is the dialect-agnostic column type fed to a Dialect Driver.
type ColumnKind string

const (
	KindString   ColumnKind = "string"
	KindText     ColumnKind = "text"
	KindBoolean  ColumnKind = "boolean"
	KindInteger  ColumnKind = "integer"
	KindBigInt   ColumnKind = "bigint"
	KindFloat    ColumnKind = "float"
	KindDouble   ColumnKind = "double"
	KindDecimal  ColumnKind = "decimal"
	KindDate     ColumnKind = "date"
	KindDatetime ColumnKind = "datetime"
	KindJSON     ColumnKind = "json"
	KindEnum     ColumnKind = "enum"
)

// ColumnPlan is one column of a TablePlan.
type ColumnPlan struct {
	Name         string
	Type         ColumnKind
	IsPrimaryKey bool
	IsNullable   bool
	HasDefault   bool
	DefaultValue any
	EnumValues   []string
	References   *ColumnReference
}

// ColumnReference is the foreign-key target of a column, when present.
type ColumnReference struct {
	Table  string
	Column string
}

// IndexKind distinguishes a plain index from a unique one.
type IndexKind string

const (
	IndexPlain  IndexKind = "index"
	IndexUnique IndexKind = "unique"
)

// IndexPlan is one index of a TablePlan.
type IndexPlan struct {
	Name    string
	Columns []string
	Type    IndexKind
}

// TablePlan is the dialect-agnostic shape of a single table.
type TablePlan struct {
	Table   string
	Columns []ColumnPlan
	Indexes []IndexPlan
}

// MigrationPlan is the full, dialect-tagged compiled schema.
type MigrationPlan struct {
	Dialect     string
	Tables      []TablePlan
	Hash        string
	GeneratedAt string
}

// FindTable returns the TablePlan with the given name, or nil.
func (p *MigrationPlan) FindTable(name string) *TablePlan {
	if p == nil {
		return nil
	}
	for i := range p.Tables {
		if p.Tables[i].Table == name {
			return &p.Tables[i]
		}
	}
	return nil
}

// FindColumn returns the ColumnPlan with the given name, or nil.
func (t *TablePlan) FindColumn(name string) *ColumnPlan {
	if t == nil {
		return nil
	}
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// FindIndex returns the IndexPlan with the given name, or nil.
func (t *TablePlan) FindIndex(name string) *IndexPlan {
	if t == nil {
		return nil
	}
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}
