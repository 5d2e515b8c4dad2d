// Package migrate implements the Plan Differ, Snapshot Store, and Migration
// Generator (C5-C7): diffing two compiled plans into an ordered operation
// list, persisting the prior plan between runs, and rendering a diff
// through a dialect driver into executable SQL.
package migrate

import "github.com/pieczasz-labs/qb/plan"

// OperationKind identifies the category of a single migration operation,
// grounded on the teacher's OperationKind/core.Operation split but widened
// from a generic SQL/NOTE/BREAKING/UNRESOLVED split into typed DDL kinds so
// the dialect driver renders directly off the kind rather than reparsing SQL.
type OperationKind string

const (
	KindCreateTable  OperationKind = "CREATE_TABLE"
	KindDropTable    OperationKind = "DROP_TABLE"
	KindAddColumn    OperationKind = "ADD_COLUMN"
	KindModifyColumn OperationKind = "MODIFY_COLUMN"
	KindDropColumn   OperationKind = "DROP_COLUMN"
	KindAddIndex     OperationKind = "ADD_INDEX"
	KindDropIndex    OperationKind = "DROP_INDEX"
	KindAddFK        OperationKind = "ADD_FK"
	KindDropFK       OperationKind = "DROP_FK"
	KindWarning      OperationKind = "WARNING"
)

// withinTableOrder fixes the §4.5 rendering order of operation kinds that
// apply within a single table: drops before modifications before adds, so a
// dropped column never shadows the column it's about to be replaced by.
var withinTableOrder = map[OperationKind]int{
	KindDropIndex:    0,
	KindDropFK:       1,
	KindDropColumn:   2,
	KindModifyColumn: 3,
	KindAddColumn:    4,
	KindAddFK:        5,
	KindAddIndex:     6,
}

// Operation is a single unit of schema change, carrying enough structured
// detail for a dialect.Driver to render it and for the caller to classify
// its blast radius without re-parsing rendered SQL.
type Operation struct {
	Kind  OperationKind
	Table string

	Column      *plan.ColumnPlan
	PriorColumn *plan.ColumnPlan
	Index       *plan.IndexPlan
	TablePlan   *plan.TablePlan

	ForeignKeyColumn string
	ForeignKeyTable  string
	ForeignKeyColRef string

	Message string

	// Destructive marks operations that discard data outright: dropping a
	// table or column. Blocking marks operations that take a table-wide
	// lock on common engines: dropping a table or column, modifying a
	// column, adding a NOT NULL column without a default, and any index or
	// FK change, regardless of table size. Ported from the teacher's
	// internal/apply destructive/blocking classification, but computed from
	// the typed Operation rather than re-parsed SQL text.
	Destructive bool
	Blocking    bool
}

func (op Operation) sortKey() int {
	if k, ok := withinTableOrder[op.Kind]; ok {
		return k
	}
	return 99
}

// classify sets Destructive/Blocking per operation kind.
func classify(op *Operation) {
	switch op.Kind {
	case KindDropTable, KindDropColumn:
		op.Destructive = true
		op.Blocking = true
	case KindAddColumn:
		if op.Column != nil && !op.Column.IsNullable && !op.Column.HasDefault {
			op.Blocking = true
		}
	case KindModifyColumn:
		op.Blocking = true
	case KindAddIndex, KindAddFK, KindDropIndex, KindDropFK:
		op.Blocking = true
	}
}
