package migrate

import (
	"reflect"
	"sort"
	"strings"

	"github.com/pieczasz-labs/qb/plan"
)

// renameDetectionScoreThreshold mirrors the teacher's diff package: a
// removed+added column pair is only treated as a rename when their
// attributes are near-identical AND there's independent evidence (a shared
// name token) that they're the same column, not a coincidental match.
const renameDetectionScoreThreshold = 3

// renameSharedTokenMinLen is the minimum length of an underscore-delimited
// name token considered as rename evidence.
const renameSharedTokenMinLen = 3

// Diff computes the ordered operation list that transforms prior into
// current, per §4.5. prior may be nil, in which case every table in current
// is emitted as a fresh CREATE_TABLE.
func Diff(prior, current *plan.MigrationPlan) []Operation {
	var ops []Operation

	if prior == nil {
		for _, t := range current.Tables {
			ops = append(ops, createTableOps(t)...)
		}
		return ops
	}

	priorByName := tablesByName(prior.Tables)
	currentByName := tablesByName(current.Tables)

	var dropped []plan.TablePlan
	for name, pt := range priorByName {
		if _, ok := currentByName[name]; !ok {
			dropped = append(dropped, pt)
		}
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i].Table < dropped[j].Table })

	var created []plan.TablePlan
	var modified []Operation
	for name, ct := range currentByName {
		pt, ok := priorByName[name]
		if !ok {
			created = append(created, ct)
			continue
		}
		modified = append(modified, diffTable(pt, ct)...)
	}
	sort.Slice(created, func(i, j int) bool { return created[i].Table < created[j].Table })

	// All DROP_TABLE operations are emitted before any CREATE_TABLE,
	// satisfying the "DROP_TABLE before CREATE_TABLE of any table whose PK
	// or unique column matches the dropped table's name" ordering
	// unconditionally rather than needing to detect the specific overlap.
	for _, t := range dropped {
		ops = append(ops, Operation{Kind: KindDropTable, Table: t.Table})
	}

	for _, t := range created {
		ops = append(ops, createTableOps(t)...)
	}

	sort.SliceStable(modified, func(i, j int) bool {
		if modified[i].Table != modified[j].Table {
			return modified[i].Table < modified[j].Table
		}
		return modified[i].sortKey() < modified[j].sortKey()
	})
	ops = append(ops, modified...)

	for i := range ops {
		classify(&ops[i])
	}
	return ops
}

func createTableOps(t plan.TablePlan) []Operation {
	tCopy := t
	ops := []Operation{{Kind: KindCreateTable, Table: t.Table, TablePlan: &tCopy}}
	for _, idx := range t.Indexes {
		idxCopy := idx
		ops = append(ops, Operation{Kind: KindAddIndex, Table: t.Table, Index: &idxCopy})
	}
	for _, col := range t.Columns {
		if col.References == nil {
			continue
		}
		colCopy := col
		ops = append(ops, Operation{
			Kind:             KindAddFK,
			Table:            t.Table,
			Column:           &colCopy,
			ForeignKeyColumn: col.Name,
			ForeignKeyTable:  col.References.Table,
			ForeignKeyColRef: col.References.Column,
		})
	}
	for i := range ops {
		classify(&ops[i])
	}
	return ops
}

func tablesByName(tables []plan.TablePlan) map[string]plan.TablePlan {
	m := make(map[string]plan.TablePlan, len(tables))
	for _, t := range tables {
		m[t.Table] = t
	}
	return m
}

func diffTable(prior, current plan.TablePlan) []Operation {
	var ops []Operation

	priorCols := columnsByName(prior.Columns)
	currentCols := columnsByName(current.Columns)

	var addedNames, removedNames []string
	for name := range currentCols {
		if _, ok := priorCols[name]; !ok {
			addedNames = append(addedNames, name)
		}
	}
	for name := range priorCols {
		if _, ok := currentCols[name]; !ok {
			removedNames = append(removedNames, name)
		}
	}
	sort.Strings(addedNames)
	sort.Strings(removedNames)

	renames, addedNames, removedNames := detectColumnRenames(removedNames, addedNames, priorCols, currentCols)

	for _, r := range renames {
		old := priorCols[r.oldName]
		neu := currentCols[r.newName]
		if !columnsEqual(old, neu) {
			neuCopy := neu
			oldCopy := old
			ops = append(ops, Operation{Kind: KindModifyColumn, Table: current.Table, Column: &neuCopy, PriorColumn: &oldCopy})
		}
	}

	for _, name := range removedNames {
		col := priorCols[name]
		ops = append(ops, Operation{Kind: KindDropColumn, Table: current.Table, Column: &col})
	}
	for _, name := range addedNames {
		col := currentCols[name]
		ops = append(ops, Operation{Kind: KindAddColumn, Table: current.Table, Column: &col})
	}
	for name, pc := range priorCols {
		cc, ok := currentCols[name]
		if !ok {
			continue
		}
		if !columnsEqual(pc, cc) {
			ccCopy := cc
			pcCopy := pc
			ops = append(ops, Operation{Kind: KindModifyColumn, Table: current.Table, Column: &ccCopy, PriorColumn: &pcCopy})
		}
	}

	ops = append(ops, diffForeignKeys(current.Table, renames, removedNames, addedNames, priorCols, currentCols)...)

	priorIdx := indexesByName(prior.Indexes)
	currentIdx := indexesByName(current.Indexes)
	for name, idx := range currentIdx {
		if _, ok := priorIdx[name]; !ok {
			idxCopy := idx
			ops = append(ops, Operation{Kind: KindAddIndex, Table: current.Table, Index: &idxCopy})
		}
	}
	for name, idx := range priorIdx {
		if _, ok := currentIdx[name]; !ok {
			idxCopy := idx
			ops = append(ops, Operation{Kind: KindDropIndex, Table: current.Table, Index: &idxCopy})
		}
	}

	return ops
}

// diffForeignKeys compares ColumnPlan.References across renamed, dropped,
// added, and matched columns, emitting DROP_FK before the corresponding
// ADD_FK when a reference is removed, changed, or newly introduced.
func diffForeignKeys(table string, renames []columnRename, removedNames, addedNames []string, priorCols, currentCols map[string]plan.ColumnPlan) []Operation {
	var ops []Operation

	for _, r := range renames {
		old := priorCols[r.oldName]
		neu := currentCols[r.newName]
		ops = append(ops, foreignKeyTransitionOps(table, old.Name, old.References, neu.Name, neu.References)...)
	}

	for _, name := range removedNames {
		col := priorCols[name]
		ops = append(ops, foreignKeyTransitionOps(table, col.Name, col.References, "", nil)...)
	}

	for _, name := range addedNames {
		col := currentCols[name]
		ops = append(ops, foreignKeyTransitionOps(table, "", nil, col.Name, col.References)...)
	}

	for name, pc := range priorCols {
		cc, ok := currentCols[name]
		if !ok {
			continue
		}
		ops = append(ops, foreignKeyTransitionOps(table, pc.Name, pc.References, cc.Name, cc.References)...)
	}

	return ops
}

// foreignKeyTransitionOps emits the DROP_FK/ADD_FK pair needed to move a
// column's reference from oldRef to newRef. oldColumn/newColumn are empty
// when the column itself is being added or dropped.
func foreignKeyTransitionOps(table, oldColumn string, oldRef *plan.ColumnReference, newColumn string, newRef *plan.ColumnReference) []Operation {
	if reflect.DeepEqual(oldRef, newRef) && oldColumn == newColumn {
		return nil
	}

	var ops []Operation
	if oldRef != nil {
		ops = append(ops, Operation{
			Kind:             KindDropFK,
			Table:            table,
			ForeignKeyColumn: oldColumn,
			ForeignKeyTable:  oldRef.Table,
			ForeignKeyColRef: oldRef.Column,
		})
	}
	if newRef != nil {
		ops = append(ops, Operation{
			Kind:             KindAddFK,
			Table:            table,
			ForeignKeyColumn: newColumn,
			ForeignKeyTable:  newRef.Table,
			ForeignKeyColRef: newRef.Column,
		})
	}
	return ops
}

func columnsByName(cols []plan.ColumnPlan) map[string]plan.ColumnPlan {
	m := make(map[string]plan.ColumnPlan, len(cols))
	for _, c := range cols {
		m[c.Name] = c
	}
	return m
}

func indexesByName(idxs []plan.IndexPlan) map[string]plan.IndexPlan {
	m := make(map[string]plan.IndexPlan, len(idxs))
	for _, i := range idxs {
		m[i.Name] = i
	}
	return m
}

func columnsEqual(a, b plan.ColumnPlan) bool {
	if a.Type != b.Type || a.IsNullable != b.IsNullable || a.HasDefault != b.HasDefault {
		return false
	}
	if a.HasDefault && !reflect.DeepEqual(a.DefaultValue, b.DefaultValue) {
		return false
	}
	if !reflect.DeepEqual(a.References, b.References) {
		return false
	}
	return true
}

type columnRename struct {
	oldName string
	newName string
}

// detectColumnRenames mirrors the teacher's TableDiff.detectColumnRenames:
// pair each removed column with its best-scoring added column, accept the
// pair only above the similarity threshold AND with independent evidence
// (a shared name token), then strip matched pairs out of the add/remove
// lists and return them separately for MODIFY_COLUMN treatment instead of
// a DROP+ADD pair.
func detectColumnRenames(removedNames, addedNames []string, priorCols, currentCols map[string]plan.ColumnPlan) ([]columnRename, []string, []string) {
	if len(removedNames) == 0 || len(addedNames) == 0 {
		return nil, removedNames, addedNames
	}

	usedAdded := make(map[string]bool, len(addedNames))
	var renames []columnRename

	for _, oldName := range removedNames {
		oldCol := priorCols[oldName]
		bestName := ""
		bestScore := -1
		for _, newName := range addedNames {
			if usedAdded[newName] {
				continue
			}
			score := renameSimilarityScore(oldCol, currentCols[newName])
			if score > bestScore {
				bestScore = score
				bestName = newName
			}
		}
		if bestName != "" && bestScore >= renameDetectionScoreThreshold && hasSharedNameToken(oldName, bestName) {
			usedAdded[bestName] = true
			renames = append(renames, columnRename{oldName: oldName, newName: bestName})
		}
	}

	if len(renames) == 0 {
		return nil, removedNames, addedNames
	}

	removedSet := make(map[string]bool, len(renames))
	addedSet := make(map[string]bool, len(renames))
	for _, r := range renames {
		removedSet[r.oldName] = true
		addedSet[r.newName] = true
	}

	var keptRemoved, keptAdded []string
	for _, n := range removedNames {
		if !removedSet[n] {
			keptRemoved = append(keptRemoved, n)
		}
	}
	for _, n := range addedNames {
		if !addedSet[n] {
			keptAdded = append(keptAdded, n)
		}
	}
	return renames, keptRemoved, keptAdded
}

func renameSimilarityScore(old, neu plan.ColumnPlan) int {
	score := 0
	if old.Type == neu.Type {
		score += 2
	}
	if old.IsNullable == neu.IsNullable {
		score++
	}
	if old.HasDefault == neu.HasDefault {
		score++
	}
	return score
}

func hasSharedNameToken(a, b string) bool {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	for _, t := range tb {
		if set[t] {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	parts := strings.Split(strings.ToLower(s), "_")
	var out []string
	for _, p := range parts {
		if len(p) >= renameSharedTokenMinLen {
			out = append(out, p)
		}
	}
	return out
}
