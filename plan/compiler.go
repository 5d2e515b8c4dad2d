package plan

import (
	"fmt"
	"sort"

	"github.com/pieczasz-labs/qb/model"
	"github.com/pieczasz-labs/qb/schema"
)

// KindFromCast maps an attribute's logical Cast to the dialect-agnostic
// ColumnKind the dialect driver renders (§4.3). Casts with no dedicated SQL
// representation (array/list/object/map) fall back to json; an empty Cast
// defaults to string.
func KindFromCast(cast model.CastType) ColumnKind {
	switch cast {
	case model.CastString, model.CastNone:
		return KindString
	case model.CastText:
		return KindText
	case model.CastBoolean:
		return KindBoolean
	case model.CastInteger, model.CastInt:
		return KindInteger
	case model.CastBigInt:
		return KindBigInt
	case model.CastFloat:
		return KindFloat
	case model.CastDouble:
		return KindDouble
	case model.CastDecimal:
		return KindDecimal
	case model.CastDate:
		return KindDate
	case model.CastDatetime:
		return KindDatetime
	case model.CastJSON, model.CastArray, model.CastList, model.CastObject, model.CastMap:
		return KindJSON
	case model.CastEnum:
		return KindEnum
	default:
		return KindString
	}
}

// Compile derives a dialect-tagged MigrationPlan from a schema metadata
// graph. One TablePlan is produced per model, in table-name order.
func Compile(meta *schema.Meta, dialect string) *MigrationPlan {
	p := &MigrationPlan{Dialect: dialect}

	for _, table := range meta.Tables() {
		m := meta.ModelFor(table)
		if m == nil {
			continue
		}
		p.Tables = append(p.Tables, compileTable(m))
	}

	p.Hash = Hash(p)
	return p
}

func compileTable(m *model.Model) TablePlan {
	tp := TablePlan{Table: m.Table}

	pkOverride := findAttribute(m.Attributes, m.PrimaryKey)
	pkKind := KindInteger
	if pkOverride != nil && pkOverride.Cast == model.CastBigInt {
		pkKind = KindBigInt
	}
	tp.Columns = append(tp.Columns, ColumnPlan{
		Name:         m.PrimaryKey,
		Type:         pkKind,
		IsPrimaryKey: true,
		IsNullable:   false,
	})

	userAttrs := sortedAttributes(m.Attributes)
	for _, attr := range userAttrs {
		if attr.Name == m.PrimaryKey {
			// Already materialized as the primary-key column above.
			continue
		}
		tp.Columns = append(tp.Columns, columnFromAttribute(attr))
	}

	if m.Traits.Timestamps {
		tp.Columns = append(tp.Columns,
			ColumnPlan{Name: "created_at", Type: KindDatetime, IsNullable: false, HasDefault: true, DefaultValue: model.CurrentTimestamp},
			ColumnPlan{Name: "updated_at", Type: KindDatetime, IsNullable: false, HasDefault: true, DefaultValue: model.CurrentTimestamp},
		)
	}
	if m.Traits.SoftDeletes {
		tp.Columns = append(tp.Columns, ColumnPlan{Name: "deleted_at", Type: KindDatetime, IsNullable: true})
	}
	if m.Traits.UUID {
		tp.Columns = append(tp.Columns, ColumnPlan{Name: "uuid", Type: KindString, IsNullable: false})
		tp.Indexes = append(tp.Indexes, IndexPlan{Name: fmt.Sprintf("%s_uuid_unique", m.Table), Columns: []string{"uuid"}, Type: IndexUnique})
	}
	if m.Traits.Versioning {
		tp.Columns = append(tp.Columns, ColumnPlan{Name: "_v", Type: KindInteger, IsNullable: false, HasDefault: true, DefaultValue: 1})
	}

	tp.Indexes = append(tp.Indexes, declaredIndexes(m)...)
	tp.Indexes = append(tp.Indexes, uniqueAttributeIndexes(m)...)

	return tp
}

func findAttribute(attrs []model.Attribute, name string) *model.Attribute {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}

// sortedAttributes orders attributes by Order ascending, stable on ties by
// declared (slice) position, per §4.3 rule 2.
func sortedAttributes(attrs []model.Attribute) []model.Attribute {
	out := append([]model.Attribute(nil), attrs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func columnFromAttribute(attr model.Attribute) ColumnPlan {
	cp := ColumnPlan{
		Name:         attr.Name,
		Type:         KindFromCast(attr.Cast),
		IsNullable:   attr.Nullable,
		HasDefault:   attr.Default != nil,
		DefaultValue: attr.Default,
	}
	if cp.Type == KindEnum {
		cp.EnumValues = append([]string(nil), attr.EnumValues...)
	}
	if attr.References != nil {
		cp.References = &ColumnReference{Table: attr.References.Table, Column: attr.References.Column}
	}
	return cp
}

func declaredIndexes(m *model.Model) []IndexPlan {
	out := make([]IndexPlan, 0, len(m.Indexes))
	for _, idx := range m.Indexes {
		kind := IndexPlain
		if idx.Unique {
			kind = IndexUnique
		}
		name := idx.Name
		if name == "" {
			name = fmt.Sprintf("%s_%s_idx", m.Table, joinUnderscore(idx.Columns))
		}
		out = append(out, IndexPlan{Name: name, Columns: append([]string(nil), idx.Columns...), Type: kind})
	}
	return out
}

func uniqueAttributeIndexes(m *model.Model) []IndexPlan {
	var out []IndexPlan
	for _, attr := range m.Attributes {
		if !attr.Unique {
			continue
		}
		out = append(out, IndexPlan{
			Name:    fmt.Sprintf("%s_%s_unique", m.Table, attr.Name),
			Columns: []string{attr.Name},
			Type:    IndexUnique,
		})
	}
	return out
}

func joinUnderscore(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "_"
		}
		out += p
	}
	return out
}

// ForeignKeyName derives the constraint name `{table}_{column}_fk` used by
// both the Plan Differ and every Dialect Driver (§4.3 rule 4, §4.4).
func ForeignKeyName(table, column string) string {
	return fmt.Sprintf("%s_%s_fk", table, column)
}
