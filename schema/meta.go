// Package schema aggregates normalized models into the metadata graph the
// query builder and plan compiler consume.
package schema

import (
	"sort"

	"github.com/pieczasz-labs/qb/model"
)

// RelationIndex maps relation alias -> related model name for the simple
// relation kinds, and alias -> ThroughSpec for the through kinds.
type RelationIndex struct {
	HasOne         map[string]string
	HasMany        map[string]string
	BelongsTo      map[string]string
	BelongsToMany  map[string]string
	HasOneThrough  map[string]model.ThroughSpec
	HasManyThrough map[string]model.ThroughSpec
	MorphOne       map[string]string
	MorphMany      map[string]string
	MorphTo        map[string]string
	MorphToMany    map[string]string
	MorphedByMany  map[string]string
}

// Meta is the schema metadata graph described in §3.3. It is built once from
// a complete model set and is immutable afterward — concurrent readers
// require no locking (§5).
type Meta struct {
	ModelToTable map[string]string
	TableToModel map[string]string
	PrimaryKeys  map[string]string
	Models       map[string]*model.Model // keyed by table name
	Relations    map[string]RelationIndex
	Scopes       map[string]map[string]model.ScopeFunc
}

// Build aggregates a name->normalized-model mapping into a Meta graph.
// Build is deterministic and order-independent: iteration order over the
// input map never affects the result.
func Build(models map[string]*model.Model) *Meta {
	meta := &Meta{
		ModelToTable: map[string]string{},
		TableToModel: map[string]string{},
		PrimaryKeys:  map[string]string{},
		Models:       map[string]*model.Model{},
		Relations:    map[string]RelationIndex{},
		Scopes:       map[string]map[string]model.ScopeFunc{},
	}

	for name, m := range models {
		if m == nil {
			continue
		}
		meta.ModelToTable[name] = m.Table
		meta.TableToModel[m.Table] = name
		meta.PrimaryKeys[m.Table] = m.PrimaryKey
		meta.Models[m.Table] = m
		meta.Relations[m.Table] = RelationIndex{
			HasOne:         m.Relations.HasOne,
			HasMany:        m.Relations.HasMany,
			BelongsTo:      m.Relations.BelongsTo,
			BelongsToMany:  m.Relations.BelongsToMany,
			HasOneThrough:  m.Relations.HasOneThrough,
			HasManyThrough: m.Relations.HasManyThrough,
			MorphOne:       m.Relations.MorphOne,
			MorphMany:      m.Relations.MorphMany,
			MorphTo:        m.Relations.MorphTo,
			MorphToMany:    m.Relations.MorphToMany,
			MorphedByMany:  m.Relations.MorphedByMany,
		}
		meta.Scopes[m.Table] = m.Scopes
	}

	return meta
}

// Tables returns every table name in the graph, sorted for deterministic
// iteration by callers that need it (plan compilation, index derivation).
func (meta *Meta) Tables() []string {
	tables := make([]string, 0, len(meta.Models))
	for t := range meta.Models {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// ModelFor returns the normalized Model backing a table, or nil if unknown.
func (meta *Meta) ModelFor(table string) *model.Model {
	return meta.Models[table]
}
