package model

import (
	"fmt"
	"reflect"
	"strings"
)

// Normalize accepts one model declaration — a bare RawModel, a pointer to
// one, or anything implementing Definer — and returns its canonical Model
// record. Normalize fails only when decl is of an unsupported type or is a
// nil *RawModel: unknown relation targets and malformed scope entries are
// tolerated here and only surface as errors when a consumer (schema.Meta,
// query.Builder) actually uses them, per §4.1.
func Normalize(decl any) (*Model, error) {
	raw, err := unwrap(decl)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Name:          raw.Name,
		Table:         raw.Table,
		PrimaryKey:    raw.PrimaryKey,
		AutoIncrement: true,
		Traits:        raw.Traits,
		Indexes:       append([]IndexDecl(nil), raw.Indexes...),
	}

	if m.Table == "" {
		m.Table = strings.ToLower(raw.Name) + "s"
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = "id"
	}
	if raw.AutoIncrement != nil {
		m.AutoIncrement = *raw.AutoIncrement
	}

	m.Attributes = normalizeAttributes(raw.Attributes)
	m.Relations = normalizeRelations(raw)
	m.Scopes = normalizeScopes(raw.Scopes)

	return m, nil
}

// unwrap dereferences a RawModel/*RawModel/Definer declaration exactly once.
func unwrap(decl any) (RawModel, error) {
	switch v := decl.(type) {
	case RawModel:
		return v, nil
	case *RawModel:
		if v == nil {
			return RawModel{}, fmt.Errorf("model: nil *RawModel declaration")
		}
		return *v, nil
	case Definer:
		return v.Definition(), nil
	default:
		return RawModel{}, fmt.Errorf("model: unsupported declaration type %T, expected RawModel, *RawModel, or Definer", decl)
	}
}

// normalizeAttributes applies attribute-level defaults. fillable defaults to
// true for user attributes; primary-key/timestamp/soft-delete columns are
// trait-derived and materialized later by the plan compiler, not here, so
// every attribute seen here is a "user attribute" per §4.1 rule 5.
func normalizeAttributes(raw []RawAttribute) []Attribute {
	out := make([]Attribute, 0, len(raw))
	for _, a := range raw {
		attr := Attribute{
			Name:       a.Name,
			Order:      a.Order,
			Required:   a.Required,
			Unique:     a.Unique,
			Hidden:     a.Hidden,
			Default:    a.Default,
			Cast:       a.Cast,
			EnumValues: append([]string(nil), a.EnumValues...),
			Validation: a.Validation,
			References: a.References,
			DynamoType: a.DynamoType,
		}
		attr.Nullable = true
		if a.Nullable != nil {
			attr.Nullable = *a.Nullable
		}
		attr.Fillable = true
		if a.Fillable != nil {
			attr.Fillable = *a.Fillable
		}
		out = append(out, attr)
	}
	return out
}

// normalizeRelations converts each relation field — a []string, a
// map[string]string, or nil — into an alias->target mapping. A sequence
// element maps to itself (implicit name->name mapping, §4.1 rule 3).
func normalizeRelations(raw RawModel) Relations {
	return Relations{
		HasOne:         toRelationMap(raw.HasOne),
		HasMany:        toRelationMap(raw.HasMany),
		BelongsTo:      toRelationMap(raw.BelongsTo),
		BelongsToMany:  toRelationMap(raw.BelongsToMany),
		HasOneThrough:  cloneThroughMap(raw.HasOneThrough),
		HasManyThrough: cloneThroughMap(raw.HasManyThrough),
		MorphOne:       toRelationMap(raw.MorphOne),
		MorphMany:      toRelationMap(raw.MorphMany),
		MorphTo:        toRelationMap(raw.MorphTo),
		MorphToMany:    toRelationMap(raw.MorphToMany),
		MorphedByMany:  toRelationMap(raw.MorphedByMany),
	}
}

func toRelationMap(v any) map[string]string {
	out := map[string]string{}
	switch rel := v.(type) {
	case nil:
	case []string:
		for _, name := range rel {
			out[name] = name
		}
	case map[string]string:
		for alias, target := range rel {
			out[alias] = target
		}
	}
	return out
}

func cloneThroughMap(m map[string]ThroughSpec) map[string]ThroughSpec {
	out := make(map[string]ThroughSpec, len(m))
	for alias, spec := range m {
		out[alias] = spec
	}
	return out
}

// normalizeScopes keeps only entries whose value is callable, per §4.1 rule 6.
func normalizeScopes(raw map[string]ScopeFunc) map[string]ScopeFunc {
	out := make(map[string]ScopeFunc, len(raw))
	for alias, fn := range raw {
		if isCallable(fn) {
			out[alias] = fn
		}
	}
	return out
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}
