package model

// RawModel is a user-authored model declaration, before normalization.
// Relation fields accept either an ordered sequence of related-model names
// (implicit name->name mapping) or a named alias->target mapping; both
// shapes are represented here as `any` and resolved by Normalize into the
// canonical alias->target maps on Relations. Accepted concrete shapes are
// []string, map[string]string, or nil.
type RawModel struct {
	Name          string
	Table         string
	PrimaryKey    string
	AutoIncrement *bool
	Attributes    []RawAttribute
	Traits        Traits

	HasOne        any
	HasMany       any
	BelongsTo     any
	BelongsToMany any

	// HasOneThrough/HasManyThrough are always alias->ThroughSpec; there is
	// no ordered-sequence shorthand for through-relations (the through table
	// must always be named explicitly).
	HasOneThrough  map[string]ThroughSpec
	HasManyThrough map[string]ThroughSpec

	MorphOne      any
	MorphMany     any
	MorphTo       any
	MorphToMany   any
	MorphedByMany any

	Scopes  map[string]ScopeFunc
	Indexes []IndexDecl
}

// RawAttribute is an attribute as declared by the model author, before
// defaults are applied. Pointer fields distinguish "absent" from "false".
type RawAttribute struct {
	Name       string
	Order      int
	Fillable   *bool
	Required   bool
	Nullable   *bool
	Unique     bool
	Hidden     bool
	Default    any
	Cast       CastType
	EnumValues []string
	Validation any
	References *Reference
	DynamoType DynamoAttrType
}

// Definer is implemented by a model declaration that wraps its definition
// behind an accessor rather than exposing a bare RawModel, mirroring the
// source ecosystem's `.definition` property / `getDefinition()` method.
// Normalize unwraps exactly once.
type Definer interface {
	Definition() RawModel
}

// DefinerFunc adapts a getDefinition()-style accessor to the Definer interface.
type DefinerFunc func() RawModel

// Definition implements Definer.
func (f DefinerFunc) Definition() RawModel { return f() }

// Loader yields raw model declarations from a directory. It is an external
// collaborator (contract only) — this package does not implement a concrete
// file-backed loader; callers supply their own (e.g. one that walks a
// models/ directory and constructs RawModel values, or decorates them with a
// Definer wrapper).
type Loader interface {
	LoadModels(dir string) (map[string]RawModel, error)
}
