// Package model normalizes heterogeneous, user-authored entity declarations
// into the canonical Model record the rest of the toolchain builds on.
package model

// RelationKind identifies one of the relation shapes a Model can declare.
type RelationKind string

const (
	HasOne        RelationKind = "hasOne"
	HasMany       RelationKind = "hasMany"
	BelongsTo     RelationKind = "belongsTo"
	BelongsToMany RelationKind = "belongsToMany"
	HasOneThrough RelationKind = "hasOneThrough"
	HasManyThrough RelationKind = "hasManyThrough"
	MorphOne      RelationKind = "morphOne"
	MorphMany     RelationKind = "morphMany"
	MorphTo       RelationKind = "morphTo"
	MorphToMany   RelationKind = "morphToMany"
	MorphedByMany RelationKind = "morphedByMany"
)

// ThroughSpec is the target of a hasOneThrough/hasManyThrough relation.
type ThroughSpec struct {
	Through string
	Target  string
}

// Reference describes a foreign-key target for an attribute.
type Reference struct {
	Table  string
	Column string
}

// CastType is the logical type hint carried by an attribute. It doubles as
// the column-kind source for the plan compiler (see plan.KindFromCast):
// string/text/boolean/integer/bigint/float/double/decimal/date/datetime/
// json/enum map directly to a plan.ColumnKind; array/list/object/map (value
// -coercion-only hints with no dedicated SQL representation) compile to a
// json column; none/empty defaults to string.
type CastType string

const (
	CastString   CastType = "string"
	CastText     CastType = "text"
	CastInteger  CastType = "integer"
	CastInt      CastType = "int"
	CastBigInt   CastType = "bigint"
	CastFloat    CastType = "float"
	CastDouble   CastType = "double"
	CastDecimal  CastType = "decimal"
	CastBoolean  CastType = "boolean"
	CastDate     CastType = "date"
	CastDatetime CastType = "datetime"
	CastArray    CastType = "array"
	CastList     CastType = "list"
	CastObject   CastType = "object"
	CastJSON     CastType = "json"
	CastMap      CastType = "map"
	CastEnum     CastType = "enum"
	CastNone     CastType = ""
)

// DynamoAttrType is the optional DynamoDB-scoped attribute-type hint.
type DynamoAttrType string

const (
	DynamoS    DynamoAttrType = "S"
	DynamoN    DynamoAttrType = "N"
	DynamoB    DynamoAttrType = "B"
	DynamoBOOL DynamoAttrType = "BOOL"
	DynamoNULL DynamoAttrType = "NULL"
	DynamoM    DynamoAttrType = "M"
	DynamoL    DynamoAttrType = "L"
	DynamoSS   DynamoAttrType = "SS"
	DynamoNS   DynamoAttrType = "NS"
	DynamoBS   DynamoAttrType = "BS"
)

// CurrentTimestamp is the pseudo-token recognized as a Default value meaning
// "the dialect's current-timestamp expression", as opposed to a literal value.
const CurrentTimestamp = "CURRENT_TIMESTAMP"

// Attribute is a single column-equivalent declared (or trait-derived) on a Model.
type Attribute struct {
	Name     string
	Order    int
	Fillable bool
	Required bool
	Nullable bool
	Unique   bool
	Hidden   bool
	Default  any
	Cast     CastType
	// EnumValues lists the allowed values when Cast == CastEnum.
	EnumValues []string
	// Validation is opaque to this subsystem and passed through verbatim.
	Validation any
	References *Reference
	DynamoType DynamoAttrType
}

// IndexDecl is an author-declared index.
type IndexDecl struct {
	Name    string
	Columns []string
	Unique  bool
}

// Traits are the boolean feature flags a Model can opt into.
type Traits struct {
	Timestamps  bool
	SoftDeletes bool
	UUID        bool
	Versioning  bool
	Search      bool
	Seeder      bool
	API         bool
	TTL         bool
}

// Relations groups every relation map a Model can declare, already
// normalized to alias -> target (or alias -> ThroughSpec) mappings.
type Relations struct {
	HasOne         map[string]string
	HasMany        map[string]string
	BelongsTo      map[string]string
	BelongsToMany  map[string]string
	HasOneThrough  map[string]ThroughSpec
	HasManyThrough map[string]ThroughSpec
	MorphOne       map[string]string
	MorphMany      map[string]string
	MorphTo        map[string]string
	MorphToMany    map[string]string
	MorphedByMany  map[string]string
}

// ScopeFunc is the opaque type stored for a named scope. It is declared as
// `any` here rather than a concrete function type so that this package has
// no dependency on the query builder; normalize only verifies, via
// reflection, that the value is callable (see isCallable in normalize.go).
// The query package is responsible for asserting it to
// func(*query.Builder, any) *query.Builder at scope-application time.
type ScopeFunc = any

// Model is the canonical, immutable record produced by Normalize. Every
// field has had its defaults applied; relation maps are never nil (they may
// be empty).
type Model struct {
	Name          string
	Table         string
	PrimaryKey    string
	AutoIncrement bool
	Attributes    []Attribute
	Traits        Traits
	Relations     Relations
	Scopes        map[string]ScopeFunc
	Indexes       []IndexDecl
}
