package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Run("fills table and primary key when absent", func(t *testing.T) {
		m, err := Normalize(RawModel{Name: "User"})
		require.NoError(t, err)
		assert.Equal(t, "users", m.Table)
		assert.Equal(t, "id", m.PrimaryKey)
		assert.True(t, m.AutoIncrement)
	})

	t.Run("preserves explicit table and primary key", func(t *testing.T) {
		m, err := Normalize(RawModel{Name: "User", Table: "app_users", PrimaryKey: "uuid"})
		require.NoError(t, err)
		assert.Equal(t, "app_users", m.Table)
		assert.Equal(t, "uuid", m.PrimaryKey)
	})

	t.Run("explicit autoIncrement false is preserved", func(t *testing.T) {
		no := false
		m, err := Normalize(RawModel{Name: "User", AutoIncrement: &no})
		require.NoError(t, err)
		assert.False(t, m.AutoIncrement)
	})
}

func TestNormalizeAttributeDefaults(t *testing.T) {
	m, err := Normalize(RawModel{
		Name: "User",
		Attributes: []RawAttribute{
			{Name: "email", Unique: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, m.Attributes, 1)
	attr := m.Attributes[0]
	assert.True(t, attr.Fillable, "fillable defaults true for user attributes")
	assert.True(t, attr.Nullable, "nullable defaults true")
	assert.False(t, attr.Required)
	assert.True(t, attr.Unique)
}

func TestNormalizeAttributeExplicitOverrides(t *testing.T) {
	no := false
	m, err := Normalize(RawModel{
		Name: "User",
		Attributes: []RawAttribute{
			{Name: "internal_flag", Fillable: &no, Nullable: &no, Required: true},
		},
	})
	require.NoError(t, err)
	attr := m.Attributes[0]
	assert.False(t, attr.Fillable)
	assert.False(t, attr.Nullable)
	assert.True(t, attr.Required)
}

func TestNormalizeRelationsSequenceForm(t *testing.T) {
	m, err := Normalize(RawModel{
		Name:    "Post",
		HasMany: []string{"Comment", "Like"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Comment": "Comment", "Like": "Like"}, m.Relations.HasMany)
}

func TestNormalizeRelationsMappingForm(t *testing.T) {
	m, err := Normalize(RawModel{
		Name:      "Post",
		BelongsTo: map[string]string{"author": "User"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"author": "User"}, m.Relations.BelongsTo)
}

func TestNormalizeThroughRelationsPreserved(t *testing.T) {
	m, err := Normalize(RawModel{
		Name: "Country",
		HasManyThrough: map[string]ThroughSpec{
			"posts": {Through: "User", Target: "Post"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ThroughSpec{Through: "User", Target: "Post"}, m.Relations.HasManyThrough["posts"])
}

func TestNormalizeUnresolvedRelationTargetDoesNotError(t *testing.T) {
	// §3.8: unresolved targets are preserved verbatim, never rejected at normalize.
	m, err := Normalize(RawModel{Name: "Post", BelongsTo: []string{"Ghost"}})
	require.NoError(t, err)
	assert.Equal(t, "Ghost", m.Relations.BelongsTo["Ghost"])
}

func TestNormalizeScopesKeepsOnlyCallables(t *testing.T) {
	m, err := Normalize(RawModel{
		Name: "User",
		Scopes: map[string]ScopeFunc{
			"active":  func(b, v any) any { return b },
			"garbage": "not a function",
			"nilval":  nil,
		},
	})
	require.NoError(t, err)
	_, hasActive := m.Scopes["active"]
	_, hasGarbage := m.Scopes["garbage"]
	_, hasNil := m.Scopes["nilval"]
	assert.True(t, hasActive)
	assert.False(t, hasGarbage)
	assert.False(t, hasNil)
}

func TestNormalizeDefinerUnwrap(t *testing.T) {
	def := DefinerFunc(func() RawModel {
		return RawModel{Name: "Order"}
	})
	m, err := Normalize(def)
	require.NoError(t, err)
	assert.Equal(t, "Order", m.Name)
	assert.Equal(t, "orders", m.Table)
}

func TestNormalizeUnsupportedDeclaration(t *testing.T) {
	_, err := Normalize(42)
	require.Error(t, err)
}
