package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pieczasz-labs/qb/model"
	"github.com/pieczasz-labs/qb/schema"
)

func buildMeta(t *testing.T, decls ...model.RawModel) *schema.Meta {
	t.Helper()
	models := map[string]*model.Model{}
	for _, d := range decls {
		m, err := model.Normalize(d)
		require.NoError(t, err)
		models[d.Name] = m
	}
	return schema.Build(models)
}

func TestCompilePrimaryKeyColumnFirst(t *testing.T) {
	meta := buildMeta(t, model.RawModel{
		Name:       "User",
		Attributes: []model.RawAttribute{{Name: "email"}},
	})
	p := Compile(meta, "postgres")
	table := p.FindTable("users")
	require.NotNil(t, table)
	require.NotEmpty(t, table.Columns)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.True(t, table.Columns[0].IsPrimaryKey)
	assert.Equal(t, KindInteger, table.Columns[0].Type)
}

func TestCompileAttributeOrder(t *testing.T) {
	meta := buildMeta(t, model.RawModel{
		Name: "User",
		Attributes: []model.RawAttribute{
			{Name: "b", Order: 2},
			{Name: "a", Order: 1},
		},
	})
	table := Compile(meta, "postgres").FindTable("users")
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.Equal(t, "a", table.Columns[1].Name)
	assert.Equal(t, "b", table.Columns[2].Name)
}

func TestCompileTraitTailOrder(t *testing.T) {
	meta := buildMeta(t, model.RawModel{
		Name:       "User",
		Attributes: []model.RawAttribute{{Name: "email"}},
		Traits:     model.Traits{Timestamps: true, SoftDeletes: true, UUID: true, Versioning: true},
	})
	table := Compile(meta, "postgres").FindTable("users")
	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "email", "created_at", "updated_at", "deleted_at", "uuid", "_v"}, names)
}

func TestCompileForeignKeyReference(t *testing.T) {
	meta := buildMeta(t, model.RawModel{
		Name: "Post",
		Attributes: []model.RawAttribute{
			{Name: "user_id", References: &model.Reference{Table: "users", Column: "id"}},
		},
	})
	table := Compile(meta, "postgres").FindTable("posts")
	col := table.FindColumn("user_id")
	require.NotNil(t, col.References)
	assert.Equal(t, "users", col.References.Table)
	assert.Equal(t, "id", col.References.Column)
	assert.Equal(t, "posts_user_id_fk", ForeignKeyName("posts", "user_id"))
}

func TestCompileUniqueAttributeIndex(t *testing.T) {
	meta := buildMeta(t, model.RawModel{
		Name:       "User",
		Attributes: []model.RawAttribute{{Name: "email", Unique: true}},
	})
	table := Compile(meta, "postgres").FindTable("users")
	idx := table.FindIndex("users_email_unique")
	require.NotNil(t, idx)
	assert.Equal(t, IndexUnique, idx.Type)
	assert.Equal(t, []string{"email"}, idx.Columns)
}

func TestCompileDeclaredIndexUnion(t *testing.T) {
	meta := buildMeta(t, model.RawModel{
		Name:       "User",
		Attributes: []model.RawAttribute{{Name: "email", Unique: true}},
		Indexes:    []model.IndexDecl{{Name: "users_name_idx", Columns: []string{"name"}}},
	})
	table := Compile(meta, "postgres").FindTable("users")
	assert.NotNil(t, table.FindIndex("users_name_idx"))
	assert.NotNil(t, table.FindIndex("users_email_unique"))
}

func TestKindFromCastFallbacks(t *testing.T) {
	assert.Equal(t, KindJSON, KindFromCast(model.CastArray))
	assert.Equal(t, KindJSON, KindFromCast(model.CastMap))
	assert.Equal(t, KindString, KindFromCast(model.CastNone))
	assert.Equal(t, KindBigInt, KindFromCast(model.CastBigInt))
}

func TestCompileDeterministicOrder(t *testing.T) {
	meta := buildMeta(t, model.RawModel{Name: "Zebra"}, model.RawModel{Name: "Apple"})
	p := Compile(meta, "postgres")
	require.Len(t, p.Tables, 2)
	assert.Equal(t, "apples", p.Tables[0].Table)
	assert.Equal(t, "zebras", p.Tables[1].Table)
}
