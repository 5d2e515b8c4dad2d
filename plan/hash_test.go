package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func samplePlan(generatedAt string) *MigrationPlan {
	return &MigrationPlan{
		Dialect:     "postgres",
		GeneratedAt: generatedAt,
		Tables: []TablePlan{
			{
				Table: "users",
				Columns: []ColumnPlan{
					{Name: "id", Type: KindInteger, IsPrimaryKey: true},
					{Name: "email", Type: KindString},
				},
				Indexes: []IndexPlan{
					{Name: "users_email_unique", Columns: []string{"email"}, Type: IndexUnique},
				},
			},
		},
	}
}

func TestHashIgnoresGeneratedAt(t *testing.T) {
	a := samplePlan("2020-01-01T00:00:00Z")
	b := samplePlan("2030-01-01T00:00:00Z")
	assert.Equal(t, Hash(a), Hash(b))
}

func TestHashStableUnderColumnReordering(t *testing.T) {
	a := samplePlan("")
	b := samplePlan("")
	b.Tables[0].Columns[0], b.Tables[0].Columns[1] = b.Tables[0].Columns[1], b.Tables[0].Columns[0]
	assert.Equal(t, Hash(a), Hash(b))
}

func TestHashStableUnderTableReordering(t *testing.T) {
	a := &MigrationPlan{Dialect: "postgres", Tables: []TablePlan{{Table: "a"}, {Table: "b"}}}
	b := &MigrationPlan{Dialect: "postgres", Tables: []TablePlan{{Table: "b"}, {Table: "a"}}}
	assert.Equal(t, Hash(a), Hash(b))
}

func TestHashChangesWithContent(t *testing.T) {
	a := samplePlan("")
	b := samplePlan("")
	b.Tables[0].Columns = append(b.Tables[0].Columns, ColumnPlan{Name: "name", Type: KindString})
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestHashNilPlan(t *testing.T) {
	assert.Equal(t, Hash(nil), Hash(nil))
	assert.NotEqual(t, "", Hash(nil))
}
