package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pieczasz-labs/qb/plan"
)

func TestQuoteIdentifier(t *testing.T) {
	d := New()
	assert.Equal(t, `"users"`, d.QuoteIdentifier("users"))
	assert.Equal(t, `"weird""name"`, d.QuoteIdentifier(`weird"name`))
}

func TestQuoteString(t *testing.T) {
	d := New()
	assert.Equal(t, `'it''s'`, d.QuoteString("it's"))
}

func TestCreateTableSerialPrimaryKey(t *testing.T) {
	d := New()
	table := plan.TablePlan{
		Table: "users",
		Columns: []plan.ColumnPlan{
			{Name: "id", Type: plan.KindInteger, IsPrimaryKey: true},
			{Name: "email", Type: plan.KindString},
		},
	}
	sql := d.CreateTable(table)
	assert.Contains(t, sql, `"id" SERIAL`)
	assert.Contains(t, sql, `PRIMARY KEY ("id")`)
	assert.Contains(t, sql, `"email" VARCHAR(255) NOT NULL`)
}

func TestCreateTableBigSerialPrimaryKey(t *testing.T) {
	d := New()
	table := plan.TablePlan{
		Table: "events",
		Columns: []plan.ColumnPlan{
			{Name: "id", Type: plan.KindBigInt, IsPrimaryKey: true},
		},
	}
	assert.Contains(t, d.CreateTable(table), `"id" BIGSERIAL`)
}

func TestColumnDefaultCurrentTimestamp(t *testing.T) {
	d := New()
	table := plan.TablePlan{
		Table: "users",
		Columns: []plan.ColumnPlan{
			{Name: "created_at", Type: plan.KindDatetime, HasDefault: true, DefaultValue: "CURRENT_TIMESTAMP"},
		},
	}
	assert.Contains(t, d.CreateTable(table), `DEFAULT CURRENT_TIMESTAMP`)
}

func TestEnumColumnRendersCheckConstraint(t *testing.T) {
	d := New()
	table := plan.TablePlan{
		Table: "orders",
		Columns: []plan.ColumnPlan{
			{Name: "status", Type: plan.KindEnum, EnumValues: []string{"pending", "shipped"}},
		},
	}
	sql := d.CreateTable(table)
	assert.Contains(t, sql, `CHECK ("status" IN ('pending', 'shipped'))`)
}

func TestModifyColumnUsesUsingCast(t *testing.T) {
	d := New()
	sql := d.ModifyColumn("users", plan.ColumnPlan{Name: "age", Type: plan.KindBigInt, IsNullable: true})
	assert.Contains(t, sql, `TYPE BIGINT USING "age"::BIGINT`)
	assert.Contains(t, sql, `DROP NOT NULL`)
}

func TestAddForeignKeyName(t *testing.T) {
	d := New()
	sql := d.AddForeignKey("posts", "user_id", "users", "id")
	assert.Contains(t, sql, `"posts_user_id_fk"`)
	assert.Contains(t, sql, `REFERENCES "users" ("id")`)
}

func TestRecordMigrationQueryUsesDollarPlaceholder(t *testing.T) {
	d := New()
	query, args := d.RecordMigrationQuery("20260101_init")
	assert.Contains(t, query, "$1")
	assert.Equal(t, []any{"20260101_init"}, args)
}
