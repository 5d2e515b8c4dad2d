// Package sqlite implements the SQLite dialect driver (§4.4).
package sqlite

import (
	"fmt"
	"strings"

	"github.com/pieczasz-labs/qb/dialect"
	"github.com/pieczasz-labs/qb/plan"
)

func init() {
	dialect.Register(dialect.SQLite, func() dialect.Driver { return New() })
}

// Driver renders SQLite DDL. SQLite is permissively typed, so the column
// type affinities below are advisory; AUTOINCREMENT is only valid (and only
// emitted) on an INTEGER PRIMARY KEY column. Enums have no native
// representation and are emulated with a CHECK constraint.
type Driver struct{}

// New constructs a SQLite dialect driver.
func New() *Driver { return &Driver{} }

// Name returns the dialect type.
func (d *Driver) Name() dialect.Type { return dialect.SQLite }

// QuoteIdentifier double-quotes an identifier, doubling embedded quotes.
func (d *Driver) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString single-quotes a string literal, doubling embedded quotes.
func (d *Driver) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (d *Driver) boolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CreateEnumType is a no-op: SQLite has no native enum type, so values are
// emulated inline with a CHECK constraint on the column itself.
func (d *Driver) CreateEnumType(name string, values []string) string {
	return ""
}

// DropEnumType is a no-op for the same reason.
func (d *Driver) DropEnumType(name string) string {
	return ""
}

func (d *Driver) columnType(col plan.ColumnPlan) string {
	switch col.Type {
	case plan.KindString, plan.KindText, plan.KindEnum:
		return "TEXT"
	case plan.KindBoolean:
		return "BOOLEAN"
	case plan.KindInteger, plan.KindBigInt:
		return "INTEGER"
	case plan.KindFloat, plan.KindDouble, plan.KindDecimal:
		return "REAL"
	case plan.KindDate, plan.KindDatetime:
		return "TEXT"
	case plan.KindJSON:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func (d *Driver) columnDefinition(col plan.ColumnPlan) string {
	parts := []string{d.QuoteIdentifier(col.Name), d.columnType(col)}
	if col.IsPrimaryKey {
		parts = append(parts, "PRIMARY KEY")
		if col.Type == plan.KindInteger || col.Type == plan.KindBigInt {
			parts = append(parts, "AUTOINCREMENT")
		}
	}
	if !col.IsNullable && !col.IsPrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if col.Type == plan.KindEnum && len(col.EnumValues) > 0 {
		quoted := make([]string, len(col.EnumValues))
		for i, v := range col.EnumValues {
			quoted[i] = d.QuoteString(v)
		}
		parts = append(parts, fmt.Sprintf("CHECK (%s IN (%s))", d.QuoteIdentifier(col.Name), strings.Join(quoted, ", ")))
	}
	if def := dialect.FormatDefault(col, d.QuoteString, d.boolLiteral, "CURRENT_TIMESTAMP"); def != "" {
		parts = append(parts, "DEFAULT "+def)
	}
	return strings.Join(parts, " ")
}

// CreateTable renders `CREATE TABLE`. A single-column INTEGER PRIMARY KEY is
// declared inline (required for AUTOINCREMENT to apply); composite primary
// keys fall back to a trailing PRIMARY KEY(...) clause.
func (d *Driver) CreateTable(t plan.TablePlan) string {
	var pkCols []string
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			pkCols = append(pkCols, col.Name)
		}
	}
	singlePK := len(pkCols) == 1

	var lines []string
	for _, col := range t.Columns {
		if col.IsPrimaryKey && singlePK {
			lines = append(lines, "  "+d.columnDefinition(col))
			continue
		}
		c := col
		c.IsPrimaryKey = false
		lines = append(lines, "  "+d.columnDefinition(c))
	}
	if !singlePK && len(pkCols) > 0 {
		quoted := make([]string, len(pkCols))
		for i, c := range pkCols {
			quoted[i] = d.QuoteIdentifier(c)
		}
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", d.QuoteIdentifier(t.Table), strings.Join(lines, ",\n"))
}

// DropTable drops a table.
func (d *Driver) DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteIdentifier(table))
}

// CreateIndex creates an index.
func (d *Driver) CreateIndex(table string, idx plan.IndexPlan) string {
	unique := ""
	if idx.Type == plan.IndexUnique {
		unique = "UNIQUE "
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = d.QuoteIdentifier(c)
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s);",
		unique, d.QuoteIdentifier(indexName(table, idx.Name)), d.QuoteIdentifier(table), strings.Join(cols, ", "))
}

// DropIndex drops an index by name.
func (d *Driver) DropIndex(table, indexName string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", d.QuoteIdentifier(indexName))
}

// AddForeignKey is a structural no-op on SQLite: foreign keys can only be
// declared at CREATE TABLE time, so adding one after the fact requires a
// table rebuild. It returns a SQL comment saying so rather than a standalone
// ALTER statement; no rebuild is performed.
func (d *Driver) AddForeignKey(table, column, refTable, refColumn string) string {
	return fmt.Sprintf("-- sqlite: foreign key %s(%s) -> %s(%s) requires table rebuild",
		table, column, refTable, refColumn)
}

// DropForeignKey is likewise a structural no-op requiring table rebuild.
func (d *Driver) DropForeignKey(table, constraintName string) string {
	return fmt.Sprintf("-- sqlite: dropping foreign key %s on %s requires table rebuild", constraintName, table)
}

// AddColumn adds a column to an existing table.
func (d *Driver) AddColumn(table string, col plan.ColumnPlan) string {
	c := col
	c.IsPrimaryKey = false
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", d.QuoteIdentifier(table), d.columnDefinition(c))
}

// ModifyColumn has no direct SQLite equivalent; altering a column's type or
// constraints requires a table rebuild (create-copy-swap). It returns a SQL
// comment saying so; no rebuild is performed.
func (d *Driver) ModifyColumn(table string, col plan.ColumnPlan) string {
	return fmt.Sprintf("-- sqlite: modifying column %s on %s requires table rebuild", col.Name, table)
}

// DropColumn drops a column (supported natively since SQLite 3.35).
func (d *Driver) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", d.QuoteIdentifier(table), d.QuoteIdentifier(column))
}

// CreateMigrationsTable creates the migrations-tracking table.
func (d *Driver) CreateMigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS "qb_migrations" (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "name" TEXT NOT NULL UNIQUE,
  "applied_at" TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
}

// GetExecutedMigrationsQuery returns the query to list applied migrations.
func (d *Driver) GetExecutedMigrationsQuery() string {
	return `SELECT "name" FROM "qb_migrations" ORDER BY "id" ASC;`
}

// RecordMigrationQuery returns the insert query (and its args) that records
// a migration as applied.
func (d *Driver) RecordMigrationQuery(name string) (string, []any) {
	return `INSERT INTO "qb_migrations" ("name") VALUES (?);`, []any{name}
}

func indexName(table, planName string) string {
	return fmt.Sprintf("%s_%s", table, planName)
}
