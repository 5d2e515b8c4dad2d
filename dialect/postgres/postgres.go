// Package postgres implements the PostgreSQL dialect driver (§4.4).
package postgres

import (
	"fmt"
	"strings"

	"github.com/pieczasz-labs/qb/dialect"
	"github.com/pieczasz-labs/qb/plan"
)

func init() {
	dialect.Register(dialect.Postgres, func() dialect.Driver { return New() })
}

// Driver renders PostgreSQL DDL. Identifiers are double-quoted; integer
// auto-increment primary keys use SERIAL/BIGSERIAL rather than an explicit
// AUTO_INCREMENT-style clause.
type Driver struct{}

// New constructs a PostgreSQL dialect driver.
func New() *Driver { return &Driver{} }

// Name returns the dialect type.
func (d *Driver) Name() dialect.Type { return dialect.Postgres }

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
		return "TRUE"
	}
	return "FALSE"
}

// CreateEnumType emits a native `CREATE TYPE ... AS ENUM (...)`.
func (d *Driver) CreateEnumType(name string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = d.QuoteString(v)
	}
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", d.QuoteIdentifier(name), strings.Join(quoted, ", "))
}

// DropEnumType drops a native enum type.
func (d *Driver) DropEnumType(name string) string {
	return fmt.Sprintf("DROP TYPE IF EXISTS %s;", d.QuoteIdentifier(name))
}

func (d *Driver) columnType(col plan.ColumnPlan) string {
	switch col.Type {
	case plan.KindString:
		return "VARCHAR(255)"
	case plan.KindText:
		return "TEXT"
	case plan.KindBoolean:
		return "BOOLEAN"
	case plan.KindInteger:
		if col.IsPrimaryKey {
			return "SERIAL"
		}
		return "INTEGER"
	case plan.KindBigInt:
		if col.IsPrimaryKey {
			return "BIGSERIAL"
		}
		return "BIGINT"
	case plan.KindFloat:
		return "REAL"
	case plan.KindDouble:
		return "DOUBLE PRECISION"
	case plan.KindDecimal:
		return "DECIMAL(18,4)"
	case plan.KindDate:
		return "DATE"
	case plan.KindDatetime:
		return "TIMESTAMP"
	case plan.KindJSON:
		return "JSONB"
	case plan.KindEnum:
		quoted := make([]string, len(col.EnumValues))
		for i, v := range col.EnumValues {
			quoted[i] = d.QuoteString(v)
		}
		return fmt.Sprintf("VARCHAR(255) CHECK (%s IN (%s))", d.QuoteIdentifier(col.Name), strings.Join(quoted, ", "))
	default:
		return "TEXT"
	}
}

func (d *Driver) columnDefinition(col plan.ColumnPlan) string {
	parts := []string{d.QuoteIdentifier(col.Name), d.columnType(col)}
	if !col.IsNullable {
		parts = append(parts, "NOT NULL")
	}
	if def := dialect.FormatDefault(col, d.QuoteString, d.boolLiteral, "CURRENT_TIMESTAMP"); def != "" && col.Type != plan.KindEnum {
		parts = append(parts, "DEFAULT "+def)
	}
	return strings.Join(parts, " ")
}

// CreateTable renders `CREATE TABLE`, the primary-key constraint, and
// CHECK-enum columns inline; foreign keys and indexes are emitted as
// separate statements by the caller (the Plan Differ orders them, §4.5).
func (d *Driver) CreateTable(t plan.TablePlan) string {
	var lines []string
	var pkCols []string
	for _, col := range t.Columns {
		lines = append(lines, "  "+d.columnDefinition(col))
		if col.IsPrimaryKey {
			pkCols = append(pkCols, d.QuoteIdentifier(col.Name))
		}
	}
	if len(pkCols) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(pkCols, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", d.QuoteIdentifier(t.Table), strings.Join(lines, ",\n"))
}

// DropTable drops a table.
func (d *Driver) DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteIdentifier(table))
}

// CreateIndex creates an index; name is composed `{table}_{planName}`.
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

// AddForeignKey adds a named foreign-key constraint.
func (d *Driver) AddForeignKey(table, column, refTable, refColumn string) string {
	name := fkName(table, column)
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
		d.QuoteIdentifier(table), d.QuoteIdentifier(name), d.QuoteIdentifier(column), d.QuoteIdentifier(refTable), d.QuoteIdentifier(refColumn))
}

// DropForeignKey drops a named constraint.
func (d *Driver) DropForeignKey(table, constraintName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;", d.QuoteIdentifier(table), d.QuoteIdentifier(constraintName))
}

// AddColumn adds a column to an existing table.
func (d *Driver) AddColumn(table string, col plan.ColumnPlan) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", d.QuoteIdentifier(table), d.columnDefinition(col))
}

// ModifyColumn alters a column's type/nullability/default, using the
// PostgreSQL-specific `ALTER COLUMN ... TYPE ... USING column::type` idiom.
func (d *Driver) ModifyColumn(table string, col plan.ColumnPlan) string {
	ident := d.QuoteIdentifier(col.Name)
	tableIdent := d.QuoteIdentifier(table)
	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;", tableIdent, ident, d.columnType(col), ident, d.columnType(col)),
	}
	if col.IsNullable {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", tableIdent, ident))
	} else {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", tableIdent, ident))
	}
	if def := dialect.FormatDefault(col, d.QuoteString, d.boolLiteral, "CURRENT_TIMESTAMP"); def != "" {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", tableIdent, ident, def))
	} else {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", tableIdent, ident))
	}
	return strings.Join(stmts, "\n")
}

// DropColumn drops a column.
func (d *Driver) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", d.QuoteIdentifier(table), d.QuoteIdentifier(column))
}

// CreateMigrationsTable creates the migrations-tracking table.
func (d *Driver) CreateMigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS "qb_migrations" (
  "id" SERIAL PRIMARY KEY,
  "name" VARCHAR(255) NOT NULL UNIQUE,
  "applied_at" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
}

// GetExecutedMigrationsQuery returns the query to list applied migrations.
func (d *Driver) GetExecutedMigrationsQuery() string {
	return `SELECT "name" FROM "qb_migrations" ORDER BY "id" ASC;`
}

// RecordMigrationQuery returns the insert query (and its args) that records
// a migration as applied.
func (d *Driver) RecordMigrationQuery(name string) (string, []any) {
	return `INSERT INTO "qb_migrations" ("name") VALUES ($1);`, []any{name}
}

func indexName(table, planName string) string {
	return fmt.Sprintf("%s_%s", table, planName)
}

func fkName(table, column string) string {
	return fmt.Sprintf("%s_%s_fk", table, column)
}
