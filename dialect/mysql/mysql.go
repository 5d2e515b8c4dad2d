// Package mysql implements the MySQL dialect driver (§4.4), grounded on the
// teacher's internal/dialect/mysql driver.
package mysql

import (
	"fmt"
	"strings"

	"github.com/pieczasz-labs/qb/dialect"
	"github.com/pieczasz-labs/qb/plan"
)

func init() {
	dialect.Register(dialect.MySQL, func() dialect.Driver { return New() })
}

// Driver renders MySQL DDL: backtick-quoted identifiers, explicit
// AUTO_INCREMENT on integer/bigint primary keys, and enum values inlined
// into the column definition rather than a separate type.
type Driver struct{}

// New constructs a MySQL dialect driver.
func New() *Driver { return &Driver{} }

// Name returns the dialect type.
func (d *Driver) Name() dialect.Type { return dialect.MySQL }

// QuoteIdentifier backtick-quotes an identifier, doubling embedded backticks.
func (d *Driver) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteString single-quotes a string literal, escaping embedded quotes and
// backslashes the way the teacher's driver does.
func (d *Driver) QuoteString(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

func (d *Driver) boolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CreateEnumType is a no-op on MySQL: enums are inlined into the column
// definition, so there is no separate type to create.
func (d *Driver) CreateEnumType(name string, values []string) string {
	return ""
}

// DropEnumType is a no-op on MySQL for the same reason.
func (d *Driver) DropEnumType(name string) string {
	return ""
}

func (d *Driver) columnType(col plan.ColumnPlan) string {
	switch col.Type {
	case plan.KindString:
		return "VARCHAR(255)"
	case plan.KindText:
		return "TEXT"
	case plan.KindBoolean:
		return "TINYINT(1)"
	case plan.KindInteger:
		return "INT"
	case plan.KindBigInt:
		return "BIGINT"
	case plan.KindFloat:
		return "FLOAT"
	case plan.KindDouble:
		return "DOUBLE"
	case plan.KindDecimal:
		return "DECIMAL(18,4)"
	case plan.KindDate:
		return "DATE"
	case plan.KindDatetime:
		return "DATETIME"
	case plan.KindJSON:
		return "JSON"
	case plan.KindEnum:
		quoted := make([]string, len(col.EnumValues))
		for i, v := range col.EnumValues {
			quoted[i] = d.QuoteString(v)
		}
		return fmt.Sprintf("ENUM(%s)", strings.Join(quoted, ", "))
	default:
		return "TEXT"
	}
}

func (d *Driver) columnDefinition(col plan.ColumnPlan) string {
	parts := []string{d.QuoteIdentifier(col.Name), d.columnType(col)}
	if !col.IsNullable {
		parts = append(parts, "NOT NULL")
	}
	if col.IsPrimaryKey && (col.Type == plan.KindInteger || col.Type == plan.KindBigInt) {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if def := dialect.FormatDefault(col, d.QuoteString, d.boolLiteral, "CURRENT_TIMESTAMP"); def != "" {
		parts = append(parts, "DEFAULT "+def)
	}
	return strings.Join(parts, " ")
}

// CreateTable renders `CREATE TABLE ... ENGINE=InnoDB`, matching the
// teacher's GenerateCreateTable structure.
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
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		d.QuoteIdentifier(t.Table), strings.Join(lines, ",\n"))
}

// DropTable drops a table.
func (d *Driver) DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.QuoteIdentifier(table))
}

// CreateIndex creates an index; MySQL has no `IF NOT EXISTS` for indexes, so
// the statement fails if an index of the same name already exists.
func (d *Driver) CreateIndex(table string, idx plan.IndexPlan) string {
	unique := ""
	if idx.Type == plan.IndexUnique {
		unique = "UNIQUE "
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = d.QuoteIdentifier(c)
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);",
		unique, d.QuoteIdentifier(indexName(table, idx.Name)), d.QuoteIdentifier(table), strings.Join(cols, ", "))
}

// DropIndex drops an index; MySQL requires the owning table name.
func (d *Driver) DropIndex(table, indexName string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s;", d.QuoteIdentifier(indexName), d.QuoteIdentifier(table))
}

// AddForeignKey adds a named foreign-key constraint.
func (d *Driver) AddForeignKey(table, column, refTable, refColumn string) string {
	name := fkName(table, column)
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
		d.QuoteIdentifier(table), d.QuoteIdentifier(name), d.QuoteIdentifier(column), d.QuoteIdentifier(refTable), d.QuoteIdentifier(refColumn))
}

// DropForeignKey drops a named constraint.
func (d *Driver) DropForeignKey(table, constraintName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s;", d.QuoteIdentifier(table), d.QuoteIdentifier(constraintName))
}

// AddColumn adds a column to an existing table.
func (d *Driver) AddColumn(table string, col plan.ColumnPlan) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", d.QuoteIdentifier(table), d.columnDefinition(col))
}

// ModifyColumn alters a column in place via MODIFY COLUMN.
func (d *Driver) ModifyColumn(table string, col plan.ColumnPlan) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", d.QuoteIdentifier(table), d.columnDefinition(col))
}

// DropColumn drops a column.
func (d *Driver) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", d.QuoteIdentifier(table), d.QuoteIdentifier(column))
}

// CreateMigrationsTable creates the migrations-tracking table.
func (d *Driver) CreateMigrationsTable() string {
	return "CREATE TABLE IF NOT EXISTS `qb_migrations` (\n" +
		"  `id` INT NOT NULL AUTO_INCREMENT,\n" +
		"  `name` VARCHAR(255) NOT NULL UNIQUE,\n" +
		"  `applied_at` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;"
}

// GetExecutedMigrationsQuery returns the query to list applied migrations.
func (d *Driver) GetExecutedMigrationsQuery() string {
	return "SELECT `name` FROM `qb_migrations` ORDER BY `id` ASC;"
}

// RecordMigrationQuery returns the insert query (and its args) that records
// a migration as applied, using MySQL's `?` placeholder style.
func (d *Driver) RecordMigrationQuery(name string) (string, []any) {
	return "INSERT INTO `qb_migrations` (`name`) VALUES (?);", []any{name}
}

func indexName(table, planName string) string {
	return fmt.Sprintf("%s_%s", table, planName)
}

func fkName(table, column string) string {
	return fmt.Sprintf("%s_%s_fk", table, column)
}
