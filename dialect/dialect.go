// Package dialect provides the unified interface every supported SQL
// dialect implements (§4.4), plus the registry concrete drivers register
// themselves into at init time — mirroring the teacher's dialect registry
// but generalized from a single MySQL implementation to several.
package dialect

import (
	"fmt"
	"sync"

	"github.com/pieczasz-labs/qb/plan"
)

// Type identifies a supported SQL dialect.
type Type string

const (
	Postgres Type = "postgres"
	MySQL    Type = "mysql"
	SQLite   Type = "sqlite"
)

// Driver renders plan-level structures into dialect-specific DDL strings.
// Most methods return a single complete statement. A driver may return
// several newline-separated statements (PostgreSQL's ModifyColumn does), a
// SQL comment where the dialect has no direct equivalent, or the empty
// string for an operation that is a no-op in that dialect.
type Driver interface {
	Name() Type

	QuoteIdentifier(name string) string
	QuoteString(value string) string

	CreateEnumType(name string, values []string) string
	DropEnumType(name string) string

	CreateTable(t plan.TablePlan) string
	DropTable(table string) string

	CreateIndex(table string, idx plan.IndexPlan) string
	DropIndex(table, indexName string) string

	AddForeignKey(table, column, refTable, refColumn string) string
	DropForeignKey(table, constraintName string) string

	AddColumn(table string, col plan.ColumnPlan) string
	ModifyColumn(table string, col plan.ColumnPlan) string
	DropColumn(table, column string) string

	CreateMigrationsTable() string
	GetExecutedMigrationsQuery() string
	RecordMigrationQuery(name string) (query string, args []any)
}

var (
	registryMu sync.RWMutex
	registry   = map[Type]func() Driver{}
)

// Register adds a constructor for a dialect to the registry. Concrete
// dialect packages call this from an init() function.
func Register(t Type, ctor func() Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = ctor
}

// Get returns a freshly constructed Driver for the given dialect type.
func Get(t Type) (Driver, error) {
	registryMu.RLock()
	ctor, ok := registry[t]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dialect: %q is not registered (missing blank import of its package?)", t)
	}
	return ctor(), nil
}
