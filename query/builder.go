// Package query implements the relational query builder (C8): a
// table-bound, append-only clause list that renders to parameterized SQL
// and executes through the Executor collaborator.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pieczasz-labs/qb/schema"
)

// Config mirrors the recognized configuration options from §6 that affect
// query-builder behavior.
type Config struct {
	SoftDeletesEnabled      bool
	SoftDeletesColumn       string
	SoftDeletesDefaultFilter bool
	MaxDepth                int
	MaxEagerLoad            int
	DebugCaptureText        bool
	Hooks                   *Hooks
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SoftDeletesColumn:       "deleted_at",
		SoftDeletesDefaultFilter: true,
		MaxDepth:                10,
		MaxEagerLoad:            50,
	}
}

type whereKind int

const (
	whereBasic whereKind = iota
	whereIn
	whereNotIn
	whereLike
	whereBetween
	whereNullKind
	whereNotNullKind
	whereColumnKind
	whereRawKind
	whereExists
	whereNotExists
)

type whereClause struct {
	boolean string // "AND" or "OR"
	kind    whereKind
	column  string
	op      string
	value   any
	values  []any
	low     any
	high    any
	raw     string
	rawArgs []any
}

type orderClause struct {
	column string
	desc   bool
}

// Builder is bound to a single table and accumulates clauses until a
// terminal method renders and/or executes them.
type Builder struct {
	table    string
	meta     *schema.Meta
	cfg      Config
	executor Executor

	columns  []string
	distinct bool

	wheres  []whereClause
	havings []whereClause

	orderBys []orderClause
	groupBys []string

	limitVal  *int
	offsetVal *int

	softDeleteMode softDeleteMode

	withs       []eagerLoadSpec
	withCounts  []string
	withPivots  map[string][]string

	lastSQL  string
	lastArgs []any
}

type softDeleteMode int

const (
	softDeleteDefault softDeleteMode = iota
	softDeleteWithTrashed
	softDeleteOnlyTrashed
)

// New constructs a Builder bound to table.
func New(table string, meta *schema.Meta, cfg Config, executor Executor) *Builder {
	return &Builder{
		table:      table,
		meta:       meta,
		cfg:        cfg,
		executor:   executor,
		withPivots: map[string][]string{},
	}
}

// clone returns a shallow structural copy so that branching builder state
// (e.g. the LIMIT or projection a First/Count/Pluck/Paginate call adds)
// never mutates the caller's accumulated clauses, mirroring the teacher
// donor's Clone() discipline.
func (b *Builder) clone() *Builder {
	nb := *b
	nb.columns = append([]string(nil), b.columns...)
	nb.wheres = append([]whereClause(nil), b.wheres...)
	nb.havings = append([]whereClause(nil), b.havings...)
	nb.orderBys = append([]orderClause(nil), b.orderBys...)
	nb.groupBys = append([]string(nil), b.groupBys...)
	nb.withs = append([]eagerLoadSpec(nil), b.withs...)
	nb.withCounts = append([]string(nil), b.withCounts...)
	nb.withPivots = map[string][]string{}
	for k, v := range b.withPivots {
		nb.withPivots[k] = append([]string(nil), v...)
	}
	return &nb
}

// Table returns the bound table name.
func (b *Builder) Table() string { return b.table }

// Select sets the projected columns (replacing the default `*`).
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Distinct marks the query SELECT DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Where adds a predicate. Two-arg form (column, value) defaults the
// operator to "=". Three-arg form is (column, op, value).
func (b *Builder) Where(column string, args ...any) *Builder {
	return b.whereBoolean("AND", column, args...)
}

// OrWhere adds an OR-joined predicate.
func (b *Builder) OrWhere(column string, args ...any) *Builder {
	return b.whereBoolean("OR", column, args...)
}

func (b *Builder) whereBoolean(boolean, column string, args ...any) *Builder {
	op, value := "=", any(nil)
	switch len(args) {
	case 1:
		value = args[0]
	case 2:
		if s, ok := args[0].(string); ok {
			op = s
		}
		value = args[1]
	}
	b.wheres = append(b.wheres, whereClause{boolean: boolean, kind: whereBasic, column: column, op: op, value: value})
	return b
}

// WhereIn adds a `column IN (...)` predicate.
func (b *Builder) WhereIn(column string, values ...any) *Builder {
	b.wheres = append(b.wheres, whereClause{boolean: "AND", kind: whereIn, column: column, values: values})
	return b
}

// WhereNotIn adds a `column NOT IN (...)` predicate.
func (b *Builder) WhereNotIn(column string, values ...any) *Builder {
	b.wheres = append(b.wheres, whereClause{boolean: "AND", kind: whereNotIn, column: column, values: values})
	return b
}

// WhereLike adds a `column LIKE pattern` predicate.
func (b *Builder) WhereLike(column, pattern string) *Builder {
	b.wheres = append(b.wheres, whereClause{boolean: "AND", kind: whereLike, column: column, value: pattern})
	return b
}

// WhereBetween adds a `column BETWEEN low AND high` predicate.
func (b *Builder) WhereBetween(column string, low, high any) *Builder {
	b.wheres = append(b.wheres, whereClause{boolean: "AND", kind: whereBetween, column: column, low: low, high: high})
	return b
}

// WhereNull adds a `column IS NULL` predicate.
func (b *Builder) WhereNull(column string) *Builder {
	b.wheres = append(b.wheres, whereClause{boolean: "AND", kind: whereNullKind, column: column})
	return b
}

// WhereNotNull adds a `column IS NOT NULL` predicate.
func (b *Builder) WhereNotNull(column string) *Builder {
	b.wheres = append(b.wheres, whereClause{boolean: "AND", kind: whereNotNullKind, column: column})
	return b
}

// WhereDynamic dispatches a `where{ColumnName}(value)` call by method name,
// e.g. "whereEmail" -> column "email", "whereUserId" -> column "user_id".
// This is the idiomatic-Go stand-in for the dynamically-named predicate
// methods of §4.8: Go has no runtime method synthesis, so the single
// dispatcher takes the method name as a string instead of exposing one
// generated method per column.
func (b *Builder) WhereDynamic(method string, value any) (*Builder, error) {
	const prefix = "where"
	if !strings.HasPrefix(method, prefix) || len(method) <= len(prefix) {
		return nil, fmt.Errorf("query: %q is not a where{Column} method name", method)
	}
	column := pascalToSnake(method[len(prefix):])
	return b.Where(column, value), nil
}

// pascalToSnake converts "UserId" -> "user_id", "Email" -> "email".
func pascalToSnake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// OrderBy adds an ascending-or-descending sort key.
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.orderBys = append(b.orderBys, orderClause{column: column, desc: strings.EqualFold(direction, "desc")})
	return b
}

// OrderByDesc adds a descending sort key.
func (b *Builder) OrderByDesc(column string) *Builder {
	return b.OrderBy(column, "desc")
}

// Latest orders by column (default "created_at") descending.
func (b *Builder) Latest(column ...string) *Builder {
	col := "created_at"
	if len(column) > 0 && column[0] != "" {
		col = column[0]
	}
	return b.OrderByDesc(col)
}

// Oldest orders by column (default "created_at") ascending.
func (b *Builder) Oldest(column ...string) *Builder {
	col := "created_at"
	if len(column) > 0 && column[0] != "" {
		col = column[0]
	}
	return b.OrderBy(col, "asc")
}

// Limit caps the result set size.
func (b *Builder) Limit(n int) *Builder {
	b.limitVal = &n
	return b
}

// Take is an alias for Limit.
func (b *Builder) Take(n int) *Builder { return b.Limit(n) }

// Skip/Offset skips the first n rows.
func (b *Builder) Skip(n int) *Builder {
	b.offsetVal = &n
	return b
}

// Offset is an alias for Skip.
func (b *Builder) Offset(n int) *Builder { return b.Skip(n) }

// GroupBy sets the GROUP BY columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBys = append(b.groupBys, columns...)
	return b
}

// Having adds a HAVING predicate (same shape as Where, applied post-group).
func (b *Builder) Having(column string, args ...any) *Builder {
	op, value := "=", any(nil)
	switch len(args) {
	case 1:
		value = args[0]
	case 2:
		if s, ok := args[0].(string); ok {
			op = s
		}
		value = args[1]
	}
	b.havings = append(b.havings, whereClause{boolean: "AND", kind: whereBasic, column: column, op: op, value: value})
	return b
}

// WithTrashed includes soft-deleted rows (omits the default deleted_at IS
// NULL filter) without restricting to only them.
func (b *Builder) WithTrashed() *Builder {
	b.softDeleteMode = softDeleteWithTrashed
	return b
}

// OnlyTrashed restricts results to soft-deleted rows.
func (b *Builder) OnlyTrashed() *Builder {
	b.softDeleteMode = softDeleteOnlyTrashed
	return b
}

// ToSQL renders the accumulated clauses into a parameterized SELECT
// statement and its positional argument list.
func (b *Builder) ToSQL() (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	projection := b.projection()
	sb.WriteString(strings.Join(projection, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	whereSQL, whereArgs := b.renderWheres(b.effectiveWheres())
	if whereSQL != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
		args = append(args, whereArgs...)
	}

	if len(b.groupBys) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBys, ", "))
	}

	if havingSQL, havingArgs := b.renderWheres(b.havings); havingSQL != "" {
		sb.WriteString(" HAVING ")
		sb.WriteString(havingSQL)
		args = append(args, havingArgs...)
	}

	if len(b.orderBys) > 0 {
		parts := make([]string, len(b.orderBys))
		for i, o := range b.orderBys {
			dir := "ASC"
			if o.desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", o.column, dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limitVal != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*b.limitVal))
	}
	if b.offsetVal != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(*b.offsetVal))
	}

	sql := sb.String()
	b.lastSQL, b.lastArgs = sql, args
	return sql, args
}

func (b *Builder) projection() []string {
	var cols []string
	if len(b.columns) == 0 {
		cols = append(cols, "*")
	} else {
		cols = append(cols, b.columns...)
	}
	for _, rel := range b.withCounts {
		cols = append(cols, countSubquery(b, rel)+" AS "+rel+"_count")
	}
	for rel, pivotCols := range b.withPivots {
		for _, c := range pivotCols {
			cols = append(cols, fmt.Sprintf("pivot.%s AS pivot_%s", c, c))
		}
		_ = rel
	}
	return cols
}

// effectiveWheres folds the soft-delete default filter into the where list
// without mutating the builder's own accumulated clauses.
func (b *Builder) effectiveWheres() []whereClause {
	if !b.cfg.SoftDeletesEnabled || b.softDeleteMode == softDeleteWithTrashed {
		return b.wheres
	}
	col := b.cfg.SoftDeletesColumn
	if col == "" {
		col = "deleted_at"
	}
	extra := whereClause{boolean: "AND", kind: whereNullKind, column: col}
	if b.softDeleteMode == softDeleteOnlyTrashed {
		extra = whereClause{boolean: "AND", kind: whereNotNullKind, column: col}
	} else if !b.cfg.SoftDeletesDefaultFilter {
		return b.wheres
	}
	out := make([]whereClause, 0, len(b.wheres)+1)
	out = append(out, b.wheres...)
	out = append(out, extra)
	return out
}

func (b *Builder) renderWheres(clauses []whereClause) (string, []any) {
	if len(clauses) == 0 {
		return "", nil
	}
	var parts []string
	var args []any
	for i, c := range clauses {
		frag, fragArgs := renderClause(c)
		if i > 0 {
			parts = append(parts, c.boolean, frag)
		} else {
			parts = append(parts, frag)
		}
		args = append(args, fragArgs...)
	}
	return strings.Join(parts, " "), args
}

func renderClause(c whereClause) (string, []any) {
	switch c.kind {
	case whereBasic:
		return fmt.Sprintf("%s %s ?", c.column, c.op), []any{c.value}
	case whereIn:
		if len(c.values) == 0 {
			return "1 = 0", nil
		}
		return fmt.Sprintf("%s IN (%s)", c.column, placeholders(len(c.values))), c.values
	case whereNotIn:
		if len(c.values) == 0 {
			return "1 = 1", nil
		}
		return fmt.Sprintf("%s NOT IN (%s)", c.column, placeholders(len(c.values))), c.values
	case whereLike:
		return fmt.Sprintf("%s LIKE ?", c.column), []any{c.value}
	case whereBetween:
		return fmt.Sprintf("%s BETWEEN ? AND ?", c.column), []any{c.low, c.high}
	case whereNullKind:
		return fmt.Sprintf("%s IS NULL", c.column), nil
	case whereNotNullKind:
		return fmt.Sprintf("%s IS NOT NULL", c.column), nil
	case whereColumnKind:
		return fmt.Sprintf("%s %s %s", c.column, c.op, c.value), nil
	case whereExists:
		return fmt.Sprintf("EXISTS (%s)", c.raw), c.rawArgs
	case whereNotExists:
		return fmt.Sprintf("NOT EXISTS (%s)", c.raw), c.rawArgs
	case whereRawKind:
		return c.raw, c.rawArgs
	default:
		return "1 = 1", nil
	}
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

// Get executes the query and returns every matching row.
func (b *Builder) Get(ctx context.Context) ([]map[string]any, error) {
	if b.executor == nil {
		return nil, fmt.Errorf("query: no executor configured for table %q", b.table)
	}
	sql, args := b.ToSQL()
	return runWithHooks(ctx, b.cfg.Hooks, b.table, sql, args, func() ([]map[string]any, error) {
		return b.executor.Query(ctx, sql, args)
	})
}

// First executes the query with an implicit LIMIT 1 and returns the first
// row, or nil if there were none.
func (b *Builder) First(ctx context.Context) (map[string]any, error) {
	nb := b.clone()
	nb.Limit(1)
	rows, err := nb.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count returns the number of matching rows.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	nb := b.clone()
	nb.columns = []string{"COUNT(*) AS count"}
	nb.orderBys = nil
	nb.limitVal, nb.offsetVal = nil, nil
	rows, err := nb.Get(ctx)
	if err != nil {
		return 0, err
	}
	return extractCount(rows)
}

func extractCount(rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["count"])
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("query: cannot convert %T to int64", v)
	}
}

// aggregate builds a single-column aggregate terminal (sum/avg/min/max).
func (b *Builder) aggregate(ctx context.Context, fn, column string) (float64, error) {
	nb := b.clone()
	alias := strings.ToLower(fn) + "_result"
	nb.columns = []string{fmt.Sprintf("%s(%s) AS %s", fn, column, alias)}
	nb.orderBys = nil
	nb.limitVal, nb.offsetVal = nil, nil
	rows, err := nb.Get(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	switch n := rows[0][alias].(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("query: cannot convert %T to float64", rows[0][alias])
	}
}

// Sum is the SUM(column) terminal aggregate.
func (b *Builder) Sum(ctx context.Context, column string) (float64, error) { return b.aggregate(ctx, "SUM", column) }

// Avg is the AVG(column) terminal aggregate.
func (b *Builder) Avg(ctx context.Context, column string) (float64, error) { return b.aggregate(ctx, "AVG", column) }

// Min is the MIN(column) terminal aggregate.
func (b *Builder) Min(ctx context.Context, column string) (float64, error) { return b.aggregate(ctx, "MIN", column) }

// Max is the MAX(column) terminal aggregate.
func (b *Builder) Max(ctx context.Context, column string) (float64, error) { return b.aggregate(ctx, "MAX", column) }

// Exists returns true if the query matches at least one row.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	count, err := b.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Pluck returns a single column's values across every matching row.
func (b *Builder) Pluck(ctx context.Context, column string) ([]any, error) {
	nb := b.clone()
	nb.columns = []string{column}
	rows, err := nb.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[column]
	}
	return out, nil
}

// Page is a single page of a Paginate call.
type Page struct {
	Rows       []map[string]any
	Total      int64
	Page       int
	PerPage    int
	LastPage   int
}

// Paginate runs the query twice (count, then a LIMIT/OFFSET page) and
// returns the combined result.
func (b *Builder) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 15
	}
	total, err := b.Count(ctx)
	if err != nil {
		return nil, err
	}
	nb := b.clone()
	nb.Limit(perPage)
	nb.Skip((page - 1) * perPage)
	rows, err := nb.Get(ctx)
	if err != nil {
		return nil, err
	}
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	return &Page{Rows: rows, Total: total, Page: page, PerPage: perPage, LastPage: lastPage}, nil
}

// Create executes an INSERT of a single row and returns the driver-assigned
// last insert id. Hooks (beforeCreate/afterCreate) wrap the execution when
// configured.
func (b *Builder) Create(ctx context.Context, values map[string]any) (int64, error) {
	if b.executor == nil {
		return 0, fmt.Errorf("query: no executor configured for table %q", b.table)
	}
	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	keys := sortedKeyList(values)
	for _, k := range keys {
		cols = append(cols, k)
		args = append(args, values[k])
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", b.table, strings.Join(cols, ", "), placeholders(len(cols)))

	if b.cfg.Hooks != nil {
		if err := b.cfg.Hooks.fire(ctx, HookBeforeCreate, HookContext{Table: b.table, Data: values}); err != nil {
			return 0, err
		}
	}
	_, lastInsertID, err := b.executor.Exec(ctx, sql, args)
	if err != nil {
		return 0, err
	}
	if b.cfg.Hooks != nil {
		if herr := b.cfg.Hooks.fire(ctx, HookAfterCreate, HookContext{Table: b.table, Data: values, Result: lastInsertID}); herr != nil {
			return lastInsertID, herr
		}
	}
	return lastInsertID, nil
}

// Update executes an UPDATE over the builder's WHERE clauses and returns
// the number of affected rows. Hooks (beforeUpdate/afterUpdate) wrap the
// execution when configured.
func (b *Builder) Update(ctx context.Context, values map[string]any) (int64, error) {
	if b.executor == nil {
		return 0, fmt.Errorf("query: no executor configured for table %q", b.table)
	}
	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	keys := sortedKeyList(values)
	for _, k := range keys {
		cols = append(cols, k+" = ?")
		args = append(args, values[k])
	}
	whereSQL, whereArgs := b.renderWheres(b.effectiveWheres())
	sql := fmt.Sprintf("UPDATE %s SET %s", b.table, strings.Join(cols, ", "))
	if whereSQL != "" {
		sql += " WHERE " + whereSQL
		args = append(args, whereArgs...)
	}

	if b.cfg.Hooks != nil {
		if err := b.cfg.Hooks.fire(ctx, HookBeforeUpdate, HookContext{Table: b.table, Data: values}); err != nil {
			return 0, err
		}
	}
	affected, _, err := b.executor.Exec(ctx, sql, args)
	if err != nil {
		return 0, err
	}
	if b.cfg.Hooks != nil {
		if herr := b.cfg.Hooks.fire(ctx, HookAfterUpdate, HookContext{Table: b.table, Data: values, Result: affected}); herr != nil {
			return affected, herr
		}
	}
	return affected, nil
}

// Delete executes a DELETE over the builder's WHERE clauses (or, when
// soft-delete discipline is enabled, an UPDATE setting the deleted_at
// column) and returns the number of affected rows.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	if b.cfg.SoftDeletesEnabled && b.softDeleteMode != softDeleteWithTrashed {
		return b.Update(ctx, map[string]any{b.cfg.SoftDeletesColumn: nowPlaceholder()})
	}
	if b.executor == nil {
		return 0, fmt.Errorf("query: no executor configured for table %q", b.table)
	}
	whereSQL, whereArgs := b.renderWheres(b.wheres)
	sql := fmt.Sprintf("DELETE FROM %s", b.table)
	if whereSQL != "" {
		sql += " WHERE " + whereSQL
	}
	if b.cfg.Hooks != nil {
		if err := b.cfg.Hooks.fire(ctx, HookBeforeDelete, HookContext{Table: b.table, Where: whereArgs}); err != nil {
			return 0, err
		}
	}
	affected, _, err := b.executor.Exec(ctx, sql, whereArgs)
	if err != nil {
		return 0, err
	}
	if b.cfg.Hooks != nil {
		if herr := b.cfg.Hooks.fire(ctx, HookAfterDelete, HookContext{Table: b.table, Result: affected}); herr != nil {
			return affected, herr
		}
	}
	return affected, nil
}

// nowPlaceholder supplies the value a soft delete writes into the deleted_at
// column. Soft-delete marking needs an explicit value from the application
// clock; it is a package variable so tests can substitute a fixed time.
var nowPlaceholder = func() any { return time.Now().UTC() }

func sortedKeyList(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort: these maps are small (column lists), and this
	// avoids importing "sort" purely for a handful of elements here.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
