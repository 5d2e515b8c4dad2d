package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	rows       []map[string]any
	queryErr   error
	lastQuery  string
	lastArgs   []any
	execAffected int64
	execLastID int64
	execErr    error
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	f.lastQuery, f.lastArgs = query, args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args []any) (int64, int64, error) {
	f.lastQuery, f.lastArgs = query, args
	return f.execAffected, f.execLastID, f.execErr
}

func TestToSQLBasicWhere(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	b.Where("email", "a@example.com")
	sql, args := b.ToSQL()
	assert.Equal(t, "SELECT * FROM users WHERE email = ?", sql)
	assert.Equal(t, []any{"a@example.com"}, args)
}

func TestToSQLThreeArgOperator(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	b.Where("age", ">", 18)
	sql, args := b.ToSQL()
	assert.Equal(t, "SELECT * FROM users WHERE age > ?", sql)
	assert.Equal(t, []any{18}, args)
}

func TestToSQLOrWhere(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	b.Where("a", 1).OrWhere("b", 2)
	sql, _ := b.ToSQL()
	assert.Equal(t, "SELECT * FROM users WHERE a = ? OR b = ?", sql)
}

func TestToSQLWhereInEmpty(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	b.WhereIn("id")
	sql, _ := b.ToSQL()
	assert.Contains(t, sql, "1 = 0")
}

func TestToSQLWhereBetween(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	b.WhereBetween("age", 18, 65)
	sql, args := b.ToSQL()
	assert.Contains(t, sql, "age BETWEEN ? AND ?")
	assert.Equal(t, []any{18, 65}, args)
}

func TestToSQLOrderLimitOffset(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	b.OrderByDesc("created_at").Limit(10).Skip(5)
	sql, _ := b.ToSQL()
	assert.Contains(t, sql, "ORDER BY created_at DESC")
	assert.Contains(t, sql, "LIMIT 10")
	assert.Contains(t, sql, "OFFSET 5")
}

func TestToSQLGroupByHaving(t *testing.T) {
	b := New("orders", nil, DefaultConfig(), nil)
	b.GroupBy("customer_id").Having("count", ">", 1)
	sql, _ := b.ToSQL()
	assert.Contains(t, sql, "GROUP BY customer_id")
	assert.Contains(t, sql, "HAVING count > ?")
}

func TestWhereDynamicDispatch(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	nb, err := b.WhereDynamic("whereUserId", 7)
	require.NoError(t, err)
	sql, args := nb.ToSQL()
	assert.Contains(t, sql, "user_id = ?")
	assert.Equal(t, []any{7}, args)
}

func TestWhereDynamicRejectsNonWherePrefix(t *testing.T) {
	b := New("users", nil, DefaultConfig(), nil)
	_, err := b.WhereDynamic("filterEmail", "x")
	assert.Error(t, err)
}

func TestSoftDeleteDefaultFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDeletesEnabled = true
	b := New("users", nil, cfg, nil)
	sql, _ := b.ToSQL()
	assert.Contains(t, sql, "deleted_at IS NULL")
}

func TestWithTrashedOmitsFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDeletesEnabled = true
	b := New("users", nil, cfg, nil)
	b.WithTrashed()
	sql, _ := b.ToSQL()
	assert.NotContains(t, sql, "deleted_at")
}

func TestOnlyTrashedUsesNotNull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDeletesEnabled = true
	b := New("users", nil, cfg, nil)
	b.OnlyTrashed()
	sql, _ := b.ToSQL()
	assert.Contains(t, sql, "deleted_at IS NOT NULL")
}

func TestGetUsesExecutor(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"id": int64(1)}}}
	b := New("users", nil, DefaultConfig(), exec)
	rows, err := b.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFirstAppliesLimitOne(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"id": int64(1)}}}
	b := New("users", nil, DefaultConfig(), exec)
	row, err := b.First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])
	assert.Contains(t, exec.lastQuery, "LIMIT 1")
}

func TestFirstNoRowsReturnsNil(t *testing.T) {
	exec := &fakeExecutor{rows: nil}
	b := New("users", nil, DefaultConfig(), exec)
	row, err := b.First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCountExtractsValue(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"count": int64(42)}}}
	b := New("users", nil, DefaultConfig(), exec)
	n, err := b.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestExistsTrueWhenCountPositive(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"count": int64(1)}}}
	b := New("users", nil, DefaultConfig(), exec)
	ok, err := b.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPluckReturnsColumnValues(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"email": "a@x.com"}, {"email": "b@x.com"}}}
	b := New("users", nil, DefaultConfig(), exec)
	vals, err := b.Pluck(context.Background(), "email")
	require.NoError(t, err)
	assert.Equal(t, []any{"a@x.com", "b@x.com"}, vals)
}

func TestCreateRendersInsertAndReturnsLastInsertID(t *testing.T) {
	exec := &fakeExecutor{execLastID: 7}
	b := New("users", nil, DefaultConfig(), exec)
	id, err := b.Create(context.Background(), map[string]any{"email": "a@x.com", "name": "A"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "INSERT INTO users (email, name) VALUES (?, ?)", exec.lastQuery)
	assert.Equal(t, []any{"a@x.com", "A"}, exec.lastArgs)
}

func TestUpdateRendersSetClause(t *testing.T) {
	exec := &fakeExecutor{execAffected: 1}
	b := New("users", nil, DefaultConfig(), exec)
	b.Where("id", 1)
	n, err := b.Update(context.Background(), map[string]any{"email": "new@x.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, exec.lastQuery, "UPDATE users SET email = ?")
	assert.Contains(t, exec.lastQuery, "WHERE id = ?")
}

func TestDeleteHardWhenSoftDeleteDisabled(t *testing.T) {
	exec := &fakeExecutor{execAffected: 1}
	b := New("users", nil, DefaultConfig(), exec)
	b.Where("id", 1)
	_, err := b.Delete(context.Background())
	require.NoError(t, err)
	assert.Contains(t, exec.lastQuery, "DELETE FROM users")
}

func TestDeleteSoftWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SoftDeletesEnabled = true
	exec := &fakeExecutor{execAffected: 1}
	b := New("users", nil, cfg, exec)
	b.Where("id", 1)
	_, err := b.Delete(context.Background())
	require.NoError(t, err)
	assert.Contains(t, exec.lastQuery, "UPDATE users SET deleted_at = ?")
}

func TestPaginateComputesLastPage(t *testing.T) {
	exec := &fakeExecutor{rows: []map[string]any{{"count": int64(45)}}}
	b := New("users", nil, DefaultConfig(), exec)
	page, err := b.Paginate(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(45), page.Total)
	assert.Equal(t, 5, page.LastPage)
}
