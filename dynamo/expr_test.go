package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasAllocatorReusesSameNameAlias(t *testing.T) {
	alloc := NewAliasAllocator()
	a1 := alloc.nameAlias("status")
	a2 := alloc.nameAlias("status")
	assert.Equal(t, a1, a2)
	assert.Equal(t, "#name1", a1)
}

func TestAliasAllocatorAssignsFreshValueAliasEachCall(t *testing.T) {
	alloc := NewAliasAllocator()
	a1, err := alloc.valueAlias("x")
	require.NoError(t, err)
	a2, err := alloc.valueAlias("x")
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)
}

func TestConditionBuilderEqual(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	cond, err := b.Equal("status", "active")
	require.NoError(t, err)
	assert.Equal(t, "#name1 = :val1", cond.text)
}

func TestConditionBuilderComparisonOperators(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)

	cases := []struct {
		name string
		fn   func() (Condition, error)
		op   string
	}{
		{"NotEqual", func() (Condition, error) { return b.NotEqual("x", 1) }, "<>"},
		{"LessThan", func() (Condition, error) { return b.LessThan("x", 1) }, "<"},
		{"LessEqual", func() (Condition, error) { return b.LessEqual("x", 1) }, "<="},
		{"GreaterThan", func() (Condition, error) { return b.GreaterThan("x", 1) }, ">"},
		{"GreaterEqual", func() (Condition, error) { return b.GreaterEqual("x", 1) }, ">="},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cond, err := tc.fn()
			require.NoError(t, err)
			assert.Contains(t, cond.text, tc.op)
		})
	}
}

func TestConditionBuilderBetween(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	cond, err := b.Between("score", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "#name1 BETWEEN :val1a AND :val1b", cond.text)
	assert.Contains(t, alloc.attrValues, ":val1a")
	assert.Contains(t, alloc.attrValues, ":val1b")
}

func TestConditionBuilderBeginsWith(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	cond, err := b.BeginsWith("sk", "POST#")
	require.NoError(t, err)
	assert.Equal(t, "begins_with(#name1, :val1)", cond.text)
}

func TestConditionBuilderContains(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	cond, err := b.Contains("tags", "go")
	require.NoError(t, err)
	assert.Equal(t, "contains(#name1, :val1)", cond.text)
}

func TestConditionBuilderAttributeExistsAndNotExists(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	assert.Equal(t, "attribute_exists(#name1)", b.AttributeExists("x").text)
	assert.Equal(t, "attribute_not_exists(#name2)", b.AttributeNotExists("y").text)
}

func TestConditionBuilderAttributeType(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	cond, err := b.AttributeType("x", "S")
	require.NoError(t, err)
	assert.Equal(t, "attribute_type(#name1, :val1)", cond.text)
}

func TestConditionBuilderIn(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	cond, err := b.In("status", "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, "#name1 IN (:val1, :val2, :val3)", cond.text)
}

func TestAndOrNotCombinators(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	c1, _ := b.Equal("a", 1)
	c2, _ := b.Equal("b", 2)

	assert.Equal(t, "(#name1 = :val1 AND #name2 = :val2)", And(c1, c2).text)
	assert.Equal(t, "(#name1 = :val1 OR #name2 = :val2)", Or(c1, c2).text)
	assert.Equal(t, "NOT (#name1 = :val1)", Not(c1).text)
}

func TestBuildFilterCarriesAliasTables(t *testing.T) {
	alloc := NewAliasAllocator()
	b := NewConditionBuilder(alloc)
	cond, err := b.Equal("status", "active")
	require.NoError(t, err)

	expr := BuildFilter(alloc, cond)
	assert.Equal(t, "#name1 = :val1", expr.Text)
	assert.Equal(t, "status", expr.ExpressionAttributeNames["#name1"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "active"}, expr.ExpressionAttributeValues[":val1"])
}

func TestProjectionBuilderAccumulatesPaths(t *testing.T) {
	alloc := NewAliasAllocator()
	p := NewProjectionBuilder(alloc)
	p.Add("id").Add("name")

	expr := p.Build()
	assert.Equal(t, "#proj1, #proj2", expr.Text)
	assert.Equal(t, "id", expr.ExpressionAttributeNames["#proj1"])
	assert.Equal(t, "name", expr.ExpressionAttributeNames["#proj2"])
}

func TestUpdateBuilderOrdersClauses(t *testing.T) {
	alloc := NewAliasAllocator()
	u := NewUpdateBuilder(alloc)

	_, err := u.Set("name", "alice")
	require.NoError(t, err)
	u.Remove("oldField")
	_, err = u.Add("score", 1)
	require.NoError(t, err)
	_, err = u.Delete("tags", "old")
	require.NoError(t, err)

	expr := u.Build()
	assert.Regexp(t, `^SET .+ REMOVE .+ ADD .+ DELETE .+$`, expr.Text)
}

func TestUpdateBuilderOmitsEmptyClauses(t *testing.T) {
	alloc := NewAliasAllocator()
	u := NewUpdateBuilder(alloc)
	_, err := u.Set("name", "alice")
	require.NoError(t, err)

	expr := u.Build()
	assert.Equal(t, "SET #name1 = :val1", expr.Text)
}

func TestSharedAllocatorAcrossBuildersProducesUniqueAliases(t *testing.T) {
	alloc := NewAliasAllocator()
	filterBuilder := NewConditionBuilder(alloc)
	keyBuilder := NewConditionBuilder(alloc)

	filterCond, err := filterBuilder.Equal("status", "active")
	require.NoError(t, err)
	keyCond, err := keyBuilder.Equal("pk", "USER#1")
	require.NoError(t, err)

	assert.NotEqual(t, filterCond.text, keyCond.text)
	assert.Len(t, alloc.attrValues, 2)
}
