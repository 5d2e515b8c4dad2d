package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalScalarTypes(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want types.AttributeValue
	}{
		{"nil", nil, &types.AttributeValueMemberNULL{Value: true}},
		{"string", "hello", &types.AttributeValueMemberS{Value: "hello"}},
		{"bool", true, &types.AttributeValueMemberBOOL{Value: true}},
		{"bytes", []byte("x"), &types.AttributeValueMemberB{Value: []byte("x")}},
		{"int", 42, &types.AttributeValueMemberN{Value: "42"}},
		{"float64", 3.5, &types.AttributeValueMemberN{Value: "3.5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Marshal(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMarshalSequenceDispatch(t *testing.T) {
	t.Run("empty sequence becomes L", func(t *testing.T) {
		got, err := Marshal([]any{})
		require.NoError(t, err)
		assert.Equal(t, &types.AttributeValueMemberL{Value: []types.AttributeValue{}}, got)
	})

	t.Run("all strings become SS", func(t *testing.T) {
		got, err := Marshal([]any{"a", "b"})
		require.NoError(t, err)
		ss, ok := got.(*types.AttributeValueMemberSS)
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, ss.Value)
	})

	t.Run("all numbers become NS", func(t *testing.T) {
		got, err := Marshal([]any{1, 2, 3})
		require.NoError(t, err)
		ns, ok := got.(*types.AttributeValueMemberNS)
		require.True(t, ok)
		assert.Equal(t, []string{"1", "2", "3"}, ns.Value)
	})

	t.Run("mixed types become L", func(t *testing.T) {
		got, err := Marshal([]any{"a", 1})
		require.NoError(t, err)
		l, ok := got.(*types.AttributeValueMemberL)
		require.True(t, ok)
		require.Len(t, l.Value, 2)
	})
}

func TestMarshalMap(t *testing.T) {
	got, err := Marshal(map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)
	m, ok := got.(*types.AttributeValueMemberM)
	require.True(t, ok)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "x"}, m.Value["a"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, m.Value["b"])
}

func TestMarshalUnsupportedTypeErrors(t *testing.T) {
	_, err := Marshal(struct{ X int }{X: 1})
	assert.Error(t, err)
}

func TestUnmarshalRoundTrip(t *testing.T) {
	cases := []any{
		"hello",
		true,
		float64(42),
		[]any{"a", "b"},
		[]any{float64(1), float64(2)},
		map[string]any{"k": "v"},
	}
	for _, v := range cases {
		av, err := Marshal(v)
		require.NoError(t, err)
		got, err := Unmarshal(av)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestUnmarshalNull(t *testing.T) {
	got, err := Unmarshal(&types.AttributeValueMemberNULL{Value: true})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarshalMapAndUnmarshalMap(t *testing.T) {
	data := map[string]any{"name": "alice", "age": float64(30)}
	av, err := MarshalMap(data)
	require.NoError(t, err)

	got, err := UnmarshalMap(av)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

// TestMarshalMatchesAttributeValueOracle cross-checks the hand-rolled codec
// against feature/dynamodb/attributevalue for the cases where both agree on
// representation (scalar values; attributevalue defaults numeric slices to L
// rather than NS, so sequence-typing cases are exercised only above).
func TestMarshalMatchesAttributeValueOracle(t *testing.T) {
	cases := []any{"hello", true, 42, 3.5, nil}
	for _, v := range cases {
		got, err := Marshal(v)
		require.NoError(t, err)

		want, err := attributevalue.Marshal(v)
		require.NoError(t, err)

		assert.Equal(t, want, got)
	}
}
