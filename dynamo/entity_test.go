package dynamo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestResolveKeyPatternSubstitutesKnownFields(t *testing.T) {
	got := resolveKeyPattern("USER#{id}", map[string]any{"id": "42"})
	assert.Equal(t, "USER#42", got)
}

func TestResolveKeyPatternAcceptsDollarBraceForm(t *testing.T) {
	got := resolveKeyPattern("USER#${id}", map[string]any{"id": "42"})
	assert.Equal(t, "USER#42", got)
}

func TestResolveKeyPatternLeavesMissingFieldLiteral(t *testing.T) {
	got := resolveKeyPattern("USER#{id}", map[string]any{})
	assert.Equal(t, "USER#{id}", got)
}

func TestBuildPrimaryKeyErrorsOnMissingField(t *testing.T) {
	_, err := buildPrimaryKey("USER#{id}", map[string]any{})
	require.Error(t, err)
	var kerr *DynamoDBKeyResolutionError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "id", kerr.Field)
	assert.Equal(t, "Missing value for pattern key: {id}", err.Error())
}

func TestBuildPrimaryKeyResolvesAllFields(t *testing.T) {
	got, err := buildPrimaryKey("USER#{id}#{kind}", map[string]any{"id": "42", "kind": "profile"})
	require.NoError(t, err)
	assert.Equal(t, "USER#42#profile", got)
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	err := r.Register(EntityPattern{Name: "User", PKPattern: "USER#{id}", SKPattern: "USER#{id}"})
	require.NoError(t, err)

	ep := r.Lookup("User")
	require.NotNil(t, ep)
	assert.Equal(t, "USER#{id}", ep.PKPattern)
}

func TestRegistryLookupUnknownReturnsNil(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Lookup("Missing"))
}

func TestRegistryRegisterIdempotentForIdenticalPattern(t *testing.T) {
	r := NewRegistry()
	ep := EntityPattern{Name: "User", PKPattern: "USER#{id}", SKPattern: "USER#{id}"}
	require.NoError(t, r.Register(ep))
	require.NoError(t, r.Register(ep))
}

func TestRegistryRegisterRejectsConflictingPattern(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{Name: "User", PKPattern: "USER#{id}"}))
	err := r.Register(EntityPattern{Name: "User", PKPattern: "USER#{otherId}"})
	assert.Error(t, err)
}

func TestCreateItemStampsKeysAndEntityType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{
		Name:      "User",
		PKPattern: "USER#{id}",
		SKPattern: "USER#{id}",
	}))

	item, err := r.CreateItem("User", map[string]any{"id": "42", "name": "alice"}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "USER#42", item["pk"])
	assert.Equal(t, "USER#42", item["sk"])
	assert.Equal(t, "User", item["_et"])
	assert.Equal(t, "alice", item["name"])
}

func TestCreateItemAppliesTimestampsTrait(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{Name: "User", PKPattern: "USER#{id}", HasTimestamps: true}))

	item, err := r.CreateItem("User", map[string]any{"id": "42"}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "2026-01-02T03:04:05Z", item["createdAt"])
	assert.Equal(t, "2026-01-02T03:04:05Z", item["updatedAt"])
}

func TestCreateItemPreservesExistingCreatedAt(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{Name: "User", PKPattern: "USER#{id}", HasTimestamps: true}))

	item, err := r.CreateItem("User", map[string]any{"id": "42", "createdAt": "2020-01-01T00:00:00Z"}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "2020-01-01T00:00:00Z", item["createdAt"])
	assert.Equal(t, "2026-01-02T03:04:05Z", item["updatedAt"])
}

func TestCreateItemAppliesVersioningTraitDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{Name: "User", PKPattern: "USER#{id}", HasVersioning: true}))

	item, err := r.CreateItem("User", map[string]any{"id": "42"}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, float64(1), item["_v"])
}

func TestCreateItemPreservesExistingVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{Name: "User", PKPattern: "USER#{id}", HasVersioning: true}))

	item, err := r.CreateItem("User", map[string]any{"id": "42", "_v": float64(7)}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, float64(7), item["_v"])
}

func TestCreateItemGeneratesIDWhenAbsent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{Name: "Session", PKPattern: "SESSION#{token}", KeyFields: []string{"token"}}))

	item, err := r.CreateItem("Session", map[string]any{"token": "abc"}, fixedNow)
	require.NoError(t, err)

	id, ok := item["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)
}

func TestCreateItemUnregisteredEntityErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateItem("Missing", map[string]any{}, fixedNow)
	assert.Error(t, err)
}

func TestCreateItemMissingKeyFieldErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EntityPattern{Name: "User", PKPattern: "USER#{id}"}))

	_, err := r.CreateItem("User", map[string]any{}, fixedNow)
	require.Error(t, err)
	var kerr *DynamoDBKeyResolutionError
	assert.ErrorAs(t, err, &kerr)
}

func TestMainIndexQueryKeys(t *testing.T) {
	pk, skPrefix := mainIndexQueryKeys("user", "42", "post", "#")
	assert.Equal(t, "USER#42", pk)
	assert.Equal(t, "POST#", skPrefix)
}
