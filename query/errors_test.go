package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessagesMatchRequiredPhrases(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		phrase string
	}{
		{"relation not found", &RelationNotFoundError{Table: "users", Alias: "x"}, "not found"},
		{"relation type mismatch", &RelationTypeMismatchError{Table: "posts", Alias: "tags", Wanted: "belongsToMany", Message: "is not a belongsToMany relationship"}, "not a belongsToMany"},
		{"circular relationship", &CircularRelationshipError{Chain: "a.b.a"}, "Circular relationship"},
		{"eager load limit", &EagerLoadLimitError{Limit: 50, Count: 51}, "Too many relationships"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Contains(t, c.err.Error(), c.phrase)
		})
	}
}

func TestModelResolutionErrorMessage(t *testing.T) {
	err := &ModelResolutionError{Table: "posts", Alias: "author"}
	assert.Contains(t, err.Error(), "posts.author")
}

func TestDepthLimitErrorMessage(t *testing.T) {
	err := &DepthLimitError{Chain: "a.b.c", Limit: 2}
	assert.Contains(t, err.Error(), "a.b.c")
	assert.Contains(t, err.Error(), "2")
}
