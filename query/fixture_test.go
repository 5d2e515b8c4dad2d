package query

import "github.com/pieczasz-labs/qb/schema"

// buildTestMeta wires a small users/posts/tags graph used across the
// package's test files: users hasMany posts, posts belongsTo users, and
// posts belongsToMany tags through a pivot table.
func buildTestMeta() *schema.Meta {
	return &schema.Meta{
		ModelToTable: map[string]string{"User": "users", "Post": "posts", "Tag": "tags"},
		TableToModel: map[string]string{"users": "User", "posts": "Post", "tags": "Tag"},
		PrimaryKeys:  map[string]string{"users": "id", "posts": "id", "tags": "id"},
		Relations: map[string]schema.RelationIndex{
			"users": {
				HasMany: map[string]string{"posts": "Post"},
			},
			"posts": {
				BelongsTo:     map[string]string{"author": "User"},
				BelongsToMany: map[string]string{"tags": "Tag"},
				HasOne:        map[string]string{"parent": "Post"},
			},
			"tags": {},
		},
	}
}
