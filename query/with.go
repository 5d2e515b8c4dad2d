package query

import (
	"strings"

	"github.com/pieczasz-labs/qb/schema"
)

// eagerLoadSpec is one resolved `with()` entry: a dotted relation path plus
// an optional conditional sub-query callback applied to the final segment's
// related-table builder.
type eagerLoadSpec struct {
	path     string
	segments []string
	callback func(*Builder) *Builder
}

// With accepts any of the shapes documented in §4.8.1: a bare dotted string,
// a slice of strings, a map of alias -> sub-builder callback (the "object
// notation" form for conditional eager loading), or nil (a no-op). Multiple
// arguments may be passed in one call; items are processed left to right.
// Duplicate aliases are deduplicated and repeated With calls for the same
// alias are idempotent.
func (b *Builder) With(items ...any) (*Builder, error) {
	for _, item := range items {
		if err := b.withOne(item); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Builder) withOne(item any) error {
	switch v := item.(type) {
	case nil:
		return nil
	case string:
		return b.addEagerLoad(v, nil)
	case []string:
		for _, s := range v {
			if err := b.addEagerLoad(s, nil); err != nil {
				return err
			}
		}
		return nil
	case map[string]func(*Builder) *Builder:
		for alias, cb := range v {
			if err := b.addEagerLoad(alias, cb); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (b *Builder) addEagerLoad(path string, cb func(*Builder) *Builder) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	segments := strings.Split(path, ".")
	maxDepth := b.cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if len(segments) > maxDepth {
		return &DepthLimitError{Chain: path, Limit: maxDepth}
	}

	if err := validateChain(b.meta, b.table, path, segments); err != nil {
		return err
	}

	for _, existing := range b.withs {
		if existing.path == path {
			return nil // idempotent: repeated with() for the same alias is a no-op
		}
	}

	maxEager := b.cfg.MaxEagerLoad
	if maxEager <= 0 {
		maxEager = 50
	}
	if len(b.withs)+1 > maxEager {
		return &EagerLoadLimitError{Limit: maxEager, Count: len(b.withs) + 1}
	}

	b.withs = append(b.withs, eagerLoadSpec{path: path, segments: segments, callback: cb})
	return nil
}

// validateChain walks a dotted relation path left-to-right against the
// schema graph starting at rootTable, raising RelationNotFoundError,
// ModelResolutionError, or CircularRelationshipError as appropriate.
// Cycle detection: if the same (table, alias) pair recurs within the chain,
// the chain is rejected as circular.
func validateChain(meta *schema.Meta, rootTable, fullPath string, segments []string) error {
	seen := make(map[string]struct{}, len(segments))
	table := rootTable
	for _, alias := range segments {
		key := table + "." + alias
		if _, ok := seen[key]; ok {
			return &CircularRelationshipError{Chain: fullPath}
		}
		seen[key] = struct{}{}

		_, target, err := relationLookup(meta, table, alias)
		if err != nil {
			return err
		}
		table = target
	}
	return nil
}
