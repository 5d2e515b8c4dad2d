package dynamo

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IndexPattern is one secondary index's key patterns within an entity
// pattern (§4.10).
type IndexPattern struct {
	Name         string
	PKPattern    string
	SKPattern    string
}

// EntityPattern is the single-table-design entity declaration consumed by
// the registry: a name, its primary pk/sk patterns, the data fields those
// patterns reference, and any secondary index patterns.
type EntityPattern struct {
	Name      string
	PKPattern string
	SKPattern string
	KeyFields []string
	Indexes   []IndexPattern

	HasTimestamps bool
	HasVersioning bool
}

// placeholderRe matches both `{field}` and `${field}` placeholder forms.
var placeholderRe = regexp.MustCompile(`\$?\{([A-Za-z0-9_]+)\}`)

// resolveKeyPattern substitutes each `{field}`/`${field}` placeholder in
// pattern with String(data[field]). A field absent from data is left as a
// literal `{field}` substring in place, to support partial-key construction
// (§4.10).
func resolveKeyPattern(pattern string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		field := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := data[field]
		if !ok || v == nil {
			return "{" + field + "}"
		}
		return fmt.Sprintf("%v", v)
	})
}

// buildPrimaryKey fully resolves pattern against data, raising
// DynamoDBKeyResolutionError for the first placeholder with no
// corresponding value (used when a complete key, not a partial prefix, is
// required).
func buildPrimaryKey(pattern string, data map[string]any) (string, error) {
	var firstMissing string
	resolved := placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		field := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := data[field]
		if !ok || v == nil {
			if firstMissing == "" {
				firstMissing = field
			}
			return m
		}
		return fmt.Sprintf("%v", v)
	})
	if firstMissing != "" {
		return "", &DynamoDBKeyResolutionError{Pattern: pattern, Field: firstMissing}
	}
	return resolved, nil
}

// Registry holds every EntityPattern registered for a single-table design,
// keyed by entity name. Concurrent registration is permitted only during
// initialization (§5); once a name is registered it MUST NOT be mutated.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*EntityPattern

	PKAttribute         string
	SKAttribute         string
	EntityTypeAttribute string
	KeyDelimiter        string
}

// NewRegistry constructs an empty Registry with the documented attribute
// naming defaults (§6).
func NewRegistry() *Registry {
	return &Registry{
		entities:            map[string]*EntityPattern{},
		PKAttribute:         "pk",
		SKAttribute:         "sk",
		EntityTypeAttribute: "_et",
		KeyDelimiter:        "#",
	}
}

// Register adds an entity pattern under its Name. Re-registering the same
// name with a different pattern is rejected — registrations are one-shot.
func (r *Registry) Register(ep EntityPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entities[ep.Name]; ok {
		if existing.PKPattern != ep.PKPattern || existing.SKPattern != ep.SKPattern {
			return fmt.Errorf("dynamo: entity %q already registered with a different key pattern", ep.Name)
		}
		return nil
	}
	r.entities[ep.Name] = &ep
	return nil
}

// Lookup returns the registered pattern for name, or nil if unregistered.
func (r *Registry) Lookup(name string) *EntityPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// CreateItem assembles the full item record for an entity write (§4.10):
// resolves pk/sk, stamps the entity-type attribute, copies data, and
// applies timestamp/versioning trait defaults.
func (r *Registry) CreateItem(entityName string, data map[string]any, now func() time.Time) (map[string]any, error) {
	ep := r.Lookup(entityName)
	if ep == nil {
		return nil, fmt.Errorf("dynamo: entity %q is not registered", entityName)
	}

	pk, err := buildPrimaryKey(ep.PKPattern, data)
	if err != nil {
		return nil, err
	}
	var sk string
	if ep.SKPattern != "" {
		sk, err = buildPrimaryKey(ep.SKPattern, data)
		if err != nil {
			return nil, err
		}
	}

	item := make(map[string]any, len(data)+4)
	for k, v := range data {
		item[k] = v
	}
	item[r.PKAttribute] = pk
	if sk != "" {
		item[r.SKAttribute] = sk
	}
	item[r.EntityTypeAttribute] = entityName

	if ep.HasTimestamps {
		ts := now().UTC().Format(time.RFC3339)
		if _, ok := item["createdAt"]; !ok {
			item["createdAt"] = ts
		}
		item["updatedAt"] = ts
	}
	if ep.HasVersioning {
		if _, ok := item["_v"]; !ok {
			item["_v"] = float64(1)
		}
	}
	if _, ok := item["id"]; !ok {
		if _, isKey := data["id"]; !isKey {
			item["id"] = uuid.New().String()
		}
	}

	return item, nil
}

// mainIndexQueryKeys returns the pk equality value and sk begins_with
// prefix for a hasMany access pattern: pk = "{ENTITY}#{id}", sk begins_with
// "{RELATED}#" (§4.10).
func mainIndexQueryKeys(entityType, id, relatedEntityType, delimiter string) (pk, skPrefix string) {
	pk = strings.ToUpper(entityType) + delimiter + id
	skPrefix = strings.ToUpper(relatedEntityType) + delimiter
	return pk, skPrefix
}
