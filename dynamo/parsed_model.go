package dynamo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pieczasz-labs/qb/model"
)

// maxGSIs is the per-model cap on derived global secondary indexes (§3.8).
const maxGSIs = 5

// AccessPattern names one query shape a ParsedModel supports, paired with a
// human-readable rendering of the key expression it resolves to.
type AccessPattern struct {
	Name        string
	Description string
}

// Describe renders the access pattern the way a schema doc would, e.g.
// "Query GSI1: pk = USER#{userId}".
func (p AccessPattern) Describe() string {
	return p.Description
}

// RelationshipDescriptor is one entry of a ParsedModel's Relationships list
// (§3.7).
type RelationshipDescriptor struct {
	Type         model.RelationKind
	RelatedModel string
	ForeignKey   string
	LocalKey     string
	PivotEntity  string
	RequiresGSI  bool
	GSIIndex     string // empty when RequiresGSI is true but no index was assigned
}

// KeyPatterns carries the main-table and per-GSI key patterns for a model
// (§4.10). GSI maps are keyed by index name ("GSI1", "GSI2", ...).
type KeyPatterns struct {
	PK      string
	SK      string
	GSIPK   map[string]string
	GSISK   map[string]string
}

// ParsedModel is the DynamoDB-scoped view of a normalized model (§3.7),
// derived from model.Model plus an explicitly registered entity pattern.
type ParsedModel struct {
	Name          string
	EntityType    string
	PrimaryKey    string
	Attributes    []model.Attribute
	Relationships []RelationshipDescriptor
	KeyPatterns   KeyPatterns
	AccessPatterns []AccessPattern
	Traits        model.Traits
}

// ParseModel derives a ParsedModel from a normalized model.Model.
// relationAliases lists the relation aliases of m to derive descriptors for,
// in a stable order (callers pass a sorted slice of aliases so that GSI
// assignment is deterministic across runs); aliases m does not declare are
// skipped.
func ParseModel(m *model.Model, relationAliases []string) *ParsedModel {
	pm := &ParsedModel{
		Name:       m.Name,
		EntityType: strings.ToUpper(m.Name),
		PrimaryKey: m.PrimaryKey,
		Attributes: m.Attributes,
		Traits:     m.Traits,
		KeyPatterns: KeyPatterns{
			PK:    "{" + m.PrimaryKey + "}",
			SK:    "{" + m.PrimaryKey + "}",
			GSIPK: map[string]string{},
			GSISK: map[string]string{},
		},
	}

	pm.AccessPatterns = append(pm.AccessPatterns,
		AccessPattern{Name: "getById", Description: fmt.Sprintf("Get item: pk = %s#{%s}", pm.EntityType, m.PrimaryKey)},
		AccessPattern{Name: "listAllBy" + pm.EntityType, Description: fmt.Sprintf("Query main index: pk = %s", pm.EntityType)},
	)

	gsiCount := 0
	assignGSI := func() string {
		if gsiCount >= maxGSIs {
			return ""
		}
		gsiCount++
		return "GSI" + strconv.Itoa(gsiCount)
	}

	for _, alias := range relationAliases {
		desc := relationshipFor(m, alias)
		if desc == nil {
			continue
		}
		switch desc.Type {
		case model.HasMany, model.HasOne, model.HasManyThrough, model.HasOneThrough:
			name := "query" + capitalize(alias) + "ByMainIndex"
			description := fmt.Sprintf("Query main index: pk = %s#{%s}, sk begins_with %s#", pm.EntityType, m.PrimaryKey, strings.ToUpper(desc.RelatedModel))
			pm.AccessPatterns = append(pm.AccessPatterns, AccessPattern{Name: name, Description: description})
		case model.BelongsTo, model.MorphTo:
			desc.RequiresGSI = true
			if idx := assignGSI(); idx != "" {
				desc.GSIIndex = idx
				gsiPK := strings.ToUpper(desc.RelatedModel) + "#{" + desc.ForeignKey + "}"
				pm.KeyPatterns.GSIPK[idx] = gsiPK
				name := "query" + capitalize(alias) + "By" + idx
				pm.AccessPatterns = append(pm.AccessPatterns, AccessPattern{Name: name, Description: fmt.Sprintf("Query %s: pk = %s", idx, gsiPK)})
			}
		case model.BelongsToMany, model.MorphToMany, model.MorphedByMany:
			desc.RequiresGSI = true
			if idx := assignGSI(); idx != "" {
				desc.GSIIndex = idx
				gsiPK := strings.ToUpper(desc.RelatedModel) + "#{" + desc.ForeignKey + "}"
				pm.KeyPatterns.GSIPK[idx] = gsiPK
				name := "query" + capitalize(alias) + "By" + idx
				pm.AccessPatterns = append(pm.AccessPatterns, AccessPattern{Name: name, Description: fmt.Sprintf("Query %s: pk = %s", idx, gsiPK)})
			}
		}
		pm.Relationships = append(pm.Relationships, *desc)
	}

	return pm
}

func relationshipFor(m *model.Model, alias string) *RelationshipDescriptor {
	r := m.Relations
	if target, ok := r.HasMany[alias]; ok {
		return &RelationshipDescriptor{Type: model.HasMany, RelatedModel: target, ForeignKey: defaultFK(m.Name), LocalKey: m.PrimaryKey}
	}
	if target, ok := r.HasOne[alias]; ok {
		return &RelationshipDescriptor{Type: model.HasOne, RelatedModel: target, ForeignKey: defaultFK(m.Name), LocalKey: m.PrimaryKey}
	}
	if target, ok := r.BelongsTo[alias]; ok {
		return &RelationshipDescriptor{Type: model.BelongsTo, RelatedModel: target, ForeignKey: defaultFK(target), LocalKey: m.PrimaryKey}
	}
	if target, ok := r.BelongsToMany[alias]; ok {
		return &RelationshipDescriptor{Type: model.BelongsToMany, RelatedModel: target, ForeignKey: defaultFK(target), LocalKey: m.PrimaryKey, PivotEntity: pivotName(m.Name, target)}
	}
	if spec, ok := r.HasManyThrough[alias]; ok {
		return &RelationshipDescriptor{Type: model.HasManyThrough, RelatedModel: spec.Target, ForeignKey: defaultFK(m.Name), LocalKey: m.PrimaryKey, PivotEntity: spec.Through}
	}
	if spec, ok := r.HasOneThrough[alias]; ok {
		return &RelationshipDescriptor{Type: model.HasOneThrough, RelatedModel: spec.Target, ForeignKey: defaultFK(m.Name), LocalKey: m.PrimaryKey, PivotEntity: spec.Through}
	}
	if target, ok := r.MorphTo[alias]; ok {
		return &RelationshipDescriptor{Type: model.MorphTo, RelatedModel: target, ForeignKey: defaultFK(target), LocalKey: m.PrimaryKey}
	}
	if target, ok := r.MorphToMany[alias]; ok {
		return &RelationshipDescriptor{Type: model.MorphToMany, RelatedModel: target, ForeignKey: defaultFK(target), LocalKey: m.PrimaryKey}
	}
	if target, ok := r.MorphedByMany[alias]; ok {
		return &RelationshipDescriptor{Type: model.MorphedByMany, RelatedModel: target, ForeignKey: defaultFK(target), LocalKey: m.PrimaryKey}
	}
	if target, ok := r.MorphOne[alias]; ok {
		return &RelationshipDescriptor{Type: model.MorphOne, RelatedModel: target, ForeignKey: defaultFK(m.Name), LocalKey: m.PrimaryKey}
	}
	if target, ok := r.MorphMany[alias]; ok {
		return &RelationshipDescriptor{Type: model.MorphMany, RelatedModel: target, ForeignKey: defaultFK(m.Name), LocalKey: m.PrimaryKey}
	}
	return nil
}

func defaultFK(modelName string) string {
	return strings.ToLower(modelName) + "Id"
}

func pivotName(a, b string) string {
	lowerA, lowerB := strings.ToLower(a), strings.ToLower(b)
	if lowerA > lowerB {
		lowerA, lowerB = lowerB, lowerA
	}
	return capitalize(lowerA) + capitalize(lowerB)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

