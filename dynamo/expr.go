package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// aliasAllocator assigns unique #name{N}/:val{N} placeholder names per
// attribute path, reusing the same alias for a path seen more than once
// (§4.10).
type aliasAllocator struct {
	nameAliases map[string]string
	nameCount   int
	valCount    int
	attrNames   map[string]string
	attrValues  map[string]types.AttributeValue
}

// NewAliasAllocator constructs an empty alias allocator. Pass the same
// allocator to a filter ConditionBuilder, a key-condition ConditionBuilder,
// a ProjectionBuilder, and an UpdateBuilder built for the same request so
// that every #name/:val alias across the combined expression is unique.
func NewAliasAllocator() *aliasAllocator {
	return &aliasAllocator{
		nameAliases: map[string]string{},
		attrNames:   map[string]string{},
		attrValues:  map[string]types.AttributeValue{},
	}
}

func (a *aliasAllocator) nameAlias(path string) string {
	if alias, ok := a.nameAliases[path]; ok {
		return alias
	}
	a.nameCount++
	alias := fmt.Sprintf("#name%d", a.nameCount)
	a.nameAliases[path] = alias
	a.attrNames[alias] = path
	return alias
}

func (a *aliasAllocator) valueAlias(v any) (string, error) {
	a.valCount++
	alias := fmt.Sprintf(":val%d", a.valCount)
	av, err := Marshal(v)
	if err != nil {
		return "", err
	}
	a.attrValues[alias] = av
	return alias, nil
}

// Condition is one node of a filter/key-condition expression tree.
type Condition struct {
	text string
}

// ConditionBuilder accumulates condition terms against a shared alias
// allocator, so that a filter expression and a key-condition expression
// built from the same builder never collide on alias numbering.
type ConditionBuilder struct {
	alloc *aliasAllocator
}

// NewConditionBuilder constructs a builder; pass the same *aliasAllocator
// across a filter/key-condition/projection/update combination so all
// aliases in one request are unique.
func NewConditionBuilder(alloc *aliasAllocator) *ConditionBuilder {
	return &ConditionBuilder{alloc: alloc}
}

func (b *ConditionBuilder) compare(path, op string, v any) (Condition, error) {
	nameAlias := b.alloc.nameAlias(path)
	valAlias, err := b.alloc.valueAlias(v)
	if err != nil {
		return Condition{}, err
	}
	return Condition{text: fmt.Sprintf("%s %s %s", nameAlias, op, valAlias)}, nil
}

func (b *ConditionBuilder) Equal(path string, v any) (Condition, error)        { return b.compare(path, "=", v) }
func (b *ConditionBuilder) NotEqual(path string, v any) (Condition, error)     { return b.compare(path, "<>", v) }
func (b *ConditionBuilder) LessThan(path string, v any) (Condition, error)     { return b.compare(path, "<", v) }
func (b *ConditionBuilder) LessEqual(path string, v any) (Condition, error)    { return b.compare(path, "<=", v) }
func (b *ConditionBuilder) GreaterThan(path string, v any) (Condition, error)  { return b.compare(path, ">", v) }
func (b *ConditionBuilder) GreaterEqual(path string, v any) (Condition, error) { return b.compare(path, ">=", v) }

// Between builds `#nameN BETWEEN :valNa AND :valNb` (§4.10).
func (b *ConditionBuilder) Between(path string, low, high any) (Condition, error) {
	nameAlias := b.alloc.nameAlias(path)
	b.alloc.valCount++
	n := b.alloc.valCount
	lowAlias := fmt.Sprintf(":val%da", n)
	highAlias := fmt.Sprintf(":val%db", n)
	lowAV, err := Marshal(low)
	if err != nil {
		return Condition{}, err
	}
	highAV, err := Marshal(high)
	if err != nil {
		return Condition{}, err
	}
	b.alloc.attrValues[lowAlias] = lowAV
	b.alloc.attrValues[highAlias] = highAV
	return Condition{text: fmt.Sprintf("%s BETWEEN %s AND %s", nameAlias, lowAlias, highAlias)}, nil
}

// BeginsWith builds `begins_with(#nameN, :valN)`.
func (b *ConditionBuilder) BeginsWith(path string, prefix string) (Condition, error) {
	nameAlias := b.alloc.nameAlias(path)
	valAlias, err := b.alloc.valueAlias(prefix)
	if err != nil {
		return Condition{}, err
	}
	return Condition{text: fmt.Sprintf("begins_with(%s, %s)", nameAlias, valAlias)}, nil
}

// Contains builds `contains(#nameN, :valN)`.
func (b *ConditionBuilder) Contains(path string, v any) (Condition, error) {
	nameAlias := b.alloc.nameAlias(path)
	valAlias, err := b.alloc.valueAlias(v)
	if err != nil {
		return Condition{}, err
	}
	return Condition{text: fmt.Sprintf("contains(%s, %s)", nameAlias, valAlias)}, nil
}

// AttributeExists builds `attribute_exists(#nameN)`.
func (b *ConditionBuilder) AttributeExists(path string) Condition {
	return Condition{text: fmt.Sprintf("attribute_exists(%s)", b.alloc.nameAlias(path))}
}

// AttributeNotExists builds `attribute_not_exists(#nameN)`.
func (b *ConditionBuilder) AttributeNotExists(path string) Condition {
	return Condition{text: fmt.Sprintf("attribute_not_exists(%s)", b.alloc.nameAlias(path))}
}

// AttributeType builds `attribute_type(#nameN, :valN)`.
func (b *ConditionBuilder) AttributeType(path string, dynamoType string) (Condition, error) {
	nameAlias := b.alloc.nameAlias(path)
	valAlias, err := b.alloc.valueAlias(dynamoType)
	if err != nil {
		return Condition{}, err
	}
	return Condition{text: fmt.Sprintf("attribute_type(%s, %s)", nameAlias, valAlias)}, nil
}

// In builds `#nameN IN (:val1, :val2, ...)`.
func (b *ConditionBuilder) In(path string, values ...any) (Condition, error) {
	nameAlias := b.alloc.nameAlias(path)
	aliases := make([]string, len(values))
	for i, v := range values {
		a, err := b.alloc.valueAlias(v)
		if err != nil {
			return Condition{}, err
		}
		aliases[i] = a
	}
	return Condition{text: fmt.Sprintf("%s IN (%s)", nameAlias, strings.Join(aliases, ", "))}, nil
}

// And joins two or more conditions with AND, parenthesized.
func And(conds ...Condition) Condition {
	return joinConditions("AND", conds)
}

// Or joins two or more conditions with OR, parenthesized.
func Or(conds ...Condition) Condition {
	return joinConditions("OR", conds)
}

func joinConditions(op string, conds []Condition) Condition {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.text
	}
	return Condition{text: "(" + strings.Join(parts, " "+op+" ") + ")"}
}

// Not negates a condition.
func Not(c Condition) Condition {
	return Condition{text: "NOT (" + c.text + ")"}
}

// Expression is a fully built expression ready to attach to a DynamoDB
// request: the text plus its alias tables.
type Expression struct {
	Text                     string
	ExpressionAttributeNames map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
}

// BuildFilter/BuildKeyCondition both just wrap a condition's text with the
// allocator's accumulated alias tables; they're named separately because
// callers attach them to different request fields.
func BuildFilter(alloc *aliasAllocator, cond Condition) Expression {
	return Expression{Text: cond.text, ExpressionAttributeNames: alloc.attrNames, ExpressionAttributeValues: alloc.attrValues}
}

func BuildKeyCondition(alloc *aliasAllocator, cond Condition) Expression {
	return Expression{Text: cond.text, ExpressionAttributeNames: alloc.attrNames, ExpressionAttributeValues: alloc.attrValues}
}

// ProjectionBuilder accumulates `#projN` aliases for a projection
// expression (§4.10).
type ProjectionBuilder struct {
	alloc *aliasAllocator
	paths []string
}

func NewProjectionBuilder(alloc *aliasAllocator) *ProjectionBuilder {
	return &ProjectionBuilder{alloc: alloc}
}

func (p *ProjectionBuilder) Add(path string) *ProjectionBuilder {
	p.alloc.nameCount++
	alias := fmt.Sprintf("#proj%d", p.alloc.nameCount)
	p.alloc.attrNames[alias] = path
	p.paths = append(p.paths, alias)
	return p
}

func (p *ProjectionBuilder) Build() Expression {
	return Expression{Text: strings.Join(p.paths, ", "), ExpressionAttributeNames: p.alloc.attrNames}
}

// updateOp is one SET/REMOVE/ADD/DELETE term.
type updateOp struct {
	clause string // "SET", "REMOVE", "ADD", "DELETE"
	term   string
}

// UpdateBuilder accumulates SET/REMOVE/ADD/DELETE clauses for an update
// expression (§4.10), rendering them joined by spaces in clause-kind order.
type UpdateBuilder struct {
	alloc *aliasAllocator
	ops   []updateOp
}

func NewUpdateBuilder(alloc *aliasAllocator) *UpdateBuilder {
	return &UpdateBuilder{alloc: alloc}
}

// Set adds `#nameN = :valN` to the SET clause.
func (u *UpdateBuilder) Set(path string, v any) (*UpdateBuilder, error) {
	nameAlias := u.alloc.nameAlias(path)
	valAlias, err := u.alloc.valueAlias(v)
	if err != nil {
		return nil, err
	}
	u.ops = append(u.ops, updateOp{clause: "SET", term: fmt.Sprintf("%s = %s", nameAlias, valAlias)})
	return u, nil
}

// Remove adds path to the REMOVE clause.
func (u *UpdateBuilder) Remove(path string) *UpdateBuilder {
	u.ops = append(u.ops, updateOp{clause: "REMOVE", term: u.alloc.nameAlias(path)})
	return u
}

// Add adds `#nameN :valN` to the ADD clause (numeric increment / set union).
func (u *UpdateBuilder) Add(path string, v any) (*UpdateBuilder, error) {
	nameAlias := u.alloc.nameAlias(path)
	valAlias, err := u.alloc.valueAlias(v)
	if err != nil {
		return nil, err
	}
	u.ops = append(u.ops, updateOp{clause: "ADD", term: fmt.Sprintf("%s %s", nameAlias, valAlias)})
	return u, nil
}

// Delete adds `#nameN :valN` to the DELETE clause (set-element removal).
func (u *UpdateBuilder) Delete(path string, v any) (*UpdateBuilder, error) {
	nameAlias := u.alloc.nameAlias(path)
	valAlias, err := u.alloc.valueAlias(v)
	if err != nil {
		return nil, err
	}
	u.ops = append(u.ops, updateOp{clause: "DELETE", term: fmt.Sprintf("%s %s", nameAlias, valAlias)})
	return u, nil
}

// Build renders the accumulated clauses in SET/REMOVE/ADD/DELETE order,
// joined by spaces, each clause keyword appearing at most once.
func (u *UpdateBuilder) Build() Expression {
	order := []string{"SET", "REMOVE", "ADD", "DELETE"}
	var sb strings.Builder
	for _, clause := range order {
		var terms []string
		for _, op := range u.ops {
			if op.clause == clause {
				terms = append(terms, op.term)
			}
		}
		if len(terms) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(clause)
		sb.WriteString(" ")
		sb.WriteString(strings.Join(terms, ", "))
	}
	return Expression{Text: sb.String(), ExpressionAttributeNames: u.alloc.attrNames, ExpressionAttributeValues: u.alloc.attrValues}
}
