// Package dynamo implements the DynamoDB-facing layers: the attribute-value
// codec (C9), the single-table entity registry and expression builders
// (C9+C10), and the migration driver (C11).
package dynamo

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Marshal converts a Go value into a DynamoDB typed attribute value per
// §4.9's dispatch table. This is a hand-rolled codec rather than a direct
// call into feature/dynamodb/attributevalue so that the spec's exact
// sequence-vs-set disambiguation rules (all-string -> SS, all-number -> NS,
// mixed -> L) are under this package's control; attributevalue is used only
// as a cross-check oracle in tests.
func Marshal(v any) (types.AttributeValue, error) {
	if v == nil {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}

	switch val := v.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: val}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: val}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: val}, nil
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(val)}, nil
	case int32:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(val), 10)}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(val, 10)}, nil
	case float32:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(float64(val), 'f', -1, 32)}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(val, 'f', -1, 64)}, nil
	case []string:
		if len(val) == 0 {
			return &types.AttributeValueMemberL{Value: []types.AttributeValue{}}, nil
		}
		return &types.AttributeValueMemberSS{Value: val}, nil
	case []any:
		return marshalSequence(val)
	case map[string]any:
		m := make(map[string]types.AttributeValue, len(val))
		for k, elem := range val {
			av, err := Marshal(elem)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("dynamo: cannot marshal value of type %T", v)
	}
}

// marshalSequence implements §4.9's sequence dispatch: empty -> L{},
// all-string -> SS, all-number -> NS, otherwise -> L of marshaled elements.
func marshalSequence(seq []any) (types.AttributeValue, error) {
	if len(seq) == 0 {
		return &types.AttributeValueMemberL{Value: []types.AttributeValue{}}, nil
	}

	allStrings, allNumbers := true, true
	for _, elem := range seq {
		switch elem.(type) {
		case string:
			allNumbers = false
		case int, int32, int64, float32, float64:
			allStrings = false
		default:
			allStrings, allNumbers = false, false
		}
		if !allStrings && !allNumbers {
			break
		}
	}

	if allStrings {
		ss := make([]string, len(seq))
		for i, elem := range seq {
			ss[i] = elem.(string)
		}
		return &types.AttributeValueMemberSS{Value: ss}, nil
	}
	if allNumbers {
		ns := make([]string, len(seq))
		for i, elem := range seq {
			av, err := Marshal(elem)
			if err != nil {
				return nil, err
			}
			ns[i] = av.(*types.AttributeValueMemberN).Value
		}
		return &types.AttributeValueMemberNS{Value: ns}, nil
	}

	l := make([]types.AttributeValue, len(seq))
	for i, elem := range seq {
		av, err := Marshal(elem)
		if err != nil {
			return nil, err
		}
		l[i] = av
	}
	return &types.AttributeValueMemberL{Value: l}, nil
}

// Unmarshal is the inverse single-key dispatch: it type-switches on the
// concrete AttributeValue member and converts NS back to a []any of float64
// elements.
func Unmarshal(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case nil:
		return nil, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return parseNumber(v.Value)
	case *types.AttributeValueMemberSS:
		out := make([]any, len(v.Value))
		for i, s := range v.Value {
			out[i] = s
		}
		return out, nil
	case *types.AttributeValueMemberNS:
		out := make([]any, len(v.Value))
		for i, s := range v.Value {
			n, err := parseNumber(s)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, elem := range v.Value {
			u, err := Unmarshal(elem)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(v.Value))
		for k, elem := range v.Value {
			u, err := Unmarshal(elem)
			if err != nil {
				return nil, err
			}
			out[k] = u
		}
		return out, nil
	default:
		return nil, fmt.Errorf("dynamo: cannot unmarshal attribute value of type %T", av)
	}
}

func parseNumber(s string) (float64, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamo: invalid numeric attribute value %q: %w", s, err)
	}
	return n, nil
}

// MarshalMap marshals every entry of a string-keyed map into a DynamoDB item.
func MarshalMap(data map[string]any) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(data))
	for k, v := range data {
		av, err := Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("dynamo: marshaling field %q: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// UnmarshalMap is the inverse of MarshalMap.
func UnmarshalMap(item map[string]types.AttributeValue) (map[string]any, error) {
	out := make(map[string]any, len(item))
	for k, av := range item {
		v, err := Unmarshal(av)
		if err != nil {
			return nil, fmt.Errorf("dynamo: unmarshaling field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
