package nested

import (
	"fmt"
	"sort"

	"nestql/internal/naming"
	"nestql/internal/relation"
)

// FieldOps holds the relation operations requested for a single relation
// field of a mutation input, keyed by verb. Ops never contains nil values;
// a verb submitted with a null payload is treated as absent.
type FieldOps struct {
	Field      string
	Descriptor relation.Descriptor
	Ops        map[relation.Verb]interface{}
}

// IsNestedPayload reports whether a relation-field value carries embedded
// related objects that require recursive handling. A value qualifies when it
// contains a create or update operation, when its set operation holds
// structured objects rather than bare identifiers, when it is a list of
// structured objects, or when it is a bare object with no operation keys.
// Identifier references, including connect/disconnect/set populated with
// bare identifiers, do not qualify and resolve directly to key assignments.
func IsNestedPayload(value interface{}) bool {
	switch v := value.(type) {
	case map[string]interface{}:
		if _, ok := v[string(relation.VerbCreate)]; ok {
			return true
		}
		if _, ok := v[string(relation.VerbUpdate)]; ok {
			return true
		}
		if !hasVerbKey(v) {
			return len(v) > 0
		}
		if set, ok := v[string(relation.VerbSet)]; ok {
			return hasStructuredElement(set)
		}
		return false
	case []interface{}:
		return hasStructuredElement(v)
	default:
		return false
	}
}

// SplitInput partitions a mutation input map into plain column assignments
// and per-relation operation sets. Relation fields may be addressed through
// the plain slot ("author") or the nested slot ("nestedAuthor"); when both
// are present the nested slot wins and the plain value is discarded. Raw
// slot values are normalized into verbs: a bare identifier becomes connect,
// a list of identifiers becomes set, and objects without operation keys
// become create. Relation slots are returned with single-valued relations
// first, then list relations, each group ordered by field name.
func SplitInput(descriptors []relation.Descriptor, input map[string]interface{}) (map[string]interface{}, []FieldOps, []error) {
	plainSlot := make(map[string]relation.Descriptor, len(descriptors))
	nestedSlot := make(map[string]relation.Descriptor, len(descriptors))
	for _, desc := range descriptors {
		plainSlot[desc.FieldName] = desc
		nestedSlot[naming.NestedFieldName(desc.FieldName)] = desc
	}

	scalars := make(map[string]interface{})
	slotValues := make(map[string]interface{})
	var errs []error

	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := input[key]
		if desc, ok := nestedSlot[key]; ok {
			// Nested slots win over plain slots unconditionally.
			slotValues[desc.FieldName] = value
			continue
		}
		if desc, ok := plainSlot[key]; ok {
			if _, overridden := slotValues[desc.FieldName]; !overridden {
				slotValues[desc.FieldName] = value
			}
			continue
		}
		scalars[key] = value
	}

	rels := make([]FieldOps, 0, len(slotValues))
	for field, value := range slotValues {
		desc := plainSlot[field]
		ops, opErrs := normalizeOps(desc, value)
		errs = append(errs, opErrs...)
		if len(ops) == 0 {
			continue
		}
		rels = append(rels, FieldOps{Field: field, Descriptor: desc, Ops: ops})
	}

	sort.Slice(rels, func(i, j int) bool {
		li, lj := rels[i].Descriptor.Kind.ListShaped(), rels[j].Descriptor.Kind.ListShaped()
		if li != lj {
			return !li
		}
		return rels[i].Field < rels[j].Field
	})

	return scalars, rels, errs
}

// normalizeOps converts a relation slot value into a verb map. A nil value
// and a null verb payload are both treated as absent.
func normalizeOps(desc relation.Descriptor, value interface{}) (map[relation.Verb]interface{}, []error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case map[string]interface{}:
		if hasVerbKey(v) {
			return verbOps(desc, v)
		}
		if len(v) == 0 {
			return nil, nil
		}
		// Bare object with no operation keys requests a single create.
		if desc.Kind.ListShaped() {
			return map[relation.Verb]interface{}{relation.VerbCreate: []interface{}{v}}, nil
		}
		return map[relation.Verb]interface{}{relation.VerbCreate: v}, nil
	case []interface{}:
		if !desc.Kind.ListShaped() {
			return nil, []error{fmt.Errorf("relation %q holds a single record and does not accept a list", desc.FieldName)}
		}
		if hasStructuredElement(v) {
			if hasScalarElement(v) {
				return nil, []error{fmt.Errorf("relation %q mixes identifiers and objects in one list", desc.FieldName)}
			}
			return map[relation.Verb]interface{}{relation.VerbCreate: v}, nil
		}
		return map[relation.Verb]interface{}{relation.VerbSet: v}, nil
	default:
		if desc.Kind.ListShaped() {
			return nil, []error{fmt.Errorf("relation %q expects a list, got a single value", desc.FieldName)}
		}
		return map[relation.Verb]interface{}{relation.VerbConnect: v}, nil
	}
}

func verbOps(desc relation.Descriptor, payload map[string]interface{}) (map[relation.Verb]interface{}, []error) {
	ops := make(map[relation.Verb]interface{}, len(payload))
	var errs []error
	for key, value := range payload {
		verb, ok := parseVerb(key)
		if !ok {
			errs = append(errs, fmt.Errorf("relation %q mixes operation keys with plain field %q", desc.FieldName, key))
			continue
		}
		if value == nil {
			continue
		}
		if !VerbAvailable(desc.Kind, verb) {
			errs = append(errs, fmt.Errorf("operation %q is not available for single-valued relation %q", verb, desc.FieldName))
			continue
		}
		ops[verb] = value
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return ops, nil
}

// VerbAvailable reports whether a verb applies to a relation of the given
// kind. Disconnect and set only exist for list-shaped relations; removing or
// replacing a single-valued relation is expressed through connect.
func VerbAvailable(kind relation.Kind, verb relation.Verb) bool {
	switch verb {
	case relation.VerbDisconnect, relation.VerbSet:
		return kind.ListShaped()
	default:
		return true
	}
}

// IDList coerces a connect/disconnect/set payload into a flat identifier
// list. Single bare identifiers become a one-element list.
func IDList(field string, value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if isStructured(item) {
				return nil, &InvalidIDError{Field: field, Value: item}
			}
		}
		return v, nil
	case map[string]interface{}:
		return nil, &InvalidIDError{Field: field, Value: value}
	default:
		return []interface{}{value}, nil
	}
}

// ItemList coerces a create/update payload into a list of object maps.
func ItemList(field string, value interface{}) ([]map[string]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		items := make([]map[string]interface{}, 0, len(v))
		for _, raw := range v {
			item, ok := raw.(map[string]interface{})
			if !ok {
				return nil, &InvalidIDError{Field: field, Value: raw}
			}
			items = append(items, item)
		}
		return items, nil
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	default:
		return nil, &InvalidIDError{Field: field, Value: value}
	}
}

func parseVerb(key string) (relation.Verb, bool) {
	for _, verb := range relation.VerbOrder {
		if string(verb) == key {
			return verb, true
		}
	}
	return "", false
}

func hasVerbKey(payload map[string]interface{}) bool {
	for key := range payload {
		if _, ok := parseVerb(key); ok {
			return true
		}
	}
	return false
}

func hasStructuredElement(value interface{}) bool {
	list, ok := value.([]interface{})
	if !ok {
		return isStructured(value)
	}
	for _, item := range list {
		if isStructured(item) {
			return true
		}
	}
	return false
}

func hasScalarElement(list []interface{}) bool {
	for _, item := range list {
		if !isStructured(item) {
			return true
		}
	}
	return false
}

func isStructured(value interface{}) bool {
	switch value.(type) {
	case map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}
