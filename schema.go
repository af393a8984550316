package abac

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// dynamicKeyPattern matches a DynamicKey: a leading "$" followed by at
// least one more character.
var dynamicKeyPattern = regexp.MustCompile(`^\$.+`)

func isDynamicKey(s string) bool {
	return dynamicKeyPattern.MatchString(s)
}

// PolicyDocument is the JSON-equivalent shape a caller submits to
// PolicyManager.AddPolicy. Conditions is left as raw JSON because its
// shape is a recursive, strictly-validated sum type (see
// validateConditionDoc below) rather than a single Go struct.
type PolicyDocument struct {
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
}

// ResourceDocument is the JSON-equivalent shape a caller submits to
// PolicyManager.CreateResource.
type ResourceDocument struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
}

// The condition*Fields sets list the JSON keys each Condition variant may
// carry. Strict validation rejects any key outside the variant's set.
var conditionLogicalAndOrFields = map[string]bool{"op": true, "conditions": true}
var conditionLogicalNotFields = map[string]bool{"op": true, "conditions": true}
var conditionAttributeFields = map[string]bool{"op": true, "attributeKey": true, "referenceValue": true, "compareSource": true}
var conditionEntityPrimitiveFields = map[string]bool{"op": true, "subjectKey": true, "resourceKey": true}
var conditionEntityCollectionFields = map[string]bool{"op": true, "targetKey": true, "collectionKey": true, "collectionSource": true}

var comparisonOps = map[Operator]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpIn: true, OpNin: true,
}

var numericOnlyOps = map[Operator]bool{OpGt: true, OpGte: true, OpLt: true, OpLte: true}
var membershipOps = map[Operator]bool{OpIn: true, OpNin: true}

func schemaErr(path, reason string) error {
	return &SchemaError{Path: path, Reason: reason}
}

func strictFields(raw map[string]json.RawMessage, allowed map[string]bool, path string) error {
	for k := range raw {
		if !allowed[k] {
			return schemaErr(path, fmt.Sprintf("unexpected field %q", k))
		}
	}
	return nil
}

// validateConditionDoc walks a raw JSON Condition document, enforcing the
// Condition grammar (logical/attribute/entity-key variants, their legal
// field sets, and operator/key shapes), and produces the strongly typed
// Condition tree on success.
func validateConditionDoc(doc json.RawMessage, path string) (Condition, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return Condition{}, schemaErr(path, "condition must be a JSON object: "+err.Error())
	}

	opRaw, ok := raw["op"]
	if !ok {
		return Condition{}, schemaErr(path, "missing required field \"op\"")
	}
	var opStr string
	if err := json.Unmarshal(opRaw, &opStr); err != nil {
		return Condition{}, schemaErr(path+".op", "op must be a string")
	}
	op := Operator(opStr)

	switch op {
	case OpAnd, OpOr:
		return validateLogicalAndOr(raw, op, path)
	case OpNot:
		return validateLogicalNot(raw, path)
	default:
		if !comparisonOps[op] {
			return Condition{}, schemaErr(path+".op", fmt.Sprintf("unknown operator %q", opStr))
		}
		return validateComparison(raw, op, path)
	}
}

func validateLogicalAndOr(raw map[string]json.RawMessage, op Operator, path string) (Condition, error) {
	if err := strictFields(raw, conditionLogicalAndOrFields, path); err != nil {
		return Condition{}, err
	}
	condsRaw, ok := raw["conditions"]
	if !ok {
		return Condition{}, schemaErr(path+".conditions", "missing required field \"conditions\"")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(condsRaw, &items); err != nil {
		return Condition{}, schemaErr(path+".conditions", string(op)+" requires an array of conditions")
	}
	if len(items) == 0 {
		return Condition{}, schemaErr(path+".conditions", string(op)+" requires a non-empty list of conditions")
	}
	children := make([]Condition, 0, len(items))
	for i, item := range items {
		child, err := validateConditionDoc(item, fmt.Sprintf("%s.conditions[%d]", path, i))
		if err != nil {
			return Condition{}, err
		}
		children = append(children, child)
	}
	return Condition{Kind: KindLogical, LogicalOp: op, Children: children}, nil
}

func validateLogicalNot(raw map[string]json.RawMessage, path string) (Condition, error) {
	if err := strictFields(raw, conditionLogicalNotFields, path); err != nil {
		return Condition{}, err
	}
	condRaw, ok := raw["conditions"]
	if !ok {
		return Condition{}, schemaErr(path+".conditions", "missing required field \"conditions\"")
	}
	// A leading "[" means the caller supplied a list where not expects a
	// single child object.
	trimmed := trimLeadingSpace(condRaw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return Condition{}, schemaErr(path+".conditions", "not requires exactly one condition, not a list")
	}
	child, err := validateConditionDoc(condRaw, path+".conditions")
	if err != nil {
		return Condition{}, err
	}
	return Condition{Kind: KindLogical, LogicalOp: OpNot, Children: []Condition{child}}, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}

func validateComparison(raw map[string]json.RawMessage, op Operator, path string) (Condition, error) {
	_, hasAttrKey := raw["attributeKey"]
	_, hasSubjectKey := raw["subjectKey"]
	_, hasResourceKey := raw["resourceKey"]
	_, hasTargetKey := raw["targetKey"]
	_, hasCollectionKey := raw["collectionKey"]

	switch {
	case hasAttrKey:
		return validateAttributeCondition(raw, op, path)
	case hasSubjectKey || hasResourceKey:
		return validateEntityKeyPrimitive(raw, op, path)
	case hasTargetKey || hasCollectionKey:
		return validateEntityKeyCollection(raw, op, path)
	default:
		return Condition{}, schemaErr(path, "condition must have attributeKey, subjectKey+resourceKey, or targetKey+collectionKey")
	}
}

func validateAttributeCondition(raw map[string]json.RawMessage, op Operator, path string) (Condition, error) {
	if err := strictFields(raw, conditionAttributeFields, path); err != nil {
		return Condition{}, err
	}
	var key string
	if err := json.Unmarshal(raw["attributeKey"], &key); err != nil {
		return Condition{}, schemaErr(path+".attributeKey", "attributeKey must be a string")
	}
	if !isDynamicKey(key) {
		return Condition{}, schemaErr(path+".attributeKey", fmt.Sprintf("%q is not a valid dynamic key (must start with $)", key))
	}

	refRaw, ok := raw["referenceValue"]
	if !ok {
		return Condition{}, schemaErr(path+".referenceValue", "missing required field \"referenceValue\"")
	}
	ref, err := decodeReferenceValue(refRaw, op, path+".referenceValue")
	if err != nil {
		return Condition{}, err
	}

	source, err := decodeCompareSource(raw, path)
	if err != nil {
		return Condition{}, err
	}

	return Condition{
		Kind:              KindAttribute,
		AttrOp:            op,
		AttributeKey:      key,
		ReferenceValue:    ref,
		AttrCompareSource: source,
	}, nil
}

func decodeCompareSource(raw map[string]json.RawMessage, path string) (*CompareSource, error) {
	srcRaw, ok := raw["compareSource"]
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(srcRaw, &s); err != nil {
		return nil, schemaErr(path+".compareSource", "compareSource must be a string")
	}
	src := CompareSource(s)
	if src != SourceSubject && src != SourceResource {
		return nil, schemaErr(path+".compareSource", fmt.Sprintf("compareSource must be %q or %q", SourceSubject, SourceResource))
	}
	return &src, nil
}

func decodeReferenceValue(raw json.RawMessage, op Operator, path string) (AttributeValue, error) {
	switch {
	case numericOnlyOps[op]:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return AttributeValue{}, schemaErr(path, string(op)+" requires a numeric referenceValue")
		}
		return NumberAttr(f), nil
	case membershipOps[op]:
		return decodeArrayReference(raw, path)
	default: // eq|ne
		return decodePrimitiveReference(raw, path)
	}
}

func decodePrimitiveReference(raw json.RawMessage, path string) (AttributeValue, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return AttributeValue{}, schemaErr(path, "referenceValue is not valid JSON")
	}
	switch v := generic.(type) {
	case string:
		return StringAttr(v), nil
	case bool:
		return BoolAttr(v), nil
	case float64:
		return NumberAttr(v), nil
	default:
		return AttributeValue{}, schemaErr(path, "referenceValue must be a string, number, or bool")
	}
}

func decodeArrayReference(raw json.RawMessage, path string) (AttributeValue, error) {
	var generic []interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return AttributeValue{}, schemaErr(path, "referenceValue must be an array for in/nin")
	}
	if len(generic) == 0 {
		return AttributeValue{}, schemaErr(path, "referenceValue array must not be empty")
	}
	allStrings, allNumbers := true, true
	for _, el := range generic {
		switch el.(type) {
		case string:
			allNumbers = false
		case float64:
			allStrings = false
		default:
			allStrings, allNumbers = false, false
		}
	}
	switch {
	case allStrings:
		out := make([]string, len(generic))
		for i, el := range generic {
			out[i] = el.(string)
		}
		return StringArrayAttr(out), nil
	case allNumbers:
		out := make([]float64, len(generic))
		for i, el := range generic {
			out[i] = el.(float64)
		}
		return NumberArrayAttr(out), nil
	default:
		return AttributeValue{}, schemaErr(path, "referenceValue array elements must be all strings or all numbers")
	}
}

func validateEntityKeyPrimitive(raw map[string]json.RawMessage, op Operator, path string) (Condition, error) {
	if membershipOps[op] {
		return Condition{}, schemaErr(path+".op", string(op)+" requires targetKey/collectionKey/collectionSource, not subjectKey/resourceKey")
	}
	if err := strictFields(raw, conditionEntityPrimitiveFields, path); err != nil {
		return Condition{}, err
	}
	subjectKey, err := decodeRequiredDynamicKey(raw, "subjectKey", path)
	if err != nil {
		return Condition{}, err
	}
	resourceKey, err := decodeRequiredDynamicKey(raw, "resourceKey", path)
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Kind:        KindEntityKey,
		EntityOp:    op,
		SubjectKey:  subjectKey,
		ResourceKey: resourceKey,
	}, nil
}

func validateEntityKeyCollection(raw map[string]json.RawMessage, op Operator, path string) (Condition, error) {
	if !membershipOps[op] {
		return Condition{}, schemaErr(path+".op", string(op)+" requires subjectKey/resourceKey, not targetKey/collectionKey")
	}
	if err := strictFields(raw, conditionEntityCollectionFields, path); err != nil {
		return Condition{}, err
	}
	targetKey, err := decodeRequiredDynamicKey(raw, "targetKey", path)
	if err != nil {
		return Condition{}, err
	}
	collectionKey, err := decodeRequiredDynamicKey(raw, "collectionKey", path)
	if err != nil {
		return Condition{}, err
	}
	srcRaw, ok := raw["collectionSource"]
	if !ok {
		return Condition{}, schemaErr(path+".collectionSource", "missing required field \"collectionSource\"")
	}
	var s string
	if err := json.Unmarshal(srcRaw, &s); err != nil {
		return Condition{}, schemaErr(path+".collectionSource", "collectionSource must be a string")
	}
	source := CollectionSource(s)
	if source != CollectionFromSubject && source != CollectionFromResource {
		return Condition{}, schemaErr(path+".collectionSource", fmt.Sprintf("collectionSource must be %q or %q", CollectionFromSubject, CollectionFromResource))
	}
	return Condition{
		Kind:             KindEntityKey,
		EntityOp:         op,
		TargetKey:        targetKey,
		CollectionKey:    collectionKey,
		CollectionSource: source,
	}, nil
}

func decodeRequiredDynamicKey(raw map[string]json.RawMessage, field, path string) (string, error) {
	fieldRaw, ok := raw[field]
	if !ok {
		return "", schemaErr(path+"."+field, fmt.Sprintf("missing required field %q", field))
	}
	var key string
	if err := json.Unmarshal(fieldRaw, &key); err != nil {
		return "", schemaErr(path+"."+field, field+" must be a string")
	}
	if !isDynamicKey(key) {
		return "", schemaErr(path+"."+field, fmt.Sprintf("%q is not a valid dynamic key (must start with $)", key))
	}
	return key, nil
}

// decodeAttributeValue converts a single JSON attribute value from a
// ResourceDocument into an AttributeValue, rejecting shapes outside
// string|number|bool|array<string>|array<number> (arrays of bool are
// explicitly excluded). Empty arrays are rejected as well.
func decodeAttributeValue(name string, raw interface{}, path string) (AttributeValue, error) {
	switch v := raw.(type) {
	case string:
		return StringAttr(v), nil
	case bool:
		return BoolAttr(v), nil
	case float64:
		return NumberAttr(v), nil
	case []interface{}:
		if len(v) == 0 {
			return AttributeValue{}, schemaErr(path, fmt.Sprintf("attribute %q: empty arrays are not a representable AttributeValue", name))
		}
		allStrings, allNumbers := true, true
		for _, el := range v {
			switch el.(type) {
			case string:
				allNumbers = false
			case float64:
				allStrings = false
			default:
				allStrings, allNumbers = false, false
			}
		}
		switch {
		case allStrings:
			out := make([]string, len(v))
			for i, el := range v {
				out[i] = el.(string)
			}
			return StringArrayAttr(out), nil
		case allNumbers:
			out := make([]float64, len(v))
			for i, el := range v {
				out[i] = el.(float64)
			}
			return NumberArrayAttr(out), nil
		default:
			return AttributeValue{}, schemaErr(path, fmt.Sprintf("attribute %q: array elements must be all strings or all numbers (arrays of bool are not permitted)", name))
		}
	default:
		return AttributeValue{}, schemaErr(path, fmt.Sprintf("attribute %q has an unsupported JSON type", name))
	}
}
