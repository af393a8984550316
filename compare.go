package abac

// valuesEqual compares two same-kind, non-array AttributeValues for
// strict equality. Callers must have already established a.Kind ==
// b.Kind and neither is an array.
func valuesEqual(a, b AttributeValue) bool {
	switch a.Kind {
	case KindString:
		return a.StringVal == b.StringVal
	case KindNumber:
		return a.NumberVal == b.NumberVal
	case KindBool:
		return a.BoolVal == b.BoolVal
	default:
		panicUnreachable("valuesEqual: non-primitive kind")
		return false
	}
}

func numericCompare(op Operator, a, b float64) bool {
	switch op {
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	default:
		panicUnreachable("numericCompare: non-numeric op")
		return false
	}
}

// compareEqNe implements eq/ne. Cross-type comparison raises
// InvalidOperandError; array operands are rejected by the caller before
// reaching here, but are checked again defensively.
func compareEqNe(op Operator, probe, ref AttributeValue) (bool, error) {
	if probe.IsArray() || ref.IsArray() {
		return false, &InvalidOperandError{ObservedType: probe.Kind.String(), Operator: string(op), Message: "eq/ne operands must be primitive"}
	}
	if probe.Kind != ref.Kind {
		return false, &InvalidOperandError{ObservedType: probe.Kind.String(), Operator: string(op), Message: "cross-type comparison: probe is " + probe.Kind.String() + ", reference is " + ref.Kind.String()}
	}
	eq := valuesEqual(probe, ref)
	if op == OpNe {
		return !eq, nil
	}
	return eq, nil
}

// compareNumeric implements gt/gte/lt/lte. Both operands must be numeric.
func compareNumeric(op Operator, probe, ref AttributeValue) (bool, error) {
	if probe.Kind != KindNumber {
		return false, &InvalidOperandError{ObservedType: probe.Kind.String(), Operator: string(op), Message: "operand must be numeric"}
	}
	if ref.Kind != KindNumber {
		return false, &InvalidOperandError{ObservedType: ref.Kind.String(), Operator: string(op), Message: "reference value must be numeric"}
	}
	return numericCompare(op, probe.NumberVal, ref.NumberVal), nil
}

// compareMembership implements in/nin: true iff the probe is strictly
// equal (same type, same value) to an element of the collection.
// Booleans cannot be probed. If the collection's element type does not
// match the probe's type at all, that's an InvalidOperandError rather
// than a false result.
func compareMembership(op Operator, probe, collection AttributeValue) (bool, error) {
	if probe.Kind == KindBool {
		return false, &InvalidOperandError{ObservedType: probe.Kind.String(), Operator: string(op), Message: "boolean values cannot be probed against in/nin"}
	}
	if probe.IsArray() {
		return false, &InvalidOperandError{ObservedType: probe.Kind.String(), Operator: string(op), Message: "in/nin probe must be a primitive value"}
	}

	var found bool
	switch collection.Kind {
	case KindStringArray:
		if probe.Kind != KindString {
			return false, &InvalidOperandError{ObservedType: probe.Kind.String(), Operator: string(op), Message: "no element of the reference array shares a type with the probe"}
		}
		for _, el := range collection.StringArray {
			if el == probe.StringVal {
				found = true
				break
			}
		}
	case KindNumberArray:
		if probe.Kind != KindNumber {
			return false, &InvalidOperandError{ObservedType: probe.Kind.String(), Operator: string(op), Message: "no element of the reference array shares a type with the probe"}
		}
		for _, el := range collection.NumberArray {
			if el == probe.NumberVal {
				found = true
				break
			}
		}
	default:
		return false, &InvalidOperandError{ObservedType: collection.Kind.String(), Operator: string(op), Message: "in/nin collection must be array<string> or array<number>"}
	}

	if op == OpNin {
		return !found, nil
	}
	return found, nil
}

// applyAttrOp dispatches a resolved (probe, reference) pair to the
// comparison semantics for op.
func applyAttrOp(op Operator, probe, ref AttributeValue) (bool, error) {
	switch {
	case op == OpEq || op == OpNe:
		return compareEqNe(op, probe, ref)
	case numericOnlyOps[op]:
		return compareNumeric(op, probe, ref)
	case membershipOps[op]:
		return compareMembership(op, probe, ref)
	default:
		panicUnreachable("applyAttrOp: unhandled operator " + string(op))
		return false, nil
	}
}
