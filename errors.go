package abac

import "fmt"

// SchemaError indicates a policy or resource document failed registration
// validation. Path points at the offending location in the document
// (e.g. "conditions.conditions[1].attributeKey"); Reason is a short,
// human-readable explanation. Neither an index entry nor a Resource is
// produced when this error is returned.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error at %s: %s", e.Path, e.Reason)
}

// InvalidOperandError indicates a present attribute had a shape
// incompatible with the operator applied to it: an array where a
// primitive was required, a cross-type compare, a boolean probed against
// in/nin, or a non-numeric operand in a numeric comparison. Missing
// attributes never produce this error — absence is data, not error.
type InvalidOperandError struct {
	ObservedType string
	Operator     string
	Message      string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("invalid operand for %q (observed %s): %s", e.Operator, e.ObservedType, e.Message)
}

// errUnreachable marks a branch the validator should have made impossible
// to reach. Its presence at runtime indicates either a library bug or a
// hand-crafted Condition tree that bypassed AddPolicy's validation.
type errUnreachable struct {
	where string
}

func (e errUnreachable) Error() string {
	return "abac: unreachable: " + e.where
}

func panicUnreachable(where string) {
	panic(errUnreachable{where: where})
}
