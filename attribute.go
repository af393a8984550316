package abac

import "fmt"

// ValueKind identifies the tagged shape carried by an AttributeValue.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindStringArray
	KindNumberArray
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStringArray:
		return "array<string>"
	case KindNumberArray:
		return "array<number>"
	default:
		return "unknown"
	}
}

// AttributeValue is a tagged value attached to a Resource. Exactly one of
// the typed fields is meaningful, selected by Kind. Arrays of booleans are
// not representable; schema.go's decodeAttributeValue enforces this when
// decoding untrusted JSON.
type AttributeValue struct {
	Kind        ValueKind
	StringVal   string
	NumberVal   float64
	BoolVal     bool
	StringArray []string
	NumberArray []float64
}

// IsArray reports whether the value is one of the two array kinds.
func (v AttributeValue) IsArray() bool {
	return v.Kind == KindStringArray || v.Kind == KindNumberArray
}

func (v AttributeValue) String() string {
	switch v.Kind {
	case KindString:
		return v.StringVal
	case KindNumber:
		return fmt.Sprintf("%v", v.NumberVal)
	case KindBool:
		return fmt.Sprintf("%v", v.BoolVal)
	case KindStringArray:
		return fmt.Sprintf("%v", v.StringArray)
	case KindNumberArray:
		return fmt.Sprintf("%v", v.NumberArray)
	default:
		return "<invalid>"
	}
}

// StringAttr builds a string-kinded AttributeValue.
func StringAttr(v string) AttributeValue { return AttributeValue{Kind: KindString, StringVal: v} }

// NumberAttr builds a number-kinded AttributeValue.
func NumberAttr(v float64) AttributeValue { return AttributeValue{Kind: KindNumber, NumberVal: v} }

// BoolAttr builds a bool-kinded AttributeValue.
func BoolAttr(v bool) AttributeValue { return AttributeValue{Kind: KindBool, BoolVal: v} }

// StringArrayAttr builds an array<string>-kinded AttributeValue.
func StringArrayAttr(v []string) AttributeValue {
	return AttributeValue{Kind: KindStringArray, StringArray: append([]string(nil), v...)}
}

// NumberArrayAttr builds an array<number>-kinded AttributeValue.
func NumberArrayAttr(v []float64) AttributeValue {
	return AttributeValue{Kind: KindNumberArray, NumberArray: append([]float64(nil), v...)}
}

// Attributes is a mapping from attribute name to AttributeValue. Insertion
// order is irrelevant; keys are unique by construction (it is a Go map).
type Attributes map[string]AttributeValue

// Get returns the value for name and whether it was present.
func (a Attributes) Get(name string) (AttributeValue, bool) {
	v, ok := a[name]
	return v, ok
}
