package abac

// Operator is the comparison or logical operator named by a Condition
// node. The permitted set differs per Condition variant; schema.go
// enforces which operators are legal where.
type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
	OpNot Operator = "not"

	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
	OpNin Operator = "nin"
)

// CompareSource selects which entity supplies the value compared against
// an AttributeCondition's reference value.
type CompareSource string

const (
	SourceSubject  CompareSource = "subject"
	SourceResource CompareSource = "resource"
)

// ConditionKind discriminates the Condition sum type.
type ConditionKind int

const (
	KindLogical ConditionKind = iota
	KindAttribute
	KindEntityKey
)

// Condition is a tagged sum of three variants: a Logical node, an
// AttributeCondition, or an EntityKeyCondition. Exactly one of the
// type-specific field groups is populated, selected by Kind. Values of
// this type that were not produced by PolicyManager.AddPolicy's
// validation (schema.go's validateConditionDoc) are not guaranteed to
// satisfy the invariants the evaluator assumes.
type Condition struct {
	Kind ConditionKind

	// Logical fields.
	LogicalOp Operator    // and | or | not
	Children  []Condition // and/or: >=1 elements; not: exactly 1

	// AttributeCondition fields.
	AttrOp            Operator
	AttributeKey      string // DynamicKey, e.g. "$role"
	ReferenceValue    AttributeValue
	AttrCompareSource *CompareSource // nil means "absent" (two-sided rule)

	// EntityKeyCondition fields — primitive form.
	EntityOp    Operator
	SubjectKey  string
	ResourceKey string

	// EntityKeyCondition fields — collection form (op is in|nin).
	TargetKey        string
	CollectionKey    string
	CollectionSource CollectionSource
}

// CollectionSource selects which entity holds the collection in a
// membership check; the other entity supplies the probed target value.
type CollectionSource string

const (
	CollectionFromSubject  CollectionSource = "subject"
	CollectionFromResource CollectionSource = "resource"
)

// And builds a conjunction Condition over children (must be non-empty;
// this constructor does not check it).
func And(children ...Condition) Condition {
	return Condition{Kind: KindLogical, LogicalOp: OpAnd, Children: children}
}

// Or builds a disjunction Condition over children.
func Or(children ...Condition) Condition {
	return Condition{Kind: KindLogical, LogicalOp: OpOr, Children: children}
}

// Not negates a single child Condition.
func Not(child Condition) Condition {
	return Condition{Kind: KindLogical, LogicalOp: OpNot, Children: []Condition{child}}
}

// AttributeEq/Ne/Gt/Gte/Lt/Lte/In/Nin build AttributeCondition nodes. A nil
// source implements the two-sided "absent compareSource" rule.
func attributeCondition(op Operator, key string, ref AttributeValue, source *CompareSource) Condition {
	return Condition{
		Kind:              KindAttribute,
		AttrOp:            op,
		AttributeKey:      key,
		ReferenceValue:    ref,
		AttrCompareSource: source,
	}
}

func AttributeEq(key string, ref AttributeValue, source *CompareSource) Condition {
	return attributeCondition(OpEq, key, ref, source)
}

func AttributeNe(key string, ref AttributeValue, source *CompareSource) Condition {
	return attributeCondition(OpNe, key, ref, source)
}

func AttributeGt(key string, ref float64, source *CompareSource) Condition {
	return attributeCondition(OpGt, key, NumberAttr(ref), source)
}

func AttributeGte(key string, ref float64, source *CompareSource) Condition {
	return attributeCondition(OpGte, key, NumberAttr(ref), source)
}

func AttributeLt(key string, ref float64, source *CompareSource) Condition {
	return attributeCondition(OpLt, key, NumberAttr(ref), source)
}

func AttributeLte(key string, ref float64, source *CompareSource) Condition {
	return attributeCondition(OpLte, key, NumberAttr(ref), source)
}

func AttributeIn(key string, ref AttributeValue, source *CompareSource) Condition {
	return attributeCondition(OpIn, key, ref, source)
}

func AttributeNin(key string, ref AttributeValue, source *CompareSource) Condition {
	return attributeCondition(OpNin, key, ref, source)
}

// EntityKeyCompare builds a primitive-form EntityKeyCondition.
func EntityKeyCompare(op Operator, subjectKey, resourceKey string) Condition {
	return Condition{
		Kind:        KindEntityKey,
		EntityOp:    op,
		SubjectKey:  subjectKey,
		ResourceKey: resourceKey,
	}
}

// EntityKeyMembership builds a collection-form EntityKeyCondition (op must
// be in or nin).
func EntityKeyMembership(op Operator, targetKey, collectionKey string, source CollectionSource) Condition {
	return Condition{
		Kind:             KindEntityKey,
		EntityOp:         op,
		TargetKey:        targetKey,
		CollectionKey:    collectionKey,
		CollectionSource: source,
	}
}

// resolvedName strips the leading "$" from a DynamicKey, returning the
// attribute name it names. Callers must have already validated key is a
// DynamicKey (schema.go's isDynamicKey).
func resolvedName(key string) string {
	return key[1:]
}
