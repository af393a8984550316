package abac

import "github.com/charmbracelet/log"

// AuthEngine decides is_authorized(subject, resource, action) against the
// index handed to it at construction. It is stateless between calls: no
// caching, no memoization, and it is safe to call IsAuthorized from
// multiple goroutines concurrently provided the index is no longer being
// mutated (see PolicyManager.GetPolicies).
type AuthEngine struct {
	index  map[PolicyKey][]Policy
	logger *log.Logger
}

// NewAuthEngine builds an AuthEngine over a policy index, typically
// obtained from PolicyManager.GetPolicies after all policies have been
// registered.
func NewAuthEngine(index map[PolicyKey][]Policy, opts ...EngineOption) *AuthEngine {
	e := &AuthEngine{index: index, logger: log.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EngineOption configures an AuthEngine at construction time.
type EngineOption func(*AuthEngine)

// WithEngineLogger overrides the package-level default logger.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *AuthEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// IsAuthorized returns true iff some policy keyed by (resource.Type,
// action) has no Conditions, or has Conditions that evaluate true against
// subject and resource. Policies are visited in insertion order and the
// first granting policy short-circuits the scan; this affects only how
// quickly the answer is found, never what the answer is. obs may be nil,
// equivalent to NoopObserver.
func (e *AuthEngine) IsAuthorized(subject, resource *Resource, action Action, obs Observer) (authorized bool, err error) {
	if obs == nil {
		obs = NoopObserver
	}
	key := keyFor(resource.Type, action)
	policies := e.index[key]

	for i, p := range policies {
		obs.Observe(StagePolicyConsidered, PolicyConsideredPayload{Index: i, Policy: p})

		if p.Conditions == nil {
			e.logger.Debug("unconditional grant", "key", key, "index", i)
			obs.Observe(StageOutcome, OutcomePayload{Authorized: true})
			return true, nil
		}

		result, evalErr := e.evaluate(subject, resource, *p.Conditions, obs)
		if evalErr != nil {
			return false, evalErr
		}
		if result {
			obs.Observe(StageOutcome, OutcomePayload{Authorized: true})
			return true, nil
		}
	}

	obs.Observe(StageOutcome, OutcomePayload{Authorized: false})
	return false, nil
}

// evaluate recursively evaluates a Condition tree, total over any tree
// produced by schema.go's validation (untrusted hand-built trees may
// panic via panicUnreachable rather than be caught as a decision).
func (e *AuthEngine) evaluate(subject, resource *Resource, c Condition, obs Observer) (bool, error) {
	obs.Observe(StageConditionEntered, ConditionEnteredPayload{Condition: c})

	switch c.Kind {
	case KindLogical:
		return e.evaluateLogical(subject, resource, c, obs)
	case KindAttribute:
		return e.evaluateAttribute(subject, resource, c, obs)
	case KindEntityKey:
		return e.evaluateEntityKey(subject, resource, c, obs)
	default:
		panicUnreachable("evaluate: unknown condition kind")
		return false, nil
	}
}

func (e *AuthEngine) evaluateLogical(subject, resource *Resource, c Condition, obs Observer) (bool, error) {
	switch c.LogicalOp {
	case OpAnd:
		for _, child := range c.Children {
			result, err := e.evaluate(subject, resource, child, obs)
			if err != nil {
				return false, err
			}
			if !result {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, child := range c.Children {
			result, err := e.evaluate(subject, resource, child, obs)
			if err != nil {
				return false, err
			}
			if result {
				return true, nil
			}
		}
		return false, nil
	case OpNot:
		result, err := e.evaluate(subject, resource, c.Children[0], obs)
		if err != nil {
			return false, err
		}
		return !result, nil
	default:
		panicUnreachable("evaluateLogical: unknown logical operator")
		return false, nil
	}
}

func (e *AuthEngine) evaluateAttribute(subject, resource *Resource, c Condition, obs Observer) (bool, error) {
	name := resolvedName(c.AttributeKey)
	sv, sPresent := subject.Attributes.Get(name)
	rv, rPresent := resource.Attributes.Get(name)

	switch {
	case c.AttrCompareSource != nil && *c.AttrCompareSource == SourceSubject:
		return e.evaluateOneSided(name, sv, sPresent, c, obs)
	case c.AttrCompareSource != nil && *c.AttrCompareSource == SourceResource:
		return e.evaluateOneSided(name, rv, rPresent, c, obs)
	default:
		if !sPresent || !rPresent {
			obs.Observe(StageValueResolved, ValueResolvedPayload{Name: name, Present: false, Result: false})
			return false, nil
		}
		if sv.IsArray() || rv.IsArray() {
			return false, &InvalidOperandError{ObservedType: sv.Kind.String(), Operator: string(c.AttrOp), Message: "two-sided attribute comparison requires non-array values on both sides"}
		}
		subjectResult, err := applyAttrOp(c.AttrOp, sv, c.ReferenceValue)
		if err != nil {
			return false, err
		}
		resourceResult, err := applyAttrOp(c.AttrOp, rv, c.ReferenceValue)
		if err != nil {
			return false, err
		}
		result := subjectResult && resourceResult
		obs.Observe(StageValueResolved, ValueResolvedPayload{Name: name, Value: sv, Present: true, Result: result})
		return result, nil
	}
}

func (e *AuthEngine) evaluateOneSided(name string, v AttributeValue, present bool, c Condition, obs Observer) (bool, error) {
	if !present {
		obs.Observe(StageValueResolved, ValueResolvedPayload{Name: name, Present: false, Result: false})
		return false, nil
	}
	if v.IsArray() {
		return false, &InvalidOperandError{ObservedType: v.Kind.String(), Operator: string(c.AttrOp), Message: "compareSource-scoped attribute comparison requires a non-array value"}
	}
	result, err := applyAttrOp(c.AttrOp, v, c.ReferenceValue)
	if err != nil {
		return false, err
	}
	obs.Observe(StageValueResolved, ValueResolvedPayload{Name: name, Value: v, Present: true, Result: result})
	return result, nil
}

func (e *AuthEngine) evaluateEntityKey(subject, resource *Resource, c Condition, obs Observer) (bool, error) {
	if membershipOps[c.EntityOp] {
		return e.evaluateEntityKeyCollection(subject, resource, c, obs)
	}
	return e.evaluateEntityKeyPrimitive(subject, resource, c, obs)
}

func (e *AuthEngine) evaluateEntityKeyPrimitive(subject, resource *Resource, c Condition, obs Observer) (bool, error) {
	sName := resolvedName(c.SubjectKey)
	rName := resolvedName(c.ResourceKey)
	sv, sPresent := subject.Attributes.Get(sName)
	rv, rPresent := resource.Attributes.Get(rName)

	if !sPresent || !rPresent {
		obs.Observe(StageValueResolved, ValueResolvedPayload{Name: sName, Present: false, Result: false})
		return false, nil
	}
	if sv.IsArray() || rv.IsArray() {
		return false, &InvalidOperandError{ObservedType: sv.Kind.String(), Operator: string(c.EntityOp), Message: "entity-key comparison requires non-array values"}
	}
	if sv.Kind != rv.Kind {
		return false, &InvalidOperandError{ObservedType: sv.Kind.String(), Operator: string(c.EntityOp), Message: "subjectKey and resourceKey resolved to different types"}
	}

	var result bool
	var err error
	switch c.EntityOp {
	case OpEq:
		result = valuesEqual(sv, rv)
	case OpNe:
		result = !valuesEqual(sv, rv)
	case OpGt, OpGte, OpLt, OpLte:
		result, err = compareNumeric(c.EntityOp, sv, rv)
	default:
		panicUnreachable("evaluateEntityKeyPrimitive: unhandled operator")
	}
	if err != nil {
		return false, err
	}
	obs.Observe(StageValueResolved, ValueResolvedPayload{Name: sName, Value: sv, Present: true, Result: result})
	return result, nil
}

func (e *AuthEngine) evaluateEntityKeyCollection(subject, resource *Resource, c Condition, obs Observer) (bool, error) {
	targetName := resolvedName(c.TargetKey)
	collectionName := resolvedName(c.CollectionKey)

	// This mapping is intentional — do not invert collectionKey/targetKey
	// usage. collectionSource names which entity the *collectionKey*
	// attribute comes from only when it is "resource"; when it is
	// "subject", the collection is read from the subject via targetKey
	// and the probe is read from the resource via collectionKey.
	var collection, target AttributeValue
	var collectionPresent, targetPresent bool
	if c.CollectionSource == CollectionFromSubject {
		collection, collectionPresent = subject.Attributes.Get(targetName)
		target, targetPresent = resource.Attributes.Get(collectionName)
	} else {
		collection, collectionPresent = resource.Attributes.Get(collectionName)
		target, targetPresent = subject.Attributes.Get(targetName)
	}

	if !collectionPresent || !targetPresent {
		obs.Observe(StageValueResolved, ValueResolvedPayload{Name: targetName, Present: false, Result: false})
		return false, nil
	}
	if target.IsArray() {
		return false, &InvalidOperandError{ObservedType: target.Kind.String(), Operator: string(c.EntityOp), Message: "collection-form target must be a primitive value"}
	}
	if !collection.IsArray() {
		return false, &InvalidOperandError{ObservedType: collection.Kind.String(), Operator: string(c.EntityOp), Message: "collection-form collection must be an array"}
	}

	result, err := compareMembership(c.EntityOp, target, collection)
	if err != nil {
		return false, err
	}
	obs.Observe(StageValueResolved, ValueResolvedPayload{Name: targetName, Value: target, Present: true, Result: result})
	return result, nil
}
