package abac

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// PolicyManager validates and stores policies under their (type, action)
// key, and mints validated Resource instances, for a fixed universe of
// resource types. A PolicyManager is safe for concurrent reads once
// mutation (AddPolicy/AddPolicies) has stopped; see the package doc for
// the full concurrency contract.
type PolicyManager struct {
	mu       sync.Mutex
	universe map[string]bool
	index    map[PolicyKey][]Policy
	logger   *log.Logger
}

// NewPolicyManager constructs a PolicyManager over a non-empty, duplicate
// free tuple of resource type names.
func NewPolicyManager(universe []string, opts ...ManagerOption) (*PolicyManager, error) {
	if len(universe) == 0 {
		return nil, schemaErr("universe", "resource type universe must not be empty")
	}
	seen := make(map[string]bool, len(universe))
	for _, t := range universe {
		if t == "" {
			return nil, schemaErr("universe", "resource type names must not be empty")
		}
		if seen[t] {
			return nil, schemaErr("universe", fmt.Sprintf("duplicate resource type %q", t))
		}
		seen[t] = true
	}

	pm := &PolicyManager{
		universe: seen,
		index:    make(map[PolicyKey][]Policy),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm, nil
}

// ManagerOption configures a PolicyManager at construction time.
type ManagerOption func(*PolicyManager)

// WithLogger overrides the package-level default logger.
func WithLogger(l *log.Logger) ManagerOption {
	return func(pm *PolicyManager) {
		if l != nil {
			pm.logger = l
		}
	}
}

// AddPolicy validates doc against the Condition schema and the universe,
// and on success appends it to index[key(policy)]. On failure the index
// is left unchanged and a *SchemaError is returned.
func (pm *PolicyManager) AddPolicy(doc PolicyDocument) error {
	policy, err := pm.validatePolicyDoc(doc)
	if err != nil {
		pm.logger.Warn("policy rejected", "resource", doc.Resource, "action", doc.Action, "err", err)
		return err
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	key := keyFor(policy.Resource, policy.Action)
	pm.index[key] = append(pm.index[key], policy)
	pm.logger.Debug("policy registered", "key", key)
	return nil
}

// AddPolicies applies AddPolicy sequentially. A failing document is not
// inserted; documents before and after it are processed independently
// (earlier successes remain, later documents are still attempted).
// Callers needing all-or-nothing semantics must pre-validate or roll
// back themselves.
func (pm *PolicyManager) AddPolicies(docs []PolicyDocument) []error {
	errs := make([]error, len(docs))
	for i, doc := range docs {
		errs[i] = pm.AddPolicy(doc)
	}
	return errs
}

// GetPolicies exposes the index. The returned map and its slices must be
// treated as immutable by the caller: PolicyManager may still be holding
// the only other reference, and AuthEngine is built expecting no further
// mutation once this has been called.
func (pm *PolicyManager) GetPolicies() map[PolicyKey][]Policy {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make(map[PolicyKey][]Policy, len(pm.index))
	for k, v := range pm.index {
		out[k] = v
	}
	return out
}

// CreateResource validates doc.Type against the universe and each
// attribute value's shape, returning a Resource on success.
func (pm *PolicyManager) CreateResource(doc ResourceDocument) (*Resource, error) {
	if !pm.universe[doc.Type] {
		return nil, schemaErr("type", fmt.Sprintf("%q is not a member of the resource type universe", doc.Type))
	}
	attrs := make(Attributes, len(doc.Attributes))
	for name, raw := range doc.Attributes {
		if name == "" {
			return nil, schemaErr("attributes", "attribute names must not be empty")
		}
		v, err := decodeAttributeValue(name, raw, "attributes."+name)
		if err != nil {
			return nil, err
		}
		attrs[name] = v
	}
	return &Resource{ID: doc.ID, Type: doc.Type, Attributes: attrs}, nil
}

func (pm *PolicyManager) validatePolicyDoc(doc PolicyDocument) (Policy, error) {
	if !pm.universe[doc.Resource] {
		return Policy{}, schemaErr("resource", fmt.Sprintf("%q is not a member of the resource type universe", doc.Resource))
	}
	action := Action(doc.Action)
	if !isValidAction(action) {
		return Policy{}, schemaErr("action", fmt.Sprintf("%q is not a valid action", doc.Action))
	}

	var conditions *Condition
	if len(doc.Conditions) > 0 {
		cond, err := validateConditionDoc(doc.Conditions, "conditions")
		if err != nil {
			return Policy{}, err
		}
		conditions = &cond
	}

	return Policy{Action: action, Resource: doc.Resource, Conditions: conditions}, nil
}
