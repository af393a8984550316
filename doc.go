// Package abac implements the attribute-based access-control core: a
// policy store keyed by (resource type, action), and a pure decision
// function that recursively evaluates a boolean condition algebra over a
// subject and a resource.
//
// Typical use:
//
//	pm, _ := abac.NewPolicyManager([]string{"user", "todo"})
//	_ = pm.AddPolicy(abac.PolicyDocument{Action: "update", Resource: "todo", Conditions: ...})
//	engine := abac.NewAuthEngine(pm.GetPolicies())
//	ok, err := engine.IsAuthorized(subject, resource, abac.ActionUpdate, nil)
//
// PolicyManager guards its own mutation with a mutex, but callers should
// still finish registering policies before handing the index returned by
// GetPolicies to an AuthEngine: GetPolicies returns a snapshot, so
// policies added afterward are invisible to engines already built. Once
// built, AuthEngine.IsAuthorized may be called concurrently from many
// goroutines: evaluation is stateless and performs no caching or
// memoization between calls.
package abac
