package abac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustManager(t *testing.T, universe ...string) *PolicyManager {
	t.Helper()
	pm, err := NewPolicyManager(universe)
	require.NoError(t, err)
	return pm
}

func resourceOf(id, typ string, attrs Attributes) *Resource {
	if attrs == nil {
		attrs = Attributes{}
	}
	return &Resource{ID: id, Type: typ, Attributes: attrs}
}

// An unconditional policy grants regardless of attributes, and only for
// the action it names.
func TestUnconditionalGrant(t *testing.T) {
	pm := mustManager(t, "user", "file")
	require.NoError(t, pm.AddPolicy(PolicyDocument{Action: "read", Resource: "file"}))
	engine := NewAuthEngine(pm.GetPolicies())

	subject := resourceOf("u1", "user", nil)
	resource := resourceOf("f1", "file", nil)

	ok, err := engine.IsAuthorized(subject, resource, ActionRead, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.IsAuthorized(subject, resource, ActionDelete, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// An entity-key eq condition grants only when the subject and resource
// attributes resolve to the same value.
func TestOwnershipEntityKeyEq(t *testing.T) {
	pm := mustManager(t, "user", "todo")
	require.NoError(t, pm.AddPolicy(PolicyDocument{
		Action:     "update",
		Resource:   "todo",
		Conditions: rawCondition(t, `{"op":"eq","subjectKey":"$id","resourceKey":"$ownerId"}`),
	}))
	engine := NewAuthEngine(pm.GetPolicies())

	subject := resourceOf("u1", "user", Attributes{"id": StringAttr("u1")})
	resource := resourceOf("t1", "todo", Attributes{"ownerId": StringAttr("u1")})

	ok, err := engine.IsAuthorized(subject, resource, ActionUpdate, nil)
	require.NoError(t, err)
	require.True(t, ok)

	subject2 := resourceOf("u2", "user", Attributes{"id": StringAttr("u2")})
	ok, err = engine.IsAuthorized(subject2, resource, ActionUpdate, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// A collection-form entity-key condition grants when the probed value is
// a member of the other side's collection attribute.
func TestMembershipCollectionForm(t *testing.T) {
	pm := mustManager(t, "user", "task")
	require.NoError(t, pm.AddPolicy(PolicyDocument{
		Action:   "read",
		Resource: "task",
		Conditions: rawCondition(t, `{
			"op":"in",
			"targetKey":"$projects",
			"collectionKey":"$projectId",
			"collectionSource":"subject"
		}`),
	}))
	engine := NewAuthEngine(pm.GetPolicies())

	subject := resourceOf("u1", "user", Attributes{"projects": StringArrayAttr([]string{"p1"})})

	resource := resourceOf("t1", "task", Attributes{"projectId": StringAttr("p1")})
	ok, err := engine.IsAuthorized(subject, resource, ActionRead, nil)
	require.NoError(t, err)
	require.True(t, ok)

	resource2 := resourceOf("t2", "task", Attributes{"projectId": StringAttr("p2")})
	ok, err = engine.IsAuthorized(subject, resource2, ActionRead, nil)
	require.NoError(t, err)
	require.False(t, ok)

	subjectNoProjects := resourceOf("u2", "user", Attributes{})
	ok, err = engine.IsAuthorized(subjectNoProjects, resource, ActionRead, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// An attribute "in" condition scoped to the subject grants only when the
// subject's own attribute value is present in the reference array.
func TestAttributeInWithCompareSourceSubject(t *testing.T) {
	pm := mustManager(t, "user", "page")
	require.NoError(t, pm.AddPolicy(PolicyDocument{
		Action:   "read",
		Resource: "page",
		Conditions: rawCondition(t, `{
			"op":"in",
			"attributeKey":"$role",
			"referenceValue":["user","admin"],
			"compareSource":"subject"
		}`),
	}))
	engine := NewAuthEngine(pm.GetPolicies())
	resource := resourceOf("p1", "page", nil)

	admin := resourceOf("u1", "user", Attributes{"role": StringAttr("admin")})
	ok, err := engine.IsAuthorized(admin, resource, ActionRead, nil)
	require.NoError(t, err)
	require.True(t, ok)

	guest := resourceOf("u2", "user", Attributes{"role": StringAttr("guest")})
	ok, err = engine.IsAuthorized(guest, resource, ActionRead, nil)
	require.NoError(t, err)
	require.False(t, ok)

	noRole := resourceOf("u3", "user", Attributes{})
	ok, err = engine.IsAuthorized(noRole, resource, ActionRead, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// Comparing a numeric operator against a non-numeric attribute raises
// InvalidOperandError instead of silently failing closed.
func TestTypeMismatchRaises(t *testing.T) {
	pm := mustManager(t, "user", "account")
	require.NoError(t, pm.AddPolicy(PolicyDocument{
		Action:   "read",
		Resource: "account",
		Conditions: rawCondition(t, `{
			"op":"gt",
			"attributeKey":"$level",
			"referenceValue":5,
			"compareSource":"resource"
		}`),
	}))
	engine := NewAuthEngine(pm.GetPolicies())

	subject := resourceOf("u1", "user", nil)
	resource := resourceOf("a1", "account", Attributes{"level": StringAttr("seven")})

	_, err := engine.IsAuthorized(subject, resource, ActionRead, nil)
	require.Error(t, err)
	var invalidOperand *InvalidOperandError
	require.ErrorAs(t, err, &invalidOperand)
}

// An "or" condition grants if either branch grants, trying each branch
// in order.
func TestLogicalCompositionOr(t *testing.T) {
	pm := mustManager(t, "user", "todo")
	require.NoError(t, pm.AddPolicy(PolicyDocument{
		Action:   "update",
		Resource: "todo",
		Conditions: rawCondition(t, `{
			"op":"or",
			"conditions":[
				{"op":"eq","subjectKey":"$id","resourceKey":"$ownerId"},
				{"op":"eq","attributeKey":"$role","referenceValue":"admin","compareSource":"subject"}
			]
		}`),
	}))
	engine := NewAuthEngine(pm.GetPolicies())

	resource := resourceOf("t1", "todo", Attributes{"ownerId": StringAttr("u1")})

	owner := resourceOf("u1", "user", Attributes{"id": StringAttr("u1"), "role": StringAttr("guest")})
	ok, err := engine.IsAuthorized(owner, resource, ActionUpdate, nil)
	require.NoError(t, err)
	require.True(t, ok)

	admin := resourceOf("u2", "user", Attributes{"id": StringAttr("u2"), "role": StringAttr("admin")})
	ok, err = engine.IsAuthorized(admin, resource, ActionUpdate, nil)
	require.NoError(t, err)
	require.True(t, ok)

	stranger := resourceOf("u3", "user", Attributes{"id": StringAttr("u3"), "role": StringAttr("guest")})
	ok, err = engine.IsAuthorized(stranger, resource, ActionUpdate, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// Omitting compareSource compares both the subject's and the resource's
// attribute value against the reference value, requiring both to match.
func TestTwoSidedAttributeCompare(t *testing.T) {
	pm := mustManager(t, "user", "doc")
	require.NoError(t, pm.AddPolicy(PolicyDocument{
		Action:     "read",
		Resource:   "doc",
		Conditions: rawCondition(t, `{"op":"eq","attributeKey":"$department","referenceValue":"eng"}`),
	}))
	engine := NewAuthEngine(pm.GetPolicies())

	eng1 := resourceOf("u1", "user", Attributes{"department": StringAttr("eng")})
	eng2 := resourceOf("d1", "doc", Attributes{"department": StringAttr("eng")})
	ok, err := engine.IsAuthorized(eng1, eng2, ActionRead, nil)
	require.NoError(t, err)
	require.True(t, ok)

	fin := resourceOf("d2", "doc", Attributes{"department": StringAttr("fin")})
	ok, err = engine.IsAuthorized(eng1, fin, ActionRead, nil)
	require.NoError(t, err)
	require.False(t, ok)

	noDept := resourceOf("u2", "user", Attributes{})
	ok, err = engine.IsAuthorized(noDept, eng2, ActionRead, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// Invariant 1: no policies for (type, action) => false.
func TestInvariant_NoPoliciesIsFalse(t *testing.T) {
	pm := mustManager(t, "user", "file")
	engine := NewAuthEngine(pm.GetPolicies())
	ok, err := engine.IsAuthorized(resourceOf("u1", "user", nil), resourceOf("f1", "file", nil), ActionRead, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// Invariant 3: not(not(c)) == c.
func TestInvariant_DoubleNegation(t *testing.T) {
	pm := mustManager(t, "user", "file")
	require.NoError(t, pm.AddPolicy(PolicyDocument{
		Action:     "read",
		Resource:   "file",
		Conditions: rawCondition(t, `{"op":"not","conditions":{"op":"not","conditions":{"op":"eq","attributeKey":"$x","referenceValue":"y","compareSource":"subject"}}}`),
	}))
	engine := NewAuthEngine(pm.GetPolicies())
	subject := resourceOf("u1", "user", Attributes{"x": StringAttr("y")})
	resource := resourceOf("f1", "file", nil)

	ok, err := engine.IsAuthorized(subject, resource, ActionRead, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

// Invariant 6: adding a non-matching (type, action) policy never changes
// a prior decision.
func TestInvariant_UnrelatedPolicyDoesNotAffectDecision(t *testing.T) {
	pm := mustManager(t, "user", "file", "todo")
	require.NoError(t, pm.AddPolicy(PolicyDocument{Action: "read", Resource: "file"}))
	engine := NewAuthEngine(pm.GetPolicies())

	subject := resourceOf("u1", "user", nil)
	resource := resourceOf("f1", "file", nil)
	before, err := engine.IsAuthorized(subject, resource, ActionRead, nil)
	require.NoError(t, err)

	require.NoError(t, pm.AddPolicy(PolicyDocument{Action: "delete", Resource: "todo"}))
	engineAfter := NewAuthEngine(pm.GetPolicies())
	after, err := engineAfter.IsAuthorized(subject, resource, ActionRead, nil)
	require.NoError(t, err)

	require.Equal(t, before, after)
}

func TestObserverReceivesOutcome(t *testing.T) {
	pm := mustManager(t, "user", "file")
	require.NoError(t, pm.AddPolicy(PolicyDocument{Action: "read", Resource: "file"}))
	engine := NewAuthEngine(pm.GetPolicies())

	var stages []Stage
	obs := ObserverFunc(func(stage Stage, payload any) {
		stages = append(stages, stage)
	})

	ok, err := engine.IsAuthorized(resourceOf("u1", "user", nil), resourceOf("f1", "file", nil), ActionRead, obs)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, stages, StagePolicyConsidered)
	require.Contains(t, stages, StageOutcome)
}

func rawCondition(t *testing.T, jsonText string) []byte {
	t.Helper()
	return []byte(jsonText)
}
