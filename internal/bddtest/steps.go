// Package bddtest wires features/*.feature (Gherkin) scenarios to the
// public abac API: one struct holds scenario-scoped state, one Step call
// per sentence, all registered onto a godog.ScenarioContext.
package bddtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	abac "github.com/chirino/abac-engine"
)

// suite holds the state for a single scenario. Scenarios run serially in
// this suite, so no synchronization is needed.
type suite struct {
	manager *abac.PolicyManager
	subject *abac.Resource
	resrc   *abac.Resource

	lastAuthorized bool
	lastErr        error
}

// InitializeScenario registers every step used by features/*.feature.
func InitializeScenario(ctx *godog.ScenarioContext) {
	s := &suite{}

	ctx.Before(func(gctx context.Context, sc *godog.Scenario) (context.Context, error) {
		*s = suite{}
		return gctx, nil
	})

	ctx.Step(`^a resource type universe of "([^"]*)"$`, s.aResourceTypeUniverseOf)
	ctx.Step(`^a policy granting "([^"]*)" on "([^"]*)" with no conditions$`, s.aPolicyGrantingOnWithNoConditions)
	ctx.Step(`^a policy granting "([^"]*)" on "([^"]*)" with conditions:$`, s.aPolicyGrantingOnWithConditions)
	ctx.Step(`^a subject "([^"]*)" of type "([^"]*)" with no attributes$`, s.anEntityOfTypeWithNoAttributes(true))
	ctx.Step(`^a resource "([^"]*)" of type "([^"]*)" with no attributes$`, s.anEntityOfTypeWithNoAttributes(false))
	ctx.Step(`^a subject "([^"]*)" of type "([^"]*)" with attributes:$`, s.anEntityOfTypeWithAttributes(true))
	ctx.Step(`^a resource "([^"]*)" of type "([^"]*)" with attributes:$`, s.anEntityOfTypeWithAttributes(false))
	ctx.Step(`^I check authorization for action "([^"]*)"$`, s.iCheckAuthorizationForAction)
	ctx.Step(`^the decision is authorized$`, s.theDecisionIsAuthorized)
	ctx.Step(`^the decision is denied$`, s.theDecisionIsDenied)
	ctx.Step(`^the evaluation fails with an invalid operand error$`, s.theEvaluationFailsWithInvalidOperand)
}

func (s *suite) aResourceTypeUniverseOf(csv string) error {
	var universe []string
	for _, part := range strings.Split(csv, ",") {
		universe = append(universe, strings.TrimSpace(part))
	}
	pm, err := abac.NewPolicyManager(universe)
	if err != nil {
		return err
	}
	s.manager = pm
	return nil
}

func (s *suite) aPolicyGrantingOnWithNoConditions(action, resourceType string) error {
	return s.manager.AddPolicy(abac.PolicyDocument{Action: action, Resource: resourceType})
}

func (s *suite) aPolicyGrantingOnWithConditions(action, resourceType string, conditions *godog.DocString) error {
	return s.manager.AddPolicy(abac.PolicyDocument{
		Action:     action,
		Resource:   resourceType,
		Conditions: json.RawMessage(conditions.Content),
	})
}

func (s *suite) anEntityOfTypeWithNoAttributes(isSubject bool) func(id, typ string) error {
	return func(id, typ string) error {
		return s.setEntity(isSubject, id, typ, nil)
	}
}

func (s *suite) anEntityOfTypeWithAttributes(isSubject bool) func(id, typ string, attrs *godog.DocString) error {
	return func(id, typ string, attrs *godog.DocString) error {
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(attrs.Content), &raw); err != nil {
			return err
		}
		return s.setEntity(isSubject, id, typ, raw)
	}
}

func (s *suite) setEntity(isSubject bool, id, typ string, attrs map[string]interface{}) error {
	resource, err := s.manager.CreateResource(abac.ResourceDocument{ID: id, Type: typ, Attributes: attrs})
	if err != nil {
		return err
	}
	if isSubject {
		s.subject = resource
	} else {
		s.resrc = resource
	}
	return nil
}

func (s *suite) iCheckAuthorizationForAction(action string) error {
	engine := abac.NewAuthEngine(s.manager.GetPolicies())
	s.lastAuthorized, s.lastErr = engine.IsAuthorized(s.subject, s.resrc, abac.Action(action), nil)
	return nil
}

func (s *suite) theDecisionIsAuthorized() error {
	if s.lastErr != nil {
		return fmt.Errorf("unexpected error: %w", s.lastErr)
	}
	if !s.lastAuthorized {
		return fmt.Errorf("expected authorized, got denied")
	}
	return nil
}

func (s *suite) theDecisionIsDenied() error {
	if s.lastErr != nil {
		return fmt.Errorf("unexpected error: %w", s.lastErr)
	}
	if s.lastAuthorized {
		return fmt.Errorf("expected denied, got authorized")
	}
	return nil
}

func (s *suite) theEvaluationFailsWithInvalidOperand() error {
	if s.lastErr == nil {
		return fmt.Errorf("expected an InvalidOperandError, got no error")
	}
	var target *abac.InvalidOperandError
	if !errors.As(s.lastErr, &target) {
		return fmt.Errorf("expected an InvalidOperandError, got %v", s.lastErr)
	}
	return nil
}
