package abac

import "github.com/google/uuid"

// Action is one of the four actions the engine can authorize.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var allActions = [...]Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

func isValidAction(a Action) bool {
	for _, v := range allActions {
		if v == a {
			return true
		}
	}
	return false
}

// Resource is a subject or resource entity: an id, a type drawn from the
// PolicyManager's universe, and a bag of attributes. A subject in an
// authorization query is structurally a Resource whose Type names a
// user-kind.
type Resource struct {
	ID         string
	Type       string
	Attributes Attributes
}

// Policy grants Action on resources of Resource (a universe member)
// when Conditions is nil, or when Conditions evaluates true. Policies are
// immutable once registered.
type Policy struct {
	Action     Action
	Resource   string
	Conditions *Condition
}

// PolicyKey is the derived index key "<type>:<action>".
type PolicyKey string

func keyFor(resourceType string, action Action) PolicyKey {
	return PolicyKey(resourceType + ":" + string(action))
}

// NewResourceID mints a random resource identifier. Nothing in the data
// model mandates how ids are generated; callers who already have a
// natural id (an email, a UUID from elsewhere) should use that directly
// instead.
func NewResourceID() string {
	return uuid.NewString()
}
