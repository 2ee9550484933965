package definition

import (
	"fmt"
	"strings"
)

// DefinitionError is returned by every load function. It lists all problems
// found in the document; errors.As reaches each of them.
type DefinitionError struct {
	Source   string
	Problems []error
}

func (e *DefinitionError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	prefix := "invalid workflow definition"
	if e.Source != "" {
		prefix += " " + e.Source
	}
	return prefix + ": " + strings.Join(msgs, "; ")
}

func (e *DefinitionError) Unwrap() []error { return e.Problems }

// RoutingError marks a Choice state that could run out of rules with no
// default to fall back on.
type RoutingError struct {
	State string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("choice state %q has no default transition", e.State)
}

// StateError is a problem located in a single state.
type StateError struct {
	State  string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %q: %s", e.State, e.Reason)
}

func stateErrorf(state, format string, args ...any) error {
	return &StateError{State: state, Reason: fmt.Sprintf(format, args...)}
}
