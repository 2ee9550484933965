// Package trigger starts executions from outside the HTTP API: on a cron
// schedule or from messages on a Redis list.
package trigger

import (
	"context"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
)

// Starter is the part of the engine a trigger needs.
type Starter interface {
	StartExecution(ctx context.Context, definitionRef string, payload any, opts engine.StartOptions) (string, error)
}
