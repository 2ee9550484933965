package tasks

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/core"
)

// Random is the source of randomness the demo tasks draw from.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Env carries what the demo tasks need from the outside world. Tests swap
// the randomness and the sleeping.
type Env struct {
	Rand     Random
	Clock    core.Clock
	Username string
	// Sleep simulates work. It returns early with ctx.Err() when ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewEnv returns an Env backed by a time seeded generator and real sleeps.
func NewEnv(clock core.Clock) *Env {
	if clock == nil {
		clock = core.NewRealClock()
	}
	username := os.Getenv("USER")
	if username == "" {
		username = "unknown"
	}
	seed := uint64(clock.Now().UnixNano())
	env := &Env{
		Rand:     rand.New(rand.NewPCG(seed, seed>>1)),
		Clock:    clock,
		Username: username,
	}
	env.Sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-env.Clock.After(d):
			return nil
		}
	}
	return env
}

func (e *Env) uniform(lo, hi float64) float64 {
	return lo + e.Rand.Float64()*(hi-lo)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func round(f float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(f*p+0.5)) / p
}

// logger tags task logs with the execution the engine is driving, if any.
func logger(ctx context.Context) *slog.Logger {
	if id, ok := ctx.Value(core.CtxKeyExecutionId).(string); ok {
		return slog.Default().With("execution_id", id)
	}
	return slog.Default()
}
