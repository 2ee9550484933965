package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/core"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// stateResult is the outcome of one state visit.
type stateResult struct {
	output  any
	next    string // empty when the state ends the execution
	err     *domain.TaskError
	retries int
	// unhandled is set when err matched neither a retry with attempts left
	// nor a catcher.
	unhandled bool
}

// drive runs ex from its start state until it succeeds, fails or is
// aborted. Cancelling ctx aborts the execution.
func (m *Manager) drive(ctx context.Context, ex *execution, workerID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = context.WithValue(ctx, core.CtxKeyExecutionId, ex.id())
	ctx = context.WithValue(ctx, core.CtxKeyWorkerId, workerID)
	if m.executorID > 0 {
		ctx = context.WithValue(ctx, core.CtxKeyExecutorId, m.executorID)
	}
	log := slog.With("execution_id", ex.id(), "definition", ex.def.Name, "worker_id", workerID)

	if !ex.start(m.clock.Now(), m.executorID, cancel) {
		log.InfoContext(ctx, "Execution no longer pending, skipping", "status", ex.status())
		return
	}

	ctx, span := m.tracer.Start(ctx, "execution "+ex.def.Name, trace.WithAttributes(
		attribute.String("gopherstep.execution_id", ex.id()),
		attribute.String("gopherstep.definition", ex.def.Name),
		attribute.String("gopherstep.digest", ex.def.Digest),
	))
	defer span.End()

	m.persist(ctx, ex)
	m.publish(ctx, ex, domain.EventExecutionStarted, "", nil)
	log.InfoContext(ctx, "Running execution")

	def := ex.def
	data := datapath.DeepCopy(ex.input)
	name := def.StartState
	var seq int64
	for {
		if ctx.Err() != nil {
			m.finishAborted(ctx, ex, log)
			span.SetStatus(codes.Error, "aborted")
			return
		}

		spec, ok := def.State(name)
		if !ok {
			// unreachable for loaded definitions
			m.finishFailed(ctx, ex, name, runtimeError("state %q does not exist", name), log)
			span.SetStatus(codes.Error, "unknown state")
			return
		}
		ex.enter(name, m.clock.Now())
		m.persist(ctx, ex)
		entered := m.clock.Now()

		res, err := m.runState(ctx, name, spec, data, log)
		if err != nil {
			m.finishAborted(ctx, ex, log)
			span.SetStatus(codes.Error, "aborted")
			return
		}

		seq++
		entry := domain.HistoryEntry{
			ExecutionID: ex.id(),
			Sequence:    seq,
			StateName:   name,
			StateType:   spec.StateType(),
			EnteredAt:   entered,
			ExitedAt:    m.clock.Now(),
			Input:       data,
			Error:       res.err,
			Retries:     res.retries,
			NextState:   res.next,
		}
		if !res.unhandled {
			entry.Output = res.output
		}
		if err := m.history.Append(context.WithoutCancel(ctx), entry); err != nil {
			log.ErrorContext(ctx, "Error appending history", "state", name, "error", err)
			m.finishFailed(ctx, ex, name, runtimeError("append history: %v", err), log)
			span.SetStatus(codes.Error, "history")
			return
		}
		m.publish(ctx, ex, domain.EventStateCompleted, name, res.err)

		if res.unhandled {
			m.finishFailed(ctx, ex, name, res.err, log)
			span.SetStatus(codes.Error, res.err.Error())
			return
		}
		data = res.output
		if res.next == "" {
			m.finishSucceeded(ctx, ex, name, data, log)
			return
		}
		log.InfoContext(ctx, "Transitioning state", "from", name, "to", res.next)
		name = res.next
	}
}

// runState visits one state. A non nil error means the execution was
// aborted before the state completed.
func (m *Manager) runState(ctx context.Context, name string, spec domain.StateSpec, data any, log *slog.Logger) (stateResult, error) {
	ctx, span := m.tracer.Start(ctx, "state "+name, trace.WithAttributes(
		attribute.String("gopherstep.state", name),
		attribute.String("gopherstep.state_type", string(spec.StateType())),
	))
	defer span.End()

	var res stateResult
	var err error
	switch s := spec.(type) {
	case *domain.TaskState:
		res, err = m.runTask(ctx, s, data, log.With("state", name))
	case *domain.ChoiceState:
		res = stateResult{output: data, next: evaluateChoice(s, data)}
	case *domain.PassState:
		res = runPass(s, data)
	default:
		res = stateResult{err: runtimeError("unsupported state %T", spec), unhandled: true}
	}
	if res.err != nil {
		span.SetAttributes(attribute.String("gopherstep.error_kind", res.err.Kind))
		if res.unhandled {
			span.SetStatus(codes.Error, res.err.Error())
		}
	}
	return res, err
}

func runPass(s *domain.PassState, data any) stateResult {
	effective, terr := selectInput(s.DataPaths, data)
	if terr != nil {
		return stateResult{err: terr, unhandled: true}
	}
	result, terr := render(s.Result, effective)
	if terr != nil {
		return stateResult{err: terr, unhandled: true}
	}
	out, terr := applyResult(s.DataPaths, data, result)
	if terr != nil {
		return stateResult{err: terr, unhandled: true}
	}
	return stateResult{output: out, next: s.Next}
}

func (m *Manager) runTask(ctx context.Context, s *domain.TaskState, data any, log *slog.Logger) (stateResult, error) {
	// fail routes an error that will not be retried to the first matching catcher.
	fail := func(terr *domain.TaskError, retries int) stateResult {
		c, ok := catcherFor(s.Catch, terr.Kind)
		if !ok {
			log.ErrorContext(ctx, "Unhandled task error", "kind", terr.Kind, "message", terr.Message, "retries", retries)
			return stateResult{err: terr, retries: retries, unhandled: true}
		}
		out, err := applyCatch(c, data, terr)
		if err != nil {
			return stateResult{
				err:       runtimeError("catch resultPath %s: %v", c.ResultPath, err),
				retries:   retries,
				unhandled: true,
			}
		}
		log.InfoContext(ctx, "Task error caught", "kind", terr.Kind, "next", c.Next, "retries", retries)
		return stateResult{output: out, next: c.Next, err: terr, retries: retries}
	}

	effective, terr := selectInput(s.DataPaths, data)
	if terr != nil {
		return fail(terr, 0), nil
	}
	params, terr := render(s.Parameters, effective)
	if terr != nil {
		return fail(terr, 0), nil
	}

	counters := newRetryCounters(s.Retry)
	retries := 0
	for {
		out, terr := m.invoke(ctx, s, params)
		if terr == nil {
			merged, terr := applyResult(s.DataPaths, data, out)
			if terr != nil {
				return fail(terr, retries), nil
			}
			return stateResult{output: merged, next: s.Next, retries: retries}, nil
		}

		wait, ok := counters.next(terr.Kind)
		if !ok {
			return fail(terr, retries), nil
		}
		log.WarnContext(ctx, "Task failed, retrying", "kind", terr.Kind, "message", terr.Message,
			"attempt", retries+1, "wait", wait.String())
		select {
		case <-m.clock.After(wait):
		case <-ctx.Done():
			log.InfoContext(ctx, "Retry wait interrupted", "kind", terr.Kind)
			return stateResult{}, ctx.Err()
		}
		retries++
	}
}

type invokeResult struct {
	out any
	err error
}

// invoke calls the executor once. The call is detached from the execution's
// cancellation so an abort never interrupts it; timeoutSeconds still applies.
func (m *Manager) invoke(ctx context.Context, s *domain.TaskState, input any) (any, *domain.TaskError) {
	callCtx := context.WithoutCancel(ctx)
	if d := s.Timeout(); d > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, d)
		defer cancel()
	}

	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{err: fmt.Errorf("task %s panicked: %v", s.Resource, r)}
			}
		}()
		out, err := m.executor.Invoke(callCtx, s.Resource, datapath.DeepCopy(input))
		done <- invokeResult{out: out, err: err}
	}()

	var r invokeResult
	select {
	case r = <-done:
	case <-callCtx.Done():
		return nil, timeoutError(s)
	}

	if r.err != nil {
		var te *domain.TaskError
		if errors.As(r.err, &te) {
			cp := *te
			return nil, &cp
		}
		if errors.Is(r.err, context.DeadlineExceeded) && callCtx.Err() != nil {
			return nil, timeoutError(s)
		}
		return nil, &domain.TaskError{Kind: domain.ErrorKindTaskFailed, Message: r.err.Error()}
	}
	out, err := datapath.Normalize(r.out)
	if err != nil {
		return nil, runtimeError("task %s output: %v", s.Resource, err)
	}
	return out, nil
}

func timeoutError(s *domain.TaskState) *domain.TaskError {
	return &domain.TaskError{
		Kind:    domain.ErrorKindTimeout,
		Message: fmt.Sprintf("task %s timed out after %s", s.Resource, s.Timeout()),
	}
}

func (m *Manager) finishSucceeded(ctx context.Context, ex *execution, state string, data any, log *slog.Logger) {
	ok := ex.finish(domain.StatusSucceeded, m.clock.Now(), func(ex *execution) {
		ex.output = data
		ex.rec.EndState = nullString(state)
		ex.rec.Output = jsonString(data)
	})
	if !ok {
		return
	}
	persisted := m.persist(ctx, ex)
	m.publish(ctx, ex, domain.EventExecutionSucceeded, state, nil)
	m.release(ex, persisted)
	log.InfoContext(ctx, "Execution succeeded", "end_state", state)
}

func (m *Manager) finishFailed(ctx context.Context, ex *execution, state string, terr *domain.TaskError, log *slog.Logger) {
	ok := ex.finish(domain.StatusFailed, m.clock.Now(), func(ex *execution) {
		ex.err = terr
		ex.rec.FailedState = nullString(state)
		ex.rec.ErrorKind = nullString(terr.Kind)
		ex.rec.ErrorMessage = nullString(terr.Message)
	})
	if !ok {
		return
	}
	persisted := m.persist(ctx, ex)
	m.publish(ctx, ex, domain.EventExecutionFailed, state, terr)
	m.release(ex, persisted)
	log.ErrorContext(ctx, "Execution failed", "state", state, "kind", terr.Kind, "message", terr.Message)
}

func (m *Manager) finishAborted(ctx context.Context, ex *execution, log *slog.Logger) {
	if !ex.finish(domain.StatusAborted, m.clock.Now(), nil) {
		return
	}
	persisted := m.persist(ctx, ex)
	m.publish(ctx, ex, domain.EventExecutionAborted, "", nil)
	m.release(ex, persisted)
	log.InfoContext(ctx, "Execution aborted")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
