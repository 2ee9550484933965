package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/core"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrDefinitionNotFound = errors.New("workflow definition not found")
	ErrExecutionNotFound  = errors.New("execution not found")
	ErrInvalidInput       = errors.New("invalid execution input")
	ErrQueueFull          = errors.New("execution queue is full")
	ErrExecutionFinished  = errors.New("execution already finished")
)

const (
	defaultWorkers    = 5
	defaultQueueSize  = 100
	defaultRetention  = 1000
	heartbeatInterval = 30 * time.Second
	tracerName        = "github.com/RealZimboGuy/gopherstep/internal/engine"
)

type registeredDefinition struct {
	def    *domain.WorkflowDefinition
	schema *gojsonschema.Schema
	stored *domain.StoredDefinition
}

// Manager owns the registered definitions, the executions started through it
// and the worker pool that drives them. Managers share nothing, so several
// can run side by side in one process.
type Manager struct {
	executor       core.TaskExecutor
	history        HistorySink
	executionRepo  ExecutionRepo
	definitionRepo DefinitionRepo
	executorRepo   ExecutorRepo
	publisher      EventPublisher
	clock          core.Clock
	tracer         trace.Tracer
	workers        int
	queueSize      int
	executorName   string
	repairInterval time.Duration
	repairAfter    time.Duration
	retention      int

	defMu       sync.RWMutex
	definitions map[string]*registeredDefinition

	executions *registry
	queue      chan *execution
	executorID int64

	runMu sync.Mutex
	stop  context.CancelFunc
	wg    sync.WaitGroup
}

type Option func(*Manager)

func WithHistorySink(h HistorySink) Option { return func(m *Manager) { m.history = h } }

func WithExecutionRepo(r ExecutionRepo) Option { return func(m *Manager) { m.executionRepo = r } }

func WithDefinitionRepo(r DefinitionRepo) Option { return func(m *Manager) { m.definitionRepo = r } }

func WithExecutorRepo(r ExecutorRepo) Option { return func(m *Manager) { m.executorRepo = r } }

func WithClock(c core.Clock) Option { return func(m *Manager) { m.clock = c } }

func WithPublisher(p EventPublisher) Option { return func(m *Manager) { m.publisher = p } }

func WithTracer(t trace.Tracer) Option { return func(m *Manager) { m.tracer = t } }

// WithWorkers sets the number of executions driven in parallel.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithQueueSize bounds the number of started executions waiting for a worker.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithRetention bounds how many finished executions are kept in memory when
// no ExecutionRepo is configured. With a repository finished executions are
// read back from it instead.
func WithRetention(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retention = n
		}
	}
}

// WithExecutorName names this engine instance in the executors table.
func WithExecutorName(name string) Option { return func(m *Manager) { m.executorName = name } }

// WithRepair enables the stuck execution repair service. Executions whose
// executor has been silent for staleAfter are failed every interval.
func WithRepair(interval, staleAfter time.Duration) Option {
	return func(m *Manager) {
		m.repairInterval = interval
		m.repairAfter = staleAfter
	}
}

func NewManager(executor core.TaskExecutor, opts ...Option) *Manager {
	m := &Manager{
		executor:    executor,
		workers:     defaultWorkers,
		queueSize:   defaultQueueSize,
		retention:   defaultRetention,
		definitions: map[string]*registeredDefinition{},
		executions:  newRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.history == nil {
		m.history = NewMemoryHistory()
	}
	if m.clock == nil {
		m.clock = core.NewRealClock()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	m.queue = make(chan *execution, m.queueSize)
	return m
}

// StartOptions tune a single StartExecution call.
type StartOptions struct {
	// Name makes the start idempotent: starting the same definition with a
	// name already in use returns the existing execution id.
	Name string
}

// RegisterDefinition makes def startable under name, which defaults to def.Name.
func (m *Manager) RegisterDefinition(ctx context.Context, name string, def *domain.WorkflowDefinition) error {
	if def == nil {
		return errors.New("nil workflow definition")
	}
	if name == "" {
		name = def.Name
	}
	if name == "" {
		return errors.New("workflow definition needs a name")
	}
	// the caller's definition stays untouched, it may be registered again
	// under another name
	named := *def
	named.Name = name
	def = &named

	rd := &registeredDefinition{def: def}
	if def.InputSchema != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema))
		if err != nil {
			return fmt.Errorf("definition %s: input schema: %w", name, err)
		}
		rd.schema = schema
	}

	now := m.clock.Now()
	rd.stored = &domain.StoredDefinition{
		Name:        name,
		Description: def.Comment,
		Digest:      def.Digest,
		Document:    string(def.Document),
		Created:     now,
		Updated:     now,
		FlowChart:   buildFlowChart(def),
	}

	if m.definitionRepo != nil {
		existing, err := m.definitionRepo.FindByName(name)
		if err != nil {
			slog.WarnContext(ctx, "Workflow definition lookup error, will attempt create", "name", name, "error", err)
		}
		if existing != nil {
			rd.stored.Created = existing.Created
			slog.InfoContext(ctx, "Updating workflow definition", "name", name, "digest", def.Digest)
		} else {
			slog.InfoContext(ctx, "Saving workflow definition", "name", name, "digest", def.Digest)
		}
		if err := m.definitionRepo.Save(rd.stored); err != nil {
			return fmt.Errorf("save definition %s: %w", name, err)
		}
	}

	m.defMu.Lock()
	m.definitions[name] = rd
	m.defMu.Unlock()
	return nil
}

func (m *Manager) definition(name string) (*registeredDefinition, error) {
	m.defMu.RLock()
	defer m.defMu.RUnlock()
	rd, ok := m.definitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
	}
	return rd, nil
}

// ListDefinitions returns every registered definition ordered by name.
func (m *Manager) ListDefinitions() []*domain.StoredDefinition {
	m.defMu.RLock()
	defer m.defMu.RUnlock()
	out := make([]*domain.StoredDefinition, 0, len(m.definitions))
	for _, rd := range m.definitions {
		s := *rd.stored
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetDefinition returns the stored form of a registered definition.
func (m *Manager) GetDefinition(name string) (*domain.StoredDefinition, error) {
	rd, err := m.definition(name)
	if err != nil {
		return nil, err
	}
	s := *rd.stored
	return &s, nil
}

// ListExecutors returns recent executors ordered by last_active desc.
func (m *Manager) ListExecutors(limit int) ([]*domain.Executor, error) {
	if m.executorRepo == nil {
		return nil, nil
	}
	return m.executorRepo.GetExecutorsByLastActive(limit)
}

// prepareInput normalizes the payload into workflow data and checks it
// against the definition's input schema.
func (m *Manager) prepareInput(rd *registeredDefinition, payload any) (any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	input, err := datapath.Normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if rd.schema == nil {
		return input, nil
	}
	result, err := rd.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return input, nil
}

// StartExecution creates a pending execution of the named definition and
// queues it for the worker pool.
func (m *Manager) StartExecution(ctx context.Context, definitionRef string, payload any, opts StartOptions) (string, error) {
	rd, err := m.definition(definitionRef)
	if err != nil {
		return "", err
	}
	input, err := m.prepareInput(rd, payload)
	if err != nil {
		return "", err
	}

	if opts.Name != "" {
		if existing, ok := m.executions.byExecutionName(definitionRef, opts.Name); ok {
			return existing.id(), nil
		}
		if m.executionRepo != nil {
			rec, err := m.executionRepo.FindByName(ctx, definitionRef, opts.Name)
			if err != nil {
				return "", err
			}
			if rec != nil {
				return rec.ID, nil
			}
		}
	}

	ex, created := m.executions.add(newExecution(rd.def, uuid.NewString(), opts.Name, input, m.clock.Now()))
	if !created {
		return ex.id(), nil
	}
	if m.executionRepo != nil {
		rec := ex.record()
		if err := m.executionRepo.Save(ctx, &rec); err != nil {
			m.executions.remove(ex)
			return "", fmt.Errorf("save execution: %w", err)
		}
	}

	select {
	case m.queue <- ex:
	default:
		m.executions.remove(ex)
		ex.finish(domain.StatusFailed, m.clock.Now(), func(ex *execution) {
			ex.err = &domain.TaskError{Kind: domain.ErrorKindRuntime, Message: ErrQueueFull.Error()}
			ex.rec.ErrorKind = nullString(ex.err.Kind)
			ex.rec.ErrorMessage = nullString(ex.err.Message)
		})
		m.persist(ctx, ex)
		slog.WarnContext(ctx, "Execution queue full, rejecting execution", "execution_id", ex.id(), "definition", definitionRef)
		return "", ErrQueueFull
	}
	slog.InfoContext(ctx, "Execution queued", "execution_id", ex.id(), "definition", definitionRef, "name", opts.Name)
	return ex.id(), nil
}

// Run drives an execution to completion on the calling goroutine. When the
// execution fails the view is returned together with an
// *domain.UnhandledExecutionError.
func (m *Manager) Run(ctx context.Context, definitionRef string, payload any) (*domain.ExecutionView, error) {
	rd, err := m.definition(definitionRef)
	if err != nil {
		return nil, err
	}
	input, err := m.prepareInput(rd, payload)
	if err != nil {
		return nil, err
	}
	ex, _ := m.executions.add(newExecution(rd.def, uuid.NewString(), "", input, m.clock.Now()))
	if m.executionRepo != nil {
		rec := ex.record()
		if err := m.executionRepo.Save(ctx, &rec); err != nil {
			m.executions.remove(ex)
			return nil, fmt.Errorf("save execution: %w", err)
		}
	}

	m.drive(ctx, ex, "run")

	view, err := m.describe(context.WithoutCancel(ctx), ex)
	if err != nil {
		return nil, err
	}
	switch view.Status {
	case domain.StatusFailed:
		return view, &domain.UnhandledExecutionError{
			ExecutionID: view.ID,
			State:       view.FailedState,
			Err:         view.Error,
			History:     view.History,
		}
	case domain.StatusAborted:
		if ctx.Err() != nil {
			return view, ctx.Err()
		}
	}
	return view, nil
}

func (m *Manager) describe(ctx context.Context, ex *execution) (*domain.ExecutionView, error) {
	view := ex.view()
	history, err := m.history.FindByExecutionID(ctx, ex.id())
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", ex.id(), err)
	}
	view.History = history
	return view, nil
}

// Describe returns the current view of an execution including its history.
func (m *Manager) Describe(ctx context.Context, id string) (*domain.ExecutionView, error) {
	if ex, ok := m.executions.get(id); ok {
		return m.describe(ctx, ex)
	}
	rec, err := m.findRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	view := viewOf(rec)
	view.History, err = m.history.FindByExecutionID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", id, err)
	}
	return view, nil
}

func (m *Manager) findRecord(ctx context.Context, id string) (*domain.Execution, error) {
	if m.executionRepo == nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	rec, err := m.executionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}
	return rec, nil
}

// History returns the ordered history of an execution.
func (m *Manager) History(ctx context.Context, id string) ([]domain.HistoryEntry, error) {
	if _, ok := m.executions.get(id); !ok {
		if _, err := m.findRecord(ctx, id); err != nil {
			return nil, err
		}
	}
	return m.history.FindByExecutionID(ctx, id)
}

// Abort cancels an execution. A pending execution is aborted immediately; a
// running one stops before its next state or retry. An in-flight task
// invocation is allowed to finish.
func (m *Manager) Abort(ctx context.Context, id string) error {
	ex, ok := m.executions.get(id)
	if !ok {
		rec, err := m.findRecord(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status.Finished() {
			return ErrExecutionFinished
		}
		// owned by an executor that is gone or another instance
		prev := rec.Modified
		now := m.clock.Now()
		rec.Status = domain.StatusAborted
		rec.Modified = now
		rec.Finished = nullTime(now)
		updated, err := m.executionRepo.UpdateIfModified(ctx, rec, prev)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("execution %s changed concurrently, retry the abort", id)
		}
		return nil
	}

	finished, err := ex.requestAbort(m.clock.Now())
	if err != nil {
		return err
	}
	if finished {
		slog.InfoContext(ctx, "Pending execution aborted", "execution_id", id)
		persisted := m.persist(ctx, ex)
		m.publish(ctx, ex, domain.EventExecutionAborted, "", nil)
		m.release(ex, persisted)
		return nil
	}
	slog.InfoContext(ctx, "Abort requested for running execution", "execution_id", id)
	return nil
}

// Wait blocks until the execution finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*domain.ExecutionView, error) {
	ex, ok := m.executions.get(id)
	if !ok {
		return m.Describe(ctx, id)
	}
	select {
	case <-ex.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return m.describe(ctx, ex)
}

// ListExecutions returns up to limit executions, newest first, without history.
func (m *Manager) ListExecutions(ctx context.Context, limit int) ([]*domain.ExecutionView, error) {
	if m.executionRepo != nil {
		recs, err := m.executionRepo.FindRecent(ctx, limit)
		if err != nil {
			return nil, err
		}
		out := make([]*domain.ExecutionView, 0, len(recs))
		for _, rec := range recs {
			if ex, ok := m.executions.get(rec.ID); ok {
				out = append(out, ex.view())
				continue
			}
			out = append(out, viewOf(rec))
		}
		return out, nil
	}
	live := m.executions.recent(limit)
	out := make([]*domain.ExecutionView, 0, len(live))
	for _, ex := range live {
		out = append(out, ex.view())
	}
	return out, nil
}

// Start registers this executor, starts the worker pool and, when
// configured, the repair service. It returns immediately.
func (m *Manager) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.stop != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.stop = cancel

	m.registerExecutorInstance(runCtx)

	slog.Info("Starting workflow engine", "workers", m.workers, "queue_size", m.queueSize)
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(runCtx, i)
	}
	if m.executionRepo != nil && m.repairInterval > 0 {
		m.wg.Add(1)
		go m.repairService(runCtx)
	}
}

// Stop halts the worker pool and waits for executions being driven to
// finish. Queued executions stay PENDING.
func (m *Manager) Stop() {
	m.runMu.Lock()
	stop := m.stop
	m.stop = nil
	m.runMu.Unlock()
	if stop == nil {
		return
	}
	stop()
	m.wg.Wait()
	slog.Info("Workflow engine stopped")
}

func (m *Manager) registerExecutorInstance(ctx context.Context) {
	if m.executorRepo == nil {
		return
	}
	name := m.executorName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "gopherstep"
		}
		name = hostname + "-" + uuid.NewString()[:8]
	}
	now := m.clock.Now()
	id, err := m.executorRepo.Save(&domain.Executor{Name: name, Started: now, LastActive: now})
	if err != nil {
		slog.Error("Failed to register executor", "error", err)
		return
	}
	m.executorID = id
	slog.Info("Registered executor", "executor_id", id, "name", name)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		hb := time.NewTicker(heartbeatInterval)
		defer hb.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hb.C:
				if err := m.executorRepo.UpdateLastActive(id, m.clock.Now()); err != nil {
					slog.Error("Failed to update executor last_active", "executor_id", id, "error", err)
				} else {
					slog.Debug("Updated executor last_active", "executor_id", id)
				}
			}
		}
	}()
}

// persist writes the execution record and reports whether the repository
// now holds it.
func (m *Manager) persist(ctx context.Context, ex *execution) bool {
	if m.executionRepo == nil {
		return false
	}
	rec := ex.record()
	if err := m.executionRepo.Update(context.WithoutCancel(ctx), &rec); err != nil {
		slog.ErrorContext(ctx, "Error updating execution", "execution_id", rec.ID, "error", err)
		return false
	}
	return true
}

// release drops a finished execution from memory. With a repository the
// persisted record takes over; an execution whose final write failed stays
// in memory so it is not reported stale. Without a repository the newest
// finished executions are retained along with their in-memory history.
func (m *Manager) release(ex *execution, persisted bool) {
	if m.executionRepo != nil {
		if persisted {
			m.executions.remove(ex)
		}
		return
	}
	for _, id := range m.executions.retire(ex, m.retention) {
		if h, ok := m.history.(interface{ Forget(executionID string) }); ok {
			h.Forget(id)
		}
	}
}

func (m *Manager) publish(ctx context.Context, ex *execution, typ domain.EventType, state string, terr *domain.TaskError) {
	if m.publisher == nil {
		return
	}
	event := domain.ExecutionEvent{
		Type:           typ,
		ExecutionID:    ex.id(),
		DefinitionName: ex.def.Name,
		Status:         ex.status(),
		State:          state,
		Error:          terr,
		Time:           m.clock.Now(),
	}
	if err := m.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.WarnContext(ctx, "Failed to publish execution event", "execution_id", ex.id(), "type", typ, "error", err)
	}
}
