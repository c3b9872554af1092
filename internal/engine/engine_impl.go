// Package engine runs registered workflows and records their invocations.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkardel/flowgraph/internal/persistence"
	"github.com/mkardel/flowgraph/pkg/api"
	"github.com/mkardel/flowgraph/pkg/graph"
)

// Engine executes registered workflows and tracks their invocations.
type Engine interface {
	// RegisterWorkflow adds a validated workflow under its qualified name.
	RegisterWorkflow(wf *graph.Workflow) error

	// Workflows returns the registered qualified names in sorted order.
	Workflows() []string

	// Run invokes the named workflow synchronously and returns the
	// finished invocation record. monitor may be nil.
	Run(ctx context.Context, qualifiedName string, monitor api.Monitor, inputs map[string]any) (*api.Invocation, error)

	// GetInvocation returns a stored invocation record by id.
	GetInvocation(ctx context.Context, id string) (*api.Invocation, error)

	// ListInvocations returns stored invocation records matching filter,
	// ordered by start time.
	ListInvocations(ctx context.Context, filter api.InvocationFilter) ([]*api.Invocation, error)
}

// engineImpl is a synchronous, in-process engine implementation.
type engineImpl struct {
	workflows   *workflowRegistry
	invocations persistence.InvocationStore
	observer    api.Observer
}

// Config describes how to construct an engine.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	Store    persistence.InvocationStore
	Observer api.Observer
}

// NewInMemoryEngine returns an engine keeping invocation records in memory.
func NewInMemoryEngine(observer api.Observer) Engine {
	return NewEngineWithConfig(Config{
		Store:    persistence.NewInMemoryStore(),
		Observer: observer,
	})
}

// NewSQLiteEngine returns an engine persisting invocation records to the
// given SQLite database.
func NewSQLiteEngine(db *sql.DB, observer api.Observer) (Engine, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{Store: store, Observer: observer}), nil
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) Engine {
	store := cfg.Store
	if store == nil {
		store = persistence.NewInMemoryStore()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &engineImpl{
		workflows:   newWorkflowRegistry(),
		invocations: store,
		observer:    obs,
	}
}

func (e *engineImpl) RegisterWorkflow(wf *graph.Workflow) error {
	if wf == nil {
		return errors.New("workflow is required")
	}
	if err := wf.Validate(); err != nil {
		return err
	}
	return e.workflows.Register(wf)
}

func (e *engineImpl) Workflows() []string {
	return e.workflows.Names()
}

func (e *engineImpl) Run(ctx context.Context, qualifiedName string, monitor api.Monitor, inputs map[string]any) (*api.Invocation, error) {
	wf, err := e.workflows.Get(qualifiedName)
	if err != nil {
		return nil, err
	}
	if monitor == nil {
		monitor = api.NullMonitor{}
	}

	inv := &api.Invocation{
		ID:        uuid.NewString(),
		Workflow:  qualifiedName,
		Status:    api.StatusRunning,
		Inputs:    inputs,
		StartedAt: time.Now(),
	}

	e.observer.OnWorkflowStart(ctx, inv)

	// Persist the invocation as soon as it starts.
	if err := e.invocations.SaveInvocation(inv); err != nil {
		inv.Status = api.StatusFailed
		inv.Err = err
		inv.FinishedAt = time.Now()
		e.observer.OnWorkflowFailed(ctx, inv, err)
		return inv, err
	}

	// Step lifecycle events flow back from the workflow via the trace hook.
	runCtx := graph.WithStepTrace(ctx, &observerTrace{
		ctx:      ctx,
		observer: e.observer,
		inv:      inv,
	})

	outputs, runErr := wf.Invoke(runCtx, monitor, inputs)
	inv.FinishedAt = time.Now()

	if runErr != nil {
		if api.IsCancelled(runErr) {
			inv.Status = api.StatusCancelled
		} else {
			inv.Status = api.StatusFailed
		}
		inv.Err = runErr

		var execErr *api.WorkflowExecutionError
		if errors.As(runErr, &execErr) {
			inv.FailedStep = execErr.StepID
		}

		_ = e.invocations.UpdateInvocation(inv)
		e.observer.OnWorkflowFailed(ctx, inv, runErr)
		return inv, runErr
	}

	inv.Status = api.StatusCompleted
	inv.Outputs = outputs
	if err := e.invocations.UpdateInvocation(inv); err != nil {
		return inv, err
	}

	e.observer.OnWorkflowCompleted(ctx, inv)
	return inv, nil
}

func (e *engineImpl) GetInvocation(ctx context.Context, id string) (*api.Invocation, error) {
	inv, err := e.invocations.GetInvocation(id)
	if err != nil {
		if errors.Is(err, persistence.ErrInvocationNotFound) {
			return nil, fmt.Errorf("invocation not found: %s", id)
		}
		return nil, err
	}
	return inv, nil
}

func (e *engineImpl) ListInvocations(ctx context.Context, filter api.InvocationFilter) ([]*api.Invocation, error) {
	return e.invocations.ListInvocations(filter)
}

// observerTrace bridges per-step callbacks from the workflow to the
// engine's Observer, attaching the invocation record.
type observerTrace struct {
	ctx      context.Context
	observer api.Observer
	inv      *api.Invocation
}

func (t *observerTrace) OnStepStart(stepID string, index int) {
	t.observer.OnStepStart(t.ctx, t.inv, stepID, index)
}

func (t *observerTrace) OnStepCompleted(stepID string, index int, err error, d time.Duration) {
	t.observer.OnStepCompleted(t.ctx, t.inv, stepID, index, err, d)
}
