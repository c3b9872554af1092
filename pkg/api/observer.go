package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay workflow execution.
type Observer interface {
	// OnWorkflowStart is called once when an invocation starts, before the
	// first step is executed.
	OnWorkflowStart(ctx context.Context, inv *Invocation)

	// OnWorkflowCompleted is called when an invocation reaches
	// StatusCompleted.
	OnWorkflowCompleted(ctx context.Context, inv *Invocation)

	// OnWorkflowFailed is called when an invocation transitions to
	// StatusFailed or StatusCancelled.
	OnWorkflowFailed(ctx context.Context, inv *Invocation, err error)

	// OnStepStart is called before a step is invoked. stepIndex is the
	// 0-based position in the computed execution order.
	OnStepStart(ctx context.Context, inv *Invocation, stepID string, stepIndex int)

	// OnStepCompleted is called after a step returns, for both successes
	// and failures (err != nil).
	OnStepCompleted(ctx context.Context, inv *Invocation, stepID string, stepIndex int, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, inv *Invocation)               {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, inv *Invocation)           {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error)   {}
func (NoopObserver) OnStepStart(ctx context.Context, inv *Invocation, id string, i int) {}
func (NoopObserver) OnStepCompleted(ctx context.Context, inv *Invocation, id string, i int, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, inv *Invocation) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, inv)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, inv *Invocation) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, inv)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, inv, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, inv *Invocation, stepID string, idx int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, inv, stepID, idx)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, inv *Invocation, stepID string, idx int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, inv, stepID, idx, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / step
// lifecycle events using the provided slog.Logger. If logger is nil,
// slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, inv *Invocation) {
	o.Logger.InfoContext(ctx, "workflow_start",
		slog.String("workflow", inv.Workflow),
		slog.String("invocation_id", inv.ID),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, inv *Invocation) {
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.String("workflow", inv.Workflow),
		slog.String("invocation_id", inv.ID),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error) {
	// Cancellation is an expected, caller-initiated outcome, not a bug.
	if IsCancelled(err) {
		o.Logger.InfoContext(ctx, "workflow_cancelled",
			slog.String("workflow", inv.Workflow),
			slog.String("invocation_id", inv.ID),
		)
		return
	}
	o.Logger.ErrorContext(ctx, "workflow_failed",
		slog.String("workflow", inv.Workflow),
		slog.String("invocation_id", inv.ID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, inv *Invocation, stepID string, idx int) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("workflow", inv.Workflow),
		slog.String("invocation_id", inv.ID),
		slog.String("step", stepID),
		slog.Int("step_index", idx),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, inv *Invocation, stepID string, idx int, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil && !IsCancelled(err) {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("workflow", inv.Workflow),
		slog.String("invocation_id", inv.ID),
		slog.String("step", stepID),
		slog.Int("step_index", idx),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsStarted   atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsFailed    atomic.Int64
	stepsCompleted     atomic.Int64
	totalStepDuration  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsStarted   int64
	WorkflowsCompleted int64
	WorkflowsFailed    int64
	PendingWorkflows   int64

	StepsCompleted  int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnWorkflowStart(ctx context.Context, inv *Invocation) {
	m.workflowsStarted.Add(1)
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, inv *Invocation) {
	m.workflowsCompleted.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error) {
	m.workflowsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, inv *Invocation, stepID string, idx int, err error, d time.Duration) {
	// Only count successful steps for average duration.
	if err == nil {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.workflowsStarted.Load()
	completed := m.workflowsCompleted.Load()
	failed := m.workflowsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		WorkflowsStarted:   started,
		WorkflowsCompleted: completed,
		WorkflowsFailed:    failed,
		PendingWorkflows:   started - completed - failed,
		StepsCompleted:     steps,
		AvgStepDuration:    avg,
	}
}
