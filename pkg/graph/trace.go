package graph

import (
	"context"
	"time"
)

// StepTrace receives per-step execution callbacks. The engine layer uses
// it to bridge workflow execution to its Observer without the graph
// package knowing about invocations.
type StepTrace interface {
	OnStepStart(stepID string, index int)
	OnStepCompleted(stepID string, index int, err error, duration time.Duration)
}

type stepTraceKey struct{}

// WithStepTrace returns a context that carries t. Workflow.Invoke reports
// step starts and completions to it.
func WithStepTrace(ctx context.Context, t StepTrace) context.Context {
	return context.WithValue(ctx, stepTraceKey{}, t)
}

type noopTrace struct{}

func (noopTrace) OnStepStart(stepID string, index int)                                {}
func (noopTrace) OnStepCompleted(stepID string, index int, err error, d time.Duration) {}

func stepTraceFrom(ctx context.Context) StepTrace {
	if t, ok := ctx.Value(stepTraceKey{}).(StepTrace); ok && t != nil {
		return t
	}
	return noopTrace{}
}
