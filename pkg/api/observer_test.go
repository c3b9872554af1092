package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestBasicMetricsCountsLifecycle(t *testing.T) {
	m := &BasicMetrics{}
	ctx := context.Background()
	inv := &Invocation{ID: "inv-1", Workflow: "wf"}

	m.OnWorkflowStart(ctx, inv)
	m.OnWorkflowStart(ctx, inv)
	m.OnStepCompleted(ctx, inv, "s1", 0, nil, 10*time.Millisecond)
	m.OnStepCompleted(ctx, inv, "s2", 1, nil, 30*time.Millisecond)
	m.OnStepCompleted(ctx, inv, "s3", 2, errors.New("boom"), time.Millisecond)
	m.OnWorkflowCompleted(ctx, inv)
	m.OnWorkflowFailed(ctx, inv, errors.New("boom"))

	snap := m.Snapshot()
	if snap.WorkflowsStarted != 2 || snap.WorkflowsCompleted != 1 || snap.WorkflowsFailed != 1 {
		t.Fatalf("unexpected workflow counters: %+v", snap)
	}
	if snap.PendingWorkflows != 0 {
		t.Fatalf("expected no pending workflows, got %d", snap.PendingWorkflows)
	}
	if snap.StepsCompleted != 2 {
		t.Fatalf("expected 2 successful steps, got %d", snap.StepsCompleted)
	}
	if snap.AvgStepDuration != 20*time.Millisecond {
		t.Fatalf("expected 20ms average, got %v", snap.AvgStepDuration)
	}
}

func TestCompositeObserverFansOut(t *testing.T) {
	a := &BasicMetrics{}
	b := &BasicMetrics{}
	obs := NewCompositeObserver(a, nil, b)

	obs.OnWorkflowStart(context.Background(), &Invocation{})

	if a.Snapshot().WorkflowsStarted != 1 || b.Snapshot().WorkflowsStarted != 1 {
		t.Fatal("expected event delivered to every observer")
	}
}

func TestCompositeObserverCollapsesTrivialCases(t *testing.T) {
	if _, ok := NewCompositeObserver().(NoopObserver); !ok {
		t.Fatal("expected NoopObserver for empty composite")
	}
	m := &BasicMetrics{}
	if NewCompositeObserver(m) != Observer(m) {
		t.Fatal("expected single observer returned unwrapped")
	}
}

func TestLoggingObserverLogsCancellationAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := NewLoggingObserver(logger)

	inv := &Invocation{ID: "inv-1", Workflow: "wf"}
	obs.OnWorkflowFailed(context.Background(), inv, &CancelledError{})

	out := buf.String()
	if !strings.Contains(out, "workflow_cancelled") {
		t.Fatalf("expected workflow_cancelled event, got %q", out)
	}
	if strings.Contains(out, "level=ERROR") {
		t.Fatalf("cancellation must not be logged as an error: %q", out)
	}
}

func TestLoggingObserverLogsFailureAtError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := NewLoggingObserver(logger)

	inv := &Invocation{ID: "inv-1", Workflow: "wf"}
	obs.OnWorkflowFailed(context.Background(), inv, errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "workflow_failed") || !strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected error-level workflow_failed event, got %q", out)
	}
}
