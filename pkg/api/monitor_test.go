package api

import "testing"

func TestCancelMonitorAccumulatesProgress(t *testing.T) {
	m := NewCancelMonitor()
	m.Started("task", 10)
	m.Progress(3, "")
	m.Progress(2, "")

	if got := m.Worked(); got != 5 {
		t.Fatalf("expected 5 units worked, got %v", got)
	}
	if m.Label() != "task" {
		t.Fatalf("expected label %q, got %q", "task", m.Label())
	}

	m.Done()
	if got := m.Worked(); got != 10 {
		t.Fatalf("expected Done to complete the task, got %v", got)
	}
}

func TestCancelMonitorCancelFlag(t *testing.T) {
	m := NewCancelMonitor()
	if m.Cancelled() {
		t.Fatal("fresh monitor must not be cancelled")
	}
	m.Cancel()
	if !m.Cancelled() {
		t.Fatal("expected cancellation flag raised")
	}
}

func TestChildMonitorScalesProgressToParentSpan(t *testing.T) {
	parent := NewCancelMonitor()
	parent.Started("parent", 4)

	child := parent.Child(2)
	child.Started("child", 100)
	child.Progress(50, "")

	if got := parent.Worked(); got != 1 {
		t.Fatalf("expected half the child span (1 unit), got %v", got)
	}

	child.Done()
	if got := parent.Worked(); got != 2 {
		t.Fatalf("expected full child span after Done, got %v", got)
	}
}

func TestChildMonitorDoneWithoutProgressReportsFullSpan(t *testing.T) {
	parent := NewCancelMonitor()
	parent.Started("parent", 3)

	child := parent.Child(3)
	child.Done()

	if got := parent.Worked(); got != 3 {
		t.Fatalf("expected full span reported, got %v", got)
	}
}

func TestChildMonitorProgressNeverExceedsSpan(t *testing.T) {
	parent := NewCancelMonitor()
	parent.Started("parent", 2)

	child := parent.Child(2)
	child.Started("child", 10)
	child.Progress(10, "")
	child.Progress(10, "")

	if got := parent.Worked(); got != 2 {
		t.Fatalf("expected progress capped at span, got %v", got)
	}
}

func TestChildMonitorSharesCancellationWithParent(t *testing.T) {
	parent := NewCancelMonitor()
	child := parent.Child(1)
	grandchild := child.Child(1)

	parent.Cancel()
	if !child.Cancelled() || !grandchild.Cancelled() {
		t.Fatal("expected cancellation to propagate to descendants")
	}
}

func TestNullMonitorIsInert(t *testing.T) {
	var m Monitor = NullMonitor{}
	m.Started("x", 1)
	m.Progress(1, "")
	m.Done()
	if m.Cancelled() {
		t.Fatal("NullMonitor must never report cancellation")
	}
	if m.Child(1).Cancelled() {
		t.Fatal("NullMonitor children must never report cancellation")
	}
}
