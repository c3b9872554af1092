package api

import "sync"

// Monitor is the progress-reporting and cooperative-cancellation capability
// passed through every invocation. Long-running steps must check Cancelled
// at safe points (process waits, nested invokes, operation calls) and
// unwind promptly with a CancelledError.
//
// A Monitor is used like this:
//
//	monitor.Started("Executing 3 workflow step(s)", 3)
//	for _, step := range steps {
//	    child := monitor.Child(1)
//	    ... // step reports progress on child
//	    child.Done()
//	}
//	monitor.Done()
type Monitor interface {
	// Started begins a task covering totalWork units of work.
	Started(label string, totalWork float64)

	// Progress reports that work more units have been performed.
	// msg may be empty.
	Progress(work float64, msg string)

	// Done marks the task as finished.
	Done()

	// Cancelled reports whether cancellation has been requested.
	Cancelled() bool

	// Child returns a monitor that maps its own task onto work units of
	// this monitor's range. Cancellation state is shared with the parent.
	Child(work float64) Monitor
}

// NullMonitor discards all progress and never reports cancellation.
// It is the default when callers do not care about progress.
type NullMonitor struct{}

func (NullMonitor) Started(label string, totalWork float64) {}
func (NullMonitor) Progress(work float64, msg string)       {}
func (NullMonitor) Done()                                   {}
func (NullMonitor) Cancelled() bool                         { return false }
func (NullMonitor) Child(work float64) Monitor              { return NullMonitor{} }

// CancelMonitor is a Monitor whose cancellation flag can be raised by the
// caller. It also accumulates reported progress, which makes it useful in
// tests and simple CLI front ends.
type CancelMonitor struct {
	mu        sync.Mutex
	cancelled bool
	label     string
	totalWork float64
	worked    float64
}

// NewCancelMonitor returns a ready-to-use CancelMonitor.
func NewCancelMonitor() *CancelMonitor {
	return &CancelMonitor{}
}

// Cancel requests cancellation. Safe to call from any goroutine.
func (m *CancelMonitor) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
}

func (m *CancelMonitor) Started(label string, totalWork float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = label
	m.totalWork = totalWork
	m.worked = 0
}

func (m *CancelMonitor) Progress(work float64, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.worked += work
}

func (m *CancelMonitor) Done() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalWork > 0 {
		m.worked = m.totalWork
	}
}

func (m *CancelMonitor) Cancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Label returns the label passed to the last Started call.
func (m *CancelMonitor) Label() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.label
}

// Worked returns the accumulated work units reported so far.
func (m *CancelMonitor) Worked() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.worked
}

func (m *CancelMonitor) Child(work float64) Monitor {
	return &childMonitor{parent: m, span: work}
}

// childMonitor maps a nested task onto a share of its parent's range.
type childMonitor struct {
	parent Monitor
	span   float64

	mu    sync.Mutex
	total float64
	used  float64
}

func (c *childMonitor) Started(label string, totalWork float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = totalWork
	c.used = 0
}

func (c *childMonitor) Progress(work float64, msg string) {
	c.mu.Lock()
	if c.total <= 0 {
		c.mu.Unlock()
		return
	}
	delta := work / c.total * c.span
	if c.used+delta > c.span {
		delta = c.span - c.used
	}
	c.used += delta
	c.mu.Unlock()
	if delta > 0 {
		c.parent.Progress(delta, msg)
	}
}

// Done reports any remaining share to the parent so that a child that never
// called Progress still accounts for its full span.
func (c *childMonitor) Done() {
	c.mu.Lock()
	remaining := c.span - c.used
	c.used = c.span
	c.mu.Unlock()
	if remaining > 0 {
		c.parent.Progress(remaining, "")
	}
}

func (c *childMonitor) Cancelled() bool { return c.parent.Cancelled() }

func (c *childMonitor) Child(work float64) Monitor {
	return &childMonitor{parent: c, span: work}
}
