package flowgraph

import (
	"context"
	"database/sql"

	"github.com/mkardel/flowgraph/internal/engine"
	"github.com/mkardel/flowgraph/pkg/api"
	"github.com/mkardel/flowgraph/pkg/graph"
)

// Re-export key types so users don't need to dig into pkg/api and
// pkg/graph.

type (
	Engine           = engine.Engine
	Workflow         = graph.Workflow
	Step             = graph.Step
	Port             = graph.Port
	SourceKind       = graph.SourceKind
	Monitor          = api.Monitor
	NullMonitor      = api.NullMonitor
	CancelMonitor    = api.CancelMonitor
	Registry         = api.Registry
	Operation        = api.Operation
	OpFunc           = api.OpFunc
	OpMetaInfo       = api.OpMetaInfo
	PortMeta         = api.PortMeta
	ResourceLoader   = api.ResourceLoader
	FileLoader       = api.FileLoader
	MapLoader        = api.MapLoader
	Invocation       = api.Invocation
	InvocationFilter = api.InvocationFilter
	Status           = api.Status

	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	CancelledError         = api.CancelledError
	CyclicDependencyError  = api.CyclicDependencyError
	ExpressionError        = api.ExpressionError
	SubProcessError        = api.SubProcessError
	WorkflowExecutionError = api.WorkflowExecutionError
)

// Re-export common helpers.

var (
	NewRegistry          = api.NewRegistry
	NewCancelMonitor     = api.NewCancelMonitor
	NewFileLoader        = api.NewFileLoader
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	IsCancelled          = api.IsCancelled
)

// Workflow document codec.

var (
	DecodeJSON    = graph.DecodeJSON
	DecodeYAML    = graph.DecodeYAML
	EncodeJSON    = graph.EncodeJSON
	EncodeYAML    = graph.EncodeYAML
	LoadWorkflow  = graph.Load
	StoreWorkflow = graph.Store
)

// Re-export status values for convenience.

const (
	StatusPending   = api.StatusPending
	StatusRunning   = api.StatusRunning
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed
	StatusCancelled = api.StatusCancelled
)

// ReturnOutputName is the port name used for a sole unnamed output.
const ReturnOutputName = api.ReturnOutputName

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine keeping invocation records in memory.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine(nil)
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewInMemoryEngine(obs)
}

// NewSQLiteEngine returns an Engine that persists invocation records in a
// SQLite database. Workflow definitions are kept in-memory.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db, nil)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	return engine.NewSQLiteEngine(db, obs)
}

// Convenience helpers that just forward to the underlying Engine.

// Run runs a registered workflow synchronously. monitor may be nil.
func Run(ctx context.Context, eng Engine, qualifiedName string, monitor Monitor, inputs map[string]any) (*Invocation, error) {
	return eng.Run(ctx, qualifiedName, monitor, inputs)
}

// GetInvocation fetches a stored invocation record by id.
func GetInvocation(ctx context.Context, eng Engine, id string) (*Invocation, error) {
	return eng.GetInvocation(ctx, id)
}

// ListInvocations lists stored invocation records matching the filter.
func ListInvocations(ctx context.Context, eng Engine, filter InvocationFilter) ([]*Invocation, error) {
	return eng.ListInvocations(ctx, filter)
}

// Port binding helpers for builder step definitions. The port name is
// taken from the binding key, so only the source is given here.

// Value binds an input to a literal value.
func Value(v any) *Port {
	return graph.Constant("", v)
}

// Input binds an input to a declared workflow input.
func Input(workflowInput string) *Port {
	return graph.FromInput("", workflowInput)
}

// StepOutput binds an input to another step's output port.
func StepOutput(stepID, port string) *Port {
	return graph.FromStep("", stepID, port)
}
