package flowgraph

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestEndToEndInMemoryEngine(t *testing.T) {
	registry := newDoubleRegistry(t)

	wf := New("math.quadruple").
		WithRegistry(registry).
		Input("a", PortMeta{DataType: "int", Required: true}).
		Op("first", "math.double", Bindings{"x": Input("a")}).
		Op("second", "math.double", Bindings{"x": StepOutput("first", ReturnOutputName)}).
		Output("result", StepOutput("second", ReturnOutputName)).
		MustBuild()

	metrics := &BasicMetrics{}
	eng := NewInMemoryEngineWithObserver(metrics)
	require.NoError(t, eng.RegisterWorkflow(wf))
	require.Equal(t, []string{"math.quadruple"}, eng.Workflows())

	inv, err := Run(context.Background(), eng, "math.quadruple", nil, map[string]any{"a": 5})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, inv.Status)
	require.Equal(t, 20, inv.Outputs["result"])

	stored, err := GetInvocation(context.Background(), eng, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)

	invs, err := ListInvocations(context.Background(), eng, InvocationFilter{Workflow: "math.quadruple"})
	require.NoError(t, err)
	require.Len(t, invs, 1)

	snap := metrics.Snapshot()
	require.EqualValues(t, 1, snap.WorkflowsStarted)
	require.EqualValues(t, 1, snap.WorkflowsCompleted)
	require.EqualValues(t, 2, snap.StepsCompleted)
}

func TestEndToEndSQLiteEngine(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	eng, err := NewSQLiteEngine(db)
	require.NoError(t, err)

	registry := newDoubleRegistry(t)
	wf := New("math.once").
		WithRegistry(registry).
		Input("a", PortMeta{DataType: "int", Required: true}).
		Op("only", "math.double", Bindings{"x": Input("a")}).
		Output("result", StepOutput("only", ReturnOutputName)).
		MustBuild()
	require.NoError(t, eng.RegisterWorkflow(wf))

	inv, err := eng.Run(context.Background(), "math.once", nil, map[string]any{"a": 4})
	require.NoError(t, err)

	stored, err := eng.GetInvocation(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, 8, stored.Outputs["result"])
}

func TestEndToEndDocumentWorkflow(t *testing.T) {
	registry := newDoubleRegistry(t)

	doc := []byte(`
schemaVersion: 1
qualifiedName: math.described
inputs:
  a:
    dataType: int
    required: true
outputs:
  result:
    sourceKind: stepOutput
    refStep: halveplus
    refPort: return
steps:
  - id: double
    kind: operation
    op: math.double
    inputs:
      x:
        sourceKind: workflowInput
        refPort: a
  - id: halveplus
    kind: expression
    expression: v/2 + 1
    inputs:
      v:
        sourceKind: stepOutput
        refStep: double
        refPort: return
`)

	wf, err := DecodeYAML(doc, registry, nil)
	require.NoError(t, err)

	eng := NewInMemoryEngine()
	require.NoError(t, eng.RegisterWorkflow(wf))

	monitor := NewCancelMonitor()
	inv, err := eng.Run(context.Background(), "math.described", monitor, map[string]any{"a": 10})
	require.NoError(t, err)
	// a=10: double=20, halveplus=11.
	require.Equal(t, 11, inv.Outputs["result"])
	require.Equal(t, float64(2), monitor.Worked())
}

func TestEndToEndCancellation(t *testing.T) {
	registry := newDoubleRegistry(t)
	wf := New("math.cancelled").
		WithRegistry(registry).
		Input("a", PortMeta{DataType: "int", Required: true}).
		Op("only", "math.double", Bindings{"x": Input("a")}).
		MustBuild()

	eng := NewInMemoryEngine()
	require.NoError(t, eng.RegisterWorkflow(wf))

	monitor := NewCancelMonitor()
	monitor.Cancel()

	inv, err := eng.Run(context.Background(), "math.cancelled", monitor, map[string]any{"a": 1})
	require.True(t, IsCancelled(err))
	require.Equal(t, StatusCancelled, inv.Status)
}
