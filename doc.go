// Package flowgraph provides an embeddable workflow definition and
// execution engine for Go.
//
// Flowgraph models a computation as a directed acyclic graph of steps
// connected through named ports. Workflows can be constructed in code,
// loaded from JSON or YAML documents, executed synchronously with
// progress reporting and cooperative cancellation, and their invocations
// recorded in memory or in SQLite.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Workflow
//  2. Step
//  3. Port
//  4. Operation and Registry
//  5. Engine
//  6. Monitor
//
// # Workflow
//
// A Workflow owns a set of steps and exposes declared inputs and outputs
// at its boundary. Before execution the graph is validated: step ids must
// be unique, every port reference must resolve, and the dependency graph
// must be acyclic. Steps then run in dependency order; independent steps
// keep their declaration order.
//
// Workflows round-trip through a versioned document schema, with JSON as
// the canonical format and YAML accepted as an alternative:
//
//	wf, err := flowgraph.LoadWorkflow("pipeline.json", registry, loader)
//
// # Step
//
// Five step kinds cover the usual shapes of work:
//
//   - operation: invokes a Go function registered under a qualified name
//   - expression: evaluates a Go expression over the step's inputs
//   - subprocess: runs an external command built from an argument template
//   - workflow: invokes a nested workflow loaded from a resource
//   - noop: passes values through, useful for renaming and placeholders
//
// # Port
//
// Ports carry values between steps. An input port is bound to a constant,
// to a workflow input, or to another step's output; validation guarantees
// every bound reference resolves before anything runs.
//
// # Operation and Registry
//
// An Operation pairs an OpFunc with declared metadata: input and output
// names, optional data types, defaults, and required flags. Operations
// are registered in a Registry and referenced from workflow documents by
// qualified name, so documents stay portable across processes that
// register the same operations.
//
// # Engine
//
// The Engine registers workflows, runs them, and records each run as an
// Invocation with status, inputs, outputs, and timing. Records are held
// in memory or persisted to SQLite:
//
//	eng := flowgraph.NewInMemoryEngine()
//	inv, err := eng.Run(ctx, "pkg.pipeline", nil, inputs)
//
// Observers receive workflow and step lifecycle events for structured
// logging (log/slog) and basic metrics.
//
// # Monitor
//
// A Monitor threads progress reporting and cooperative cancellation
// through an invocation. Each step receives a child monitor covering its
// share of the total work; raising the cancellation flag makes the
// invocation unwind at the next safe point, killing any running
// subprocess.
//
// # Summary
//
// Flowgraph aims to feel like Go: construct workflows with plain values
// and explicit errors, validate before running, and embed the engine
// without operational overhead. Documents make workflows portable,
// the registry keeps operation code in Go, and the engine provides a
// durable record of every run.
package flowgraph
