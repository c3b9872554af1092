package flowgraph

import (
	"fmt"

	"github.com/mkardel/flowgraph/pkg/graph"
)

// GraphBuilder provides a fluent API for defining workflows:
//
//	wf, err := flowgraph.New("reports.daily").
//	    WithRegistry(registry).
//	    Input("date", flowgraph.PortMeta{DataType: "string", Required: true}).
//	    Op("fetch", "reports.fetch", flowgraph.Bindings{
//	        "date": flowgraph.Input("date"),
//	    }).
//	    Expression("count", "len(rows)", flowgraph.Bindings{
//	        "rows": flowgraph.StepOutput("fetch", "return"),
//	    }).
//	    Output("total", flowgraph.StepOutput("count", "return")).
//	    Build()
//
// Errors from individual calls are collected and returned by Build, so
// the chain reads without intermediate checks.
type GraphBuilder struct {
	wf       *graph.Workflow
	registry Registry
	loader   ResourceLoader
	err      error
}

// Bindings maps input port names to their sources. See Value, Input, and
// StepOutput.
type Bindings map[string]*Port

// New creates a new workflow builder with the given qualified name.
func New(qualifiedName string) *GraphBuilder {
	return &GraphBuilder{wf: graph.New(qualifiedName)}
}

// WithRegistry sets the operation registry Op steps resolve against.
func (b *GraphBuilder) WithRegistry(registry Registry) *GraphBuilder {
	b.registry = registry
	return b
}

// WithLoader sets the resource loader SubWorkflow steps load through.
func (b *GraphBuilder) WithLoader(loader ResourceLoader) *GraphBuilder {
	b.loader = loader
	return b
}

// Describe sets the workflow's description in its header.
func (b *GraphBuilder) Describe(description string) *GraphBuilder {
	if b.wf.Meta.Header == nil {
		b.wf.Meta.Header = make(map[string]any)
	}
	b.wf.Meta.Header["description"] = description
	return b
}

// Input declares a workflow boundary input.
func (b *GraphBuilder) Input(name string, meta PortMeta) *GraphBuilder {
	b.wf.DeclareInput(name, meta)
	return b
}

// Output declares a workflow boundary output resolved from port.
func (b *GraphBuilder) Output(name string, port *Port) *GraphBuilder {
	b.wf.DeclareOutput(name, port)
	return b
}

// Op appends an operation step invoking the named registered operation.
func (b *GraphBuilder) Op(id, qualifiedName string, bindings Bindings) *GraphBuilder {
	if b.err != nil {
		return b
	}
	step, err := graph.NewOpStep(id, qualifiedName, b.registry)
	if err != nil {
		b.err = err
		return b
	}
	return b.add(step, bindings)
}

// Expression appends a step evaluating expression over its bound inputs.
// outputs names the declared output ports; when empty a single "return"
// output is declared.
func (b *GraphBuilder) Expression(id, expression string, bindings Bindings, outputs ...string) *GraphBuilder {
	if b.err != nil {
		return b
	}
	step, err := graph.NewExpressionStep(id, expression, outputs...)
	if err != nil {
		b.err = err
		return b
	}
	return b.add(step, bindings)
}

// SubProcess appends a step running the given argument vector, with
// "{name}" placeholders substituted from bound inputs.
func (b *GraphBuilder) SubProcess(id string, arguments []string, bindings Bindings) *GraphBuilder {
	if b.err != nil {
		return b
	}
	step, err := graph.NewSubProcessStep(id, arguments)
	if err != nil {
		b.err = err
		return b
	}
	return b.add(step, bindings)
}

// SubWorkflow appends a step invoking the nested workflow behind resource,
// loaded through the configured loader.
func (b *GraphBuilder) SubWorkflow(id, resource string, bindings Bindings) *GraphBuilder {
	if b.err != nil {
		return b
	}
	step, err := graph.NewWorkflowStep(id, resource, b.registry, b.loader)
	if err != nil {
		b.err = err
		return b
	}
	return b.add(step, bindings)
}

// NoOp appends a step passing bound inputs through to outputs of the
// same name.
func (b *GraphBuilder) NoOp(id string, bindings Bindings, outputs ...string) *GraphBuilder {
	if b.err != nil {
		return b
	}
	return b.add(graph.NewNoOpStep(id, outputs...), bindings)
}

func (b *GraphBuilder) add(step Step, bindings Bindings) *GraphBuilder {
	type binder interface {
		BindInput(port *Port)
	}
	bs, ok := step.(binder)
	if !ok {
		b.err = fmt.Errorf("step %q does not accept input bindings", step.ID())
		return b
	}
	for name, port := range bindings {
		if port == nil {
			b.err = fmt.Errorf("step %q: binding %q is nil", step.ID(), name)
			return b
		}
		bound := *port
		bound.Name = name
		bs.BindInput(&bound)
	}
	if err := b.wf.AddStep(step); err != nil {
		b.err = err
	}
	return b
}

// Build validates the assembled workflow and returns it.
func (b *GraphBuilder) Build() (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.wf.Validate(); err != nil {
		return nil, err
	}
	return b.wf, nil
}

// MustBuild is like Build but panics on error.
// Useful for initialization in main().
func (b *GraphBuilder) MustBuild() *Workflow {
	wf, err := b.Build()
	if err != nil {
		panic(err)
	}
	return wf
}
