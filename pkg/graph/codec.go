package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkardel/flowgraph/pkg/api"
)

// SchemaVersion is the version number of the workflow document schema.
// It will be incremented with the first schema change after release.
const SchemaVersion = 1

// workflowDoc is the serialized form of a Workflow. The same shape is used
// for JSON and YAML documents.
type workflowDoc struct {
	SchemaVersion int                 `json:"schemaVersion" yaml:"schemaVersion"`
	QualifiedName string              `json:"qualifiedName" yaml:"qualifiedName"`
	Header        map[string]any      `json:"header,omitempty" yaml:"header,omitempty"`
	Inputs        map[string]portSpec `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs       map[string]portSpec `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Steps         []stepDoc           `json:"steps" yaml:"steps"`
}

// stepDoc is the serialized form of one step. Kind selects the decoder;
// the kind-specific fields are a union, only one group is ever set.
type stepDoc struct {
	ID      string              `json:"id" yaml:"id"`
	Kind    string              `json:"kind" yaml:"kind"`
	Weight  float64             `json:"weight,omitempty" yaml:"weight,omitempty"`
	Inputs  map[string]portSpec `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs map[string]portSpec `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// kind = "operation"
	Op string `json:"op,omitempty" yaml:"op,omitempty"`

	// kind = "expression"
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	// kind = "subprocess"
	Arguments []string          `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Cwd       string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// kind = "workflow"
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`
}

// portSpec is the serialized form of a port. For workflow boundary inputs
// it additionally carries declaration metadata.
type portSpec struct {
	SourceKind string `json:"sourceKind,omitempty" yaml:"sourceKind,omitempty"`
	Value      *any   `json:"value,omitempty" yaml:"value,omitempty"`
	RefStep    string `json:"refStep,omitempty" yaml:"refStep,omitempty"`
	RefPort    string `json:"refPort,omitempty" yaml:"refPort,omitempty"`

	DataType    string `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	Default     *any   `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (s portSpec) toPort(name string) (*Port, error) {
	switch SourceKind(s.SourceKind) {
	case SourceConstant:
		port := &Port{Name: name, Kind: SourceConstant}
		if s.Value != nil {
			port.Value = *s.Value
		}
		return port, nil
	case SourceWorkflowInput:
		if s.RefPort == "" {
			return nil, fmt.Errorf("workflowInput source requires refPort")
		}
		return FromInput(name, s.RefPort), nil
	case SourceStepOutput:
		if s.RefStep == "" || s.RefPort == "" {
			return nil, fmt.Errorf("stepOutput source requires refStep and refPort")
		}
		return FromStep(name, s.RefStep, s.RefPort), nil
	case SourceNone:
		// A bare value is shorthand for a constant.
		if s.Value != nil {
			return Constant(name, *s.Value), nil
		}
		return Unbound(name), nil
	default:
		return nil, fmt.Errorf("unknown sourceKind %q", s.SourceKind)
	}
}

func specFromPort(port *Port) portSpec {
	spec := portSpec{SourceKind: string(port.Kind)}
	switch port.Kind {
	case SourceConstant:
		v := port.Value
		spec.Value = &v
	case SourceWorkflowInput:
		spec.RefPort = port.RefPort
	case SourceStepOutput:
		spec.RefStep = port.RefStep
		spec.RefPort = port.RefPort
	}
	return spec
}

func specFromMeta(meta api.PortMeta) portSpec {
	spec := portSpec{
		DataType:    meta.DataType,
		Required:    meta.Required,
		Description: meta.Description,
	}
	if meta.Default != nil {
		d := meta.Default
		spec.Default = &d
	}
	return spec
}

func (s portSpec) toMeta() api.PortMeta {
	meta := api.PortMeta{
		DataType:    s.DataType,
		Required:    s.Required,
		Description: s.Description,
	}
	if s.Default != nil {
		meta.Default = *s.Default
	}
	return meta
}

// decodeContext carries the collaborators and the nested-resource guard
// through workflow decoding.
type decodeContext struct {
	registry api.Registry
	loader   api.ResourceLoader

	// visited holds the resource locators on the current decode chain so
	// that self- or mutually-referential workflow resources are rejected
	// instead of recursing without bound.
	visited map[string]bool
	chain   []string
}

func newDecodeContext(registry api.Registry, loader api.ResourceLoader) *decodeContext {
	return &decodeContext{
		registry: registry,
		loader:   loader,
		visited:  make(map[string]bool),
	}
}

// DecodeJSON decodes a Workflow from its JSON document and validates the
// resulting graph. registry resolves operation names for OpSteps; loader
// resolves nested workflow resources for WorkflowSteps. Either may be nil
// when the corresponding step kinds are not used.
func DecodeJSON(data []byte, registry api.Registry, loader api.ResourceLoader) (*Workflow, error) {
	var doc workflowDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow JSON: %w", err)
	}
	return decodeWorkflow(doc, newDecodeContext(registry, loader))
}

// DecodeYAML is DecodeJSON for YAML documents.
func DecodeYAML(data []byte, registry api.Registry, loader api.ResourceLoader) (*Workflow, error) {
	var doc workflowDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow YAML: %w", err)
	}
	return decodeWorkflow(doc, newDecodeContext(registry, loader))
}

// Load reads and decodes a workflow document from path, choosing the
// format by file extension (.yaml/.yml for YAML, JSON otherwise).
func Load(path string, registry api.Registry, loader api.ResourceLoader) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAMLPath(path) {
		return DecodeYAML(data, registry, loader)
	}
	return DecodeJSON(data, registry, loader)
}

// EncodeJSON serializes the workflow as an indented JSON document.
func EncodeJSON(wf *Workflow) ([]byte, error) {
	return json.MarshalIndent(encodeWorkflow(wf), "", "  ")
}

// EncodeYAML serializes the workflow as a YAML document.
func EncodeYAML(wf *Workflow) ([]byte, error) {
	return yaml.Marshal(encodeWorkflow(wf))
}

// Store writes the workflow document to path, choosing the format by file
// extension like Load.
func Store(wf *Workflow, path string) error {
	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = EncodeYAML(wf)
	} else {
		data, err = EncodeJSON(wf)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decodeWorkflow(doc workflowDoc, dc *decodeContext) (*Workflow, error) {
	if doc.QualifiedName == "" {
		return nil, fmt.Errorf("missing mandatory property %q in workflow document", "qualifiedName")
	}

	wf := New(doc.QualifiedName)
	wf.Meta.Header = doc.Header

	for name, spec := range doc.Inputs {
		wf.DeclareInput(name, spec.toMeta())
	}
	for name, spec := range doc.Outputs {
		port, err := spec.toPort(name)
		if err != nil {
			return nil, fmt.Errorf("workflow output %q: %w", name, err)
		}
		wf.DeclareOutput(name, port)
	}

	for i, sd := range doc.Steps {
		if sd.ID == "" {
			return nil, fmt.Errorf("step #%d in workflow %q has no id", i+1, doc.QualifiedName)
		}
		decoder, ok := stepDecoders[sd.Kind]
		if !ok {
			return nil, &api.UnknownStepKindError{Kind: sd.Kind}
		}
		step, err := decoder(sd, dc)
		if err != nil {
			return nil, err
		}
		if err := wf.AddStep(step); err != nil {
			return nil, err
		}
	}

	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}

// loadNestedWorkflow resolves, decodes, and validates a nested workflow
// resource, guarding against reference cycles across locators.
func loadNestedWorkflow(resource string, dc *decodeContext) (*Workflow, error) {
	if dc.loader == nil {
		return nil, fmt.Errorf("workflow step references resource %q but no resource loader is configured", resource)
	}
	if dc.visited[resource] {
		return nil, &api.CyclicDependencyError{Cycle: append(append([]string{}, dc.chain...), resource)}
	}
	dc.visited[resource] = true
	dc.chain = append(dc.chain, resource)
	defer func() {
		delete(dc.visited, resource)
		dc.chain = dc.chain[:len(dc.chain)-1]
	}()

	data, err := dc.loader.Load(resource)
	if err != nil {
		return nil, err
	}

	var doc workflowDoc
	if isYAMLPath(resource) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode workflow resource %s: %w", resource, err)
	}
	return decodeWorkflow(doc, dc)
}

func encodeWorkflow(wf *Workflow) workflowDoc {
	doc := workflowDoc{
		SchemaVersion: SchemaVersion,
		QualifiedName: wf.Meta.QualifiedName,
		Header:        wf.Meta.Header,
		Inputs:        make(map[string]portSpec, len(wf.Meta.Inputs)),
		Outputs:       make(map[string]portSpec, len(wf.outputs)),
		Steps:         make([]stepDoc, 0, len(wf.steps)),
	}
	for name, meta := range wf.Meta.Inputs {
		doc.Inputs[name] = specFromMeta(meta)
	}
	for name, port := range wf.outputs {
		doc.Outputs[name] = specFromPort(port)
	}
	for _, step := range wf.steps {
		doc.Steps = append(doc.Steps, encodeStep(step))
	}
	return doc
}

func encodeStep(step Step) stepDoc {
	doc := stepDoc{
		ID:      step.ID(),
		Kind:    step.Kind(),
		Inputs:  make(map[string]portSpec),
		Outputs: make(map[string]portSpec),
	}
	if w := step.Weight(); w != 1 {
		doc.Weight = w
	}
	for name, port := range step.InputPorts() {
		doc.Inputs[name] = specFromPort(port)
	}
	for name, port := range step.OutputPorts() {
		doc.Outputs[name] = specFromPort(port)
	}
	step.encode(&doc)
	return doc
}
