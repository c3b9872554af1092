package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkardel/flowgraph/pkg/api"
)

const chainDocJSON = `{
	"schemaVersion": 1,
	"qualifiedName": "test.chain",
	"header": {"description": "doubles twice"},
	"inputs": {"a": {"dataType": "int", "required": true}},
	"outputs": {"result": {"sourceKind": "stepOutput", "refStep": "s2", "refPort": "return"}},
	"steps": [
		{"id": "s1", "kind": "operation", "op": "test.double",
		 "inputs": {"x": {"sourceKind": "workflowInput", "refPort": "a"}}},
		{"id": "s2", "kind": "operation", "op": "test.double",
		 "inputs": {"x": {"sourceKind": "stepOutput", "refStep": "s1", "refPort": "return"}}}
	]
}`

const chainDocYAML = `
schemaVersion: 1
qualifiedName: test.chain
inputs:
  a:
    dataType: int
    required: true
outputs:
  result:
    sourceKind: stepOutput
    refStep: s2
    refPort: return
steps:
  - id: s1
    kind: operation
    op: test.double
    inputs:
      x:
        sourceKind: workflowInput
        refPort: a
  - id: s2
    kind: operation
    op: test.double
    inputs:
      x:
        sourceKind: stepOutput
        refStep: s1
        refPort: return
`

func TestDecodeJSONBuildsExecutableWorkflow(t *testing.T) {
	reg := newTestRegistry(t, doubleOp())

	wf, err := DecodeJSON([]byte(chainDocJSON), reg, nil)
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if wf.QualifiedName() != "test.chain" {
		t.Fatalf("unexpected qualified name %q", wf.QualifiedName())
	}
	if wf.Meta.Header["description"] != "doubles twice" {
		t.Fatalf("header not decoded: %v", wf.Meta.Header)
	}

	outputs, err := wf.Invoke(context.Background(), nil, map[string]any{"a": 3})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if outputs["result"] != 12 {
		t.Fatalf("expected 12, got %v", outputs["result"])
	}
}

func TestDecodeYAMLBuildsExecutableWorkflow(t *testing.T) {
	reg := newTestRegistry(t, doubleOp())

	wf, err := DecodeYAML([]byte(chainDocYAML), reg, nil)
	if err != nil {
		t.Fatalf("DecodeYAML failed: %v", err)
	}

	outputs, err := wf.Invoke(context.Background(), nil, map[string]any{"a": 2})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if outputs["result"] != 8 {
		t.Fatalf("expected 8, got %v", outputs["result"])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	reg := newTestRegistry(t, doubleOp())

	wf, err := DecodeJSON([]byte(chainDocJSON), reg, nil)
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}

	data, err := EncodeJSON(wf)
	if err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}
	again, err := DecodeJSON(data, reg, nil)
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}

	outputs, err := again.Invoke(context.Background(), nil, map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Invoke of round-tripped workflow failed: %v", err)
	}
	if outputs["result"] != 4 {
		t.Fatalf("expected 4, got %v", outputs["result"])
	}
}

func TestDecodeRejectsUnknownStepKind(t *testing.T) {
	doc := `{"schemaVersion": 1, "qualifiedName": "test.bad",
		"steps": [{"id": "s1", "kind": "teleport"}]}`

	_, err := DecodeJSON([]byte(doc), nil, nil)
	var kindErr *api.UnknownStepKindError
	if !errors.As(err, &kindErr) {
		t.Fatalf("expected UnknownStepKindError, got %v", err)
	}
	if kindErr.Kind != "teleport" {
		t.Fatalf("expected offending kind in error, got %q", kindErr.Kind)
	}
}

func TestDecodeRejectsMissingQualifiedName(t *testing.T) {
	if _, err := DecodeJSON([]byte(`{"schemaVersion": 1, "steps": []}`), nil, nil); err == nil {
		t.Fatal("expected error for missing qualifiedName")
	}
}

func TestDecodeRejectsStepWithoutID(t *testing.T) {
	doc := `{"schemaVersion": 1, "qualifiedName": "test.noid",
		"steps": [{"kind": "noop"}]}`
	if _, err := DecodeJSON([]byte(doc), nil, nil); err == nil {
		t.Fatal("expected error for step without id")
	}
}

func TestDecodeRejectsDanglingReference(t *testing.T) {
	doc := `{"schemaVersion": 1, "qualifiedName": "test.dangling",
		"steps": [
			{"id": "s1", "kind": "noop",
			 "inputs": {"x": {"sourceKind": "stepOutput", "refStep": "ghost", "refPort": "out"}}}
		]}`

	_, err := DecodeJSON([]byte(doc), nil, nil)
	var refErr *api.UnresolvedReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected UnresolvedReferenceError, got %v", err)
	}
}

func TestDecodeConstantShorthand(t *testing.T) {
	// A bare value is shorthand for a constant source.
	doc := `{"schemaVersion": 1, "qualifiedName": "test.shorthand",
		"outputs": {"out": {"sourceKind": "stepOutput", "refStep": "s1", "refPort": "x"}},
		"steps": [
			{"id": "s1", "kind": "noop",
			 "inputs": {"x": {"value": false}},
			 "outputs": {"x": {}}}
		]}`

	wf, err := DecodeJSON([]byte(doc), nil, nil)
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	outputs, err := wf.Invoke(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if outputs["out"] != false {
		t.Fatalf("expected constant false to survive, got %v", outputs["out"])
	}
}

func TestLoadAndStoreChooseFormatByExtension(t *testing.T) {
	reg := newTestRegistry(t, doubleOp())
	wf, err := DecodeJSON([]byte(chainDocJSON), reg, nil)
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}

	dir := t.TempDir()
	for _, name := range []string{"wf.json", "wf.yaml"} {
		path := filepath.Join(dir, name)
		if err := Store(wf, path); err != nil {
			t.Fatalf("Store %s failed: %v", name, err)
		}
		loaded, err := Load(path, reg, nil)
		if err != nil {
			t.Fatalf("Load %s failed: %v", name, err)
		}
		if loaded.QualifiedName() != "test.chain" {
			t.Fatalf("%s: unexpected qualified name %q", name, loaded.QualifiedName())
		}
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"), nil, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDecodeNestedWorkflowViaFileLoader(t *testing.T) {
	dir := t.TempDir()
	inner := `{
		"schemaVersion": 1,
		"qualifiedName": "test.inner",
		"inputs": {"x": {"dataType": "int"}},
		"outputs": {"y": {"sourceKind": "stepOutput", "refStep": "inc", "refPort": "return"}},
		"steps": [
			{"id": "inc", "kind": "expression", "expression": "x + 1",
			 "inputs": {"x": {"sourceKind": "workflowInput", "refPort": "x"}}}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "inner.json"), []byte(inner), 0o644); err != nil {
		t.Fatalf("write inner: %v", err)
	}

	outer := `{
		"schemaVersion": 1,
		"qualifiedName": "test.outer",
		"inputs": {"a": {"dataType": "int"}},
		"outputs": {"b": {"sourceKind": "stepOutput", "refStep": "sub", "refPort": "y"}},
		"steps": [
			{"id": "sub", "kind": "workflow", "resource": "inner.json",
			 "inputs": {"x": {"sourceKind": "workflowInput", "refPort": "a"}}}
		]
	}`

	wf, err := DecodeJSON([]byte(outer), nil, api.NewFileLoader(dir))
	if err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	outputs, err := wf.Invoke(context.Background(), nil, map[string]any{"a": 10})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if outputs["b"] != 11 {
		t.Fatalf("expected 11, got %v", outputs["b"])
	}
}
