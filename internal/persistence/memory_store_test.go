package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/mkardel/flowgraph/pkg/api"
)

func TestInMemoryStore_SaveGetUpdate(t *testing.T) {
	store := NewInMemoryStore()

	inv := &api.Invocation{
		ID:        "inv-1",
		Workflow:  "test.wf",
		Status:    api.StatusRunning,
		Inputs:    map[string]any{"a": 3},
		StartedAt: time.Now(),
	}
	if err := store.SaveInvocation(inv); err != nil {
		t.Fatalf("SaveInvocation failed: %v", err)
	}

	got, err := store.GetInvocation("inv-1")
	if err != nil {
		t.Fatalf("GetInvocation failed: %v", err)
	}
	if got.Workflow != "test.wf" || got.Status != api.StatusRunning {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Inputs["a"] != 3 {
		t.Fatalf("expected inputs preserved, got %v", got.Inputs)
	}

	inv.Status = api.StatusCompleted
	inv.Outputs = map[string]any{"result": 6}
	if err := store.UpdateInvocation(inv); err != nil {
		t.Fatalf("UpdateInvocation failed: %v", err)
	}

	got, err = store.GetInvocation("inv-1")
	if err != nil {
		t.Fatalf("GetInvocation failed: %v", err)
	}
	if got.Status != api.StatusCompleted || got.Outputs["result"] != 6 {
		t.Fatalf("update not visible: %+v", got)
	}
}

func TestInMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.SaveInvocation(&api.Invocation{ID: "inv-1", Status: api.StatusPending}); err != nil {
		t.Fatalf("SaveInvocation failed: %v", err)
	}

	got, err := store.GetInvocation("inv-1")
	if err != nil {
		t.Fatalf("GetInvocation failed: %v", err)
	}
	got.Status = api.StatusFailed

	again, err := store.GetInvocation("inv-1")
	if err != nil {
		t.Fatalf("GetInvocation failed: %v", err)
	}
	if again.Status != api.StatusPending {
		t.Fatal("mutating a returned record must not change the stored one")
	}
}

func TestInMemoryStore_UpdateUnknownFails(t *testing.T) {
	store := NewInMemoryStore()
	err := store.UpdateInvocation(&api.Invocation{ID: "ghost"})
	if !errors.Is(err, ErrInvocationNotFound) {
		t.Fatalf("expected ErrInvocationNotFound, got %v", err)
	}
}

func TestInMemoryStore_GetUnknownFails(t *testing.T) {
	store := NewInMemoryStore()
	if _, err := store.GetInvocation("ghost"); !errors.Is(err, ErrInvocationNotFound) {
		t.Fatalf("expected ErrInvocationNotFound, got %v", err)
	}
}

func TestInMemoryStore_ListFiltersAndOrders(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Now()

	records := []*api.Invocation{
		{ID: "inv-2", Workflow: "a", Status: api.StatusCompleted, StartedAt: base.Add(2 * time.Second)},
		{ID: "inv-1", Workflow: "a", Status: api.StatusFailed, StartedAt: base.Add(time.Second)},
		{ID: "inv-3", Workflow: "b", Status: api.StatusCompleted, StartedAt: base.Add(3 * time.Second)},
	}
	for _, inv := range records {
		if err := store.SaveInvocation(inv); err != nil {
			t.Fatalf("SaveInvocation failed: %v", err)
		}
	}

	all, err := store.ListInvocations(api.InvocationFilter{})
	if err != nil {
		t.Fatalf("ListInvocations failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "inv-1" || all[2].ID != "inv-3" {
		t.Fatalf("expected all records in start order, got %v", ids(all))
	}

	byWorkflow, err := store.ListInvocations(api.InvocationFilter{Workflow: "a"})
	if err != nil {
		t.Fatalf("ListInvocations failed: %v", err)
	}
	if len(byWorkflow) != 2 {
		t.Fatalf("expected 2 records for workflow a, got %v", ids(byWorkflow))
	}

	byStatus, err := store.ListInvocations(api.InvocationFilter{Workflow: "a", Status: api.StatusFailed})
	if err != nil {
		t.Fatalf("ListInvocations failed: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "inv-1" {
		t.Fatalf("expected only inv-1, got %v", ids(byStatus))
	}
}

func ids(invs []*api.Invocation) []string {
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.ID
	}
	return out
}
