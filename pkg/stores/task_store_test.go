package stores

import (
	"context"
	"testing"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

func TestInMemoryTaskStoreSaveGetRoundTrip(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()

	task := a2a.NewTask("ctx-1", "alice")
	if err := store.Save(ctx, task); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != task.ID {
		t.Fatalf("expected round-tripped id %s, got %s", task.ID, got.ID)
	}
}

func TestInMemoryTaskStoreGetMissingReturnsErrNotFound(t *testing.T) {
	store := NewInMemoryTaskStore()
	_, err := store.Get(context.Background(), "missing")
	if _, ok := err.(*ErrNotFound); !ok {
		t.Fatalf("expected *ErrNotFound, got %T", err)
	}
}

func TestInMemoryTaskStoreListFiltersByOwnerAndContext(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()

	a := a2a.NewTask("ctx-a", "alice")
	b := a2a.NewTask("ctx-b", "alice")
	c := a2a.NewTask("ctx-a", "bob")
	for _, task := range []*a2a.Task{a, b, c} {
		if err := store.Save(ctx, task); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	results, err := store.List(ctx, a2a.TaskListFilter{ContextID: "ctx-a"}, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(results) != 1 || results[0].ID != a.ID {
		t.Fatalf("expected only alice's ctx-a task, got %+v", results)
	}
}

func TestInMemoryTaskStoreListOrdersByTimestampDescendingNullsLast(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()

	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	a := a2a.NewTask("ctx-1", "alice")
	a.Status.Timestamp = &older
	b := a2a.NewTask("ctx-1", "alice")
	b.Status.Timestamp = &newer
	noTimestamp := a2a.NewTask("ctx-1", "alice")

	for _, task := range []*a2a.Task{a, b, noTimestamp} {
		if err := store.Save(ctx, task); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	results, err := store.List(ctx, a2a.TaskListFilter{}, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != b.ID || results[1].ID != a.ID {
		t.Fatalf("expected newest-first ordering, got %s, %s, %s", results[0].ID, results[1].ID, results[2].ID)
	}
	if results[2].ID != noTimestamp.ID {
		t.Fatalf("expected the null-timestamp task to sort last, got %s", results[2].ID)
	}
}

func TestInMemoryTaskStoreListFiltersByStateAndTimestampAfter(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()

	working := a2a.NewTask("ctx-1", "alice")
	working.Status = a2a.TaskStatus{State: a2a.TaskStateWorking}
	completed := a2a.NewTask("ctx-1", "alice")
	completed.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted}

	for _, task := range []*a2a.Task{working, completed} {
		if err := store.Save(ctx, task); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	results, err := store.List(ctx, a2a.TaskListFilter{States: []a2a.TaskState{a2a.TaskStateCompleted}}, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(results) != 1 || results[0].ID != completed.ID {
		t.Fatalf("expected only the completed task, got %+v", results)
	}
}

func TestInMemoryTaskStoreDeleteRemovesTask(t *testing.T) {
	store := NewInMemoryTaskStore()
	ctx := context.Background()
	task := a2a.NewTask("ctx-1", "alice")
	if err := store.Save(ctx, task); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, task.ID); err == nil {
		t.Fatal("expected Get to fail after Delete")
	}
}
