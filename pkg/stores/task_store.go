// Package stores provides the TaskStore persistence interface used by the
// task manager and request handler, plus a concurrency-safe in-memory
// implementation suitable for demos and unit tests.
package stores

import (
	"context"
	"sort"
	"sync"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// TaskStore persists the folded, event-sourced view of a Task. Save is
// called after every fold; Get/List serve reads for the request handler.
type TaskStore interface {
	Save(ctx context.Context, task *a2a.Task) error
	Get(ctx context.Context, id string) (*a2a.Task, error)
	List(ctx context.Context, filter a2a.TaskListFilter, owner string) ([]*a2a.Task, error)
	Delete(ctx context.Context, id string) error
}

// ErrNotFound is returned by Get/Delete when the id is unknown.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return "task not found: " + e.ID }

// InMemoryTaskStore keeps every task in a mutex-guarded map. Good enough for
// demos and tests; a production deployment swaps this for s3.Store or a SQL
// store implementing the same interface.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[string]*a2a.Task)}
}

func (s *InMemoryTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	cp := *task
	s.mu.Lock()
	s.tasks[task.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *InMemoryTaskStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	cp := *t
	return &cp, nil
}

// List applies owner scoping, the context-id/states/status-timestamp-after
// filters, and orders results by status.timestamp descending (ties broken
// by id descending, null timestamps sorting last) — the shape
// pkg/handler's pagination depends on. Pagination itself (page-token
// slicing) is the caller's job; List always returns the full filtered,
// ordered set.
func (s *InMemoryTaskStore) List(ctx context.Context, filter a2a.TaskListFilter, owner string) ([]*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[a2a.TaskState]struct{}, len(filter.States))
	for _, st := range filter.States {
		wanted[st] = struct{}{}
	}

	out := make([]*a2a.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if owner != "" && t.Owner != owner {
			continue
		}
		if filter.ContextID != "" && t.ContextID != filter.ContextID {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[t.Status.State]; !ok {
				continue
			}
		}
		if filter.StatusTimestampAfter != nil {
			if t.Status.Timestamp == nil || !t.Status.Timestamp.After(*filter.StatusTimestampAfter) {
				continue
			}
		}
		cp := *t
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Status.Timestamp == nil && b.Status.Timestamp == nil:
			return a.ID > b.ID
		case a.Status.Timestamp == nil:
			return false
		case b.Status.Timestamp == nil:
			return true
		case !a.Status.Timestamp.Equal(*b.Status.Timestamp):
			return a.Status.Timestamp.After(*b.Status.Timestamp)
		default:
			return a.ID > b.ID
		}
	})

	return out, nil
}

func (s *InMemoryTaskStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return &ErrNotFound{ID: id}
	}
	delete(s.tasks, id)
	return nil
}
