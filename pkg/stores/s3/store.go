package s3

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/stores"
)

// Store is the S3-backed stores.TaskStore implementation, keying objects by
// "<owner>/<taskID>.json" so List can filter by owner with a prefix scan.
type Store struct {
	conn *Conn
}

func NewStore(conn *Conn) *Store {
	return &Store{conn: conn}
}

func key(owner, id string) string {
	if owner == "" {
		owner = "unknown"
	}
	return owner + "/" + id + ".json"
}

func (s *Store) Save(ctx context.Context, task *a2a.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if err := s.conn.Put(ctx, key(task.Owner, task.ID), data); err != nil {
		log.Error("failed to store task", "error", err, "task", task.ID)
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*a2a.Task, error) {
	// Task ids are globally unique, but objects are keyed by owner/id, so
	// resolve the owner via a short scan rather than requiring callers to
	// know it up front.
	for info := range s.conn.List(ctx, "") {
		if info.Err != nil {
			return nil, info.Err
		}
		if strings.HasSuffix(info.Key, "/"+id+".json") {
			return s.getByKey(ctx, info.Key)
		}
	}
	return nil, &stores.ErrNotFound{ID: id}
}

func (s *Store) getByKey(ctx context.Context, k string) (*a2a.Task, error) {
	data, err := s.conn.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	var task a2a.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns every task matching filter for owner, unpaginated and
// ordered like InMemoryTaskStore.List (status.timestamp descending, ties
// by id descending, null timestamps last); pkg/handler applies the
// page-token slicing.
func (s *Store) List(ctx context.Context, filter a2a.TaskListFilter, owner string) ([]*a2a.Task, error) {
	prefix := ""
	if owner != "" {
		prefix = owner + "/"
	}

	wanted := make(map[a2a.TaskState]struct{}, len(filter.States))
	for _, st := range filter.States {
		wanted[st] = struct{}{}
	}

	var out []*a2a.Task
	for info := range s.conn.List(ctx, prefix) {
		if info.Err != nil {
			return nil, info.Err
		}
		task, err := s.getByKey(ctx, info.Key)
		if err != nil {
			continue
		}
		if filter.ContextID != "" && task.ContextID != filter.ContextID {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[task.Status.State]; !ok {
				continue
			}
		}
		if filter.StatusTimestampAfter != nil {
			if task.Status.Timestamp == nil || !task.Status.Timestamp.After(*filter.StatusTimestampAfter) {
				continue
			}
		}
		out = append(out, task)
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

func (s *Store) Delete(ctx context.Context, id string) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.conn.Delete(ctx, key(task.Owner, task.ID))
}
