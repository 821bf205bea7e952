package push

import (
	"context"
	"testing"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

func TestInMemoryConfigStoreSetAssignsIDAndRoundTrips(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()

	saved, err := store.Set(ctx, "task-1", a2a.PushNotificationConfig{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected Set to assign an id when none was supplied")
	}

	got, err := store.Get(ctx, "task-1", saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.URL != "https://example.com/hook" {
		t.Fatalf("expected round-tripped url, got %q", got.URL)
	}
}

func TestInMemoryConfigStoreSupportsMultipleConfigsPerTask(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()

	if _, err := store.Set(ctx, "task-1", a2a.PushNotificationConfig{URL: "https://a"}); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if _, err := store.Set(ctx, "task-1", a2a.PushNotificationConfig{URL: "https://b"}); err != nil {
		t.Fatalf("Set b: %v", err)
	}

	list, err := store.List(ctx, "task-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(list))
	}
}

func TestInMemoryConfigStoreDeleteRemovesOneConfig(t *testing.T) {
	store := NewInMemoryConfigStore()
	ctx := context.Background()

	cfg, err := store.Set(ctx, "task-1", a2a.PushNotificationConfig{URL: "https://a"})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := store.Delete(ctx, "task-1", cfg.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "task-1", cfg.ID); err == nil {
		t.Fatal("expected Get to fail after Delete")
	}
}

func TestInMemoryConfigStoreGetMissingReturnsErrConfigNotFound(t *testing.T) {
	store := NewInMemoryConfigStore()
	_, err := store.Get(context.Background(), "task-1", "missing")
	if err == nil {
		t.Fatal("expected ErrConfigNotFound")
	}
	if _, ok := err.(*ErrConfigNotFound); !ok {
		t.Fatalf("expected *ErrConfigNotFound, got %T", err)
	}
}
