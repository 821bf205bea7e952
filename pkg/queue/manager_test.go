package queue

import "testing"

func TestManagerCreateOrGetReturnsSameQueue(t *testing.T) {
	m := NewManager()
	q1 := m.CreateOrGet("task-1")
	q2 := m.CreateOrGet("task-1")
	if q1 != q2 {
		t.Fatal("expected CreateOrGet to return the same queue for the same task id")
	}
}

func TestManagerGetMissingReturnsFalse(t *testing.T) {
	m := NewManager()
	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected Get on unknown task id to report false")
	}
}

func TestManagerCloseRemovesAndClosesQueue(t *testing.T) {
	m := NewManager()
	q := m.CreateOrGet("task-1")
	m.Close("task-1")

	if !q.Closed() {
		t.Fatal("expected Close to close the underlying queue")
	}
	if _, ok := m.Get("task-1"); ok {
		t.Fatal("expected Close to remove the queue from the registry")
	}
}

func TestManagerCloseOnMissingTaskIsNoop(t *testing.T) {
	m := NewManager()
	m.Close("never-existed") // must not panic
}

func TestManagerAcquireReportsCreation(t *testing.T) {
	m := NewManager()

	q1, created := m.Acquire("task-1")
	if !created {
		t.Fatal("expected first Acquire to create the queue")
	}

	q2, created := m.Acquire("task-1")
	if created {
		t.Fatal("expected second Acquire to return the live queue without creating")
	}
	if q1 != q2 {
		t.Fatal("expected Acquire to return the same queue while it is open")
	}

	q1.Close()
	q3, created := m.Acquire("task-1")
	if !created {
		t.Fatal("expected Acquire to replace a closed queue")
	}
	if q3 == q1 {
		t.Fatal("expected a fresh queue after the previous one closed")
	}
}
