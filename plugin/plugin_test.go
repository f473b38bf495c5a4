package plugin

import (
	"context"
	"errors"
	"testing"
	"time"
)

type named struct{ removed []string }

func (n *named) Name() string { return "named" }
func (n *named) Remove(_ context.Context, key string) error {
	n.removed = append(n.removed, key)
	return nil
}

func TestRunnerNoOpsForMissingTasks(t *testing.T) {
	ctx := context.Background()
	impl := &named{}
	r := NewRunner(impl)

	if r.Name() != "named" {
		t.Fatalf("name=%q", r.Name())
	}
	for task, want := range map[Task]bool{TaskGet: false, TaskPut: false, TaskRemove: true, TaskClear: false} {
		if r.Implements(task) != want {
			t.Fatalf("Implements(%s)=%v", task, !want)
		}
	}
	if _, ok, err := r.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("missing get: ok=%v err=%v", ok, err)
	}
	if err := r.Put(ctx, []string{"k"}, Envelope{}); err != nil {
		t.Fatalf("missing put: %v", err)
	}
	if err := r.Clear(ctx); err != nil {
		t.Fatalf("missing clear: %v", err)
	}
	if err := r.Remove(ctx, "k"); err != nil || len(impl.removed) != 1 {
		t.Fatalf("remove not dispatched: %v %v", err, impl.removed)
	}
	if r.Unwrap() != any(impl) {
		t.Fatalf("Unwrap returned a different value")
	}
}

type failingGetter struct{}

func (failingGetter) Get(context.Context, string) (Envelope, error) {
	return Envelope{Data: []byte("ignored")}, ErrNotFound
}

func TestRunnerGetErrorDropsEnvelope(t *testing.T) {
	r := NewRunner(failingGetter{})
	if r.Name() != "plugin.failingGetter" {
		t.Fatalf("fallback name=%q", r.Name())
	}
	env, ok, err := r.Get(context.Background(), "k")
	if ok || !errors.Is(err, ErrNotFound) || env.Data != nil {
		t.Fatalf("env=%v ok=%v err=%v", env, ok, err)
	}
}

func TestExpiry(t *testing.T) {
	now := time.UnixMilli(10_000)

	if !ExpiryAt(time.Time{}).IsZero() {
		t.Fatalf("zero time must mean never")
	}
	if ExpiryIn(now, 0) != 0 || ExpiryIn(now, -time.Second) != 0 {
		t.Fatalf("non-positive durations must mean never")
	}
	e := ExpiryIn(now, time.Second)
	if e != 11_000 {
		t.Fatalf("ExpiryIn=%d", e)
	}
	if e.Expired(now) || !e.Expired(now.Add(time.Second)) {
		t.Fatalf("expiry boundary is inclusive")
	}
	if Expiry(0).Expired(now.Add(1000 * time.Hour)) {
		t.Fatalf("zero expiry never expires")
	}
	if e.Remaining(now) != time.Second || Expiry(0).Remaining(now) != 0 {
		t.Fatalf("Remaining wrong")
	}
	if !e.Time().Equal(time.UnixMilli(11_000)) || !Expiry(0).Time().IsZero() {
		t.Fatalf("Time wrong")
	}
}
