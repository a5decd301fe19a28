package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/observability"
	"github.com/alpian-ledger/payment-service/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// fakeLocker hands out locks unless the resource is marked held elsewhere.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Hold(resourceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[resourceID] = true
}

func (l *fakeLocker) Acquire(ctx context.Context, resourceID string, ttl time.Duration) (scheduler.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[resourceID] {
		return nil, domainErrors.ErrLockUnavailable
	}
	l.held[resourceID] = true
	return fakeLease{locker: l, resourceID: resourceID}, nil
}

type fakeLease struct {
	locker     *fakeLocker
	resourceID string
}

func (l fakeLease) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.resourceID)
	return nil
}

func newScheduler(registry *scheduler.Registry) *scheduler.Scheduler {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	return scheduler.New(registry, zerolog.Nop(), metrics, scheduler.Config{
		PollInterval: time.Millisecond,
	})
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := scheduler.NewRegistry()
	noop := func(ctx context.Context) error { return nil }

	if err := r.Register("sweep", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("sweep", noop); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register("", noop); err == nil {
		t.Fatal("expected empty name to fail")
	}
	if err := r.Register("nil-handler", nil); err == nil {
		t.Fatal("expected nil handler to fail")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := scheduler.NewRegistry()
	if _, err := r.Resolve("ghost"); err == nil {
		t.Fatal("expected unknown task to fail")
	}
}

func TestRegistry_NamesInRegistrationOrder(t *testing.T) {
	r := scheduler.NewRegistry()
	noop := func(ctx context.Context) error { return nil }
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(name, noop); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	names := r.Names()
	if len(names) != 3 || names[0] != "c" || names[1] != "a" || names[2] != "b" {
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestRunPass_RunsEveryTask(t *testing.T) {
	registry := scheduler.NewRegistry()
	var ran []string
	for _, name := range []string{"one", "two"} {
		name := name
		registry.Register(name, func(ctx context.Context) error {
			ran = append(ran, name)
			return nil
		})
	}

	s := newScheduler(registry)
	s.RunPass(context.Background())

	if len(ran) != 2 || ran[0] != "one" || ran[1] != "two" {
		t.Fatalf("unexpected task runs: %v", ran)
	}
}

func TestRunPass_TaskErrorDoesNotStopOthers(t *testing.T) {
	registry := scheduler.NewRegistry()
	secondRan := false
	registry.Register("failing", func(ctx context.Context) error {
		return errors.New("pass blew up")
	})
	registry.Register("second", func(ctx context.Context) error {
		secondRan = true
		return nil
	})

	s := newScheduler(registry)
	s.RunPass(context.Background())

	if !secondRan {
		t.Error("later tasks must run despite an earlier failure")
	}
}
