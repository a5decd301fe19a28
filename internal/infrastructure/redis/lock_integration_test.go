package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	infraRedis "github.com/alpian-ledger/payment-service/internal/infrastructure/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a disposable redis container and returns a connected
// client. Skipped under -short.
func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("container endpoint: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("pinging redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLockManager_SingleWinnerUnderContention(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	managers := make([]*infraRedis.LockManager, 8)
	for i := range managers {
		managers[i] = infraRedis.NewLockManager(client, "")
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	start := make(chan struct{})
	for _, m := range managers {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.Acquire(ctx, "payment-contended", time.Minute)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domainErrors.ErrLockUnavailable):
				losses++
			default:
				t.Errorf("unexpected acquire error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("exactly one instance must win the lock, got %d", wins)
	}
	if losses != len(managers)-1 {
		t.Errorf("all other instances must see contention, got %d losses", losses)
	}
}

func TestLockManager_ReleaseMakesLockAvailable(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	first := infraRedis.NewLockManager(client, "worker-1")
	second := infraRedis.NewLockManager(client, "worker-2")

	lock, err := first.Acquire(ctx, "payment-a", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := second.Acquire(ctx, "payment-a", time.Minute); !errors.Is(err, domainErrors.ErrLockUnavailable) {
		t.Fatalf("expected contention while held, got %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := second.Acquire(ctx, "payment-a", time.Minute); err != nil {
		t.Fatalf("released lock must be acquirable: %v", err)
	}
}

func TestLockManager_ExpiredLockIsReacquirable(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	first := infraRedis.NewLockManager(client, "worker-1")
	second := infraRedis.NewLockManager(client, "worker-2")

	if _, err := first.Acquire(ctx, "payment-b", 100*time.Millisecond); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if _, err := second.Acquire(ctx, "payment-b", time.Minute); err != nil {
		t.Fatalf("expired lock must be acquirable: %v", err)
	}
}

func TestLockManager_StaleReleaseLeavesNewHolderAlone(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	first := infraRedis.NewLockManager(client, "worker-1")
	second := infraRedis.NewLockManager(client, "worker-2")
	third := infraRedis.NewLockManager(client, "worker-3")

	stale, err := first.Acquire(ctx, "payment-c", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	// The lease expired and another instance took over. The stale holder's
	// release must be a no-op, not a theft of the live lock.
	if _, err := second.Acquire(ctx, "payment-c", time.Minute); err != nil {
		t.Fatalf("re-acquire after expiry: %v", err)
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release must not error: %v", err)
	}
	if _, err := third.Acquire(ctx, "payment-c", time.Minute); !errors.Is(err, domainErrors.ErrLockUnavailable) {
		t.Fatalf("live lock must survive a stale release, got %v", err)
	}
}

func TestLockManager_ExtendKeepsLockPastOriginalTTL(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	first := infraRedis.NewLockManager(client, "worker-1")
	second := infraRedis.NewLockManager(client, "worker-2")

	lock, err := first.Acquire(ctx, "payment-d", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lock.Extend(ctx, time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if _, err := second.Acquire(ctx, "payment-d", time.Minute); !errors.Is(err, domainErrors.ErrLockUnavailable) {
		t.Fatalf("extended lock must still be held past its original ttl, got %v", err)
	}

	// Once the lease lapses for real, Extend refuses.
	expired, err := first.Acquire(ctx, "payment-e", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := expired.Extend(ctx, time.Minute); !errors.Is(err, domainErrors.ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld extending an expired lock, got %v", err)
	}
}
