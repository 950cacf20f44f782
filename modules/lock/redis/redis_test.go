package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/jobagent/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestModuleInfo(t *testing.T) {
	t.Parallel()

	info := (&Module{}).ModuleInfo()
	if info.ID != "lock.redis" {
		t.Errorf("ID = %q", info.ID)
	}
	if _, ok := info.New().(*Module); !ok {
		t.Error("New() did not return *Module")
	}
}

func TestProvision_RequiresURL(t *testing.T) {
	t.Parallel()

	m := &Module{}
	err := m.Provision(core.NewAppContext(testLogger(), t.TempDir()))
	if err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Errorf("Provision() error = %v", err)
	}
	if m.Validate() == nil {
		t.Error("Validate() should fail before provisioning")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on unprovisioned module = %v", err)
	}
}

func TestDial_InvalidURLHidesSecret(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), "http://:hunter2@localhost")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Errorf("error leaks password: %v", err)
	}
}

func newTestLocker(t *testing.T) *Locker {
	t.Helper()

	url := os.Getenv("JOBAGENT_REDIS_URL")
	if url == "" {
		t.Skip("JOBAGENT_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, "jobagent-test:"+uuid.NewString()+":")
}

func TestLocker_SingleHolder(t *testing.T) {
	t.Parallel()

	l := newTestLocker(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := l.TryLock(ctx, "cycle", time.Minute)
			if err != nil {
				t.Errorf("TryLock() error = %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("holders = %d, want 1", wins.Load())
	}
}

func TestLocker_ReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	l := newTestLocker(t)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "cycle", time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release() error = %v", err)
	}

	_, ok, err = l.TryLock(ctx, "cycle", time.Minute)
	if err != nil || !ok {
		t.Errorf("reacquire = %v, %v", ok, err)
	}
}

func TestLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	t.Parallel()

	l := newTestLocker(t)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "cycle", 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	time.Sleep(150 * time.Millisecond)

	if _, ok, err := l.TryLock(ctx, "cycle", time.Minute); err != nil || !ok {
		t.Fatalf("takeover = %v, %v", ok, err)
	}
	// The first holder's lease expired; its release must not drop the new one.
	if err := release(ctx); err != nil {
		t.Fatalf("release() error = %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "cycle", time.Minute); ok {
		t.Error("stale release removed the new holder's lock")
	}
}
