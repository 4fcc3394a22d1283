package engine

import (
	"context"
	"testing"

	"github.com/user/storefleet/internal/storage/postgres"
)

type fakeLeaser struct {
	leases    []*postgres.Lease
	creds     map[int64]*postgres.StoreCredentials
	completed map[int64]bool
	beats     int
}

func newFakeLeaser() *fakeLeaser {
	return &fakeLeaser{
		creds:     make(map[int64]*postgres.StoreCredentials),
		completed: make(map[int64]bool),
	}
}

func (f *fakeLeaser) AcquireStore(ctx context.Context, service string) (*postgres.Lease, error) {
	if len(f.leases) == 0 {
		return nil, nil
	}
	lease := f.leases[0]
	f.leases = f.leases[1:]
	return lease, nil
}

func (f *fakeLeaser) GetStoreCredentials(ctx context.Context, storeID int64) (*postgres.StoreCredentials, error) {
	return f.creds[storeID], nil
}

func (f *fakeLeaser) MarkProcessCompleted(ctx context.Context, storeProcessID int64, dataLoaded bool) error {
	f.completed[storeProcessID] = dataLoaded
	return nil
}

func (f *fakeLeaser) HeartbeatStores(ctx context.Context, service string, ids []int64) ([]int64, error) {
	f.beats++
	return ids, nil
}

func (f *fakeLeaser) UpsertServiceHealth(ctx context.Context, serviceType, serviceName, version string) error {
	return nil
}

func singleStepTasks(int64, string) []Task {
	return []Task{&fakeTask{name: "a", stepsMax: 1}}
}

func TestWorkerIdleWithoutStores(t *testing.T) {
	w := NewWorker("worker-1", "v1", newFakeLeaser(), singleStepTasks, nopLogger{})
	if w.RunIteration(context.Background()) {
		t.Fatal("no stores available, iteration should signal idle")
	}
}

func TestWorkerLeasesAndCompletesStore(t *testing.T) {
	storage := newFakeLeaser()
	storage.leases = []*postgres.Lease{{StoreProcessID: 10, StoreID: 1}}
	storage.creds[1] = &postgres.StoreCredentials{StoreName: "s1", APIToken: "tok", TokenIsValid: true}

	w := NewWorker("worker-1", "v1", storage, singleStepTasks, nopLogger{})

	// First iteration leases the store and runs its single step.
	if !w.RunIteration(context.Background()) {
		t.Fatal("iteration with a lease available should not be idle")
	}
	if w.StoreCount() != 1 {
		t.Fatalf("stores held = %d", w.StoreCount())
	}
	// Second iteration sees all tasks done and releases with data loaded.
	w.RunIteration(context.Background())
	if loaded, ok := storage.completed[10]; !ok || !loaded {
		t.Fatalf("store process not completed as loaded: %v", storage.completed)
	}
	if w.StoreCount() != 0 {
		t.Fatalf("store not released, held = %d", w.StoreCount())
	}
}

func TestWorkerReleasesInvalidTokenStore(t *testing.T) {
	storage := newFakeLeaser()
	storage.leases = []*postgres.Lease{{StoreProcessID: 11, StoreID: 2}}
	storage.creds[2] = &postgres.StoreCredentials{StoreName: "s2", APIToken: "tok", TokenIsValid: false}

	w := NewWorker("worker-1", "v1", storage, singleStepTasks, nopLogger{})
	w.RunIteration(context.Background())

	if w.StoreCount() != 0 {
		t.Fatalf("invalid-token store should not be held, got %d", w.StoreCount())
	}
	if loaded, ok := storage.completed[11]; !ok || !loaded {
		t.Fatalf("invalid-token store should be released as loaded: %v", storage.completed)
	}
}

func TestWorkerReleasesLeaseWhenStoreLookupFails(t *testing.T) {
	storage := newFakeLeaser()
	storage.leases = []*postgres.Lease{{StoreProcessID: 12, StoreID: 3}}
	// No credentials row for store 3.

	w := NewWorker("worker-1", "v1", storage, singleStepTasks, nopLogger{})
	w.RunIteration(context.Background())

	if w.StoreCount() != 0 {
		t.Fatalf("unresolvable store should not be held, got %d", w.StoreCount())
	}
	if loaded, ok := storage.completed[12]; !ok || loaded {
		t.Fatalf("lease should be released without data loaded: %v", storage.completed)
	}
}

func TestWorkerRoundRobin(t *testing.T) {
	storage := newFakeLeaser()
	storage.leases = []*postgres.Lease{
		{StoreProcessID: 10, StoreID: 1},
		{StoreProcessID: 11, StoreID: 2},
	}
	storage.creds[1] = &postgres.StoreCredentials{StoreName: "s1", APIToken: "t", TokenIsValid: true}
	storage.creds[2] = &postgres.StoreCredentials{StoreName: "s2", APIToken: "t", TokenIsValid: true}

	var stepped []int64
	factory := func(storeID int64, apiToken string) []Task {
		return []Task{&fakeTask{name: "a", stepsMax: 100}}
	}
	w := NewWorker("worker-1", "v1", storage, factory, nopLogger{})

	// Lease both stores, then check ticks alternate between them.
	w.RunIteration(context.Background())
	w.RunIteration(context.Background())
	for i := 0; i < 4; i++ {
		idx := w.nextIndex % len(w.stores)
		stepped = append(stepped, w.stores[idx].StoreID)
		w.RunIteration(context.Background())
	}
	if stepped[0] == stepped[1] || stepped[0] != stepped[2] || stepped[1] != stepped[3] {
		t.Fatalf("ticks not alternating: %v", stepped)
	}
}

func TestWorkerHeartbeatOncePerPeriod(t *testing.T) {
	storage := newFakeLeaser()
	storage.leases = []*postgres.Lease{{StoreProcessID: 10, StoreID: 1}}
	storage.creds[1] = &postgres.StoreCredentials{StoreName: "s1", APIToken: "t", TokenIsValid: true}

	factory := func(int64, string) []Task {
		return []Task{&fakeTask{name: "a", stepsMax: 100}}
	}
	w := NewWorker("worker-1", "v1", storage, factory, nopLogger{})

	for i := 0; i < 5; i++ {
		w.RunIteration(context.Background())
	}
	if storage.beats != 0 {
		t.Fatalf("heartbeat with no held stores ran %d times", storage.beats)
	}

	w.lastHeartbeat = w.now().Add(-2 * heartbeatPeriod)
	w.RunIteration(context.Background())
	if storage.beats != 1 {
		t.Fatalf("heartbeat after period ran %d times, want 1", storage.beats)
	}
}
