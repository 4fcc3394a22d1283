package engine

import (
	"context"
	"time"

	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/storage/postgres"
)

const (
	// MaxStores bounds how many leases one worker multiplexes at a time.
	MaxStores = 15
	// TickInterval paces the worker loop.
	TickInterval = 10 * time.Millisecond
	// IdleSleep is how long the loop parks when no store is leased.
	IdleSleep = 7500 * time.Millisecond

	heartbeatPeriod = 60 * time.Second
)

// Leaser is the slice of storage the worker needs.
type Leaser interface {
	AcquireStore(ctx context.Context, service string) (*postgres.Lease, error)
	GetStoreCredentials(ctx context.Context, storeID int64) (*postgres.StoreCredentials, error)
	MarkProcessCompleted(ctx context.Context, storeProcessID int64, dataLoaded bool) error
	HeartbeatStores(ctx context.Context, service string, storeProcessIDs []int64) ([]int64, error)
	UpsertServiceHealth(ctx context.Context, serviceType, serviceName, version string) error
}

// TaskFactory builds the task chain for one leased store.
type TaskFactory func(storeID int64, apiToken string) []Task

// Worker leases stores and round-robins their task chains. One iteration
// advances exactly one task of one store, so a slow store never starves the
// rest of the fleet.
type Worker struct {
	service string
	version string

	storage   Leaser
	newTasks  TaskFactory
	log       logger.Logger
	stores    []*StoreProcess
	nextIndex int

	lastHeartbeat time.Time
	now           func() time.Time
}

func NewWorker(service, version string, storage Leaser, newTasks TaskFactory, log logger.Logger) *Worker {
	return &Worker{
		service:  service,
		version:  version,
		storage:  storage,
		newTasks: newTasks,
		log:      log,
		now:      time.Now,
	}
}

func (w *Worker) heartbeat(ctx context.Context) {
	if !w.lastHeartbeat.IsZero() && w.now().Sub(w.lastHeartbeat) < heartbeatPeriod {
		return
	}
	w.lastHeartbeat = w.now()

	ids := make([]int64, 0, len(w.stores))
	for _, sp := range w.stores {
		ids = append(ids, sp.StoreProcessID)
	}
	if len(ids) > 0 {
		updated, err := w.storage.HeartbeatStores(ctx, w.service, ids)
		if err != nil {
			w.log.Error("store heartbeat failed", "source", "worker", "error", err.Error())
		} else if len(updated) != len(ids) {
			w.log.Warn("some leases were reclaimed",
				"source", "worker",
				"held", len(ids),
				"confirmed", len(updated),
			)
		}
	}
	if err := w.storage.UpsertServiceHealth(ctx, "worker", w.service, w.version); err != nil {
		w.log.Error("service heartbeat failed", "source", "worker", "error", err.Error())
	}
}

// topUp tries to lease one more store when below capacity. Stores with an
// invalid token are released immediately as loaded so they stop cycling
// through the queue.
func (w *Worker) topUp(ctx context.Context) {
	if len(w.stores) >= MaxStores {
		return
	}
	lease, err := w.storage.AcquireStore(ctx, w.service)
	if err != nil {
		w.log.Error("store acquire failed", "source", "worker", "error", err.Error())
		return
	}
	if lease == nil {
		return
	}

	creds, err := w.storage.GetStoreCredentials(ctx, lease.StoreID)
	if err != nil || creds == nil {
		// Give the lease back right away instead of leaving the row running
		// until the stale-health reclaim.
		if err := w.storage.MarkProcessCompleted(ctx, lease.StoreProcessID, false); err != nil {
			w.log.Error("release of unresolvable store failed",
				"source", "worker",
				"store_id", lease.StoreID,
				"error", err.Error(),
			)
		}
		w.log.Error("store lookup failed",
			"source", "worker",
			"store_id", lease.StoreID,
		)
		return
	}
	if !creds.TokenIsValid {
		if err := w.storage.MarkProcessCompleted(ctx, lease.StoreProcessID, true); err != nil {
			w.log.Error("release of invalid-token store failed",
				"source", "worker",
				"store_id", lease.StoreID,
				"error", err.Error(),
			)
		}
		w.log.Error("store token is not valid",
			"source", "worker",
			"store_id", lease.StoreID,
		)
		return
	}

	sp := NewStoreProcess(lease.StoreID, lease.StoreProcessID, creds.StoreName,
		w.newTasks(lease.StoreID, creds.APIToken), w.log)
	w.stores = append(w.stores, sp)
	leasedStores.Set(float64(len(w.stores)))
	w.log.Info("store leased", "source", "worker", "store_id", lease.StoreID)
}

func (w *Worker) release(ctx context.Context, idx int, status Status) {
	sp := w.stores[idx]
	w.stores = append(w.stores[:idx], w.stores[idx+1:]...)
	leasedStores.Set(float64(len(w.stores)))

	dataLoaded := status == StatusSuccess
	if err := w.storage.MarkProcessCompleted(ctx, sp.StoreProcessID, dataLoaded); err != nil {
		w.log.Error("store release failed",
			"source", "worker",
			"store_id", sp.StoreID,
			"error", err.Error(),
		)
	}
	storesCompleted.WithLabelValues(status.String()).Inc()
	w.log.Info("store released",
		"source", "worker",
		"store_id", sp.StoreID,
		"result", status.String(),
	)
}

// RunIteration is one loop pass: heartbeat if due, top up leases, advance one
// store by one task step. Returns false when there was nothing to do and the
// caller should back off for IdleSleep.
func (w *Worker) RunIteration(ctx context.Context) bool {
	w.heartbeat(ctx)
	w.topUp(ctx)

	if len(w.stores) == 0 {
		return false
	}

	idx := w.nextIndex % len(w.stores)
	w.nextIndex++
	sp := w.stores[idx]

	status := sp.Tick(ctx)
	if status == StatusSuccess || status == StatusError {
		w.release(ctx, idx, status)
	}
	return true
}

// StoreCount reports how many leases the worker currently holds.
func (w *Worker) StoreCount() int {
	return len(w.stores)
}
