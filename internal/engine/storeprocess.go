package engine

import (
	"context"
	"errors"
	"time"

	"github.com/user/storefleet/internal/logger"
)

const (
	// Errors a store process absorbs before giving up on the store.
	maxStoreErrors = 100
	// Wall-clock budget for one store's full ingestion pass.
	maxStoreLive = 5600 * time.Second
)

// StoreProcess multiplexes one leased store's tasks. Each Tick advances the
// least recently run unfinished task by one step.
type StoreProcess struct {
	StoreID        int64
	StoreProcessID int64
	StoreName      string

	tasks      []Task
	lastRun    []time.Time
	errorCount int
	startTime  time.Time

	log logger.Logger
	now func() time.Time
}

// NewStoreProcess wires a leased store with its task chain. Initial last-run
// stamps are staggered so the first ticks walk the tasks in declaration
// order instead of ping-ponging between them.
func NewStoreProcess(storeID, storeProcessID int64, storeName string, tasks []Task, log logger.Logger) *StoreProcess {
	sp := &StoreProcess{
		StoreID:        storeID,
		StoreProcessID: storeProcessID,
		StoreName:      storeName,
		tasks:          tasks,
		lastRun:        make([]time.Time, len(tasks)),
		log:            log,
		now:            time.Now,
	}
	sp.startTime = sp.now()
	for i := range tasks {
		sp.lastRun[i] = time.Time{}.Add(time.Duration(i) * time.Second)
	}
	return sp
}

func (sp *StoreProcess) done() bool {
	for _, t := range sp.tasks {
		if t.Status() == StatusInProgress {
			return false
		}
	}
	return true
}

// earliestTask picks the unfinished task with the oldest last-run stamp and
// stamps it with now.
func (sp *StoreProcess) earliestTask() Task {
	idx := -1
	var earliest time.Time
	for i, t := range sp.tasks {
		if t.Status() != StatusInProgress {
			continue
		}
		if idx == -1 || sp.lastRun[i].Before(earliest) {
			idx = i
			earliest = sp.lastRun[i]
		}
	}
	if idx == -1 {
		return nil
	}
	sp.lastRun[idx] = sp.now()
	return sp.tasks[idx]
}

// Tick advances the store by one task step. Returns StatusSuccess once every
// task reached a terminal state, StatusError when the store blew its error or
// time budget, otherwise StatusInProgress.
func (sp *StoreProcess) Tick(ctx context.Context) Status {
	if sp.done() {
		return StatusSuccess
	}

	task := sp.earliestTask()
	start := sp.now()
	err := task.Step(ctx)
	taskSteps.WithLabelValues(task.Name(), task.Status().String()).Inc()
	taskStepDuration.WithLabelValues(task.Name()).Observe(sp.now().Sub(start).Seconds())

	if err != nil {
		sp.errorCount++
		var taskErr *TaskError
		if errors.As(err, &taskErr) {
			sp.log.Error("task step failed",
				"source", taskErr.Source,
				"store_id", sp.StoreID,
				"error", taskErr.Err.Error(),
			)
		} else {
			sp.log.Error("task step failed",
				"source", "store_process",
				"store_id", sp.StoreID,
				"error", err.Error(),
			)
		}
	}

	if sp.errorCount > maxStoreErrors {
		sp.log.Error("store exceeded error budget",
			"source", "store_process",
			"store_id", sp.StoreID,
			"error_count", sp.errorCount,
		)
		return StatusError
	}
	if sp.now().Sub(sp.startTime) > maxStoreLive {
		sp.log.Warn("store exceeded time budget",
			"source", "store_process",
			"store_id", sp.StoreID,
		)
		return StatusError
	}
	return StatusInProgress
}
