// Package manager runs the post-ingestion pipeline: once a store's staging
// data is loaded for the day it rebuilds the dimensional snapshot, then pushes
// it into the store's Google workbook. One lease is worked per iteration so a
// fleet of managers shares the queue the same way workers do.
package manager

import (
	"context"
	"time"

	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/storage/postgres"
)

const heartbeatPeriod = 60 * time.Second

// Storage is the slice of the store the manager drives.
type Storage interface {
	AcquireETLStore(ctx context.Context, service string) (*postgres.Lease, error)
	AcquireExportStore(ctx context.Context, service string) (*postgres.Lease, error)
	RunDimensionalETL(ctx context.Context, storeID int64) error
	DimensionalSheetValues(ctx context.Context, storeID int64) ([][]interface{}, error)
	SpreadsheetID(ctx context.Context, storeID int64) (string, error)
	FinalizeExport(ctx context.Context, storeID int64) error
	UpsertServiceHealth(ctx context.Context, serviceType, serviceName, version string) error
}

// Uploader publishes a snapshot to a workbook.
type Uploader interface {
	CheckAccess(ctx context.Context, spreadsheetID string) error
	Upload(ctx context.Context, spreadsheetID string, values [][]interface{}) error
}

type Manager struct {
	service string
	version string

	// devSpreadsheetID, when set, redirects every export to one sandbox
	// workbook so development runs never touch client sheets.
	devSpreadsheetID string

	storage  Storage
	uploader Uploader
	log      logger.Logger

	lastHeartbeat time.Time
	now           func() time.Time
}

func New(service, version, devSpreadsheetID string, storage Storage, uploader Uploader, log logger.Logger) *Manager {
	return &Manager{
		service:          service,
		version:          version,
		devSpreadsheetID: devSpreadsheetID,
		storage:          storage,
		uploader:         uploader,
		log:              log,
		now:              time.Now,
	}
}

func (m *Manager) heartbeat(ctx context.Context) {
	if m.now().Sub(m.lastHeartbeat) < heartbeatPeriod {
		return
	}
	m.lastHeartbeat = m.now()
	if err := m.storage.UpsertServiceHealth(ctx, "app_manager", m.service, m.version); err != nil {
		m.log.Error("failed to report service health", "error", err)
	}
}

// RunIteration works at most one ETL lease and one export lease. It returns
// false when neither queue had an eligible store, so the caller can sleep.
func (m *Manager) RunIteration(ctx context.Context) bool {
	m.heartbeat(ctx)

	worked := false
	if m.runETL(ctx) {
		worked = true
	}
	if m.runExport(ctx) {
		worked = true
	}
	return worked
}

// runETL rebuilds one store's dimensional snapshot. The rebuild transaction
// releases the lease itself; on failure the row stays leased until the health
// stamp goes stale and another manager reclaims it.
func (m *Manager) runETL(ctx context.Context) bool {
	lease, err := m.storage.AcquireETLStore(ctx, m.service)
	if err != nil {
		m.log.Error("failed to acquire etl lease", "error", err)
		return false
	}
	if lease == nil {
		return false
	}

	m.log.Info("rebuilding dimensional snapshot", "store_id", lease.StoreID)
	started := m.now()
	if err := m.storage.RunDimensionalETL(ctx, lease.StoreID); err != nil {
		m.log.Error("dimensional rebuild failed", "store_id", lease.StoreID, "error", err)
		etlRuns.WithLabelValues("error").Inc()
		return true
	}
	etlRuns.WithLabelValues("success").Inc()
	m.log.Info("dimensional snapshot rebuilt",
		"store_id", lease.StoreID, "elapsed", m.now().Sub(started).String())
	return true
}

// runExport refreshes one store's workbook from the dimensional snapshot.
func (m *Manager) runExport(ctx context.Context) bool {
	lease, err := m.storage.AcquireExportStore(ctx, m.service)
	if err != nil {
		m.log.Error("failed to acquire export lease", "error", err)
		return false
	}
	if lease == nil {
		return false
	}

	if err := m.exportStore(ctx, lease.StoreID); err != nil {
		m.log.Error("workbook export failed", "store_id", lease.StoreID, "error", err)
		exports.WithLabelValues("error").Inc()
		return true
	}
	exports.WithLabelValues("success").Inc()
	return true
}

func (m *Manager) exportStore(ctx context.Context, storeID int64) error {
	spreadsheetID, err := m.storage.SpreadsheetID(ctx, storeID)
	if err != nil {
		return err
	}
	if m.devSpreadsheetID != "" {
		spreadsheetID = m.devSpreadsheetID
	}

	if err := m.uploader.CheckAccess(ctx, spreadsheetID); err != nil {
		return err
	}

	values, err := m.storage.DimensionalSheetValues(ctx, storeID)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		// An empty snapshot still counts as exported for today.
		m.log.Warn("dimensional snapshot is empty, skipping upload", "store_id", storeID)
		return m.storage.FinalizeExport(ctx, storeID)
	}

	if err := m.uploader.Upload(ctx, spreadsheetID, values); err != nil {
		return err
	}
	m.log.Info("workbook refreshed", "store_id", storeID, "rows", len(values)-1)
	return m.storage.FinalizeExport(ctx, storeID)
}
