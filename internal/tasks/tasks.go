// Package tasks holds the per-store ingestion steps. Each task pulls one feed
// of the seller API into its staging table and decides what is left to do by
// probing that table, so any step can be retried or resumed.
package tasks

import (
	"time"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

// base carries what every task shares. Tasks embed it and flip status when
// their staging table reaches the target state.
type base struct {
	storeID int64
	status  engine.Status
	log     logger.Logger
}

func (b *base) Status() engine.Status { return b.status }

func (b *base) fail(source string, err error) error {
	return engine.NewTaskError(source, err)
}

// NewChain builds the full task chain for one leased store, in the order the
// staggered scheduler will first run them. The statistics task depends on the
// campaign list task having finished, and waits for it.
func NewChain(storeID int64, apiToken string, store *postgres.Store, log logger.Logger) []engine.Task {
	client := marketplace.NewClient(apiToken)
	return []engine.Task{
		NewCardsTask(storeID, store, client, log),
		NewReportTask(storeID, store, client, log),
		NewStockTask(storeID, store, client, log),
		NewSalesTask(storeID, store, client, log),
		NewAdvertInfoTask(storeID, store, client, log),
		NewAdvertStatsTask(storeID, store, client, log),
	}
}

// parseAPITime reads a marketplace timestamp, nil when absent or malformed.
func parseAPITime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
