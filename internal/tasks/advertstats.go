package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

type advertStatsStore interface {
	AdvertListFreshness(ctx context.Context, storeID int64) (actual, total int64, err error)
	AdvertInfoFreshness(ctx context.Context, storeID int64) (nullCount, actual, total int64, err error)
	AdvertLoadStatus(ctx context.Context, storeID int64) (*postgres.AdvertLoadReport, error)
	RegenerateAdvertLoadGrid(ctx context.Context, storeID int64) error
	NextAdvertBatches(ctx context.Context, storeID int64) ([]postgres.AdvertBatch, error)
	UpsertAdvertStats(ctx context.Context, storeID int64, stats []postgres.AdvertStatRow) error
	MarkAdvertsLoaded(ctx context.Context, storeID int64, batches []postgres.AdvertBatch) error
}

type advertStatsAPI interface {
	FullStats(ctx context.Context, queries []marketplace.StatsQuery) ([]marketplace.AdvertStats, error)
}

// AdvertStatsTask fills the campaign statistics grid from fullstats. It waits
// until the campaign registry is current, rebuilds its load grid when the
// registry changed, then works the unloaded cells batch by batch under the
// endpoint's one-request-per-70s quota.
type AdvertStatsTask struct {
	base
	store   advertStatsStore
	api     advertStatsAPI
	limiter *marketplace.Limiter
}

func NewAdvertStatsTask(storeID int64, store advertStatsStore, api advertStatsAPI, log logger.Logger) *AdvertStatsTask {
	return &AdvertStatsTask{
		base:    base{storeID: storeID, log: log},
		store:   store,
		api:     api,
		limiter: marketplace.NewLimiter(1, 70*time.Second),
	}
}

func (t *AdvertStatsTask) Name() string { return "advert_stats" }

func (t *AdvertStatsTask) registryReady(ctx context.Context) (bool, error) {
	actual, total, err := t.store.AdvertListFreshness(ctx, t.storeID)
	if err != nil {
		return false, err
	}
	if total == 0 || actual != total {
		return false, nil
	}
	nullCount, actual, total, err := t.store.AdvertInfoFreshness(ctx, t.storeID)
	if err != nil {
		return false, err
	}
	return total > 0 && nullCount == 0 && actual == total, nil
}

func gridCurrent(r *postgres.AdvertLoadReport) bool {
	return r.DifferenceCount == 0 && r.Total != 0 && r.Total == r.Actual
}

func gridLoaded(r *postgres.AdvertLoadReport) bool {
	return r.Total != 0 && r.Actual == r.Loaded
}

func (t *AdvertStatsTask) Step(ctx context.Context) error {
	ready, err := t.registryReady(ctx)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if !ready {
		// Campaign registry still loading; try again next round.
		return nil
	}

	report, err := t.store.AdvertLoadStatus(ctx, t.storeID)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if !gridCurrent(report) {
		if err := t.store.RegenerateAdvertLoadGrid(ctx, t.storeID); err != nil {
			return t.fail(t.Name(), err)
		}
		if report, err = t.store.AdvertLoadStatus(ctx, t.storeID); err != nil {
			return t.fail(t.Name(), err)
		}
	}
	if gridLoaded(report) {
		t.status = engine.StatusSuccess
		return nil
	}

	batches, err := t.store.NextAdvertBatches(ctx, t.storeID)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if len(batches) == 0 {
		return nil
	}

	if !t.limiter.Allow() {
		return nil
	}
	queries := make([]marketplace.StatsQuery, 0, len(batches))
	for _, b := range batches {
		dates := make([]string, 0, len(b.Dates))
		for _, d := range b.Dates {
			dates = append(dates, d.Format("2006-01-02"))
		}
		queries = append(queries, marketplace.StatsQuery{ID: b.AdvertID, Dates: dates})
	}

	stats, err := t.api.FullStats(ctx, queries)
	switch {
	case errors.Is(err, marketplace.ErrNoData):
		// No statistics for these cells; mark them done below.
		stats = nil
	case errors.Is(err, marketplace.ErrTooManyRequests):
		t.limiter.BlockFor(rateLimitPause)
		t.log.Warn("fullstats endpoint rate limited",
			"source", t.Name(), "store_id", t.storeID)
		return nil
	case err != nil:
		return t.fail(t.Name(), err)
	}

	if len(stats) > 0 {
		rows := explodeStats(stats)
		if err := t.store.UpsertAdvertStats(ctx, t.storeID, rows); err != nil {
			return t.fail(t.Name(), err)
		}
		t.log.Info("campaign statistics inserted",
			"source", t.Name(), "store_id", t.storeID, "rows", len(rows))
	}

	if err := t.store.MarkAdvertsLoaded(ctx, t.storeID, batches); err != nil {
		return t.fail(t.Name(), err)
	}

	if report, err = t.store.AdvertLoadStatus(ctx, t.storeID); err != nil {
		return t.fail(t.Name(), err)
	}
	if gridLoaded(report) {
		t.status = engine.StatusSuccess
	}
	return nil
}

// explodeStats flattens campaign -> day -> placement -> product into grid rows.
func explodeStats(stats []marketplace.AdvertStats) []postgres.AdvertStatRow {
	var rows []postgres.AdvertStatRow
	for _, advert := range stats {
		for _, day := range advert.Days {
			date := day.Date
			if len(date) > 10 {
				date = date[:10]
			}
			for _, app := range day.Apps {
				for _, nm := range app.Nm {
					rows = append(rows, postgres.AdvertStatRow{
						Date:     date,
						AdvertID: advert.AdvertID,
						AppType:  app.AppType,
						NmID:     nm.NmID,
						Views:    nm.Views,
						Clicks:   nm.Clicks,
						CTR:      nm.CTR,
						CPC:      nm.CPC,
						Sum:      nm.Sum,
						Atbs:     nm.Atbs,
						Orders:   nm.Orders,
						CR:       nm.CR,
						Shks:     nm.Shks,
						SumPrice: nm.SumPrice,
					})
				}
			}
		}
	}
	return rows
}
