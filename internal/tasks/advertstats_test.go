package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

type fakeAdvertStatsStore struct {
	fakeAdvertInfoStore
	report      postgres.AdvertLoadReport
	regenerated bool
	batches     []postgres.AdvertBatch
	upserted    []postgres.AdvertStatRow
	marked      []postgres.AdvertBatch
	loadedAfter int64
}

func (f *fakeAdvertStatsStore) AdvertLoadStatus(ctx context.Context, storeID int64) (*postgres.AdvertLoadReport, error) {
	r := f.report
	return &r, nil
}

func (f *fakeAdvertStatsStore) RegenerateAdvertLoadGrid(ctx context.Context, storeID int64) error {
	f.regenerated = true
	f.report.DifferenceCount = 0
	f.report.Actual = f.report.Total
	return nil
}

func (f *fakeAdvertStatsStore) NextAdvertBatches(ctx context.Context, storeID int64) ([]postgres.AdvertBatch, error) {
	return f.batches, nil
}

func (f *fakeAdvertStatsStore) UpsertAdvertStats(ctx context.Context, storeID int64, stats []postgres.AdvertStatRow) error {
	f.upserted = append(f.upserted, stats...)
	return nil
}

func (f *fakeAdvertStatsStore) MarkAdvertsLoaded(ctx context.Context, storeID int64, batches []postgres.AdvertBatch) error {
	f.marked = append(f.marked, batches...)
	f.report.Loaded = f.loadedAfter
	return nil
}

type fakeAdvertStatsAPI struct {
	stats   []marketplace.AdvertStats
	err     error
	queries []marketplace.StatsQuery
}

func (f *fakeAdvertStatsAPI) FullStats(ctx context.Context, queries []marketplace.StatsQuery) ([]marketplace.AdvertStats, error) {
	f.queries = queries
	return f.stats, f.err
}

func readyRegistry() fakeAdvertInfoStore {
	return fakeAdvertInfoStore{
		listActual: 2, listTotal: 2,
		nullCount: 0, infoActual: 2, infoTot: 2,
	}
}

func TestAdvertStatsTaskWaitsForRegistry(t *testing.T) {
	store := &fakeAdvertStatsStore{}
	task := NewAdvertStatsTask(1, store, &fakeAdvertStatsAPI{}, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if task.Status() != engine.StatusInProgress {
		t.Fatalf("status = %v", task.Status())
	}
	if store.regenerated {
		t.Fatal("grid must not be touched before the registry is ready")
	}
}

func TestAdvertStatsTaskRebuildsOutdatedGrid(t *testing.T) {
	store := &fakeAdvertStatsStore{
		fakeAdvertInfoStore: readyRegistry(),
		report:              postgres.AdvertLoadReport{Total: 10, Actual: 6, Loaded: 6, DifferenceCount: 4},
	}
	// After the rebuild every cell reads as loaded.
	store.loadedAfter = 10
	store.report.Loaded = 10
	task := NewAdvertStatsTask(1, store, &fakeAdvertStatsAPI{}, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !store.regenerated {
		t.Fatal("outdated grid should be rebuilt")
	}
	if task.Status() != engine.StatusSuccess {
		t.Fatalf("status = %v", task.Status())
	}
}

func TestAdvertStatsTaskLoadsBatchAndMarksCells(t *testing.T) {
	batch := postgres.AdvertBatch{
		AdvertID: 10,
		Dates: []time.Time{
			time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	store := &fakeAdvertStatsStore{
		fakeAdvertInfoStore: readyRegistry(),
		report:              postgres.AdvertLoadReport{Total: 4, Actual: 4, Loaded: 2},
		batches:             []postgres.AdvertBatch{batch},
		loadedAfter:         4,
	}
	api := &fakeAdvertStatsAPI{stats: []marketplace.AdvertStats{{
		AdvertID: 10,
		Days: []marketplace.AdvertStatsDay{{
			Date: "2026-08-01T00:00:00Z",
			Apps: []marketplace.AdvertStatsApp{{
				AppType: 1,
				Nm:      []marketplace.AdvertStatsNm{{NmID: 5, Views: 100, Clicks: 3, Sum: 42.5}},
			}},
		}},
	}}}
	task := NewAdvertStatsTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(api.queries) != 1 || api.queries[0].ID != 10 {
		t.Fatalf("queries = %+v", api.queries)
	}
	if api.queries[0].Dates[0] != "2026-08-01" || api.queries[0].Dates[1] != "2026-08-02" {
		t.Fatalf("dates = %v", api.queries[0].Dates)
	}
	if len(store.upserted) != 1 || store.upserted[0].Date != "2026-08-01" || store.upserted[0].NmID != 5 {
		t.Fatalf("upserted = %+v", store.upserted)
	}
	if len(store.marked) != 1 {
		t.Fatalf("marked %d batches", len(store.marked))
	}
	if task.Status() != engine.StatusSuccess {
		t.Fatalf("status = %v", task.Status())
	}
}

func TestAdvertStatsTaskEmptyStatsStillMarksCells(t *testing.T) {
	store := &fakeAdvertStatsStore{
		fakeAdvertInfoStore: readyRegistry(),
		report:              postgres.AdvertLoadReport{Total: 2, Actual: 2, Loaded: 0},
		batches:             []postgres.AdvertBatch{{AdvertID: 10, Dates: []time.Time{time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}}},
		loadedAfter:         2,
	}
	api := &fakeAdvertStatsAPI{err: marketplace.ErrNoData}
	task := NewAdvertStatsTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(store.upserted) != 0 {
		t.Fatal("nothing should be upserted without statistics")
	}
	if len(store.marked) != 1 {
		t.Fatal("empty cells must still be marked loaded")
	}
}

func TestAdvertStatsTaskHonorsQuota(t *testing.T) {
	store := &fakeAdvertStatsStore{
		fakeAdvertInfoStore: readyRegistry(),
		report:              postgres.AdvertLoadReport{Total: 4, Actual: 4, Loaded: 0},
		batches:             []postgres.AdvertBatch{{AdvertID: 10, Dates: []time.Time{time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}}},
		loadedAfter:         2,
	}
	api := &fakeAdvertStatsAPI{}
	task := NewAdvertStatsTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(store.marked) != 1 {
		t.Fatalf("first step should consume the quota, marked = %d", len(store.marked))
	}
	// Second step inside the 70s window must not call the endpoint again.
	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(store.marked) != 1 {
		t.Fatal("second request within the window should be withheld")
	}
}

func TestExplodeStatsFlattensHierarchy(t *testing.T) {
	stats := []marketplace.AdvertStats{{
		AdvertID: 7,
		Days: []marketplace.AdvertStatsDay{{
			Date: "2026-08-03T00:00:00+03:00",
			Apps: []marketplace.AdvertStatsApp{
				{AppType: 1, Nm: []marketplace.AdvertStatsNm{{NmID: 1}, {NmID: 2}}},
				{AppType: 32, Nm: []marketplace.AdvertStatsNm{{NmID: 3, CTR: 1.5, CR: 0.2}}},
			},
		}},
	}}
	rows := explodeStats(stats)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for _, r := range rows {
		if r.AdvertID != 7 || r.Date != "2026-08-03" {
			t.Fatalf("row = %+v", r)
		}
	}
	if rows[2].AppType != 32 || rows[2].CTR != 1.5 || rows[2].CR != 0.2 {
		t.Fatalf("metrics not carried: %+v", rows[2])
	}
}
