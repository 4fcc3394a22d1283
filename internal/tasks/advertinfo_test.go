package tasks

import (
	"context"
	"testing"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

type fakeAdvertInfoStore struct {
	listActual, listTotal          int64
	nullCount, infoActual, infoTot int64
	ids                            []int64
	deleted                        bool
	insertedRefs                   []postgres.AdvertRef
	updated                        []postgres.AdvertDetailRow

	// freshen mimics the list/detail reloads landing in staging.
	freshenOnInsert bool
	freshenOnUpdate bool
}

func (f *fakeAdvertInfoStore) AdvertListFreshness(ctx context.Context, storeID int64) (int64, int64, error) {
	return f.listActual, f.listTotal, nil
}

func (f *fakeAdvertInfoStore) AdvertInfoFreshness(ctx context.Context, storeID int64) (int64, int64, int64, error) {
	return f.nullCount, f.infoActual, f.infoTot, nil
}

func (f *fakeAdvertInfoStore) DeleteAdvertList(ctx context.Context, storeID int64) error {
	f.deleted = true
	return nil
}

func (f *fakeAdvertInfoStore) InsertAdvertList(ctx context.Context, storeID int64, refs []postgres.AdvertRef) error {
	f.insertedRefs = refs
	if f.freshenOnInsert {
		f.listActual = int64(len(refs))
		f.listTotal = int64(len(refs))
	}
	return nil
}

func (f *fakeAdvertInfoStore) AdvertIDs(ctx context.Context, storeID int64) ([]int64, error) {
	return f.ids, nil
}

func (f *fakeAdvertInfoStore) UpdateAdvertDetails(ctx context.Context, storeID int64, details []postgres.AdvertDetailRow) error {
	f.updated = append(f.updated, details...)
	if f.freshenOnUpdate {
		f.nullCount = 0
		f.infoActual = f.infoTot
	}
	return nil
}

type fakeAdvertInfoAPI struct {
	summaries []marketplace.AdvertSummary
	details   []marketplace.AdvertDetail
	batches   [][]int64
}

func (f *fakeAdvertInfoAPI) PromotionCount(ctx context.Context) ([]marketplace.AdvertSummary, error) {
	return f.summaries, nil
}

func (f *fakeAdvertInfoAPI) PromotionAdverts(ctx context.Context, ids []int64) ([]marketplace.AdvertDetail, error) {
	f.batches = append(f.batches, ids)
	var out []marketplace.AdvertDetail
	for _, id := range ids {
		out = append(out, marketplace.AdvertDetail{
			AdvertID:   id,
			CreateTime: "2026-08-01T00:00:00Z",
			ChangeTime: "2026-08-02T00:00:00Z",
		})
	}
	return out, nil
}

func TestAdvertInfoTaskFreshRegistryFinishes(t *testing.T) {
	store := &fakeAdvertInfoStore{
		listActual: 3, listTotal: 3,
		nullCount: 0, infoActual: 3, infoTot: 3,
	}
	task := NewAdvertInfoTask(1, store, &fakeAdvertInfoAPI{}, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if task.Status() != engine.StatusSuccess {
		t.Fatalf("status = %v", task.Status())
	}
	if store.deleted {
		t.Fatal("fresh registry should not be rewritten")
	}
}

func TestAdvertInfoTaskReloadsStaleList(t *testing.T) {
	store := &fakeAdvertInfoStore{
		listActual: 1, listTotal: 3,
		freshenOnInsert: true,
	}
	api := &fakeAdvertInfoAPI{summaries: []marketplace.AdvertSummary{
		{AdvertID: 10, Type: 8},
		{AdvertID: 11, Type: 9},
	}}
	task := NewAdvertInfoTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !store.deleted {
		t.Fatal("stale list should be deleted before rewrite")
	}
	if len(store.insertedRefs) != 2 || store.insertedRefs[0].AdvertType != 8 {
		t.Fatalf("refs = %+v", store.insertedRefs)
	}
}

func TestAdvertInfoTaskEnrichesInBatches(t *testing.T) {
	ids := make([]int64, advertDetailBatchSize+5)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	store := &fakeAdvertInfoStore{
		listActual: int64(len(ids)), listTotal: int64(len(ids)),
		nullCount: int64(len(ids)), infoActual: 0, infoTot: int64(len(ids)),
		ids:             ids,
		freshenOnUpdate: true,
	}
	api := &fakeAdvertInfoAPI{}
	task := NewAdvertInfoTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(api.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(api.batches))
	}
	if len(api.batches[0]) != advertDetailBatchSize || len(api.batches[1]) != 5 {
		t.Fatalf("batch sizes = %d %d", len(api.batches[0]), len(api.batches[1]))
	}
	if len(store.updated) != len(ids) {
		t.Fatalf("updated %d rows", len(store.updated))
	}
	if store.updated[0].CreateTime == nil || store.updated[0].ChangeTime == nil {
		t.Fatal("timestamps not parsed")
	}
	if task.Status() != engine.StatusSuccess {
		t.Fatalf("status = %v", task.Status())
	}
}

func TestAdvertInfoTaskStaysInProgressWhileStale(t *testing.T) {
	// The rewrite lands but the freshness probe still reports a stale list,
	// so the step yields without error and without finishing.
	store := &fakeAdvertInfoStore{listActual: 0, listTotal: 3}
	api := &fakeAdvertInfoAPI{summaries: []marketplace.AdvertSummary{{AdvertID: 10, Type: 8}}}
	task := NewAdvertInfoTask(1, store, api, nopLogger{})

	if err := task.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if task.Status() != engine.StatusInProgress {
		t.Fatalf("status = %v", task.Status())
	}
}
