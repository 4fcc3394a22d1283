package tasks

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/user/storefleet/internal/engine"
	"github.com/user/storefleet/internal/logger"
	"github.com/user/storefleet/internal/marketplace"
	"github.com/user/storefleet/internal/storage/postgres"
)

const advertDetailBatchSize = 45

type advertInfoStore interface {
	AdvertListFreshness(ctx context.Context, storeID int64) (actual, total int64, err error)
	AdvertInfoFreshness(ctx context.Context, storeID int64) (nullCount, actual, total int64, err error)
	DeleteAdvertList(ctx context.Context, storeID int64) error
	InsertAdvertList(ctx context.Context, storeID int64, refs []postgres.AdvertRef) error
	AdvertIDs(ctx context.Context, storeID int64) ([]int64, error)
	UpdateAdvertDetails(ctx context.Context, storeID int64, details []postgres.AdvertDetailRow) error
}

type advertInfoAPI interface {
	PromotionCount(ctx context.Context) ([]marketplace.AdvertSummary, error)
	PromotionAdverts(ctx context.Context, ids []int64) ([]marketplace.AdvertDetail, error)
}

// AdvertInfoTask maintains the campaign registry in two phases: rewrite the
// campaign list from promotion/count, then enrich every row with lifecycle
// timestamps in detail batches.
type AdvertInfoTask struct {
	base
	store advertInfoStore
	api   advertInfoAPI
	pace  *rate.Limiter
}

func NewAdvertInfoTask(storeID int64, store advertInfoStore, api advertInfoAPI, log logger.Logger) *AdvertInfoTask {
	return &AdvertInfoTask{
		base:  base{storeID: storeID, log: log},
		store: store,
		api:   api,
		pace:  rate.NewLimiter(rate.Limit(4), 1),
	}
}

func (t *AdvertInfoTask) Name() string { return "advert_info" }

func (t *AdvertInfoTask) listOK(ctx context.Context) (bool, error) {
	actual, total, err := t.store.AdvertListFreshness(ctx, t.storeID)
	if err != nil {
		return false, err
	}
	return total > 0 && actual == total, nil
}

func (t *AdvertInfoTask) infoOK(ctx context.Context) (bool, error) {
	nullCount, actual, total, err := t.store.AdvertInfoFreshness(ctx, t.storeID)
	if err != nil {
		return false, err
	}
	return total > 0 && nullCount == 0 && actual == total, nil
}

func (t *AdvertInfoTask) Step(ctx context.Context) error {
	listOK, err := t.listOK(ctx)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	infoOK, err := t.infoOK(ctx)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if listOK && infoOK {
		t.status = engine.StatusSuccess
		return nil
	}

	if !listOK {
		if err := t.reloadList(ctx); err != nil {
			return err
		}
		if listOK, err = t.listOK(ctx); err != nil {
			return t.fail(t.Name(), err)
		}
		if !listOK {
			return nil
		}
	}

	if !infoOK {
		if err := t.enrichDetails(ctx); err != nil {
			return err
		}
		if infoOK, err = t.infoOK(ctx); err != nil {
			return t.fail(t.Name(), err)
		}
		if !infoOK {
			return nil
		}
	}

	t.status = engine.StatusSuccess
	return nil
}

func (t *AdvertInfoTask) reloadList(ctx context.Context) error {
	if err := t.store.DeleteAdvertList(ctx, t.storeID); err != nil {
		return t.fail(t.Name(), err)
	}
	summaries, err := t.api.PromotionCount(ctx)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	refs := make([]postgres.AdvertRef, 0, len(summaries))
	for _, s := range summaries {
		refs = append(refs, postgres.AdvertRef{AdvertID: s.AdvertID, AdvertType: s.Type})
	}
	if err := t.store.InsertAdvertList(ctx, t.storeID, refs); err != nil {
		return t.fail(t.Name(), err)
	}
	return nil
}

func (t *AdvertInfoTask) enrichDetails(ctx context.Context) error {
	ids, err := t.store.AdvertIDs(ctx, t.storeID)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if len(ids) == 0 {
		return nil
	}

	var details []marketplace.AdvertDetail
	for start := 0; start < len(ids); start += advertDetailBatchSize {
		end := start + advertDetailBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := t.pace.Wait(ctx); err != nil {
			return t.fail(t.Name(), err)
		}
		batch, err := t.api.PromotionAdverts(ctx, ids[start:end])
		if errors.Is(err, marketplace.ErrTooManyRequests) {
			t.log.Warn("campaign detail endpoint rate limited",
				"source", t.Name(), "store_id", t.storeID)
			continue
		}
		if err != nil {
			return t.fail(t.Name(), err)
		}
		details = append(details, batch...)
	}
	if len(details) == 0 {
		return nil
	}

	rows := make([]postgres.AdvertDetailRow, 0, len(details))
	for _, d := range details {
		rows = append(rows, postgres.AdvertDetailRow{
			AdvertID:   d.AdvertID,
			StartTime:  parseAPITime(d.StartTime),
			EndTime:    parseAPITime(d.EndTime),
			CreateTime: parseAPITime(d.CreateTime),
			ChangeTime: parseAPITime(d.ChangeTime),
		})
	}
	if err := t.store.UpdateAdvertDetails(ctx, t.storeID, rows); err != nil {
		return t.fail(t.Name(), err)
	}
	return nil
}
