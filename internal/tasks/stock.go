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

const stockPageLimit = 1000

type stockStore interface {
	StockStatus(ctx context.Context, storeID int64) (needLoad bool, targetDate time.Time, err error)
	InsertStockRows(ctx context.Context, storeID int64, rows []postgres.StockRow) error
}

type stockAPI interface {
	StockReport(ctx context.Context, day time.Time, limit, offset int) ([]marketplace.StockItem, error)
}

// StockTask loads yesterday's warehouse snapshot once per day.
type StockTask struct {
	base
	store   stockStore
	api     stockAPI
	limiter *marketplace.Limiter
}

func NewStockTask(storeID int64, store stockStore, api stockAPI, log logger.Logger) *StockTask {
	return &StockTask{
		base:    base{storeID: storeID, log: log},
		store:   store,
		api:     api,
		limiter: marketplace.NewLimiter(3, time.Minute),
	}
}

func (t *StockTask) Name() string { return "fact_stock" }

func (t *StockTask) Step(ctx context.Context) error {
	needLoad, targetDate, err := t.store.StockStatus(ctx, t.storeID)
	if err != nil {
		return t.fail(t.Name(), err)
	}
	if !needLoad {
		t.status = engine.StatusSuccess
		return nil
	}

	if !t.limiter.Allow() {
		return nil
	}
	items, err := t.api.StockReport(ctx, targetDate, stockPageLimit, 0)
	if errors.Is(err, marketplace.ErrTooManyRequests) {
		t.limiter.BlockFor(rateLimitPause)
		t.log.Warn("stock endpoint rate limited",
			"source", t.Name(), "store_id", t.storeID)
		return nil
	}
	if err != nil {
		return t.fail(t.Name(), err)
	}

	rows := make([]postgres.StockRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, postgres.StockRow{
			Date:            targetDate,
			NmID:            item.NmID,
			StockCount:      item.Metrics.StockCount,
			ToClientCount:   item.Metrics.ToClientCount,
			FromClientCount: item.Metrics.FromClientCount,
		})
	}
	if err := t.store.InsertStockRows(ctx, t.storeID, rows); err != nil {
		return t.fail(t.Name(), err)
	}
	t.status = engine.StatusSuccess
	return nil
}
